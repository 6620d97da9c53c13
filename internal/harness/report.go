package harness

import (
	"fmt"
	"html/template"
	"math"
	"os"
	"path/filepath"

	"github.com/MrMartyK/source1.5/internal/config"
)

// ReportName is the fixed filename written into the screenshot directory.
const ReportName = "parity_report.html"

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"mse": func(v float64) string {
		if math.IsInf(v, 1) {
			return "inf (dimension mismatch)"
		}
		return fmt.Sprintf("%.2f", v)
	},
}).Parse(`<!DOCTYPE html>
<html>
<head>
    <title>Parity Test Report - Source 1.5</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        h1 { color: #333; }
        .result { margin: 20px 0; padding: 10px; border: 1px solid #ddd; }
        .pass { background-color: #d4edda; }
        .fail { background-color: #f8d7da; }
        .metrics { font-family: monospace; }
        img { max-width: 800px; border: 1px solid #ccc; margin: 10px 0; }
    </style>
</head>
<body>
    <h1>Parity Test Report</h1>
    <p>Map: <strong>{{.MapName}}</strong></p>
    <p>Total Tests: {{.Total}} | Passed: {{.Passed}} | Failed: {{.Failed}}</p>
{{range .Outcomes}}
    <div class="result {{if .Passed}}pass{{else}}fail{{end}}">
        <h2>{{.Position}} - {{if .Passed}}PASS{{else}}FAIL{{end}}</h2>
        <div class="metrics">
            SSIM: {{printf "%.4f" .Similarity}} (threshold: {{printf "%.2f" .Threshold}})<br>
            MSE:  {{mse .MSE}}
        </div>
        <div>
            <strong>Candidate:</strong><br>
            <img src="{{.MapName}}_{{.Position}}.tga">
        </div>
    </div>
{{end}}
</body>
</html>
`))

type reportData struct {
	MapName  string
	Total    int
	Passed   int
	Failed   int
	Outcomes []Outcome
}

// WriteReport renders the run report into the screenshot directory so the
// embedded candidate image links resolve relative to the document.
func WriteReport(cfg *config.Config, outcomes []Outcome) (string, error) {
	passed := 0
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	data := reportData{
		MapName:  cfg.MapName,
		Total:    len(outcomes),
		Passed:   passed,
		Failed:   len(outcomes) - passed,
		Outcomes: outcomes,
	}

	path := filepath.Join(cfg.ScreenshotDir, ReportName)
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := reportTemplate.Execute(f, data); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
