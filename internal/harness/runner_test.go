package harness

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/MrMartyK/source1.5/internal/config"
	"github.com/MrMartyK/source1.5/internal/logging"
)

type fakeRecorder struct {
	runID    string
	mapName  string
	outcomes []Outcome
	finished bool
	success  bool
	total    int
	passed   int
	failed   int
}

func (f *fakeRecorder) RecordRunStart(id, mapName string) error {
	f.runID = id
	f.mapName = mapName
	return nil
}

func (f *fakeRecorder) RecordOutcome(runID string, o Outcome) error {
	f.outcomes = append(f.outcomes, o)
	return nil
}

func (f *fakeRecorder) RecordRunResult(runID string, success bool, total, passed, failed int) error {
	f.finished = true
	f.success = success
	f.total, f.passed, f.failed = total, passed, failed
	return nil
}

// keepExistingStub creates each requested screenshot only when it does not
// already exist, so tests can pre-seed candidate images.
func keepExistingStub(cfg *config.Config, skipName string) string {
	return fmt.Sprintf(`prev=""
for a in "$@"; do
  if [ "$prev" = "+screenshot" ] && [ "$a" != %q ]; then
    [ -e %q/"$a" ] || : > %q/"$a"
  fi
  prev="$a"
done`, skipName, cfg.ScreenshotDir, cfg.ScreenshotDir)
}

func TestRunBootstrapsAndPasses(t *testing.T) {
	cfg := driverConfig(t)
	cfg.Positions = []config.CameraPosition{
		{Name: "spawn"},
		{Name: "mid"},
	}
	installStubGame(t, cfg, keepExistingStub(cfg, ""))

	rec := &fakeRecorder{}
	runner := NewRunner(cfg, logging.New("error", "text"), rec)

	success, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !success {
		t.Error("Run = false, want true for bootstrap-only run")
	}

	if rec.runID == "" || rec.mapName != "de_test" {
		t.Errorf("run start not recorded: id=%q map=%q", rec.runID, rec.mapName)
	}
	if len(rec.outcomes) != 2 {
		t.Fatalf("recorded outcomes = %d, want 2", len(rec.outcomes))
	}
	if rec.outcomes[0].Position != "spawn" || rec.outcomes[1].Position != "mid" {
		t.Errorf("outcomes out of order: %s, %s", rec.outcomes[0].Position, rec.outcomes[1].Position)
	}
	if !rec.finished || !rec.success || rec.total != 2 || rec.passed != 2 {
		t.Errorf("run result = %+v, want finished success 2/2", rec)
	}

	report := filepath.Join(cfg.ScreenshotDir, ReportName)
	if _, err := os.Stat(report); err != nil {
		t.Errorf("report not written: %v", err)
	}
	for _, name := range []string{"de_test_spawn.tga", "de_test_mid.tga"} {
		if _, err := os.Stat(filepath.Join(cfg.GoldenDir, name)); err != nil {
			t.Errorf("golden %s not seeded: %v", name, err)
		}
	}
}

func TestRunSkipsFailedCapture(t *testing.T) {
	cfg := driverConfig(t)
	cfg.Positions = []config.CameraPosition{
		{Name: "spawn"},
		{Name: "broken"},
		{Name: "end"},
	}
	installStubGame(t, cfg, keepExistingStub(cfg, "de_test_broken.tga"))

	rec := &fakeRecorder{}
	runner := NewRunner(cfg, logging.New("error", "text"), rec)

	success, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The broken position never produces an outcome; the survivors decide.
	if !success {
		t.Error("Run = false, want true when remaining positions pass")
	}
	if len(rec.outcomes) != 2 {
		t.Fatalf("recorded outcomes = %d, want 2", len(rec.outcomes))
	}
	if rec.outcomes[0].Position != "spawn" || rec.outcomes[1].Position != "end" {
		t.Errorf("outcomes = %s, %s; want spawn, end", rec.outcomes[0].Position, rec.outcomes[1].Position)
	}
	if rec.total != 2 {
		t.Errorf("recorded total = %d, want 2 (skips excluded)", rec.total)
	}
}

func TestRunFailsOnRegression(t *testing.T) {
	cfg := driverConfig(t)
	cfg.Positions = []config.CameraPosition{{Name: "spawn"}}
	installStubGame(t, cfg, keepExistingStub(cfg, ""))

	// Pre-seed a candidate and a conflicting golden.
	writeTGA(t, filepath.Join(cfg.ScreenshotDir, "de_test_spawn.tga"),
		uniform(4, 4, color.RGBA{255, 255, 255, 255}))
	writeTGA(t, filepath.Join(cfg.GoldenDir, "de_test_spawn.tga"),
		uniform(4, 4, color.RGBA{0, 0, 0, 255}))

	rec := &fakeRecorder{}
	runner := NewRunner(cfg, logging.New("error", "text"), rec)

	success, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if success {
		t.Error("Run = true, want false for a regressed position")
	}
	if rec.success || rec.failed != 1 {
		t.Errorf("run result = %+v, want failure with 1 failed", rec)
	}

	// A failed run still writes its report for review.
	if _, err := os.Stat(filepath.Join(cfg.ScreenshotDir, ReportName)); err != nil {
		t.Errorf("report not written after failed run: %v", err)
	}
}

func TestRunNoPositionsIsVacuousSuccess(t *testing.T) {
	cfg := driverConfig(t)
	cfg.Positions = nil
	installStubGame(t, cfg, keepExistingStub(cfg, ""))

	runner := NewRunner(cfg, logging.New("error", "text"), nil)
	success, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !success {
		t.Error("Run = false, want vacuous true with no positions")
	}
	if _, err := os.Stat(filepath.Join(cfg.ScreenshotDir, ReportName)); err == nil {
		t.Error("report written for a run with no outcomes")
	}
}

func TestRunAllCapturesFailIsVacuousSuccess(t *testing.T) {
	cfg := driverConfig(t)
	cfg.Positions = []config.CameraPosition{{Name: "spawn"}}
	installStubGame(t, cfg, "exit 0")

	rec := &fakeRecorder{}
	runner := NewRunner(cfg, logging.New("error", "text"), rec)
	success, err := runner.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !success {
		t.Error("Run = false, want true when every position was skipped")
	}
	if len(rec.outcomes) != 0 {
		t.Errorf("recorded outcomes = %d, want 0", len(rec.outcomes))
	}
}

func TestSummarize(t *testing.T) {
	outcomes := []Outcome{
		{Passed: true},
		{Passed: false},
		{Passed: true},
	}
	total, passed := summarize(outcomes)
	if total != 3 || passed != 2 {
		t.Errorf("summarize = (%d, %d), want (3, 2)", total, passed)
	}

	total, passed = summarize(nil)
	if total != 0 || passed != 0 {
		t.Errorf("summarize(nil) = (%d, %d), want (0, 0)", total, passed)
	}
}
