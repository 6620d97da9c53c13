package harness

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/MrMartyK/source1.5/internal/config"
	"github.com/MrMartyK/source1.5/internal/logging"
)

// RunRecorder persists run history. A nil recorder disables persistence.
type RunRecorder interface {
	RecordRunStart(id, mapName string) error
	RecordOutcome(runID string, o Outcome) error
	RecordRunResult(runID string, success bool, total, passed, failed int) error
}

// Runner sequences a full parity run: capture, compare, report, summary.
// Positions execute strictly one at a time; the engine assumes exclusive
// access to the display, so there is no concurrent capture.
type Runner struct {
	cfg        *config.Config
	log        *slog.Logger
	driver     *Driver
	comparator *Comparator
	recorder   RunRecorder
}

// NewRunner builds a runner for cfg. recorder may be nil.
func NewRunner(cfg *config.Config, logger *slog.Logger, recorder RunRecorder) *Runner {
	return &Runner{
		cfg:        cfg,
		log:        logger,
		driver:     NewDriver(cfg, logger),
		comparator: NewComparator(cfg, logger),
		recorder:   recorder,
	}
}

// Run executes every configured position in order and reports whether all
// recorded outcomes passed. Positions that fail to capture or compare are
// skipped and do not count toward the result; an empty outcome list is a
// vacuous success.
func (r *Runner) Run(ctx context.Context) (bool, error) {
	if err := os.MkdirAll(r.cfg.ScreenshotDir, 0o755); err != nil {
		return false, fmt.Errorf("create screenshot dir: %w", err)
	}
	if err := os.MkdirAll(r.cfg.GoldenDir, 0o755); err != nil {
		return false, fmt.Errorf("create golden dir: %w", err)
	}

	runID := newRunID()
	if r.recorder != nil {
		if err := r.recorder.RecordRunStart(runID, r.cfg.MapName); err != nil {
			r.log.Warn("failed to record run start", "run", runID, "error", err)
		}
	}

	r.log.Info("parity run starting",
		"run", runID,
		"map", r.cfg.MapName,
		"positions", len(r.cfg.Positions),
	)

	var outcomes []Outcome
	for _, pos := range r.cfg.Positions {
		start := time.Now()
		logging.LogPositionStart(r.log, r.cfg.MapName, pos.Name, r.cfg.Timeout)

		if _, err := r.driver.Capture(ctx, pos); err != nil {
			logging.LogPositionSkipped(r.log, r.cfg.MapName, pos.Name, err)
			continue
		}

		outcome, err := r.comparator.Compare(pos)
		if err != nil {
			logging.LogPositionSkipped(r.log, r.cfg.MapName, pos.Name, err)
			continue
		}

		logging.LogPositionResult(r.log, r.cfg.MapName, pos.Name,
			outcome.Passed, outcome.Similarity, outcome.MSE, outcome.Threshold,
			time.Since(start))

		outcomes = append(outcomes, outcome)
		if r.recorder != nil {
			if err := r.recorder.RecordOutcome(runID, outcome); err != nil {
				r.log.Warn("failed to record outcome", "run", runID, "position", pos.Name, "error", err)
			}
		}
	}

	if len(outcomes) > 0 {
		if path, err := WriteReport(r.cfg, outcomes); err != nil {
			r.log.Error("failed to write report", "error", err)
		} else {
			r.log.Info("report generated", "path", path)
		}
	}

	total, passed := summarize(outcomes)
	printSummary(os.Stdout, total, passed)

	success := passed == total
	if r.recorder != nil {
		if err := r.recorder.RecordRunResult(runID, success, total, passed, total-passed); err != nil {
			r.log.Warn("failed to record run result", "run", runID, "error", err)
		}
	}
	return success, nil
}

func summarize(outcomes []Outcome) (total, passed int) {
	total = len(outcomes)
	for _, o := range outcomes {
		if o.Passed {
			passed++
		}
	}
	return total, passed
}

func printSummary(w *os.File, total, passed int) {
	rate := 0.0
	if total > 0 {
		rate = float64(passed) / float64(total) * 100
	}
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintln(w, "SUMMARY")
	fmt.Fprintln(w, "============================================================")
	fmt.Fprintf(w, "Total:  %d\n", total)
	fmt.Fprintf(w, "Passed: %d\n", passed)
	fmt.Fprintf(w, "Failed: %d\n", total-passed)
	fmt.Fprintf(w, "Rate:   %.1f%%\n", rate)
	fmt.Fprintln(w, "============================================================")
}

func newRunID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	return fmt.Sprintf("run-%s-%04d", ts, rand.Intn(10000))
}
