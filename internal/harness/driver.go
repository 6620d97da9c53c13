package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/MrMartyK/source1.5/internal/config"
	"github.com/MrMartyK/source1.5/internal/fsutil"
)

// Driver launches the engine headless for one camera position and verifies
// that the expected screenshot artifact was written.
type Driver struct {
	cfg *config.Config
	log *slog.Logger
}

// NewDriver creates a process driver bound to one run configuration.
func NewDriver(cfg *config.Config, logger *slog.Logger) *Driver {
	return &Driver{cfg: cfg, log: logger}
}

// ArtifactName returns the screenshot filename for a position. Distinct
// position names never collide because Config.Validate enforces uniqueness.
func (d *Driver) ArtifactName(pos config.CameraPosition) string {
	return fmt.Sprintf("%s_%s.tga", d.cfg.MapName, pos.Name)
}

// Capture runs the engine at pos and returns the path of the captured
// artifact. The child process is always terminated before Capture returns,
// on every path: normal exit, timeout kill, or context cancellation.
func (d *Driver) Capture(ctx context.Context, pos config.CameraPosition) (string, error) {
	exe := fsutil.FirstExisting(
		filepath.Join(d.cfg.GameDir, "hl2.exe"),
		filepath.Join(d.cfg.GameDir, "hl2.sh"),
	)
	if exe == "" {
		return "", fmt.Errorf("%w in %s", ErrExecutableNotFound, d.cfg.GameDir)
	}

	args := d.buildArgs(pos)
	d.log.Debug("launching game",
		"exe", exe,
		"position", pos.Name,
		"args", len(args),
	)

	runCtx, cancel := context.WithTimeout(ctx, time.Duration(d.cfg.Timeout)*time.Second)
	defer cancel()

	watch := newCaptureWatcher(d.cfg.ScreenshotDir, d.ArtifactName(pos), d.log)
	defer watch.Close()

	cmd := exec.CommandContext(runCtx, exe, args...)
	output, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("%w after %ds", ErrProcessTimeout, d.cfg.Timeout)
	}
	if err != nil {
		// The engine routinely exits non-zero after +quit; the artifact
		// on disk is the authoritative signal, not the exit code.
		d.log.Debug("game process exited with error",
			"position", pos.Name,
			"error", err,
			"output_bytes", len(output),
		)
	}

	artifact := filepath.Join(d.cfg.ScreenshotDir, d.ArtifactName(pos))
	if !fsutil.Exists(artifact) {
		return "", fmt.Errorf("%w: %s", ErrCaptureMissing, artifact)
	}
	return artifact, nil
}

// buildArgs assembles the startup directive stream. Order matters: the
// engine executes directives sequentially, so the screenshot must come
// after the map load, teleport and settle wait.
func (d *Driver) buildArgs(pos config.CameraPosition) []string {
	args := []string{
		"-game", d.cfg.GameMod,
		"+map", d.cfg.MapName,
		"-windowed",
		"-noborder",
		"-w", "1920",
		"-h", "1080",
		"-dev",
		"-console",
		"-nosteam",
		"-insecure",
	}

	// Map iteration order is random; sort so reruns get identical
	// command lines.
	names := make([]string, 0, len(d.cfg.CVars))
	for name := range d.cfg.CVars {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		args = append(args, "+"+name, d.cfg.CVars[name])
	}

	args = append(args,
		"+setpos", fmt.Sprintf("%g %g %g", pos.X, pos.Y, pos.Z),
		"+setang", fmt.Sprintf("%g %g 0", pos.Pitch, pos.Yaw),
		"+wait", "100",
		"+screenshot", d.ArtifactName(pos),
		"+quit",
	)
	return args
}
