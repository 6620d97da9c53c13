package harness

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// captureWatcher observes the screenshot directory while the engine runs
// and logs the moment the expected artifact lands on disk. It is purely
// informational: the driver's existence check after process exit remains
// the authoritative capture signal.
type captureWatcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newCaptureWatcher(dir, artifact string, logger *slog.Logger) *captureWatcher {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Debug("capture watcher unavailable", "error", err)
		return &captureWatcher{}
	}
	if err := w.Add(dir); err != nil {
		logger.Debug("capture watcher cannot watch directory", "dir", dir, "error", err)
		w.Close()
		return &captureWatcher{}
	}

	cw := &captureWatcher{watcher: w, done: make(chan struct{})}
	go func() {
		for {
			select {
			case <-cw.done:
				return
			case event, ok := <-w.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
					continue
				}
				if filepath.Base(event.Name) != artifact {
					continue
				}
				logger.Debug("capture artifact written", "artifact", event.Name)
			case _, ok := <-w.Errors:
				if !ok {
					return
				}
			}
		}
	}()
	return cw
}

// Close stops the watcher. Safe on a watcher that failed to start.
func (cw *captureWatcher) Close() {
	if cw.watcher == nil {
		return
	}
	close(cw.done)
	cw.watcher.Close()
}
