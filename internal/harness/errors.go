package harness

import "errors"

// Per-position failures. All of these are recoverable at the run loop:
// the position contributes no outcome and the run moves on.
var (
	ErrExecutableNotFound = errors.New("game executable not found")
	ErrProcessTimeout     = errors.New("game process timed out")
	ErrCaptureMissing     = errors.New("screenshot was not captured")
	ErrImageLoad          = errors.New("failed to load image")
)
