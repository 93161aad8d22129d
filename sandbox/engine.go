package sandbox

import (
	"context"
	"time"
)

// Outcome classifies how a bounded execution ended.
type Outcome int

const (
	// OutcomeCompleted means the guest code ran to the end of its source.
	OutcomeCompleted Outcome = iota
	// OutcomeTimedOut means the deadline interrupt fired before completion.
	OutcomeTimedOut
	// OutcomeFailed means the guest code raised, or the host failed.
	OutcomeFailed
)

// RunResult is the tri-state result of one bounded execution.
type RunResult struct {
	Outcome Outcome

	// Value is the textual form of the code's trailing expression, empty
	// when that value is null or undefined. Only set on OutcomeCompleted.
	Value string

	// Err is set on OutcomeFailed. GuestFault reports whether it
	// originated inside the interpreter, in which case its text is the
	// interpreter's own diagnostic and must be surfaced verbatim.
	Err        error
	GuestFault bool
}

// Capture is a handle to one installed output redirection. Restore puts the
// original stream sinks back and returns the buffered text; calling it again
// returns the same text without touching the streams.
type Capture interface {
	Restore() (stdout, stderr string)
}

// Engine defines the interface the executor drives. The concrete Runtime
// implements it; tests substitute stubs.
type Engine interface {
	// Initialize performs the expensive one-time warm start. It is
	// idempotent and safe for concurrent callers; only the first call
	// does work.
	Initialize() error

	// InstallCapture swaps the runtime's output streams for buffers.
	InstallCapture() Capture

	// RunBounded executes guest code racing a cooperative deadline.
	RunBounded(ctx context.Context, code string, timeout time.Duration) RunResult

	// WriteFile and ReadFile access the runtime's private filesystem
	// outside code execution.
	WriteFile(path, content string) error
	ReadFile(path string) (string, error)
}
