// Package runner executes external helper processes with a bounded wait.
// Copy tools and the registry export tool both go through it, so tests can
// swap in a fake and the timeout policy lives in one place.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// maxCapturedOutput caps how much combined child output is kept for error
// reporting. Chatty copy tools can emit per-file progress lines endlessly.
const maxCapturedOutput = 256 * 1024

// Output is what a finished child process left behind. ExitCode is only
// meaningful when Run returned without error.
type Output struct {
	ExitCode int
	Combined []byte
}

// Runner starts name with args and waits for it to exit. A non-zero exit
// code is not an error here; it is reported through Output so callers can
// apply tool-specific success rules. Run returns an error only when the
// process could not be started or was killed by the deadline.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Output, error)
}

// Func adapts a function to the Runner interface, mirroring http.HandlerFunc.
type Func func(ctx context.Context, name string, args ...string) (Output, error)

// Run calls f.
func (f Func) Run(ctx context.Context, name string, args ...string) (Output, error) {
	return f(ctx, name, args...)
}

// ExecRunner runs real processes via os/exec. Every invocation gets a
// deadline; a tool that hangs on a locked file must not stall the whole
// collection run.
type ExecRunner struct {
	Timeout time.Duration
	Logger  *slog.Logger
}

// New returns an ExecRunner with the given per-invocation timeout. A zero
// or negative timeout disables the deadline.
func New(timeout time.Duration, logger *slog.Logger) *ExecRunner {
	return &ExecRunner{Timeout: timeout, Logger: logger}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, name string, args ...string) (Output, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	combined, err := cmd.CombinedOutput()
	if len(combined) > maxCapturedOutput {
		combined = combined[:maxCapturedOutput]
	}

	if ctx.Err() == context.DeadlineExceeded {
		r.Logger.Warn("external tool timed out", "tool", name, "timeout", r.Timeout)
		return Output{Combined: combined}, fmt.Errorf("%s timed out after %s", name, r.Timeout)
	}

	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return Output{ExitCode: exitErr.ExitCode(), Combined: combined}, nil
		}
		return Output{Combined: combined}, fmt.Errorf("run %s: %w", name, err)
	}

	return Output{ExitCode: 0, Combined: combined}, nil
}
