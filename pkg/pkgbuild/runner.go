package pkgbuild

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"golang.org/x/sync/semaphore"
)

// Runner executes build and install subprocesses under a concurrency bound
// so parallel verification runs cannot fork an unbounded number of package
// managers. Each invocation carries its own hard timeout enforced by the
// caller's context.
type Runner struct {
	sem    *semaphore.Weighted
	logger *slog.Logger
}

// NewRunner creates a Runner allowing at most maxConcurrent subprocesses.
func NewRunner(maxConcurrent int64, logger *slog.Logger) *Runner {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{sem: semaphore.NewWeighted(maxConcurrent), logger: logger}
}

// Run executes the command in dir, waiting up to timeout. Standard output
// and error are captured; on failure the tail of stderr is included in the
// returned error.
func (r *Runner) Run(ctx context.Context, timeout time.Duration, dir, name string, args ...string) error {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("waiting for subprocess slot: %w", err)
	}
	defer r.sem.Release(1)

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, name, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	r.logger.Debug("running subprocess", "command", name, "args", args, "dir", dir)
	if err := cmd.Run(); err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("%s timed out after %s", name, timeout)
		}
		return fmt.Errorf("%s failed: %w: %s", name, err, tail(stderr.String(), 500))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
