// Package process launches candidate servers as subprocesses and manages
// their lifecycle: idle -> starting -> healthy -> stopping -> idle, with
// starting -> failed on timeout or launch error.
//
// Two runtime variants share the lifecycle: PythonManager launches the
// interpreter directly, NodeManager launches the packed artifact through
// the ephemeral runner of the detected package manager. A manager instance
// owns at most one subprocess and must not be driven concurrently.
package process

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/mcpvet/mcpvet-core/pkg/pkgbuild"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

const (
	startupTimeout = 30 * time.Second
	stopTimeout    = 5 * time.Second

	healthAttempts = 10
	healthInterval = 500 * time.Millisecond
)

// Manager is the common lifecycle contract for both runtime variants.
type Manager interface {
	// Start launches the server and polls for liveness. It never panics
	// or returns an error; every failure collapses to false with a
	// logged reason.
	Start(ctx context.Context, path, name string) bool

	// IsHealthy reports whether a process handle exists and the process
	// is still running. Exit status, even zero, means unhealthy.
	IsHealthy() bool

	// Stop terminates the process, escalating from graceful terminate to
	// kill, and always clears the handle. Idempotent, never raises.
	Stop()
}

// ForType returns the manager variant for the server type. serverPath is
// used to detect the Node package-manager dialect from its lockfile.
func ForType(serverType verification.ServerType, serverPath string, logger *slog.Logger) (Manager, error) {
	switch serverType {
	case verification.ServerTypePython:
		return NewPythonManager(logger), nil
	case verification.ServerTypeNode:
		return NewNodeManager(pkgbuild.DetectPackageManager(serverPath), logger), nil
	default:
		return nil, fmt.Errorf("invalid server type: %q", serverType)
	}
}

// proc holds the shared subprocess lifecycle used by both variants.
type proc struct {
	mu     sync.Mutex
	cmd    *exec.Cmd
	done   chan struct{}
	logger *slog.Logger
}

func newProc(logger *slog.Logger) proc {
	if logger == nil {
		logger = slog.Default()
	}
	return proc{logger: logger}
}

// launch spawns the command with stdin closed and output captured, then
// polls for health within the startup timeout. On timeout the process is
// force-stopped and false is returned.
func (p *proc) launch(ctx context.Context, name string, command string, args ...string) bool {
	cmd := exec.Command(command, args...)
	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output
	// cmd.Stdin stays nil so the child reads from the null device and
	// cannot hang waiting for input.

	if err := cmd.Start(); err != nil {
		p.logger.Error("failed to start server", "server", name, "command", command, "error", err)
		return false
	}

	done := make(chan struct{})
	p.mu.Lock()
	p.cmd = cmd
	p.done = done
	p.mu.Unlock()

	go func() {
		_ = cmd.Wait()
		close(done)
	}()

	if !p.waitForHealthy(ctx) {
		p.logger.Error("server startup timed out", "server", name, "output", tail(output.String(), 500))
		p.Stop()
		return false
	}

	p.logger.Info("server started", "server", name, "pid", cmd.Process.Pid)
	return true
}

// waitForHealthy polls IsHealthy up to the attempt budget, bounded by the
// overall startup timeout.
func (p *proc) waitForHealthy(ctx context.Context) bool {
	deadline, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()

	for attempt := 0; attempt < healthAttempts; attempt++ {
		if p.IsHealthy() {
			return true
		}
		select {
		case <-deadline.Done():
			return false
		case <-time.After(healthInterval):
		}
	}
	return false
}

// IsHealthy reports whether the process handle exists and the process has
// not exited.
func (p *proc) IsHealthy() bool {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.mu.Unlock()

	if cmd == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// Stop terminates the process: graceful terminate, bounded wait, then
// kill. The handle is always cleared and no failure escapes.
func (p *proc) Stop() {
	p.mu.Lock()
	cmd, done := p.cmd, p.done
	p.cmd = nil
	p.done = nil
	p.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err == nil {
		select {
		case <-done:
			return
		case <-time.After(stopTimeout):
		}
	}

	if err := cmd.Process.Kill(); err != nil {
		p.logger.Error("failed to kill server process", "pid", cmd.Process.Pid, "error", err)
		return
	}
	<-done
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
