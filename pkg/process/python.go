package process

import (
	"context"
	"log/slog"
)

// PythonManager runs Python servers by direct interpreter invocation.
type PythonManager struct {
	proc
}

// NewPythonManager creates a PythonManager.
func NewPythonManager(logger *slog.Logger) *PythonManager {
	return &PythonManager{proc: newProc(logger)}
}

// Start launches `python <path>` and polls for liveness.
func (m *PythonManager) Start(ctx context.Context, path, name string) bool {
	return m.launch(ctx, name, "python", path)
}

var _ Manager = (*PythonManager)(nil)
