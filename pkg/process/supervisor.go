package process

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mcpvet/mcpvet-core/pkg/registry"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// Supervisor runs and tracks admitted servers by registry name, for the
// lifecycle operations (start, stop, restart) exposed by the CLI. One
// Manager is owned per running server.
type Supervisor struct {
	store  *registry.Store
	logger *slog.Logger

	mu      sync.Mutex
	running map[string]Manager
}

// NewSupervisor creates a Supervisor over the given registry.
func NewSupervisor(store *registry.Store, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		store:   store,
		logger:  logger,
		running: map[string]Manager{},
	}
}

// StartServer launches the named registered server.
func (s *Supervisor) StartServer(ctx context.Context, name string) error {
	entry, err := s.store.Get(name)
	if err != nil {
		return err
	}

	serverType := verification.ServerType(entry.Type)
	manager, err := ForType(serverType, entry.Path, s.logger)
	if err != nil {
		return err
	}

	target, err := entryPoint(entry.Path, serverType)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if _, ok := s.running[name]; ok {
		s.mu.Unlock()
		return fmt.Errorf("server %q is already running", name)
	}
	s.running[name] = manager
	s.mu.Unlock()

	if !manager.Start(ctx, target, name) {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
		return fmt.Errorf("server %q failed to start", name)
	}
	return nil
}

// StopServer stops the named server if it is running.
func (s *Supervisor) StopServer(name string) {
	s.mu.Lock()
	manager, ok := s.running[name]
	delete(s.running, name)
	s.mu.Unlock()

	if ok {
		manager.Stop()
	}
}

// RestartServer stops the named server (if running) and starts it again.
func (s *Supervisor) RestartServer(ctx context.Context, name string) error {
	s.StopServer(name)
	return s.StartServer(ctx, name)
}

// IsRunning reports whether the named server is running and healthy.
func (s *Supervisor) IsRunning(name string) bool {
	s.mu.Lock()
	manager, ok := s.running[name]
	s.mu.Unlock()

	return ok && manager.IsHealthy()
}

// StopAll stops every running server.
func (s *Supervisor) StopAll() {
	s.mu.Lock()
	managers := make([]Manager, 0, len(s.running))
	for name, manager := range s.running {
		managers = append(managers, manager)
		delete(s.running, name)
	}
	s.mu.Unlock()

	for _, manager := range managers {
		manager.Stop()
	}
}

// entryPoint resolves what to launch for a stored server: the
// conventional main file for Python, the source tree's entry file for
// Node (stored servers are launched from source, not from a packed
// artifact).
func entryPoint(serverPath string, serverType verification.ServerType) (string, error) {
	var candidates []string
	switch serverType {
	case verification.ServerTypePython:
		candidates = []string{"server.py", "main.py", "app.py", "index.py"}
	case verification.ServerTypeNode:
		candidates = []string{"index.js", "server.js", "main.js", "app.js"}
	default:
		return "", fmt.Errorf("invalid server type: %q", serverType)
	}

	for _, candidate := range candidates {
		path := filepath.Join(serverPath, candidate)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, nil
		}
	}
	return "", fmt.Errorf("no entry point found in %s", serverPath)
}
