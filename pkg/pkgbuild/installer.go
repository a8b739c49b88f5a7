package pkgbuild

import (
	"context"
	"log/slog"
	"path/filepath"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// Installer installs a server's declared dependencies ahead of build and
// launch. Install failures never abort a run directly; the caller decides
// what a false return means.
type Installer struct {
	runner *Runner
	logger *slog.Logger
}

// NewInstaller creates an Installer sharing the given Runner.
func NewInstaller(runner *Runner, logger *slog.Logger) *Installer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Installer{runner: runner, logger: logger}
}

// Install installs dependencies for the server. The absence of any
// dependency manifest is success, not failure.
func (i *Installer) Install(ctx context.Context, serverPath string, serverType verification.ServerType) bool {
	i.logger.Info("installing dependencies", "path", serverPath, "type", serverType)

	switch serverType {
	case verification.ServerTypePython:
		return i.installPython(ctx, serverPath)
	case verification.ServerTypeNode:
		return i.installNode(ctx, serverPath)
	default:
		i.logger.Error("invalid server type for install", "type", serverType)
		return false
	}
}

func (i *Installer) installPython(ctx context.Context, serverPath string) bool {
	if fileExists(filepath.Join(serverPath, "requirements.txt")) {
		err := i.runner.Run(ctx, installTimeout, serverPath,
			"pip", "install", "-r", "requirements.txt")
		if err != nil {
			i.logger.Error("pip install failed", "error", err)
			return false
		}
		return true
	}

	if fileExists(filepath.Join(serverPath, "pyproject.toml")) {
		err := i.runner.Run(ctx, installTimeout, serverPath, "poetry", "install")
		if err != nil {
			i.logger.Error("poetry install failed", "error", err)
			return false
		}
		return true
	}

	i.logger.Warn("no python dependency manifest found")
	return true
}

func (i *Installer) installNode(ctx context.Context, serverPath string) bool {
	if !fileExists(filepath.Join(serverPath, "package.json")) {
		i.logger.Warn("no package.json found")
		return true
	}

	pm := DetectPackageManager(serverPath)
	if err := i.runner.Run(ctx, installTimeout, serverPath, string(pm), "install"); err != nil {
		i.logger.Error("node dependency install failed", "manager", pm, "error", err)
		return false
	}
	return true
}
