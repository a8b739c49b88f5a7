package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mcpvet/mcpvet-core/pkg/catalog"
	"github.com/mcpvet/mcpvet-core/pkg/intake"
	"github.com/mcpvet/mcpvet-core/pkg/registry"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// ExtractForStorage re-extracts an already-verified archive so its tree
// can be stored permanently. It returns the package root, the classified
// server type, and a cleanup function that removes the scratch directory.
func ExtractForStorage(ctx context.Context, config *EngineConfig, archivePath string, logger *slog.Logger) (string, verification.ServerType, func(), error) {
	intakeConfig := intake.DefaultConfig()
	intakeConfig.MaxSizeMB = config.MaxUploadSizeMB
	if config.TempDir != "" {
		intakeConfig.TempDir = config.TempDir
	}
	handler := intake.NewHandler(intakeConfig, logger)

	extractDir, err := handler.ProcessUpload(ctx, archivePath)
	if err != nil {
		return "", "", nil, err
	}
	cleanup := func() { handler.Cleanup(extractDir) }

	cat := catalog.New(logger)
	files, err := cat.Extract(ctx, extractDir)
	if err != nil {
		cleanup()
		return "", "", nil, err
	}

	serverPath := extractDir
	if root := cat.PackageRoot(files); root != "" {
		serverPath = filepath.Join(extractDir, root)
	}

	serverType, err := cat.ServerType(files)
	if err != nil {
		cleanup()
		return "", "", nil, err
	}
	return serverPath, serverType, cleanup, nil
}

// RegisterApproved stores an approved server's source tree under
// storageRoot/name and records it in the registry. It must only be
// called after a run concluded with approval.
func RegisterApproved(store *registry.Store, storageRoot, name, serverPath, description string, serverType verification.ServerType) (string, error) {
	dest := filepath.Join(storageRoot, name)

	// Replace any previous copy of the same server.
	if err := os.RemoveAll(dest); err != nil {
		return "", fmt.Errorf("failed to clear existing server storage: %w", err)
	}
	if err := os.MkdirAll(dest, 0o750); err != nil {
		return "", fmt.Errorf("failed to create server storage: %w", err)
	}
	if err := copyFS(dest, os.DirFS(serverPath)); err != nil {
		_ = os.RemoveAll(dest)
		return "", fmt.Errorf("failed to store server files: %w", err)
	}

	err := store.Add(registry.Entry{
		Name:        name,
		Path:        dest,
		Description: description,
		Type:        string(serverType),
	})
	if err != nil {
		_ = os.RemoveAll(dest)
		return "", err
	}
	return dest, nil
}
