// Package intake validates and extracts uploaded server archives.
//
// An upload is rejected before any file is written to disk if it is
// oversized, structurally corrupt, or contains a member path that would
// escape the extraction root.
package intake

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Config holds configuration for upload handling.
type Config struct {
	// MaxSizeMB is the maximum archive size in megabytes.
	MaxSizeMB int

	// AllowedExtensions lists the member extensions that are extracted.
	// Members with other extensions are skipped.
	AllowedExtensions []string

	// TempDir is the root under which per-run scratch directories are
	// created.
	TempDir string
}

// DefaultConfig returns the default intake configuration.
func DefaultConfig() *Config {
	return &Config{
		MaxSizeMB:         50,
		AllowedExtensions: []string{".py", ".js", ".ts", ".tsx", ".json", ".yaml", ".yml", ".toml", ".md"},
		TempDir:           filepath.Join(os.TempDir(), "mcpvet"),
	}
}

// Handler processes server uploads.
type Handler struct {
	config *Config
	logger *slog.Logger
}

// NewHandler creates a Handler. A nil config selects DefaultConfig;
// a nil logger selects slog.Default.
func NewHandler(config *Config, logger *slog.Logger) *Handler {
	if config == nil {
		config = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{config: config, logger: logger}
}

// ProcessUpload validates the archive at zipPath and extracts it into a
// freshly generated scratch directory, returning the directory path.
// The caller owns cleanup of the returned directory.
func (h *Handler) ProcessUpload(ctx context.Context, zipPath string) (string, error) {
	info, err := os.Stat(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to stat archive: %w", err)
	}

	sizeMB := float64(info.Size()) / (1024 * 1024)
	if sizeMB > float64(h.config.MaxSizeMB) {
		return "", fmt.Errorf("%w (%.1fMB > %dMB)", ErrTooLarge, sizeMB, h.config.MaxSizeMB)
	}

	reader, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCorruptArchive, err)
	}
	defer func() { _ = reader.Close() }()

	// Validate every member path before anything touches the disk.
	for _, member := range reader.File {
		if !isLocalPath(member.Name) {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, member.Name)
		}
	}

	extractDir := filepath.Join(h.config.TempDir, uuid.NewString())
	if err := os.MkdirAll(extractDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create extraction directory: %w", err)
	}

	if err := h.extract(ctx, reader, extractDir); err != nil {
		h.Cleanup(extractDir)
		return "", err
	}

	h.logger.Info("archive extracted", "archive", zipPath, "dir", extractDir)
	return extractDir, nil
}

// Cleanup removes an extraction directory. Failures are logged, never
// returned, so cleanup cannot mask a verification result.
func (h *Handler) Cleanup(extractDir string) {
	if extractDir == "" {
		return
	}
	if err := os.RemoveAll(extractDir); err != nil {
		h.logger.Error("failed to clean up extraction directory", "dir", extractDir, "error", err)
	}
}

func (h *Handler) extract(ctx context.Context, reader *zip.ReadCloser, extractDir string) error {
	for _, member := range reader.File {
		if err := ctx.Err(); err != nil {
			return err
		}

		if member.FileInfo().IsDir() {
			if err := os.MkdirAll(filepath.Join(extractDir, member.Name), 0o750); err != nil {
				return fmt.Errorf("failed to create directory %q: %w", member.Name, err)
			}
			continue
		}

		if !h.extensionAllowed(member.Name) {
			h.logger.Debug("skipping disallowed member", "member", member.Name)
			continue
		}

		if err := h.extractFile(member, extractDir); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) extractFile(member *zip.File, extractDir string) error {
	dest := filepath.Join(extractDir, member.Name)
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %q: %w", member.Name, err)
	}

	src, err := member.Open()
	if err != nil {
		return fmt.Errorf("%w: cannot open member %q: %v", ErrCorruptArchive, member.Name, err)
	}
	defer func() { _ = src.Close() }()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return fmt.Errorf("failed to create %q: %w", dest, err)
	}
	defer func() { _ = out.Close() }()

	if _, err := io.Copy(out, src); err != nil {
		return fmt.Errorf("failed to write %q: %w", dest, err)
	}
	return nil
}

func (h *Handler) extensionAllowed(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, allowed := range h.config.AllowedExtensions {
		if ext == allowed {
			return true
		}
	}
	// Manifest and lockfiles without a listed extension still matter for
	// classification and launch (e.g. "requirements.txt", "yarn.lock").
	base := filepath.Base(name)
	switch base {
	case "requirements.txt", "package-lock.json", "yarn.lock", "pnpm-lock.yaml":
		return true
	}
	return false
}

// isLocalPath reports whether the member name stays inside the extraction
// root after normalization.
func isLocalPath(name string) bool {
	if name == "" {
		return false
	}
	if strings.Contains(name, "\\") {
		// Zip names use forward slashes; a backslash is suspect on any
		// platform and rejected outright.
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(name))
}
