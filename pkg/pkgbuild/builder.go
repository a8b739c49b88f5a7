// Package pkgbuild turns a raw server source tree into a distributable
// artifact (wheel/sdist for Python, packed tarball for Node) and installs
// its declared dependencies. All subprocess work runs through a bounded
// Runner with hard timeouts.
package pkgbuild

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

const (
	buildTimeout   = 300 * time.Second
	installTimeout = 300 * time.Second

	// distDir is where artifacts land inside the server tree. The whole
	// directory is reported as an artifact so cleanup removes it.
	distDir = "dist"
)

// Builder builds distributable artifacts from server source trees.
type Builder struct {
	runner *Runner
	logger *slog.Logger
}

// NewBuilder creates a Builder sharing the given Runner.
func NewBuilder(runner *Runner, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{runner: runner, logger: logger}
}

// Build produces an artifact for the server and returns its path plus the
// full list of paths created (for cleanup). Python servers build a wheel
// with an sdist fallback; Node servers pack a tarball with the detected
// package manager.
func (b *Builder) Build(ctx context.Context, serverPath string, serverType verification.ServerType) (artifact string, created []string, err error) {
	outDir := filepath.Join(serverPath, distDir)
	created = []string{outDir}

	switch serverType {
	case verification.ServerTypePython:
		artifact, err = b.buildPython(ctx, serverPath, outDir)
	case verification.ServerTypeNode:
		artifact, err = b.buildNode(ctx, serverPath, outDir)
	default:
		err = fmt.Errorf("unsupported server type %q", serverType)
	}
	if err != nil {
		return "", created, err
	}

	b.logger.Info("build complete", "artifact", artifact)
	return artifact, created, nil
}

func (b *Builder) buildPython(ctx context.Context, serverPath, outDir string) (string, error) {
	err := b.runner.Run(ctx, buildTimeout, serverPath,
		"python", "-m", "build", "--outdir", outDir)
	if err != nil {
		return "", fmt.Errorf("python package build failed: %w", err)
	}

	// Prefer the wheel, fall back to the sdist.
	if artifact := newestMatch(outDir, "*.whl"); artifact != "" {
		return artifact, nil
	}
	if artifact := newestMatch(outDir, "*.tar.gz"); artifact != "" {
		return artifact, nil
	}
	return "", fmt.Errorf("python build produced no artifact in %s", outDir)
}

func (b *Builder) buildNode(ctx context.Context, serverPath, outDir string) (string, error) {
	if err := os.MkdirAll(outDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	pm := DetectPackageManager(serverPath)
	var err error
	switch pm {
	case PackageManagerYarn:
		err = b.runner.Run(ctx, buildTimeout, serverPath,
			"yarn", "pack", "--filename", filepath.Join(outDir, "package.tgz"))
	case PackageManagerPNPM:
		err = b.runner.Run(ctx, buildTimeout, serverPath,
			"pnpm", "pack", "--pack-destination", outDir)
	default:
		err = b.runner.Run(ctx, buildTimeout, serverPath,
			"npm", "pack", "--pack-destination", outDir)
	}
	if err != nil {
		return "", fmt.Errorf("node package build failed: %w", err)
	}

	if artifact := newestMatch(outDir, "*.tgz"); artifact != "" {
		return artifact, nil
	}
	return "", fmt.Errorf("node build produced no artifact in %s", outDir)
}

// newestMatch returns the most recently modified file matching pattern in
// dir, or "" when none match.
func newestMatch(dir, pattern string) string {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil || len(matches) == 0 {
		return ""
	}

	newest := ""
	var newestTime time.Time
	for _, match := range matches {
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestTime) {
			newest = match
			newestTime = info.ModTime()
		}
	}
	return newest
}
