// Package catalog walks an extracted server tree, reads its source files,
// and classifies the server's implementation language.
package catalog

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

// validExtensions are the file types included in the catalog.
var validExtensions = map[string]bool{
	".py":   true,
	".js":   true,
	".ts":   true,
	".tsx":  true,
	".json": true,
	".yaml": true,
	".yml":  true,
	".toml": true,
}

// validBasenames are manifest files kept regardless of extension so type
// classification can use them as evidence.
var validBasenames = map[string]bool{
	"requirements.txt": true,
	"yarn.lock":        true,
	"pnpm-lock.yaml":   true,
}

// mainBasenames is the conventional entry-point search order.
var mainBasenames = []string{
	"server.py", "server.js", "server.ts",
	"index.py", "index.js", "index.ts",
	"main.py", "main.js", "main.ts",
	"app.py", "app.js", "app.ts",
}

// Catalog reads and classifies server files.
type Catalog struct {
	logger *slog.Logger
}

// New creates a Catalog. A nil logger selects slog.Default.
func New(logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{logger: logger}
}

// Extract lists all relevant files under root and reads their contents.
// Unreadable files are logged and skipped. Returns ErrNoValidFiles if
// nothing survives the filter.
func (c *Catalog) Extract(ctx context.Context, root string) (map[string]verification.ServerFile, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("server path not found: %w", err)
	}

	files := map[string]verification.ServerFile{}
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if entry.IsDir() {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(path))
		if !validExtensions[ext] && !validBasenames[filepath.Base(path)] {
			return nil
		}

		relPath, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		content, err := readText(path)
		if err != nil {
			c.logger.Warn("failed to read file", "path", path, "error", err)
			return nil
		}

		files[relPath] = verification.ServerFile{
			Path:     relPath,
			Content:  content,
			FileType: strings.TrimPrefix(ext, "."),
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk server tree: %w", err)
	}

	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoValidFiles, root)
	}
	return files, nil
}

// MainFile returns the likely entry point of the server, preferring root
// level matches over nested ones, in the fixed mainBasenames order.
// Returns "" if no conventional entry point exists.
func (c *Catalog) MainFile(files map[string]verification.ServerFile) string {
	for _, basename := range mainBasenames {
		if _, ok := files[basename]; ok {
			return basename
		}
	}
	for _, basename := range mainBasenames {
		for path := range files {
			if strings.HasSuffix(path, "/"+basename) {
				return path
			}
		}
	}
	return ""
}

// ServerType classifies the server as python or node by majority file-type
// evidence, falling back to manifest files when both ecosystems appear.
func (c *Catalog) ServerType(files map[string]verification.ServerFile) (verification.ServerType, error) {
	var pythonFiles, nodeFiles int
	for _, file := range files {
		switch file.FileType {
		case "py":
			pythonFiles++
		case "js", "ts", "tsx":
			nodeFiles++
		}
	}

	if pythonFiles > 0 && nodeFiles == 0 {
		return verification.ServerTypePython, nil
	}
	if nodeFiles > 0 && pythonFiles == 0 {
		return verification.ServerTypeNode, nil
	}

	// Both ecosystems present: let the manifests disambiguate.
	var hasPythonManifest, hasNodeManifest bool
	for path := range files {
		base := filepath.Base(path)
		if base == "requirements.txt" || base == "pyproject.toml" {
			hasPythonManifest = true
		}
		if base == "package.json" {
			hasNodeManifest = true
		}
	}

	if hasPythonManifest && !hasNodeManifest {
		return verification.ServerTypePython, nil
	}
	if hasNodeManifest && !hasPythonManifest {
		return verification.ServerTypeNode, nil
	}
	return "", ErrAmbiguousType
}

// PackageRoot returns the shared top-level directory when every cataloged
// path lives under a single one (archives that wrap the package in a root
// folder), or "" when files sit directly at the root.
func (c *Catalog) PackageRoot(files map[string]verification.ServerFile) string {
	root := ""
	for path := range files {
		top, rest, found := strings.Cut(path, "/")
		if !found || rest == "" {
			return ""
		}
		if root == "" {
			root = top
			continue
		}
		if top != root {
			return ""
		}
	}
	return root
}

// readText reads a file as UTF-8, falling back to a byte-preserving
// Latin-1 decode when the content is not valid UTF-8.
func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	if utf8.Valid(data) {
		return string(data), nil
	}

	// Latin-1 maps every byte to the code point of the same value, so no
	// input can fail to decode.
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return string(runes), nil
}
