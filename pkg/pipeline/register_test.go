package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpvet/mcpvet-core/pkg/registry"
	"github.com/mcpvet/mcpvet-core/pkg/verification"
)

func TestExtractForStorage(t *testing.T) {
	archive := writeArchive(t, map[string]string{
		"my-server/server.py":        "print('hello')\n",
		"my-server/requirements.txt": "mcp==1.0\n",
	})
	config := DefaultEngineConfig()
	config.TempDir = t.TempDir()

	serverPath, serverType, cleanup, err := ExtractForStorage(context.Background(), config, archive, testLogger())
	require.NoError(t, err)
	defer cleanup()

	assert.Equal(t, verification.ServerTypePython, serverType)
	assert.Equal(t, "my-server", filepath.Base(serverPath))
	assert.FileExists(t, filepath.Join(serverPath, "server.py"))

	cleanup()
	assert.NoDirExists(t, serverPath)
}

func TestExtractForStorageMissingArchive(t *testing.T) {
	config := DefaultEngineConfig()
	config.TempDir = t.TempDir()

	_, _, _, err := ExtractForStorage(context.Background(), config, filepath.Join(t.TempDir(), "missing.zip"), testLogger())
	assert.Error(t, err)
}

func TestRegisterApproved(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "server.py"), []byte("print('hi')\n"), 0o640))

	storageRoot := t.TempDir()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	dest, err := RegisterApproved(store, storageRoot, "greeter", source, "A greeting server", verification.ServerTypePython)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(storageRoot, "greeter"), dest)
	assert.FileExists(t, filepath.Join(dest, "server.py"))

	entry, err := store.Get("greeter")
	require.NoError(t, err)
	assert.Equal(t, dest, entry.Path)
	assert.Equal(t, "python", entry.Type)
	assert.Equal(t, "A greeting server", entry.Description)
}

func TestRegisterApprovedReplacesExisting(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(source, "server.py"), []byte("print('v2')\n"), 0o640))

	storageRoot := t.TempDir()
	store, err := registry.Open(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)

	// Pre-existing copy with a stale file that must not survive.
	dest := filepath.Join(storageRoot, "greeter")
	require.NoError(t, os.MkdirAll(dest, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(dest, "old.py"), []byte("old"), 0o640))

	_, err = RegisterApproved(store, storageRoot, "greeter", source, "desc", verification.ServerTypePython)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "server.py"))
	assert.NoFileExists(t, filepath.Join(dest, "old.py"))
}
