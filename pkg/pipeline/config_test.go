package pipeline

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultEngineConfigIsValid(t *testing.T) {
	config := DefaultEngineConfig()
	assert.NoError(t, config.Validate())
	assert.Equal(t, 0, config.SecurityIssueThreshold)
	assert.InDelta(t, 0.8, config.MatchThreshold, 0.001)
	assert.True(t, config.RemediateHighOnly)
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `maxUploadSizeMB: 100
matchThreshold: 0.6
maxSecurityRetries: 5
runTimeout: 20m
installDeps: true
model: gpt-4o
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 100, config.MaxUploadSizeMB)
	assert.InDelta(t, 0.6, config.MatchThreshold, 0.001)
	assert.Equal(t, 5, config.MaxSecurityRetries)
	assert.Equal(t, 20*time.Minute, config.RunTimeout.Std())
	assert.True(t, config.InstallDeps)
	assert.Equal(t, "gpt-4o", config.Model)

	// Untouched fields keep their defaults.
	assert.Equal(t, 0, config.SecurityIssueThreshold)
	assert.Equal(t, int64(4), config.MaxSubprocesses)
}

func TestLoadConfigRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("matchThreshold: 1.5\n"), 0o640))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(":\n  - not yaml {"), 0o640))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}
