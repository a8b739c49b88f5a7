package registry

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registry.json")
	store, err := Open(path)
	require.NoError(t, err)
	return store, path
}

func TestOpenAbsentFile(t *testing.T) {
	store, path := testStore(t)

	assert.Empty(t, store.List())

	// No file is created until the first mutation.
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestAddGetRoundTrip(t *testing.T) {
	store, _ := testStore(t)

	entry := Entry{
		Name:        "weather-server",
		Path:        "/srv/mcp/weather-server",
		Description: "Provides weather forecasts",
		Type:        "python",
	}
	require.NoError(t, store.Add(entry))

	got, err := store.Get("weather-server")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestAddRequiresName(t *testing.T) {
	store, _ := testStore(t)

	err := store.Add(Entry{Path: "/srv/x"})
	assert.Error(t, err)
}

func TestAddOverwritesExisting(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.Add(Entry{Name: "srv", Path: "/old", Type: "python"}))
	require.NoError(t, store.Add(Entry{Name: "srv", Path: "/new", Type: "python"}))

	got, err := store.Get("srv")
	require.NoError(t, err)
	assert.Equal(t, "/new", got.Path)
	assert.Len(t, store.List(), 1)
}

func TestRemove(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.Add(Entry{Name: "srv", Path: "/srv", Type: "node"}))
	require.NoError(t, store.Remove("srv"))

	_, err := store.Get("srv")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRemoveUnknown(t *testing.T) {
	store, _ := testStore(t)

	err := store.Remove("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSortedByName(t *testing.T) {
	store, _ := testStore(t)

	require.NoError(t, store.Add(Entry{Name: "zeta", Path: "/z", Type: "node"}))
	require.NoError(t, store.Add(Entry{Name: "alpha", Path: "/a", Type: "python"}))
	require.NoError(t, store.Add(Entry{Name: "mid", Path: "/m", Type: "python"}))

	entries := store.List()
	require.Len(t, entries, 3)
	assert.Equal(t, "alpha", entries[0].Name)
	assert.Equal(t, "mid", entries[1].Name)
	assert.Equal(t, "zeta", entries[2].Name)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	store, path := testStore(t)

	entry := Entry{Name: "srv", Path: "/srv", Description: "d", Type: "python"}
	require.NoError(t, store.Add(entry))

	reopened, err := Open(path)
	require.NoError(t, err)

	got, err := reopened.Get("srv")
	require.NoError(t, err)
	assert.Equal(t, entry, got)
}

func TestOnDiskLayout(t *testing.T) {
	store, path := testStore(t)

	require.NoError(t, store.Add(Entry{Name: "srv", Path: "/srv", Description: "d", Type: "node"}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]map[string]map[string]string
	require.NoError(t, json.Unmarshal(data, &doc))

	servers, ok := doc["servers"]
	require.True(t, ok)
	assert.Equal(t, map[string]string{
		"path":        "/srv",
		"description": "d",
		"type":        "node",
	}, servers["srv"])
}

func TestOpenCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o640))

	_, err := Open(path)
	assert.Error(t, err)
}
