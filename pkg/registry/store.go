// Package registry persists metadata about admitted servers in a JSON
// document and serializes concurrent mutations so parallel verification
// runs cannot lose updates.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotFound indicates the named server is not registered.
var ErrNotFound = errors.New("server not found in registry")

// Entry is the persisted record for one admitted server.
type Entry struct {
	// Name is the unique registry key.
	Name string `json:"-"`

	// Path is the stored server directory.
	Path string `json:"path"`

	// Description is the author-supplied description it was verified
	// against.
	Description string `json:"description"`

	// Type is "python" or "node".
	Type string `json:"type"`
}

// document is the on-disk layout: a single top-level object keyed by
// server name.
type document struct {
	Servers map[string]Entry `json:"servers"`
}

// Store is a file-backed registry. All mutations are read-modify-write
// under one lock and written through atomically.
type Store struct {
	path string

	mu  sync.Mutex
	doc document
}

// Open loads the registry at path. An absent file yields an empty
// registry; it is created on the first mutation.
func Open(path string) (*Store, error) {
	store := &Store{
		path: path,
		doc:  document{Servers: map[string]Entry{}},
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	if err := json.Unmarshal(data, &store.doc); err != nil {
		return nil, fmt.Errorf("failed to parse registry: %w", err)
	}
	if store.doc.Servers == nil {
		store.doc.Servers = map[string]Entry{}
	}
	return store, nil
}

// Add creates or updates the entry under its name and writes through.
func (s *Store) Add(entry Entry) error {
	if entry.Name == "" {
		return fmt.Errorf("registry entry requires a name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.doc.Servers[entry.Name] = entry
	return s.save()
}

// Remove deletes the named entry and writes through. Removing an unknown
// name returns ErrNotFound.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.doc.Servers[name]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	delete(s.doc.Servers, name)
	return s.save()
}

// Get returns the named entry.
func (s *Store) Get(name string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.doc.Servers[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	entry.Name = name
	return entry, nil
}

// List returns all entries sorted by name.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := make([]Entry, 0, len(s.doc.Servers))
	for name, entry := range s.doc.Servers {
		entry.Name = name
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// save writes the document to a temp file and renames it into place so a
// crash mid-write cannot corrupt the registry. Callers hold s.mu.
func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}

	data, err := json.MarshalIndent(&s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".registry-*")
	if err != nil {
		return fmt.Errorf("failed to create temp registry file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to close registry file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to replace registry file: %w", err)
	}
	return nil
}
