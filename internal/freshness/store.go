// Package freshness persists last-fetched timestamps between runs so the
// admission policy can skip recently retrieved entities.
package freshness

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const storeFileName = "freshness.json"

// FileStore implements ports.FreshnessStore over a JSON file.
//
// The whole map is held in memory; the file is the cross-run carrier, not a
// database. Save writes atomically (temp file, then rename) to prevent
// corruption.
type FileStore struct {
	mu      sync.RWMutex
	dir     string
	entries map[string]time.Time
}

// NewFileStore loads the store in dir, starting empty when no file exists.
func NewFileStore(dir string) (*FileStore, error) {
	s := &FileStore{dir: dir, entries: make(map[string]time.Time)}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(data, &s.entries); err != nil {
		return nil, err
	}
	return s, nil
}

// LastFetched returns when the identifier was last fetched, if known.
func (s *FileStore) LastFetched(id string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	at, ok := s.entries[id]
	return at, ok
}

// MarkFetched stamps the given identifiers with the fetch time.
func (s *FileStore) MarkFetched(ids []string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		s.entries[id] = at
	}
}

// Save persists the current timestamps atomically.
func (s *FileStore) Save() error {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return err
	}

	path := s.Path()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Path returns the full path to the store file.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, storeFileName)
}
