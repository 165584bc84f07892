// Package securestore persists small keyed blobs (the access token, the
// current-session pointer) across process restarts. On mobile this role
// is played by the platform keychain; the file implementation here keeps
// the same get/set/remove surface.
package securestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrStorageDirRequired = errors.New("storage directory not provided")

// Store is a keyed blob store. Values round-trip through JSON.
type Store interface {
	Get(key string, out any) (bool, error)
	Set(key string, value any) error
	Remove(key string) error
}

// FileStore is a Store backed by a single JSON file with atomic writes.
type FileStore struct {
	mu     sync.Mutex
	path   string
	values map[string]json.RawMessage
}

// NewFileStore creates a store inside the provided directory.
func NewFileStore(storageDir string) (*FileStore, error) {
	if strings.TrimSpace(storageDir) == "" {
		return nil, ErrStorageDirRequired
	}
	if err := os.MkdirAll(storageDir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	s := &FileStore{
		path:   filepath.Join(storageDir, "store.json"),
		values: make(map[string]json.RawMessage),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Get unmarshals the value for key into out, reporting whether it existed.
func (s *FileStore) Get(key string, out any) (bool, error) {
	s.mu.Lock()
	raw, ok := s.values[key]
	s.mu.Unlock()

	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode stored value %q: %w", key, err)
	}
	return true, nil
}

// Set stores the value under key.
func (s *FileStore) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode value %q: %w", key, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = raw
	return s.saveLocked()
}

// Remove deletes the value under key. Removing a missing key is a no-op.
func (s *FileStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

func (s *FileStore) load() error {
	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open store file: %w", err)
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&s.values); err != nil {
		return fmt.Errorf("decode store: %w", err)
	}
	return nil
}

// saveLocked writes the store to disk. Must be called with mu held.
func (s *FileStore) saveLocked() error {
	tmp := s.path + ".tmp"
	file, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create store temp file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.values); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("encode store: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("sync store: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close store temp file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace store file: %w", err)
	}
	return nil
}
