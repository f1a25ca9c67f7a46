// Package store persists the engine's learned state (Q-table, calibration
// coefficients) as opaque blobs between runs.
package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Store is a blob persistence backend. Implementations can write JSON
// files, a database, or nothing at all.
type Store interface {
	// Save persists the given blob.
	Save(data []byte) error

	// Load retrieves the stored blob. A missing blob is (nil, nil).
	Load() ([]byte, error)
}

// FileStore persists one blob to a file. Writes go through a temp file and
// rename so a crash mid-save never corrupts the previous good state.
type FileStore struct {
	Path string
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes the blob atomically.
func (s *FileStore) Save(data []byte) error {
	if s.Path == "" {
		return nil
	}

	dir := filepath.Dir(s.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory: %w", err)
		}
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		return fmt.Errorf("replace file: %w", err)
	}
	return nil
}

// Load reads the blob. A file that does not exist yet is not an error.
func (s *FileStore) Load() ([]byte, error) {
	if s.Path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(s.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

// Ensure FileStore implements Store
var _ Store = (*FileStore)(nil)
