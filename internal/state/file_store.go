// Package state remembers the sources of the previous check run in a TOML
// file so the operator can re-use them.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"dupcheck/internal/port"
)

// Ensure FileStore implements the interface.
var _ port.StateStore = (*FileStore)(nil)

// FileStore keeps port.LastUsed in a TOML file.
type FileStore struct {
	path string
	now  func() time.Time
}

// NewFileStore creates a store at path. An empty path resolves to
// state.toml in the user config directory.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("locating config directory: %w", err)
		}
		path = filepath.Join(dir, "dupcheck", "state.toml")
	}
	return &FileStore{path: path, now: time.Now}, nil
}

// Path returns the state file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load returns the saved state, or an empty state when nothing was saved yet.
func (s *FileStore) Load() (*port.LastUsed, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &port.LastUsed{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading state: %w", err)
	}

	var st port.LastUsed
	if err := toml.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parsing state %s: %w", s.path, err)
	}
	return &st, nil
}

// Save writes st, stamping UpdatedAt. The file is replaced atomically.
func (s *FileStore) Save(st *port.LastUsed) error {
	st.UpdatedAt = s.now().UTC().Truncate(time.Second)

	data, err := toml.Marshal(st)
	if err != nil {
		return fmt.Errorf("encoding state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("writing state: %w", err)
	}
	return nil
}

// ModTime returns the last-modified time of a local file source. ok is
// false for the store, remote objects and missing files.
func ModTime(location string) (t time.Time, ok bool) {
	if location == "" {
		return time.Time{}, false
	}
	fi, err := os.Stat(location)
	if err != nil || fi.IsDir() {
		return time.Time{}, false
	}
	return fi.ModTime(), true
}
