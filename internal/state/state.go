package state

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// DefaultPath is where the active configuration name is recorded.
const DefaultPath = "/run/wg-man.current"

// Store persists the name of the currently active configuration in a single file.
// The file holds exactly the name and nothing else. A missing file means no
// configuration is active.
//
// Store does no locking. Two invocations sharing a run file can interleave their
// reads and writes; callers are expected to run one at a time.
type Store struct {
	Path string
}

// New returns a Store backed by path.
func New(path string) *Store { return &Store{Path: path} }

// Read returns the recorded name. ok is false when the file is missing or empty.
func (s *Store) Read() (name string, ok bool, err error) {
	b, err := os.ReadFile(filepath.Clean(s.Path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read run file %s: %w", s.Path, err)
	}
	// the contents are the name; only an editor's final newline is dropped
	name = strings.TrimSuffix(string(b), "\n")
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

// Write replaces the recorded name.
func (s *Store) Write(name string) error {
	if err := os.WriteFile(filepath.Clean(s.Path), []byte(name), 0o644); err != nil {
		return fmt.Errorf("write run file %s: %w", s.Path, err)
	}
	return nil
}

// Clear removes the record. Clearing an absent record is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(filepath.Clean(s.Path)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove run file %s: %w", s.Path, err)
	}
	return nil
}
