// Package memory is a private per-component JSON file store. It is the
// single-process special case of the shared coordination store: one owner,
// no concurrent writers, so no locking.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

type Store struct {
	path string
}

// New returns a store over the JSON file at path, creating parent
// directories so components never manage their own layout.
func New(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Read unmarshals the whole file into out. A missing file leaves out
// untouched so components initialize their structure naturally.
func (s *Store) Read(out any) error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read memory: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse memory %s: %w", s.path, err)
	}
	return nil
}

// Write replaces the file content with the serialized value.
func (s *Store) Write(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal memory: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write memory: %w", err)
	}
	return nil
}

// Delete removes the file. Missing files are not an error.
func (s *Store) Delete() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete memory: %w", err)
	}
	return nil
}
