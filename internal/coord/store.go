package coord

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrCorruptState marks on-disk document content that is not well-formed JSON.
var ErrCorruptState = errors.New("corrupt workflow document")

// TimeoutError is returned when a backoff wait exhausts its attempt budget.
type TimeoutError struct {
	Attempts int
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("condition not met after %d attempts", e.Attempts)
}

// Store serializes access to a shared workflow document through a sidecar
// advisory lock file. The lock is held per call, not across a
// read-modify-write pair: a caller that reads, mutates, and writes back can
// still lose a concurrent writer's update in between. Callers avoid this by
// convention, each agent writing only the fields it owns after its
// predecessors have finished.
type Store struct {
	path     string
	lockPath string
}

// NewStore returns a store over the document at path. The lock file lives
// alongside the document.
func NewStore(path string) *Store {
	return &Store{
		path:     path,
		lockPath: filepath.Join(filepath.Dir(path), "comm.lock"),
	}
}

// Path returns the document location on disk.
func (s *Store) Path() string {
	return s.path
}

// Init writes the initial document and creates the lock file. The parent
// directory is created if needed.
func (s *Store) Init(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create document dir: %w", err)
	}
	f, err := os.OpenFile(s.lockPath, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create lock file: %w", err)
	}
	f.Close()
	return s.Write(doc)
}

// Read loads the document under the lock and returns a fresh copy.
func (s *Store) Read() (*Document, error) {
	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptState, s.path, err)
	}
	return &doc, nil
}

// Write replaces the on-disk document under the lock. Last writer wins; there
// is no version check or conflict detection.
func (s *Store) Write(doc *Document) error {
	lock := flock.New(s.lockPath)
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	defer lock.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	// Atomic replace so a reader never observes a torn write.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace document: %w", err)
	}
	return nil
}
