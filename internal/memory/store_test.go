package memory

import (
	"path/filepath"
	"testing"
)

type state struct {
	Requirements []string `json:"requirements"`
	Sessions     int      `json:"sessions"`
}

func TestReadWriteCycle(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "nested", "memory.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if s.Exists() {
		t.Error("store must not exist before first write")
	}

	if err := s.Write(state{Requirements: []string{"login"}, Sessions: 2}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !s.Exists() {
		t.Error("store must exist after write")
	}

	var got state
	if err := s.Read(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Sessions != 2 || len(got.Requirements) != 1 {
		t.Errorf("unexpected state: %+v", got)
	}
}

func TestReadMissingFileLeavesValue(t *testing.T) {
	dir := t.TempDir()
	s, err := New(filepath.Join(dir, "memory.json"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	got := state{Sessions: 7}
	if err := s.Read(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Sessions != 7 {
		t.Errorf("missing file must not touch the value: %+v", got)
	}
}

func TestDelete(t *testing.T) {
	dir := t.TempDir()
	s, _ := New(filepath.Join(dir, "memory.json"))
	_ = s.Write(state{})

	if err := s.Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if s.Exists() {
		t.Error("store must not exist after delete")
	}
	// Deleting again is fine.
	if err := s.Delete(); err != nil {
		t.Fatalf("second delete: %v", err)
	}
}
