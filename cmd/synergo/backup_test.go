package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFormatSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 bytes"},
		{512, "512 bytes"},
		{1023, "1023 bytes"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{1048576, "1.0 MB"},
		{1073741824, "1.0 GB"},
	}
	for _, tt := range tests {
		if got := formatSize(tt.bytes); got != tt.want {
			t.Errorf("formatSize(%d) = %q, want %q", tt.bytes, got, tt.want)
		}
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "nats", "jetstream"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	files := map[string]string{
		"synergo.db":          "sqlite bytes",
		"communication.json":  `{"workflow_state":"pending"}`,
		"nats/jetstream/meta": "stream state",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	count, err := archiveDir(src, archive)
	if err != nil {
		t.Fatalf("archiveDir: %v", err)
	}
	if count != 3 {
		t.Fatalf("archived %d files, want 3", count)
	}

	dst := t.TempDir()
	count, err = extractArchive(archive, dst)
	if err != nil {
		t.Fatalf("extractArchive: %v", err)
	}
	if count != 3 {
		t.Fatalf("extracted %d files, want 3", count)
	}

	for name, content := range files {
		data, err := os.ReadFile(filepath.Join(dst, name))
		if err != nil {
			t.Fatalf("read %s: %v", name, err)
		}
		if string(data) != content {
			t.Errorf("%s = %q, want %q", name, data, content)
		}
	}
}

func TestArchiveMissingDataDir(t *testing.T) {
	archive := filepath.Join(t.TempDir(), "backup.tar.zst")
	count, err := archiveDir(filepath.Join(t.TempDir(), "nope"), archive)
	if err != nil {
		t.Fatalf("archiveDir: %v", err)
	}
	if count != 0 {
		t.Fatalf("archived %d files, want 0", count)
	}
}

func TestPathFlag(t *testing.T) {
	got, err := pathFlag([]string{"-f", "out.tar.zst"}, "backup -f <file>")
	if err != nil || got != "out.tar.zst" {
		t.Fatalf("pathFlag = %q, %v", got, err)
	}
	if _, err := pathFlag(nil, "backup -f <file>"); err == nil {
		t.Fatal("pathFlag accepted missing -f")
	}
	if _, err := pathFlag([]string{"-f"}, "backup -f <file>"); err == nil {
		t.Fatal("pathFlag accepted -f without value")
	}
}
