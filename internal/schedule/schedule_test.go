package schedule

import (
	"fmt"
	"testing"
	"time"
)

func TestParseCron(t *testing.T) {
	s, err := Parse(`{"cron":"0 9 * * *"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.Cron != "0 9 * * *" {
		t.Errorf("expected cron '0 9 * * *', got %q", s.Cron)
	}
}

func TestParseInvalidCron(t *testing.T) {
	if _, err := Parse(`{"cron":"not a cron"}`); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestParseInterval(t *testing.T) {
	s, err := Parse(`{"interval":"1h"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.Every != "1h" {
		t.Errorf("expected interval '1h', got %q", s.Every)
	}
}

func TestParseNegativeInterval(t *testing.T) {
	if _, err := Parse(`{"interval":"-5m"}`); err == nil {
		t.Error("expected error for negative interval")
	}
}

func TestParseRequiresExactlyOneField(t *testing.T) {
	if _, err := Parse(`{}`); err == nil {
		t.Error("expected error for empty schedule")
	}
	if _, err := Parse(`{"cron":"* * * * *","interval":"1h"}`); err == nil {
		t.Error("expected error for conflicting fields")
	}
}

func TestNextCron(t *testing.T) {
	s, err := Parse(`{"cron":"* * * * *"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	now := time.Now()
	next := s.Next(now)
	if next == nil {
		t.Fatal("expected next run time, got nil")
	}
	if !next.After(now) {
		t.Error("expected next run in the future")
	}
}

func TestNextInterval(t *testing.T) {
	s, err := Parse(`{"interval":"1m"}`)
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	now := time.Now()
	next := s.Next(now)
	if next == nil {
		t.Fatal("expected next run time, got nil")
	}
	if got := next.Sub(now); got != time.Minute {
		t.Errorf("expected next run 1m from now, got %v", got)
	}
}

func TestNextOnce(t *testing.T) {
	now := time.Now()
	future := now.Add(time.Hour).UTC().Format(time.RFC3339)
	s, err := Parse(fmt.Sprintf(`{"at":"%s"}`, future))
	if err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if s.Next(now) == nil {
		t.Error("expected next run for future one-shot")
	}

	// a one-shot in the past has no further runs
	if s.Next(now.Add(2 * time.Hour)) != nil {
		t.Error("expected nil for elapsed one-shot")
	}
}

func TestNextRunUnparseable(t *testing.T) {
	if NextRun(`not json`, time.Now()) != nil {
		t.Error("expected nil for unparseable schedule")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`{"cron":"0 9 * * *"}`, "cron 0 9 * * *"},
		{`{"interval":"30m"}`, "every 30m"},
	}
	for _, tt := range tests {
		s, err := Parse(tt.raw)
		if err != nil {
			t.Fatalf("parse %s: %v", tt.raw, err)
		}
		if got := s.Describe(); got != tt.want {
			t.Errorf("Describe(%s) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"0 9 * * *", `{"cron":"0 9 * * *"}`},
		{"30m", `{"interval":"30m"}`},
		{`{"interval":"1h"}`, `{"interval":"1h"}`},
	}
	for _, tt := range tests {
		got, err := Normalize(tt.raw)
		if err != nil {
			t.Fatalf("normalize %q: %v", tt.raw, err)
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}

	if _, err := Normalize("definitely not a schedule"); err == nil {
		t.Error("expected error for garbage input")
	}
}
