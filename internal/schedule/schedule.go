// Package schedule parses the schedule JSON stored with scheduled workflow
// tasks and computes launch times.
package schedule

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/adhocore/gronx"
)

// Spec is one task schedule. Exactly one field is set: a cron expression, a
// repeat interval in Go duration syntax, or a one-shot timestamp.
type Spec struct {
	Cron  string    `json:"cron,omitempty"`
	Every string    `json:"interval,omitempty"`
	At    time.Time `json:"at,omitzero"`
}

func Parse(raw string) (*Spec, error) {
	var s Spec
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("parse schedule: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func (s *Spec) validate() error {
	set := 0
	if s.Cron != "" {
		set++
		if !gronx.New().IsValid(s.Cron) {
			return fmt.Errorf("invalid cron expression: %s", s.Cron)
		}
	}
	if s.Every != "" {
		set++
		d, err := time.ParseDuration(s.Every)
		if err != nil {
			return fmt.Errorf("invalid interval: %w", err)
		}
		if d <= 0 {
			return fmt.Errorf("interval must be positive: %s", s.Every)
		}
	}
	if !s.At.IsZero() {
		set++
	}
	if set != 1 {
		return fmt.Errorf("schedule needs exactly one of cron, interval, at")
	}
	return nil
}

// Next returns the next launch time after now, or nil when the schedule has
// no further runs.
func (s *Spec) Next(now time.Time) *time.Time {
	switch {
	case s.Cron != "":
		next, err := gronx.NextTickAfter(s.Cron, now, false)
		if err != nil {
			return nil
		}
		return &next
	case s.Every != "":
		d, err := time.ParseDuration(s.Every)
		if err != nil {
			return nil
		}
		next := now.Add(d)
		return &next
	case !s.At.IsZero():
		if s.At.After(now) {
			at := s.At
			return &at
		}
		return nil
	}
	return nil
}

// Describe renders the schedule for listings.
func (s *Spec) Describe() string {
	switch {
	case s.Cron != "":
		return "cron " + s.Cron
	case s.Every != "":
		return "every " + s.Every
	case !s.At.IsZero():
		return "once at " + s.At.Format("Jan 2 15:04")
	}
	return "unscheduled"
}

// NextRun is the storage-layer helper: it parses the schedule JSON held in
// the ledger and returns the launch time after now. Unparseable schedules
// yield nil, which retires the task.
func NextRun(raw string, now time.Time) *time.Time {
	s, err := Parse(raw)
	if err != nil {
		return nil
	}
	return s.Next(now)
}

// Normalize accepts schedule JSON, a bare cron expression, or a bare Go
// duration, and returns canonical schedule JSON.
func Normalize(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "{") {
		s, err := Parse(raw)
		if err != nil {
			return "", err
		}
		data, err := json.Marshal(s)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}

	var s Spec
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		s.Every = raw
	} else if gronx.New().IsValid(raw) {
		s.Cron = raw
	} else {
		return "", fmt.Errorf("invalid schedule: not JSON, duration, or cron expression: %s", raw)
	}

	data, err := json.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
