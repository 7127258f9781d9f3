// Package chat implements a conversational pipeline over per-project state
// files. Every user turn runs five stages in order; each stage persists the
// whole state so a conversation can be inspected or resumed between turns.
package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"
)

var projectNameRE = regexp.MustCompile(`^[a-zA-Z0-9_&-]+$`)

// ValidProjectName reports whether name is usable as a project file name.
func ValidProjectName(name string) bool {
	return projectNameRE.MatchString(name)
}

// Projects manages one JSON state file per conversation project.
type Projects struct {
	dir string
}

func NewProjects(dir string) (*Projects, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create projects dir: %w", err)
	}
	return &Projects{dir: dir}, nil
}

func (p *Projects) path(name string) string {
	return filepath.Join(p.dir, name+".json")
}

func (p *Projects) Exists(name string) bool {
	_, err := os.Stat(p.path(name))
	return err == nil
}

// List returns all project names, sorted.
func (p *Projects) List() ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".json") {
			names = append(names, strings.TrimSuffix(e.Name(), ".json"))
		}
	}
	sort.Strings(names)
	return names, nil
}

// Create initializes a new project. It fails when the name is invalid or
// the project already exists.
func (p *Projects) Create(name string) error {
	if !ValidProjectName(name) {
		return fmt.Errorf("invalid project name %q", name)
	}
	if p.Exists(name) {
		return fmt.Errorf("project %q already exists", name)
	}
	return p.Save(name, newState(name))
}

// Load reads a project state. A missing project returns nil, nil.
func (p *Projects) Load(name string) (*State, error) {
	data, err := os.ReadFile(p.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read project: %w", err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parse project %s: %w", name, err)
	}
	return &state, nil
}

func (p *Projects) Save(name string, state *State) error {
	state.ProjectName = name
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal project state: %w", err)
	}
	if err := os.WriteFile(p.path(name), data, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	return nil
}

// Reset replaces the project's state with a fresh one.
func (p *Projects) Reset(name string) error {
	if !p.Exists(name) {
		return fmt.Errorf("project %q does not exist", name)
	}
	return p.Save(name, newState(name))
}

// ProjectInfo summarizes a project for listings.
type ProjectInfo struct {
	Name         string
	CreatedAt    time.Time
	Messages     int
	LastActivity time.Time
}

// Info returns summary details, or nil when the project does not exist.
func (p *Projects) Info(name string) (*ProjectInfo, error) {
	state, err := p.Load(name)
	if err != nil || state == nil {
		return nil, err
	}
	info := &ProjectInfo{
		Name:      name,
		CreatedAt: state.CreatedAt,
		Messages:  len(state.Context.History),
	}
	if n := len(state.Context.History); n > 0 {
		info.LastActivity = state.Context.History[n-1].Timestamp
	}
	return info, nil
}
