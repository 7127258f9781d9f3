package brain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mkaravel/synergo/internal/memory"
)

// Turn is one utterance in the conversation flow.
type Turn struct {
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Session is the conversation log persisted between inputs.
type Session struct {
	SessionID        string `json:"session_id"`
	StartTime        time.Time `json:"start_time"`
	ConversationFlow []Turn `json:"conversation_flow"`
	TotalMessages    int    `json:"total_messages"`
}

// FunctionalAnalysis is the structured breakdown the reasoner maintains.
type FunctionalAnalysis struct {
	MainProblem      string   `json:"main_problem"`
	IdentifiedUsers  []string `json:"identified_users"`
	MainUseCases     []string `json:"main_use_cases"`
	Assumptions      []string `json:"assumptions"`
	Risks            []string `json:"risks"`
	PendingQuestions []string `json:"pending_questions"`
}

// Requirements is the project state built up across the conversation.
type Requirements struct {
	RawRequirements    string             `json:"raw_requirements"`
	FunctionalAnalysis FunctionalAnalysis `json:"functional_analysis"`
	IdentifiedEpics    []string           `json:"identified_epics"`
	LastUpdated        time.Time          `json:"last_updated,omitzero"`
}

// Empty reports whether no project has been captured yet.
func (r *Requirements) Empty() bool {
	return r == nil || r.RawRequirements == ""
}

// Memory groups the agent's private stores: the session log, the
// requirements state, and a read-only initial wisdom file.
type Memory struct {
	session      *memory.Store
	requirements *memory.Store
	initialPath  string
}

func OpenMemory(dir string) (*Memory, error) {
	session, err := memory.New(filepath.Join(dir, "session_memory.json"))
	if err != nil {
		return nil, err
	}
	requirements, err := memory.New(filepath.Join(dir, "requirements_memory.json"))
	if err != nil {
		return nil, err
	}
	return &Memory{
		session:      session,
		requirements: requirements,
		initialPath:  filepath.Join(dir, "initial_memory.txt"),
	}, nil
}

// AppendTurn adds one utterance to the session log.
func (m *Memory) AppendTurn(speaker, message string) error {
	session, err := m.Session()
	if err != nil {
		return err
	}
	if session.SessionID == "" {
		session.SessionID = fmt.Sprintf("session_%d", time.Now().Unix())
		session.StartTime = time.Now().UTC()
	}
	session.ConversationFlow = append(session.ConversationFlow, Turn{
		Speaker:   speaker,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})
	session.TotalMessages++
	return m.session.Write(session)
}

func (m *Memory) Session() (*Session, error) {
	var s Session
	if err := m.session.Read(&s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (m *Memory) Requirements() (*Requirements, error) {
	var r Requirements
	if err := m.requirements.Read(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (m *Memory) SaveRequirements(r *Requirements) error {
	r.LastUpdated = time.Now().UTC()
	return m.requirements.Write(r)
}

// ResetRequirements drops the current project state.
func (m *Memory) ResetRequirements() error {
	return m.requirements.Write(&Requirements{})
}

// InitialWisdom returns the seed instructions for the reasoner. A missing
// file means no extra wisdom.
func (m *Memory) InitialWisdom() string {
	data, err := os.ReadFile(m.initialPath)
	if err != nil {
		return ""
	}
	return string(data)
}
