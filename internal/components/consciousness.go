package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkaravel/synergo/internal/llm"
	"github.com/mkaravel/synergo/internal/memory"
)

const consciousnessSystem = `You are a Consciousness component in an AI agent system that transforms requirements into user stories.

Your responsibilities:
1. Analyze user input to identify when new requirements are mentioned
2. Decide when user story creation should be triggered
3. Maintain awareness of the overall project context and progress
4. Make decisions about process flow based on current state

Your analysis should identify:
- When users mention new functional requirements
- When enough information exists to create meaningful user stories
- When clarifying questions are needed before proceeding
- When the user is asking for status or information vs providing requirements

Decision types you can make:
- "create_user_story": User has provided enough requirement detail
- "ask_clarification": Need more information before creating stories
- "continue_conversation": General conversation, no immediate action needed
- "update_context": User provided context but not specific requirements

Always provide your reasoning for the decision and what specific information triggered it.`

// Decision actions the consciousness component can take.
const (
	ActionCreateStory   = "create_user_story"
	ActionClarify       = "ask_clarification"
	ActionContinue      = "continue_conversation"
	ActionUpdateContext = "update_context"
)

// Decision is the structured reply expected from the model.
type Decision struct {
	Action                string   `json:"action"`
	Reasoning             string   `json:"reasoning"`
	ExtractedRequirements []string `json:"extracted_requirements"`
	MissingInformation    []string `json:"missing_information"`
	Confidence            float64  `json:"confidence"`
}

// Requirement is one tracked requirement in the shared context.
type Requirement struct {
	ID      string    `json:"requirement_id"`
	Text    string    `json:"text"`
	Source  string    `json:"source"`
	Status  string    `json:"status"`
	AddedAt time.Time `json:"added_at"`
}

// DecisionRecord keeps an audit trail of every routing decision.
type DecisionRecord struct {
	Trigger     string    `json:"trigger"`
	Analysis    string    `json:"analysis"`
	Decision    string    `json:"decision"`
	ActionTaken string    `json:"action_taken,omitempty"`
	At          time.Time `json:"timestamp"`
}

// SharedContext is the consciousness component's memory file.
type SharedContext struct {
	Project struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Phase       string `json:"current_phase"`
	} `json:"project_context"`
	Requirements []Requirement    `json:"active_requirements"`
	Decisions    []DecisionRecord `json:"decision_history"`
}

// Consciousness is the decision maker. It classifies project-related input
// and triggers requirement tracking and story creation.
type Consciousness struct {
	store     *memory.Store
	completer llm.Completer
	onUsage   func(llm.Result)

	comm    *Communication
	creator *Creator
}

func NewConsciousness(store *memory.Store, completer llm.Completer, onUsage func(llm.Result)) *Consciousness {
	return &Consciousness{store: store, completer: completer, onUsage: onUsage}
}

func (m *Consciousness) SetCommunication(comm *Communication) { m.comm = comm }
func (m *Consciousness) SetCreator(creator *Creator)          { m.creator = creator }

func (m *Consciousness) context() (SharedContext, error) {
	var sc SharedContext
	err := m.store.Read(&sc)
	return sc, err
}

// ProcessInput analyzes one user turn and executes the resulting decision.
// Model failures degrade to a continue_conversation decision so the user
// always gets a reply.
func (m *Consciousness) ProcessInput(ctx context.Context, input string) error {
	sc, err := m.context()
	if err != nil {
		return err
	}

	decision := m.decide(ctx, sc, input)

	sc.Decisions = append(sc.Decisions, DecisionRecord{
		Trigger:  "User input: " + input,
		Analysis: decision.Reasoning,
		Decision: decision.Action,
		At:       time.Now(),
	})

	switch decision.Action {
	case ActionCreateStory:
		m.handleStoryCreation(ctx, &sc, decision, input)
	case ActionClarify:
		m.handleClarification(decision)
	case ActionUpdateContext:
		m.handleContextUpdate(&sc, decision)
	default:
		m.handleContinue(decision)
	}

	return m.store.Write(sc)
}

func (m *Consciousness) decide(ctx context.Context, sc SharedContext, input string) Decision {
	fallback := Decision{
		Action:     ActionContinue,
		Reasoning:  "Analysis failed, defaulting to conversation",
		Confidence: 0.1,
	}

	var reqs strings.Builder
	for _, req := range sc.Requirements {
		fmt.Fprintf(&reqs, "- %s (Status: %s)\n", req.Text, req.Status)
	}
	requirements := reqs.String()
	if requirements == "" {
		requirements = "No active requirements yet"
	}

	user := fmt.Sprintf(`Current Project Context:
%s

Active Requirements:
%s

Latest User Input: %q

Analyze this input and decide what action should be taken. Consider:
1. Does this input contain new functional requirements?
2. Is there enough detail to create user stories?
3. Does this need clarification before proceeding?
4. Is this just general conversation?

Respond in this JSON format:
{
    "action": "create_user_story|ask_clarification|continue_conversation|update_context",
    "reasoning": "Explanation of why this action was chosen",
    "extracted_requirements": ["List any new requirements identified"],
    "missing_information": ["List any information needed for user stories"],
    "confidence": 0.8
}`, contextSummary(sc), requirements, input)

	res, err := m.completer.Complete(ctx, consciousnessSystem, user)
	if err != nil {
		slog.Warn("analyze input", "error", err)
		return fallback
	}
	if m.onUsage != nil {
		m.onUsage(res)
	}

	var decision Decision
	if !llm.DecodeInto(res.Text, &decision) || decision.Action == "" {
		slog.Warn("analyze input", "error", "unparseable decision reply")
		return fallback
	}
	return decision
}

func (m *Consciousness) handleStoryCreation(ctx context.Context, sc *SharedContext, decision Decision, input string) {
	for _, text := range decision.ExtractedRequirements {
		addRequirement(sc, text, "user")
	}

	if m.creator != nil && len(decision.ExtractedRequirements) > 0 {
		created := m.creator.ProcessRequirements(ctx, decision.ExtractedRequirements, input)
		sc.Decisions[len(sc.Decisions)-1].ActionTaken = fmt.Sprintf("Triggered user story creation (%d stories)", len(created))
	}

	if m.comm != nil {
		m.comm.ShowAgent(fmt.Sprintf("I've identified %d requirement(s) and will create user stories for them.", len(decision.ExtractedRequirements)))
	}
}

func (m *Consciousness) handleClarification(decision Decision) {
	if m.comm == nil {
		return
	}
	if len(decision.MissingInformation) > 0 {
		m.comm.ShowAgent("To create proper user stories, I need more information: " + decision.MissingInformation[0])
		return
	}
	m.comm.ShowAgent("Could you provide more details about what you need?")
}

func (m *Consciousness) handleContextUpdate(sc *SharedContext, decision Decision) {
	for _, text := range decision.ExtractedRequirements {
		addRequirement(sc, text, "user")
	}
	if m.comm != nil {
		m.comm.ShowAgent("I've noted that information. Please continue with your requirements.")
	}
}

func (m *Consciousness) handleContinue(decision Decision) {
	if m.comm == nil {
		return
	}
	reasoning := strings.ToLower(decision.Reasoning)
	if strings.Contains(reasoning, "greeting") || strings.Contains(reasoning, "hello") {
		m.comm.ShowAgent("Hello! I'm here to help you transform your requirements into user stories. What would you like to build?")
		return
	}
	m.comm.ShowAgent("I understand. Please tell me more about your requirements, and I'll help create user stories for your project.")
}

// SetProjectInfo records the project name and description used as analysis
// context.
func (m *Consciousness) SetProjectInfo(name, description string) error {
	sc, err := m.context()
	if err != nil {
		return err
	}
	sc.Project.Name = name
	sc.Project.Description = description
	if sc.Project.Phase == "" {
		sc.Project.Phase = "requirements_gathering"
	}
	return m.store.Write(sc)
}

// ActiveRequirements returns the requirements tracked so far.
func (m *Consciousness) ActiveRequirements() ([]Requirement, error) {
	sc, err := m.context()
	if err != nil {
		return nil, err
	}
	return sc.Requirements, nil
}

// ContextSummary renders the shared context for use in prompts.
func (m *Consciousness) ContextSummary() (string, error) {
	sc, err := m.context()
	if err != nil {
		return "", err
	}
	return contextSummary(sc), nil
}

// ClearContext drops the shared context for a fresh start.
func (m *Consciousness) ClearContext() {
	if err := m.store.Delete(); err != nil {
		slog.Warn("clear context", "error", err)
	}
}

func addRequirement(sc *SharedContext, text, source string) {
	sc.Requirements = append(sc.Requirements, Requirement{
		ID:      fmt.Sprintf("req_%03d", len(sc.Requirements)+1),
		Text:    text,
		Source:  source,
		Status:  "active",
		AddedAt: time.Now(),
	})
}

func contextSummary(sc SharedContext) string {
	name := sc.Project.Name
	if name == "" {
		name = "Unnamed"
	}
	phase := sc.Project.Phase
	if phase == "" {
		phase = "unknown phase"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Project: %s (%s)\n", name, phase)
	if sc.Project.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", sc.Project.Description)
	}
	fmt.Fprintf(&b, "Active requirements: %d", len(sc.Requirements))
	return b.String()
}
