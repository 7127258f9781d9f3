package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkaravel/synergo/internal/ledger"
	"github.com/mkaravel/synergo/internal/llm"
)

// Pipeline runs the five conversation stages against a project's state.
// Ledger may be nil to disable token accounting.
type Pipeline struct {
	Projects  *Projects
	Completer llm.Completer
	Ledger    *ledger.Ledger
}

// Run executes a full turn for the named project and returns the final
// state. Completion failures degrade into an apology response so the
// conversation never aborts mid-pipeline.
func (p *Pipeline) Run(ctx context.Context, project, input string) (*State, error) {
	state, err := p.Projects.Load(project)
	if err != nil {
		return nil, err
	}
	if state == nil {
		return nil, fmt.Errorf("project %q does not exist", project)
	}

	stages := []func(context.Context, *State) error{
		p.processInput(input),
		p.buildContext,
		p.analyzeIntent,
		p.generateResponse,
		p.formatOutput,
	}
	for _, stage := range stages {
		if err := stage(ctx, state); err != nil {
			return nil, err
		}
		if err := p.Projects.Save(project, state); err != nil {
			return nil, err
		}
	}
	return state, nil
}

// processInput records the raw input and its basic metadata.
func (p *Pipeline) processInput(input string) func(context.Context, *State) error {
	return func(_ context.Context, state *State) error {
		text := strings.TrimSpace(input)
		state.UserInput = input
		state.Processed = ProcessedInput{
			Text:        text,
			Timestamp:   time.Now(),
			Length:      len(input),
			WordCount:   len(strings.Fields(input)),
			HasQuestion: strings.Contains(input, "?"),
		}
		state.CurrentStep = StepContextBuilding
		state.Position = 1
		return nil
	}
}

// buildContext appends the user turn to the history and extracts any
// overlapping recent context.
func (p *Pipeline) buildContext(_ context.Context, state *State) error {
	if state.Context.SessionStart.IsZero() {
		state.Context.SessionStart = state.Processed.Timestamp
	}
	state.Context.RelevantContext = relevantContext(state.Processed.Text, state.Context.History)
	if state.Processed.Text != "" {
		state.Context.History = append(state.Context.History, HistoryMessage{
			Role:      "user",
			Text:      state.Processed.Text,
			Timestamp: state.Processed.Timestamp,
		})
	}
	state.CurrentStep = StepIntentAnalysis
	state.Position = 2
	return nil
}

// relevantContext finds recent history messages sharing words with the
// current input. Crude, but enough to hint the model.
func relevantContext(input string, history []HistoryMessage) string {
	if input == "" || len(history) == 0 {
		return ""
	}
	recent := history
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	current := map[string]bool{}
	for _, word := range strings.Fields(strings.ToLower(input)) {
		current[word] = true
	}

	var related []string
	for _, msg := range recent {
		for _, word := range strings.Fields(strings.ToLower(msg.Text)) {
			if current[word] {
				related = append(related, msg.Text)
				break
			}
		}
	}
	return strings.Join(related, " | ")
}

// analyzeIntent classifies the input with rule-based patterns.
func (p *Pipeline) analyzeIntent(_ context.Context, state *State) error {
	text := state.Processed.Text
	state.Intent = Intent{
		Primary:      classifyIntent(text),
		Confidence:   intentConfidence(text),
		Entities:     extractEntities(text),
		NeedsContext: needsContext(text),
	}
	state.CurrentStep = StepResponseGeneration
	state.Position = 3
	return nil
}

// generateResponse asks the model for a reply. API errors produce an
// apology response with no recorded usage instead of failing the turn.
func (p *Pipeline) generateResponse(ctx context.Context, state *State) error {
	system := fmt.Sprintf(`You are a conversational assistant in a pipeline demonstration.

Current conversation analysis:
- User intent: %s (confidence: %.2f)
- Context needed: %t
- Conversation history length: %d messages

Respond naturally and helpfully to the user's message.`,
		state.Intent.Primary, state.Intent.Confidence, state.Intent.NeedsContext, len(state.Context.History))

	user := state.Processed.Text
	if recent := recentHistory(state.Context.History, 5); recent != "" {
		user = "Recent conversation:\n" + recent + "\n\nCurrent message: " + state.Processed.Text
	}

	res, err := p.Completer.Complete(ctx, system, user)
	if err != nil {
		slog.Warn("response generation failed", "project", state.ProjectName, "error", err)
		state.Response = Response{
			Text:      fmt.Sprintf("I apologize, but I encountered an error while processing your request: %v", err),
			Reasoning: "API error, no completion available",
		}
	} else {
		state.Response = Response{
			Text:      strings.TrimSpace(res.Text),
			Reasoning: fmt.Sprintf("Responded to %s intent with confidence %.2f", state.Intent.Primary, state.Intent.Confidence),
			Model:     res.Model,
		}
		p.recordUsage(state.ProjectName, res)
	}

	state.CurrentStep = StepOutputFormatting
	state.Position = 4
	return nil
}

// recentHistory renders the last n turns, excluding the current user
// message already appended by buildContext.
func recentHistory(history []HistoryMessage, n int) string {
	if len(history) <= 1 {
		return ""
	}
	history = history[:len(history)-1]
	if len(history) > n {
		history = history[len(history)-n:]
	}
	var b strings.Builder
	for _, msg := range history {
		fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Text)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (p *Pipeline) recordUsage(project string, res llm.Result) {
	if p.Ledger == nil {
		return
	}
	err := p.Ledger.RecordUsage(&ledger.Usage{
		Scope:        project,
		Model:        res.Model,
		InputTokens:  res.InputTokens,
		OutputTokens: res.OutputTokens,
		Cost:         llm.EstimateCost(res.Model, res.InputTokens, res.OutputTokens),
	})
	if err != nil {
		slog.Warn("usage not recorded", "project", project, "error", err)
	}
}

// formatOutput finalizes the reply and appends it to the history.
func (p *Pipeline) formatOutput(_ context.Context, state *State) error {
	text := strings.TrimSpace(state.Response.Text)
	if text == "" {
		text = "I'm sorry, I couldn't generate a response. Please try again."
	} else if !strings.HasSuffix(text, ".") && !strings.HasSuffix(text, "!") && !strings.HasSuffix(text, "?") {
		text += "."
	}

	now := time.Now()
	state.Output = Output{
		Text:              text,
		Timestamp:         now,
		Intent:            state.Intent.Primary,
		Confidence:        state.Intent.Confidence,
		ProcessingSeconds: now.Sub(state.Processed.Timestamp).Seconds(),
		Length:            len(text),
	}
	state.Context.History = append(state.Context.History, HistoryMessage{
		Role:      "assistant",
		Text:      text,
		Timestamp: now,
	})
	state.CurrentStep = StepCompleted
	state.Position = 5
	return nil
}

// ContextTokens estimates the token footprint of the whole history.
func ContextTokens(history []HistoryMessage) int {
	texts := make([]string, len(history))
	for i, msg := range history {
		texts[i] = msg.Text
	}
	return llm.EstimateTokens(texts...)
}

// CompactPlan describes what a compaction pass would do.
type CompactPlan struct {
	Messages      int
	Keep          int
	Remove        int
	Tokens        int
	TokensAfter   int
	UsagePercent  float64
	PercentAfter  float64
	Needed        bool
}

// minKeepMessages is the floor on history length after compaction; below
// twice this the conversation is too short to bother.
const minKeepMessages = 10

// PlanCompaction analyzes the history against the model's context window.
func PlanCompaction(model string, history []HistoryMessage) CompactPlan {
	tokens := ContextTokens(history)
	plan := CompactPlan{
		Messages:     len(history),
		Tokens:       tokens,
		UsagePercent: llm.ContextUsagePercent(model, tokens),
		Needed:       llm.ShouldCompact(model, tokens),
	}
	if len(history) < minKeepMessages*2 {
		plan.Needed = false
		return plan
	}

	keep := len(history) * 30 / 100
	if keep < minKeepMessages {
		keep = minKeepMessages
	}
	plan.Keep = keep
	plan.Remove = len(history) - keep
	plan.TokensAfter = ContextTokens(history[len(history)-keep:])
	plan.PercentAfter = llm.ContextUsagePercent(model, plan.TokensAfter)
	return plan
}

// Compact drops everything but the plan's most recent messages.
func (p *Pipeline) Compact(project string, plan CompactPlan) error {
	state, err := p.Projects.Load(project)
	if err != nil {
		return err
	}
	if state == nil {
		return fmt.Errorf("project %q does not exist", project)
	}
	if plan.Keep <= 0 || plan.Keep >= len(state.Context.History) {
		return nil
	}
	state.Context.History = state.Context.History[len(state.Context.History)-plan.Keep:]
	return p.Projects.Save(project, state)
}
