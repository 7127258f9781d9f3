// Package brain is a single conversational requirements agent organized as
// cooperating organs: memory holds state, the reasoner thinks, and a
// Prompter talks to the user. The Brain itself only mediates between them.
package brain

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Prompter is the user-facing surface. The console implements it; tests
// substitute a scripted fake.
type Prompter interface {
	Say(message string)
	Ask(question string) string
}

type Brain struct {
	mem      *Memory
	reasoner *Reasoner
	io       Prompter
}

func New(mem *Memory, reasoner *Reasoner, io Prompter) *Brain {
	return &Brain{mem: mem, reasoner: reasoner, io: io}
}

// say shows a message and records it as an agent turn.
func (b *Brain) say(message string) {
	b.io.Say(message)
	if err := b.mem.AppendTurn("agent", message); err != nil {
		slog.Warn("agent turn not recorded", "error", err)
	}
}

// Process routes one user input through the organs.
func (b *Brain) Process(ctx context.Context, input string) error {
	if err := b.mem.AppendTurn("user", input); err != nil {
		return err
	}

	session, err := b.mem.Session()
	if err != nil {
		return err
	}
	current, err := b.mem.Requirements()
	if err != nil {
		return err
	}
	wisdom := b.mem.InitialWisdom()

	result, err := b.reasoner.UpdateRequirements(ctx, session, wisdom, current)
	if err != nil {
		b.say(fmt.Sprintf("Error: %v", err))
		return err
	}

	switch result.Outcome {
	case OutcomeConversationRequest:
		return b.handleConversationRequest(ctx, session, current, wisdom)
	case OutcomeNewProject:
		return b.handleNewProject(current)
	default:
		return b.handleUpdate(result)
	}
}

func (b *Brain) handleConversationRequest(ctx context.Context, session *Session, current *Requirements, wisdom string) error {
	questions := b.reasoner.GenerateQuestions(ctx, current, session, wisdom)
	if len(questions) == 0 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString("Here are some additional questions about your project:\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
	}
	b.say(strings.TrimRight(sb.String(), "\n"))
	return nil
}

func (b *Brain) handleNewProject(current *Requirements) error {
	question := "I detected you're talking about a different project. Do you want to start a new project or continue with the current one? (new/continue)"
	if !current.Empty() {
		desc := current.RawRequirements
		if len(desc) > 50 {
			desc = desc[:50] + "..."
		}
		question = fmt.Sprintf("I detected you're talking about a different project. Do you want to start a new project or continue with the current one (%s)? (new/continue)", desc)
	}

	answer := b.io.Ask(question)
	if err := b.mem.AppendTurn("agent", question); err != nil {
		return err
	}
	if err := b.mem.AppendTurn("user", answer); err != nil {
		return err
	}

	if strings.HasPrefix(strings.ToLower(answer), "new") {
		if err := b.mem.ResetRequirements(); err != nil {
			return err
		}
		b.say("Starting fresh with a new project! Please tell me about your requirements.")
		return nil
	}
	b.say("Continuing with current project.")
	return nil
}

func (b *Brain) handleUpdate(result *ReasoningResult) error {
	if err := b.mem.SaveRequirements(result.Requirements); err != nil {
		return err
	}

	if pending := result.Requirements.FunctionalAnalysis.PendingQuestions; len(pending) > 0 {
		var sb strings.Builder
		sb.WriteString("I have some questions for you:\n")
		for i, q := range pending {
			fmt.Fprintf(&sb, "%d. %s\n", i+1, q)
		}
		b.io.Say(strings.TrimRight(sb.String(), "\n"))
	}

	if result.Explanation != "" {
		b.say(result.Explanation)
	}
	return nil
}
