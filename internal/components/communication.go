// Package components implements three self-contained agents that together
// turn free-form requirements into user stories. Each component owns a
// private memory file and talks to the others only through explicit
// references set at wiring time.
package components

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/mkaravel/synergo/internal/llm"
	"github.com/mkaravel/synergo/internal/memory"
)

const communicationSystem = `You are a Communication component in an AI agent system that transforms requirements into user stories.

Your responsibilities:
1. Interact naturally with users to gather requirements
2. Ask clarifying questions when requirements are unclear
3. Provide friendly, professional responses
4. Guide users through the requirements gathering process

Your communication style should be:
- Clear and concise
- Professional but approachable
- Focused on gathering complete requirements
- Ask one question at a time to avoid overwhelming users

You work with other components:
- Consciousness: Makes decisions about when to create user stories
- UserStoryCreator: Actually creates the user stories

Keep responses focused on communication and avoid making decisions about user story creation - that's the Consciousness component's job.`

const routingSystem = `You are a Communication component filter that decides whether user input should be handled directly by Communication or sent to Consciousness for complex processing.

Handle directly by Communication ONLY:
- Simple greetings (hello, hi, good morning)
- Generic help requests (help, what can you do)
- Conversational acknowledgments (ok, thanks, understood)
- Empty or nonsensical input
- General conversational responses

Send to Consciousness (everything project-related):
- Any mention of user stories, requirements, features
- Project queries (show story, list stories, project status)
- New requirements or modifications
- Business logic or functional requests
- Requests for creating, updating, or viewing user stories`

// Message is one entry in the conversation log.
type Message struct {
	ID        string    `json:"message_id"`
	Speaker   string    `json:"speaker"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation is the communication component's memory file.
type Conversation struct {
	SessionID string    `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
	Messages  []Message `json:"conversation"`
}

// ConversationStats summarizes the current session.
type ConversationStats struct {
	SessionID     string `json:"session_id"`
	TotalMessages int    `json:"total_messages"`
	UserMessages  int    `json:"user_messages"`
	AgentMessages int    `json:"agent_messages"`
}

// Communication owns all user-facing I/O. It records every exchanged
// message and routes project-related input to the consciousness component.
type Communication struct {
	store     *memory.Store
	completer llm.Completer
	onUsage   func(llm.Result)
	out       io.Writer

	mind *Consciousness
}

func NewCommunication(store *memory.Store, completer llm.Completer, out io.Writer, onUsage func(llm.Result)) *Communication {
	return &Communication{store: store, completer: completer, out: out, onUsage: onUsage}
}

// SetConsciousness wires the decision maker. Without it all input is
// handled directly.
func (c *Communication) SetConsciousness(mind *Consciousness) {
	c.mind = mind
}

func (c *Communication) conversation() (Conversation, error) {
	var conv Conversation
	if err := c.store.Read(&conv); err != nil {
		return Conversation{}, err
	}
	if conv.SessionID == "" {
		now := time.Now()
		conv.SessionID = "session_" + now.Format("20060102_150405")
		conv.StartedAt = now
	}
	return conv, nil
}

func (c *Communication) record(speaker, message string) error {
	conv, err := c.conversation()
	if err != nil {
		return err
	}
	conv.Messages = append(conv.Messages, Message{
		ID:        fmt.Sprintf("msg_%03d", len(conv.Messages)+1),
		Speaker:   speaker,
		Message:   message,
		Timestamp: time.Now(),
	})
	return c.store.Write(conv)
}

// ShowAgent prints an agent reply and stores it in the conversation log.
func (c *Communication) ShowAgent(message string) {
	fmt.Fprintf(c.out, "\nAgent: %s\n", message)
	if err := c.record("agent", message); err != nil {
		slog.Warn("record agent message", "error", err)
	}
}

// ShowSystem prints a message without recording it. Used for status lines
// that should not become conversation context.
func (c *Communication) ShowSystem(message string) {
	fmt.Fprintf(c.out, "\nSystem: %s\n", message)
}

// ProcessInput is the entry point for one user turn. Simple conversational
// input is answered directly; anything project-related goes through the
// consciousness component.
func (c *Communication) ProcessInput(ctx context.Context, input string) error {
	if err := c.record("user", input); err != nil {
		return err
	}

	if isClearCommand(input) {
		c.clearAll()
		return nil
	}

	if c.mind != nil && !c.handlesDirectly(ctx, input) {
		return c.mind.ProcessInput(ctx, input)
	}
	c.replyDirectly(ctx, input)
	return nil
}

// handlesDirectly classifies input with a single yes/no completion. Errors
// default to direct handling so the conversation never stalls.
func (c *Communication) handlesDirectly(ctx context.Context, input string) bool {
	user := fmt.Sprintf("User input: %q\n\nShould Communication handle this directly (true) or send to Consciousness (false)?\n\nRespond with only: true or false", input)
	res, err := c.completer.Complete(ctx, routingSystem, user)
	if err != nil {
		slog.Warn("classify input", "error", err)
		return true
	}
	if c.onUsage != nil {
		c.onUsage(res)
	}
	return strings.EqualFold(strings.TrimSpace(res.Text), "true")
}

func (c *Communication) replyDirectly(ctx context.Context, input string) {
	conv, err := c.conversation()
	if err != nil {
		slog.Warn("read conversation", "error", err)
	}
	recent := formatRecent(conv.Messages, 5)

	user := fmt.Sprintf(`Recent conversation:
%s

Latest user input: %q

Respond appropriately as a helpful assistant that transforms requirements into user stories.
Keep responses friendly, concise, and focused on helping with requirements gathering.
If this is a greeting, welcome the user and explain your purpose.
If this is an acknowledgment, respond naturally and ask if there's anything else you can help with.
If this is a help request, explain what you can do.`, recent, input)

	res, err := c.completer.Complete(ctx, communicationSystem, user)
	if err != nil {
		slog.Warn("direct reply", "error", err)
		c.ShowAgent("I'm having trouble processing your request. Could you please try again?")
		return
	}
	if c.onUsage != nil {
		c.onUsage(res)
	}
	c.ShowAgent(strings.TrimSpace(res.Text))
}

func (c *Communication) clearAll() {
	c.ShowSystem("Clearing all memories...")
	if err := c.ClearConversation(); err != nil {
		slog.Warn("clear conversation", "error", err)
	}
	if c.mind != nil {
		c.mind.ClearContext()
		if c.mind.creator != nil {
			c.mind.creator.ClearAll()
		}
	}
	c.ShowSystem("All memories cleared! Starting fresh.")
	c.ShowAgent("Hello! I'm ready to help you transform your requirements into user stories. What would you like to build?")
}

// ClearConversation drops the conversation history.
func (c *Communication) ClearConversation() error {
	return c.store.Delete()
}

// Stats reports session counters for the summary shown at shutdown.
func (c *Communication) Stats() (ConversationStats, error) {
	conv, err := c.conversation()
	if err != nil {
		return ConversationStats{}, err
	}
	stats := ConversationStats{SessionID: conv.SessionID, TotalMessages: len(conv.Messages)}
	for _, msg := range conv.Messages {
		switch msg.Speaker {
		case "user":
			stats.UserMessages++
		case "agent":
			stats.AgentMessages++
		}
	}
	return stats, nil
}

func isClearCommand(input string) bool {
	lower := strings.ToLower(strings.TrimSpace(input))
	for _, keyword := range []string{"clear memories", "clear all", "fresh start", "start over"} {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	return lower == "clear" || lower == "reset"
}

func formatRecent(messages []Message, n int) string {
	if len(messages) == 0 {
		return "No previous conversation."
	}
	if len(messages) > n {
		messages = messages[len(messages)-n:]
	}
	var b strings.Builder
	for _, msg := range messages {
		label := "Agent"
		if msg.Speaker == "user" {
			label = "User"
		}
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(msg.Message)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
