package components

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/mkaravel/synergo/internal/llm"
	"github.com/mkaravel/synergo/internal/memory"
)

// System wires the three components together. Each component keeps its own
// memory file under dir; the relationships are set once here.
type System struct {
	Comm    *Communication
	Mind    *Consciousness
	Creator *Creator

	out io.Writer
}

// NewSystem builds and wires the component set. onUsage may be nil.
func NewSystem(dir string, completer llm.Completer, out io.Writer, onUsage func(llm.Result)) (*System, error) {
	convStore, err := memory.New(filepath.Join(dir, "conversation_memory.json"))
	if err != nil {
		return nil, fmt.Errorf("open conversation memory: %w", err)
	}
	contextStore, err := memory.New(filepath.Join(dir, "context_memory.json"))
	if err != nil {
		return nil, fmt.Errorf("open context memory: %w", err)
	}
	storyStore, err := memory.New(filepath.Join(dir, "user_stories_memory.json"))
	if err != nil {
		return nil, fmt.Errorf("open story memory: %w", err)
	}

	comm := NewCommunication(convStore, completer, out, onUsage)
	mind := NewConsciousness(contextStore, completer, onUsage)
	creator := NewCreator(storyStore, completer, onUsage)

	comm.SetConsciousness(mind)
	mind.SetCommunication(comm)
	mind.SetCreator(creator)
	creator.SetCommunication(comm)
	creator.SetConsciousness(mind)

	return &System{Comm: comm, Mind: mind, Creator: creator, out: out}, nil
}

// Loop runs the interactive session until exit, interrupt, or end of input.
func (s *System) Loop(ctx context.Context, in io.Reader) error {
	s.Comm.ShowSystem("Requirements to User Stories Agent")
	s.Comm.ShowSystem("I'll help you transform your requirements into well-structured user stories.")
	s.Comm.ShowSystem("Type 'exit', 'quit' or 'bye' to end the conversation.")

	scanner := bufio.NewScanner(in)
	lines := make(chan string)
	go func() {
		defer close(lines)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		fmt.Fprint(s.out, "\nYou: ")

		var input string
		select {
		case <-ctx.Done():
			s.Comm.ShowSystem("Thank you for using the Requirements to User Stories Agent. Goodbye!")
			s.Summary()
			return nil
		case line, ok := <-lines:
			if !ok {
				s.Summary()
				return scanner.Err()
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "exit", "quit", "bye", "stop":
			s.Comm.ShowSystem("Thank you for using the Requirements to User Stories Agent. Goodbye!")
			s.Summary()
			return nil
		}
		if err := s.Comm.ProcessInput(ctx, input); err != nil {
			s.Comm.ShowSystem("Error: " + err.Error())
		}
	}
}

// Demo processes a fixed set of sample requirements and lists the stories
// that came out.
func (s *System) Demo(ctx context.Context) error {
	if err := s.Mind.SetProjectInfo("E-commerce Platform", "Online shopping platform with user management and product catalog"); err != nil {
		return err
	}

	demo := []string{
		"Users need to be able to register and login to the platform",
		"The system should allow users to browse and search for products",
		"Users want to add products to a shopping cart and checkout",
		"Administrators need to manage product inventory and orders",
	}

	s.Comm.ShowSystem("Running demo mode...")
	for i, requirement := range demo {
		fmt.Fprintf(s.out, "\n%d. Processing: %q\n", i+1, requirement)
		if err := s.Comm.ProcessInput(ctx, requirement); err != nil {
			return fmt.Errorf("process demo requirement: %w", err)
		}
	}

	s.Comm.ShowSystem("Demo completed! User stories have been generated.")
	s.Creator.ListStories("")
	return nil
}

// ClearAll wipes every component memory.
func (s *System) ClearAll() {
	if err := s.Comm.ClearConversation(); err == nil {
		s.Comm.ShowSystem("Conversation memory cleared")
	}
	s.Mind.ClearContext()
	s.Creator.ClearAll()
	s.Comm.ShowSystem("All memories cleared")
}

// Summary prints session statistics across the three components.
func (s *System) Summary() {
	fmt.Fprintln(s.out, "\nSession Summary:")

	if stats, err := s.Comm.Stats(); err == nil {
		fmt.Fprintf(s.out, "Session ID: %s\n", stats.SessionID)
		fmt.Fprintf(s.out, "Total Messages: %d (user %d, agent %d)\n", stats.TotalMessages, stats.UserMessages, stats.AgentMessages)
	}
	if reqs, err := s.Mind.ActiveRequirements(); err == nil {
		fmt.Fprintf(s.out, "Active Requirements: %d\n", len(reqs))
	}
	if stats, err := s.Creator.Stats(); err == nil {
		fmt.Fprintf(s.out, "User Stories Created: %d\n", stats.Total)
		for status, count := range stats.ByStatus {
			fmt.Fprintf(s.out, "  %s: %d\n", status, count)
		}
	}
}
