package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mkaravel/synergo/internal/llm"
)

// Console is the interactive front end over the pipeline. A project must
// be selected before conversation turns run. A background goroutine owns
// the reader so the loop can notice an interrupt while blocked on input.
type Console struct {
	pipeline *Pipeline
	model    string
	current  string
	lines    chan string
	out      io.Writer
}

func NewConsole(pipeline *Pipeline, model string, in io.Reader, out io.Writer) *Console {
	if model == "" {
		model = llm.DefaultModel
	}
	c := &Console{pipeline: pipeline, model: model, lines: make(chan string), out: out}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
	}()
	return c
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

// readLine blocks for the next input line. ok is false on interrupt or
// end of input.
func (c *Console) readLine(ctx context.Context) (line string, ok bool) {
	select {
	case <-ctx.Done():
		return "", false
	case line, ok = <-c.lines:
		return line, ok
	}
}

// Loop reads input until /exit, interrupt, or end of input.
func (c *Console) Loop(ctx context.Context) error {
	c.printf("Conversational agent. Type /help for commands.\n")

	for {
		c.printf("\n> ")
		line, ok := c.readLine(ctx)
		if !ok {
			c.printf("\nGoodbye!\n")
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			if done := c.command(ctx, input); done {
				return nil
			}
			continue
		}

		if c.current == "" {
			c.printf("No project selected. Use /project <name> to select or create one.\n")
			continue
		}
		state, err := c.pipeline.Run(ctx, c.current, input)
		if err != nil {
			c.printf("Pipeline error: %v\n", err)
			continue
		}
		c.printf("\n%s\n", state.Output.Text)
		c.showContextUsage(state)
	}
}

// command dispatches one slash command. It returns true on /exit.
func (c *Console) command(ctx context.Context, input string) bool {
	parts := strings.Fields(input)
	cmd, args := parts[0], parts[1:]

	switch cmd {
	case "/help":
		c.showHelp()
	case "/projects":
		c.listProjects()
	case "/project":
		if len(args) != 1 {
			c.printf("Usage: /project <name>\n")
			return false
		}
		c.selectOrCreate(args[0])
	case "/project-new":
		if len(args) != 1 {
			c.printf("Usage: /project-new <name>\n")
			return false
		}
		c.createProject(args[0])
	case "/project-current":
		if c.current == "" {
			c.printf("No project selected\n")
		} else {
			c.showProjectInfo(c.current)
		}
	case "/view":
		c.viewState()
	case "/reset":
		c.resetProject()
	case "/tokens":
		c.showTokens()
	case "/compact":
		c.compact(ctx)
	case "/exit":
		c.printf("Goodbye!\n")
		return true
	default:
		c.printf("Unknown command: %s\nType /help for available commands\n", cmd)
	}
	return false
}

func (c *Console) showHelp() {
	c.printf(`
Available commands:
  /projects           - List all conversation projects
  /project <name>     - Select or create a project
  /project-new <name> - Create a new project
  /project-current    - Show current project
  /view               - View conversation state
  /reset              - Reset current project conversation
  /tokens             - Show token usage statistics
  /compact            - Analyze and compact conversation
  /help               - Show this help message
  /exit               - Exit the program

Default: type any message to run the full pipeline.
A project must be selected before starting conversations.
`)
}

func (c *Console) listProjects() {
	names, err := c.pipeline.Projects.List()
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	if len(names) == 0 {
		c.printf("No projects found. Use /project-new <name> to create one.\n")
		return
	}
	c.printf("Available projects:\n")
	for _, name := range names {
		marker := " "
		if name == c.current {
			marker = "*"
		}
		if info, err := c.pipeline.Projects.Info(name); err == nil && info != nil {
			c.printf("%s %s (%d messages)\n", marker, name, info.Messages)
		} else {
			c.printf("%s %s\n", marker, name)
		}
	}
}

func (c *Console) selectOrCreate(name string) {
	if !ValidProjectName(name) {
		c.printf("Invalid project name. Use only alphanumeric characters, -, & and _\n")
		return
	}
	if !c.pipeline.Projects.Exists(name) {
		c.createProject(name)
		return
	}
	c.current = name
	c.printf("Selected project: %s\n", name)
	c.showProjectInfo(name)
}

func (c *Console) createProject(name string) {
	if err := c.pipeline.Projects.Create(name); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.current = name
	c.printf("Created and selected new project: %s\n", name)
}

func (c *Console) showProjectInfo(name string) {
	info, err := c.pipeline.Projects.Info(name)
	if err != nil || info == nil {
		return
	}
	c.printf("  Messages: %d\n", info.Messages)
	if !info.LastActivity.IsZero() {
		c.printf("  Last activity: %s\n", info.LastActivity.Format("2006-01-02 15:04:05"))
	}
}

func (c *Console) viewState() {
	if c.current == "" {
		c.printf("No project selected\n")
		return
	}
	state, err := c.pipeline.Projects.Load(c.current)
	if err != nil || state == nil {
		c.printf("No project state available\n")
		return
	}
	c.printf("Current step: %s (position %d/5)\n", state.CurrentStep, state.Position)
	c.printf("User input: %s\n", state.UserInput)
	if state.Intent.Primary != "" {
		c.printf("Intent: %s (confidence: %.2f), entities: %d\n",
			state.Intent.Primary, state.Intent.Confidence, len(state.Intent.Entities))
	}
	if state.Response.Text != "" {
		c.printf("Response length: %d characters\n", len(state.Response.Text))
	}
	c.printf("Conversation history: %d messages\n", len(state.Context.History))
}

func (c *Console) resetProject() {
	if c.current == "" {
		c.printf("No project selected\n")
		return
	}
	if err := c.pipeline.Projects.Reset(c.current); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Project %q conversation reset\n", c.current)
}

func (c *Console) showTokens() {
	if c.pipeline.Ledger == nil {
		c.printf("Token accounting is disabled\n")
		return
	}
	if c.current == "" {
		c.printf("No project selected\n")
		return
	}

	totals, err := c.pipeline.Ledger.ScopeTotals(c.current)
	if err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Token usage for %s:\n", c.current)
	c.printf("  Calls: %d\n", totals.Calls)
	c.printf("  Tokens: %d in + %d out = %d total\n",
		totals.InputTokens, totals.OutputTokens, totals.InputTokens+totals.OutputTokens)
	c.printf("  Cost: $%.6f\n", totals.Cost)

	if state, err := c.pipeline.Projects.Load(c.current); err == nil && state != nil {
		tokens := ContextTokens(state.Context.History)
		c.printf("Context usage: %.1f%% of available window (~%d tokens)\n",
			llm.ContextUsagePercent(c.model, tokens), tokens)
	}

	if byModel, err := c.pipeline.Ledger.TotalsByModel(); err == nil && len(byModel) > 0 {
		c.printf("Overall usage by model:\n")
		for _, t := range byModel {
			c.printf("  %s: %d calls, $%.6f\n", t.Model, t.Calls, t.Cost)
		}
	}
}

func (c *Console) compact(ctx context.Context) {
	if c.current == "" {
		c.printf("No project selected\n")
		return
	}
	state, err := c.pipeline.Projects.Load(c.current)
	if err != nil || state == nil {
		c.printf("No conversation state available\n")
		return
	}

	plan := PlanCompaction(c.model, state.Context.History)
	c.printf("Messages: %d, estimated tokens: %d, context usage: %.1f%%\n",
		plan.Messages, plan.Tokens, plan.UsagePercent)
	if !plan.Needed {
		c.printf("Compaction not needed yet\n")
		return
	}

	c.printf("Will keep %d most recent messages and remove %d older ones.\n", plan.Keep, plan.Remove)
	c.printf("Estimated usage after compaction: %.1f%%\n", plan.PercentAfter)
	c.printf("Proceed with compaction? (y/N): ")
	answer, ok := c.readLine(ctx)
	if !ok || strings.ToLower(strings.TrimSpace(answer)) != "y" {
		c.printf("Compaction cancelled\n")
		return
	}
	if err := c.pipeline.Compact(c.current, plan); err != nil {
		c.printf("Error: %v\n", err)
		return
	}
	c.printf("Conversation compacted, kept %d messages\n", plan.Keep)
}

func (c *Console) showContextUsage(state *State) {
	tokens := ContextTokens(state.Context.History)
	percent := llm.ContextUsagePercent(c.model, tokens)
	c.printf("[%s, %.2f] context %.1f%%\n", state.Intent.Primary, state.Intent.Confidence, percent)
	if llm.ShouldCompact(c.model, tokens) {
		c.printf("Consider running /compact to reduce context usage\n")
	}
}
