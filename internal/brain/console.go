package brain

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Console is the terminal Prompter plus the interactive loop. A background
// goroutine owns the reader so the loop can notice an interrupt while
// blocked waiting for input.
type Console struct {
	lines chan string
	err   error
	out   io.Writer
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	c := &Console{lines: make(chan string), out: out}
	go func() {
		defer close(c.lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			c.lines <- sc.Text()
		}
		c.err = sc.Err()
	}()
	return c
}

func (c *Console) Say(message string) {
	fmt.Fprintf(c.out, "\nAgent: %s\n", message)
}

func (c *Console) Ask(question string) string {
	fmt.Fprintf(c.out, "\nAgent: %s\nYour answer: ", question)
	line, ok := <-c.lines
	if !ok {
		return ""
	}
	return strings.TrimSpace(line)
}

// Loop runs the interactive conversation until exit, interrupt, or EOF.
func (c *Console) Loop(ctx context.Context, b *Brain) error {
	fmt.Fprintln(c.out, "Type 'exit' to quit.")

	for {
		fmt.Fprint(c.out, "\n> ")

		var input string
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\nGoodbye!")
			return nil
		case line, ok := <-c.lines:
			if !ok {
				fmt.Fprintln(c.out, "\nGoodbye!")
				return c.err
			}
			input = strings.TrimSpace(line)
		}
		if input == "" {
			continue
		}
		switch strings.ToLower(input) {
		case "exit", "quit", "bye":
			fmt.Fprintln(c.out, "Goodbye!")
			return nil
		}

		if err := b.Process(ctx, input); err != nil {
			fmt.Fprintf(c.out, "Error: %v\n", err)
		}
	}
}
