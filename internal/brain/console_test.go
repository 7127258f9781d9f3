package brain

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConsoleLoopExitCommand(t *testing.T) {
	b, _, _ := newTestBrain(t, &fakeCompleter{replies: []string{updateReply}})
	var out bytes.Buffer
	c := NewConsole(strings.NewReader("exit\n"), &out)

	if err := c.Loop(context.Background(), b); err != nil {
		t.Fatalf("loop: %v", err)
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("expected goodbye message, got %q", out.String())
	}
}

func TestConsoleLoopGoodbyeOnInterrupt(t *testing.T) {
	b, _, _ := newTestBrain(t, &fakeCompleter{replies: []string{updateReply}})
	in, _ := io.Pipe()
	var out bytes.Buffer
	c := NewConsole(in, &out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Loop(ctx, b) }()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("loop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not stop on cancelled context")
	}
	if !strings.Contains(out.String(), "Goodbye!") {
		t.Errorf("expected goodbye message, got %q", out.String())
	}
}
