package brain

import (
	"context"
	"strings"
	"testing"

	"github.com/mkaravel/synergo/internal/llm"
)

type fakeCompleter struct {
	replies []string
	calls   int
}

func (f *fakeCompleter) Complete(context.Context, string, string) (llm.Result, error) {
	reply := f.replies[f.calls%len(f.replies)]
	f.calls++
	return llm.Result{Text: reply, Model: "test-model"}, nil
}

type scriptedPrompter struct {
	said    []string
	answers []string
	asked   []string
}

func (p *scriptedPrompter) Say(message string) {
	p.said = append(p.said, message)
}

func (p *scriptedPrompter) Ask(question string) string {
	p.asked = append(p.asked, question)
	if len(p.answers) == 0 {
		return ""
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a
}

func newTestBrain(t *testing.T, c llm.Completer) (*Brain, *Memory, *scriptedPrompter) {
	t.Helper()
	mem, err := OpenMemory(t.TempDir())
	if err != nil {
		t.Fatalf("open memory: %v", err)
	}
	io := &scriptedPrompter{}
	return New(mem, NewReasoner(c, nil), io), mem, io
}

const updateReply = `EXPLANATION:
Captured the task management project and its user count.

UPDATED_REQUIREMENTS:
{
  "raw_requirements": "task management app for 15 users",
  "functional_analysis": {
    "main_problem": "teams lose track of work",
    "identified_users": ["team members"],
    "main_use_cases": ["create task"],
    "assumptions": [],
    "risks": [],
    "pending_questions": ["What integrations are needed?"]
  },
  "identified_epics": ["task CRUD"]
}`

func TestProcessUpdatesRequirements(t *testing.T) {
	b, mem, io := newTestBrain(t, &fakeCompleter{replies: []string{updateReply}})

	if err := b.Process(context.Background(), "I need a task management app for 15 users"); err != nil {
		t.Fatalf("process: %v", err)
	}

	reqs, err := mem.Requirements()
	if err != nil {
		t.Fatalf("requirements: %v", err)
	}
	if reqs.RawRequirements != "task management app for 15 users" {
		t.Errorf("unexpected raw requirements %q", reqs.RawRequirements)
	}
	if len(reqs.FunctionalAnalysis.PendingQuestions) != 1 {
		t.Errorf("expected 1 pending question, got %d", len(reqs.FunctionalAnalysis.PendingQuestions))
	}
	if reqs.LastUpdated.IsZero() {
		t.Error("expected last_updated to be stamped")
	}

	// pending questions first, then the explanation
	if len(io.said) != 2 {
		t.Fatalf("expected 2 messages, got %d: %v", len(io.said), io.said)
	}
	if !strings.Contains(io.said[0], "What integrations are needed?") {
		t.Errorf("expected pending question, got %q", io.said[0])
	}
	if !strings.Contains(io.said[1], "Captured the task management project") {
		t.Errorf("expected explanation, got %q", io.said[1])
	}

	session, _ := mem.Session()
	if session.TotalMessages < 2 {
		t.Errorf("expected user and agent turns recorded, got %d", session.TotalMessages)
	}
}

func TestProcessNoUpdate(t *testing.T) {
	b, mem, io := newTestBrain(t, &fakeCompleter{replies: []string{"NO_UPDATE"}})

	if err := b.Process(context.Background(), "hello there"); err != nil {
		t.Fatalf("process: %v", err)
	}

	reqs, _ := mem.Requirements()
	if !reqs.Empty() {
		t.Errorf("expected empty requirements, got %+v", reqs)
	}
	if len(io.said) != 1 || !strings.Contains(io.said[0], "No requirements update needed") {
		t.Errorf("unexpected messages %v", io.said)
	}
}

func TestProcessNewProjectStartsFresh(t *testing.T) {
	b, mem, io := newTestBrain(t, &fakeCompleter{replies: []string{updateReply, "NEW_PROJECT"}})
	io.answers = []string{"new"}

	if err := b.Process(context.Background(), "task management app"); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := b.Process(context.Background(), "actually I want a fitness tracker"); err != nil {
		t.Fatalf("second process: %v", err)
	}

	if len(io.asked) != 1 {
		t.Fatalf("expected one project-switch question, got %d", len(io.asked))
	}
	if !strings.Contains(io.asked[0], "task management app for 15 users") {
		t.Errorf("expected current project in question, got %q", io.asked[0])
	}

	reqs, _ := mem.Requirements()
	if !reqs.Empty() {
		t.Errorf("expected requirements reset, got %+v", reqs)
	}
}

func TestProcessNewProjectContinues(t *testing.T) {
	b, mem, io := newTestBrain(t, &fakeCompleter{replies: []string{updateReply, "NEW_PROJECT"}})
	io.answers = []string{"continue"}

	if err := b.Process(context.Background(), "task management app"); err != nil {
		t.Fatalf("first process: %v", err)
	}
	if err := b.Process(context.Background(), "a fitness tracker maybe"); err != nil {
		t.Fatalf("second process: %v", err)
	}

	reqs, _ := mem.Requirements()
	if reqs.Empty() {
		t.Error("expected requirements to survive a continue answer")
	}
}

func TestProcessConversationRequest(t *testing.T) {
	questions := "1. Who approves tasks?\n2. Is there a mobile client?"
	b, _, io := newTestBrain(t, &fakeCompleter{replies: []string{"CONVERSATION_REQUEST", questions}})

	if err := b.Process(context.Background(), "ask me other questions"); err != nil {
		t.Fatalf("process: %v", err)
	}

	if len(io.said) != 1 {
		t.Fatalf("expected one message, got %v", io.said)
	}
	if !strings.Contains(io.said[0], "Who approves tasks?") || !strings.Contains(io.said[0], "Is there a mobile client?") {
		t.Errorf("expected generated questions, got %q", io.said[0])
	}
}

func TestParseNumberedList(t *testing.T) {
	got := parseNumberedList("Here are questions:\n1. First?\n2. Second?\n- Third?\nnot a question line")
	want := []string{"First?", "Second?", "Third?"}
	if len(got) != len(want) {
		t.Fatalf("expected %d questions, got %v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("question %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

func TestParseRequirementsReplyMalformed(t *testing.T) {
	if _, _, err := parseRequirementsReply("no sections here"); err == nil {
		t.Error("expected error for reply without sections")
	}
}
