package agents

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/llm"
)

const productOwnerSystem = `You are a Product Owner AI agent. Your job is to:
1. Ask intelligent clarifying questions about the task
2. Analyze business context and user needs
3. Generate executable specifications (not user stories)
4. Question assumptions and identify missing information

You work with other AI agents, so be specific and technical.
Don't write user stories - write specifications that developers can implement.`

// ProductOwner interrogates the client task and publishes specifications for
// the downstream agents.
type ProductOwner struct {
	part *coord.Participant
	opts Options
}

func NewProductOwner(opts Options) *ProductOwner {
	return &ProductOwner{
		part: coord.NewParticipant(opts.Store, ProductOwnerName),
		opts: opts,
	}
}

func (a *ProductOwner) Name() string {
	return ProductOwnerName
}

func (a *ProductOwner) Run(ctx context.Context) error {
	doc, err := a.part.Read()
	if err != nil {
		return err
	}
	task := doc.Task

	if err := a.part.UpdateStatus(coord.StatusInitializing, ""); err != nil {
		return err
	}

	slog.Info("interrogating client", "agent", a.Name(), "task", task)
	analysis, apiUsed := a.analyze(ctx, task)

	doc, err = a.part.Read()
	if err != nil {
		return err
	}
	approach := "AI-driven client interrogation"
	if !apiUsed {
		approach = "Fallback analysis"
	}
	doc.ProductOwnerAnalysis = analysis
	doc.ProductOwnerReasoning = &coord.Reasoning{
		Approach:  approach,
		AgentType: "Product Owner AI Agent",
		Focus: []string{
			"Asked clarifying questions to understand requirements",
			"Identified assumptions and business context",
			"Generated executable specifications for development",
			"Prepared foundation for technical architecture discussion",
		},
	}
	if err := a.part.Write(doc); err != nil {
		return err
	}

	err = a.part.Send(StaffEngineerName, "client_interrogation", fmt.Sprintf(
		"I've interrogated the client about '%s'. Key questions that need technical input:\n%s\nPlease review my specifications and add technical depth.",
		task, bulletList(analysis.Questions)))
	if err != nil {
		return err
	}

	if err := a.part.UpdateStatus(coord.StatusCompleted, "Client interrogation and analysis completed"); err != nil {
		return err
	}

	slog.Info("analysis completed", "agent", a.Name(),
		"questions", len(analysis.Questions),
		"specifications", len(analysis.Specifications))
	logPeerStatuses(a.part, a.Name())
	return nil
}

// analyze runs the completion and reports whether the model produced the
// result. Any failure, call or parse, degrades to canned output.
func (a *ProductOwner) analyze(ctx context.Context, task string) (*coord.ProductOwnerAnalysis, bool) {
	if err := a.part.UpdateStatus(coord.StatusWorking, "Interrogating client and analyzing requirements"); err != nil {
		slog.Warn("status update failed", "agent", a.Name(), "error", err)
	}

	feedback, err := inboxContext(a.part, "Feedback from other agents:")
	if err != nil {
		slog.Warn("inbox read failed", "agent", a.Name(), "error", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Client Task: %s\nStack: %s\n\n", task, a.opts.Stack)
	if feedback != "" {
		b.WriteString(feedback)
		b.WriteString("\n")
	}
	b.WriteString(`As a Product Owner AI agent, you need to:

1. QUESTIONS: List 5-7 intelligent questions you would ask the client to clarify this task
2. ASSUMPTIONS: What assumptions are you making about this feature?
3. SPECIFICATIONS: Generate 4-6 executable specifications (not user stories)
4. BUSINESS_CONTEXT: What business value does this provide?

Format your response as JSON:
{
  "questions": ["Question 1?", "Question 2?"],
  "assumptions": ["Assumption 1", "Assumption 2"],
  "specifications": ["Spec 1", "Spec 2"],
  "business_context": "Business value explanation"
}
`)

	res, err := a.opts.Completer.Complete(ctx, productOwnerSystem, b.String())
	if err != nil {
		slog.Warn("completion failed, using fallback analysis", "agent", a.Name(), "error", err)
		return fallbackProductOwnerAnalysis(task), false
	}
	a.opts.recordUsage(res)

	analysis := fallbackProductOwnerAnalysis(task)
	llm.DecodeInto(res.Text, analysis)
	return analysis, true
}

func fallbackProductOwnerAnalysis(task string) *coord.ProductOwnerAnalysis {
	return &coord.ProductOwnerAnalysis{
		Questions: []string{
			"What is the expected number of users?",
			"What are the main features needed?",
		},
		Assumptions: []string{
			"Standard web application",
			"Basic functionality required",
		},
		Specifications: []string{
			fmt.Sprintf("Implement %s with standard features", task),
		},
		BusinessContext: fmt.Sprintf("This will improve workflow for %s", task),
	}
}
