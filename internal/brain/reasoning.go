package brain

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/mkaravel/synergo/internal/llm"
)

// Outcome classifies what the reasoner decided about the latest input.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeNoUpdate
	OutcomeNewProject
	OutcomeConversationRequest
)

// ReasoningResult carries the decision plus the (possibly unchanged)
// requirements and a user-facing explanation.
type ReasoningResult struct {
	Outcome      Outcome
	Requirements *Requirements
	Explanation  string
}

// Reasoner turns conversation state into requirement updates via the
// completion service.
type Reasoner struct {
	completer llm.Completer
	onUsage   func(llm.Result)
}

func NewReasoner(c llm.Completer, onUsage func(llm.Result)) *Reasoner {
	return &Reasoner{completer: c, onUsage: onUsage}
}

func (r *Reasoner) record(res llm.Result) {
	if r.onUsage != nil {
		r.onUsage(res)
	}
}

// UpdateRequirements decides whether the latest input changes the project
// requirements. The model answers with a sentinel word or an explanation
// plus updated requirements JSON.
func (r *Reasoner) UpdateRequirements(ctx context.Context, session *Session, wisdom string, current *Requirements) (*ReasoningResult, error) {
	if current == nil {
		current = &Requirements{}
	}

	system := fmt.Sprintf(`You are a reasoning organ that updates project requirements based on conversation.

INITIAL WISDOM:
%s

Your task: Analyze the conversation and determine if the latest user input contains NEW requirements information.

IMPORTANT:
1. If the user says things like greetings, random words, or unrelated comments, respond with "NO_UPDATE"
2. If the user input contains requirements for a COMPLETELY DIFFERENT PROJECT than what's currently in requirements, respond with "NEW_PROJECT"
3. If the user input contains updates/additions to the EXISTING project requirements, update them normally`, wisdom)

	currentJSON, _ := json.Marshal(current)
	sessionJSON, _ := json.Marshal(session.ConversationFlow)

	var b strings.Builder
	fmt.Fprintf(&b, "CURRENT REQUIREMENTS:\n%s\n\nCONVERSATION HISTORY:\n%s\n\n", currentJSON, sessionJSON)
	b.WriteString(`Based on this conversation, determine if the latest user input contains new requirements information.

IMPORTANT RULES:
1. If user says greetings/small talk → Always NO_UPDATE
2. If user explicitly asks for more questions → CONVERSATION_REQUEST
3. If user provides SPECIFIC DETAILS about the current project → Normal update
4. If current requirements are EMPTY and user provides project requirements → Normal update
5. If current requirements have a CLEAR PROJECT and user describes a COMPLETELY DIFFERENT project type → NEW_PROJECT
6. If user adds details to the SAME project type → Normal update

If no new requirements information, respond with exactly: NO_UPDATE
If a completely different project, respond with exactly: NEW_PROJECT
If the user asks for more questions about the current project, respond with exactly: CONVERSATION_REQUEST

Otherwise respond with:

EXPLANATION:
[Paragraph explaining what changed in the requirements and why]

UPDATED_REQUIREMENTS:
{
  "raw_requirements": "...",
  "functional_analysis": {
    "main_problem": "...",
    "identified_users": [],
    "main_use_cases": [],
    "assumptions": [],
    "risks": [],
    "pending_questions": []
  },
  "identified_epics": []
}
`)

	res, err := r.completer.Complete(ctx, system, b.String())
	if err != nil {
		return nil, fmt.Errorf("update requirements: %w", err)
	}
	r.record(res)

	reply := strings.TrimSpace(res.Text)
	switch {
	case strings.Contains(reply, "NO_UPDATE"):
		return &ReasoningResult{
			Outcome:      OutcomeNoUpdate,
			Requirements: current,
			Explanation:  "No requirements update needed - user input was not related to project requirements.",
		}, nil
	case strings.Contains(reply, "NEW_PROJECT"):
		return &ReasoningResult{Outcome: OutcomeNewProject, Requirements: current}, nil
	case strings.Contains(reply, "CONVERSATION_REQUEST"):
		return &ReasoningResult{Outcome: OutcomeConversationRequest, Requirements: current}, nil
	}

	explanation, updated, err := parseRequirementsReply(reply)
	if err != nil {
		return nil, err
	}
	return &ReasoningResult{
		Outcome:      OutcomeUpdated,
		Requirements: updated,
		Explanation:  explanation,
	}, nil
}

// parseRequirementsReply splits the EXPLANATION and UPDATED_REQUIREMENTS
// sections and decodes the requirements JSON.
func parseRequirementsReply(reply string) (string, *Requirements, error) {
	expIdx := strings.Index(reply, "EXPLANATION:")
	reqIdx := strings.Index(reply, "UPDATED_REQUIREMENTS:")
	if expIdx == -1 || reqIdx == -1 || reqIdx < expIdx {
		return "", nil, fmt.Errorf("malformed reasoning reply: missing sections")
	}

	explanation := strings.TrimSpace(reply[expIdx+len("EXPLANATION:") : reqIdx])

	jsonStart := strings.Index(reply[reqIdx:], "{")
	jsonEnd := strings.LastIndex(reply, "}")
	if jsonStart == -1 || jsonEnd == -1 || reqIdx+jsonStart > jsonEnd {
		return "", nil, fmt.Errorf("malformed reasoning reply: no requirements JSON")
	}

	var updated Requirements
	if err := json.Unmarshal([]byte(reply[reqIdx+jsonStart:jsonEnd+1]), &updated); err != nil {
		return "", nil, fmt.Errorf("decode updated requirements: %w", err)
	}
	return explanation, &updated, nil
}

// GenerateQuestions asks for fresh clarifying questions about the current
// project. Failures degrade to a single generic question.
func (r *Reasoner) GenerateQuestions(ctx context.Context, current *Requirements, session *Session, wisdom string) []string {
	system := fmt.Sprintf(`You are a reasoning organ that generates insightful questions about a project.

INITIAL WISDOM:
%s

Generate 3-5 NEW questions that would help better understand the project requirements.
Avoid repeating questions that are already in pending_questions.
Focus on areas that need more clarity for a Product Owner.`, wisdom)

	currentJSON, _ := json.Marshal(current)
	sessionJSON, _ := json.Marshal(session.ConversationFlow)
	user := fmt.Sprintf(`PROJECT REQUIREMENTS:
%s

CONVERSATION HISTORY:
%s

Generate 3-5 new insightful questions about this project.
Return only the questions, one per line, numbered.`, currentJSON, sessionJSON)

	res, err := r.completer.Complete(ctx, system, user)
	if err != nil {
		return []string{"What aspects of this project would you like to discuss further?"}
	}
	r.record(res)

	return parseNumberedList(res.Text)
}

func parseNumberedList(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		first := rune(line[0])
		if !unicode.IsDigit(first) && first != '-' && first != '*' {
			continue
		}
		q := line
		if i := strings.Index(line, "."); i != -1 && unicode.IsDigit(first) {
			q = line[i+1:]
		} else if first == '-' || first == '*' {
			q = line[1:]
		}
		if q = strings.TrimSpace(q); q != "" {
			questions = append(questions, q)
		}
	}
	return questions
}
