package components

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mkaravel/synergo/internal/llm"
	"github.com/mkaravel/synergo/internal/memory"
)

const creatorSystem = `You are a User Story Creator component in an AI agent system that transforms requirements into user stories.

Your responsibilities:
1. Transform user requirements into well-structured user stories
2. Create comprehensive acceptance criteria for each user story
3. Follow standard user story format: "As a [user type], I want [functionality] so that [benefit]"
4. Generate appropriate titles and prioritize stories
5. Ensure stories are testable and actionable

Best practices for user stories:
- Keep stories focused on user value and outcomes
- Make acceptance criteria specific and testable
- Use clear, non-technical language when possible
- Include edge cases and error conditions in criteria
- Ensure stories are appropriately sized (not too big or too small)

Priority levels: critical, high, medium, low
User types: Consider different user roles (end user, admin, system, etc.)`

// UserStory is one story in the collection.
type UserStory struct {
	ID                 string    `json:"story_id"`
	Title              string    `json:"title"`
	Description        string    `json:"description"`
	UserType           string    `json:"user_type"`
	Priority           string    `json:"priority"`
	AcceptanceCriteria []string  `json:"acceptance_criteria"`
	Status             string    `json:"status"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// StoryBook is the creator component's memory file.
type StoryBook struct {
	Stories []UserStory `json:"user_stories"`
}

// StoryStats counts stories by status for the session summary.
type StoryStats struct {
	Total    int            `json:"total_stories"`
	ByStatus map[string]int `json:"stories_by_status"`
}

// storyDraft is the structured reply expected from the model.
type storyDraft struct {
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	UserType           string   `json:"user_type"`
	Priority           string   `json:"priority"`
	AcceptanceCriteria []string `json:"acceptance_criteria"`
}

// Creator turns requirements into user stories and maintains the
// collection.
type Creator struct {
	store     *memory.Store
	completer llm.Completer
	onUsage   func(llm.Result)

	comm *Communication
	mind *Consciousness
}

func NewCreator(store *memory.Store, completer llm.Completer, onUsage func(llm.Result)) *Creator {
	return &Creator{store: store, completer: completer, onUsage: onUsage}
}

func (cr *Creator) SetCommunication(comm *Communication) { cr.comm = comm }
func (cr *Creator) SetConsciousness(mind *Consciousness) { cr.mind = mind }

func (cr *Creator) book() (StoryBook, error) {
	var book StoryBook
	err := cr.store.Read(&book)
	return book, err
}

// ProcessRequirements creates one story per requirement and reports the
// result to the user. Requirements whose generation fails are skipped.
func (cr *Creator) ProcessRequirements(ctx context.Context, requirements []string, extra string) []string {
	var created []string
	for _, requirement := range requirements {
		id, err := cr.createStory(ctx, requirement, extra)
		if err != nil {
			slog.Warn("create user story", "requirement", requirement, "error", err)
			continue
		}
		created = append(created, id)
	}
	cr.reportCreated(created)
	return created
}

func (cr *Creator) createStory(ctx context.Context, requirement, extra string) (string, error) {
	projectContext := "No specific project context available"
	if cr.mind != nil {
		if summary, err := cr.mind.ContextSummary(); err == nil && summary != "" {
			projectContext = summary
		}
	}
	if extra == "" {
		extra = "No additional context provided"
	}

	user := fmt.Sprintf(`Project Context:
%s

Additional Context:
%s

Requirement to Transform:
%q

Create a well-structured user story from this requirement. Consider:
1. Who is the user or beneficiary?
2. What functionality do they need?
3. What value or benefit does this provide?
4. What are the specific, testable acceptance criteria?

Respond in this JSON format:
{
    "title": "Short descriptive title for the user story",
    "description": "As a [user type], I want [functionality] so that [benefit]",
    "user_type": "The type of user (user, admin, system, etc.)",
    "priority": "critical|high|medium|low",
    "acceptance_criteria": [
        "Specific, testable criterion 1",
        "Specific, testable criterion 2"
    ]
}`, projectContext, extra, requirement)

	res, err := cr.completer.Complete(ctx, creatorSystem, user)
	if err != nil {
		return "", fmt.Errorf("generate story: %w", err)
	}
	if cr.onUsage != nil {
		cr.onUsage(res)
	}

	var draft storyDraft
	if !llm.DecodeInto(res.Text, &draft) {
		return "", fmt.Errorf("unparseable story reply")
	}
	if draft.Title == "" || draft.Description == "" || len(draft.AcceptanceCriteria) == 0 {
		return "", fmt.Errorf("generated story missing required fields")
	}
	if draft.UserType == "" {
		draft.UserType = "user"
	}
	if draft.Priority == "" {
		draft.Priority = "medium"
	}

	book, err := cr.book()
	if err != nil {
		return "", err
	}
	now := time.Now()
	story := UserStory{
		ID:                 fmt.Sprintf("US%03d", len(book.Stories)+1),
		Title:              draft.Title,
		Description:        draft.Description,
		UserType:           draft.UserType,
		Priority:           draft.Priority,
		AcceptanceCriteria: draft.AcceptanceCriteria,
		Status:             "draft",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	book.Stories = append(book.Stories, story)
	if err := cr.store.Write(book); err != nil {
		return "", err
	}
	return story.ID, nil
}

func (cr *Creator) reportCreated(ids []string) {
	if cr.comm == nil || len(ids) == 0 {
		return
	}

	if len(ids) == 1 {
		story, _ := cr.Story(ids[0])
		if story == nil {
			return
		}
		var b strings.Builder
		fmt.Fprintf(&b, "I've created user story %s: %s\n\n%s\n\nAcceptance Criteria:\n", story.ID, story.Title, story.Description)
		for i, criterion := range story.AcceptanceCriteria {
			fmt.Fprintf(&b, "%d. %s\n", i+1, criterion)
		}
		cr.comm.ShowAgent(strings.TrimSpace(b.String()))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "I've created %d user stories:\n", len(ids))
	for _, id := range ids {
		if story, _ := cr.Story(id); story != nil {
			fmt.Fprintf(&b, "- %s: %s\n", story.ID, story.Title)
		}
	}
	cr.comm.ShowAgent(strings.TrimSpace(b.String()))
}

// Story returns a story by ID, or nil when it does not exist.
func (cr *Creator) Story(id string) (*UserStory, error) {
	book, err := cr.book()
	if err != nil {
		return nil, err
	}
	for i := range book.Stories {
		if book.Stories[i].ID == id {
			return &book.Stories[i], nil
		}
	}
	return nil, nil
}

// Stories returns all stories, optionally filtered by status.
func (cr *Creator) Stories(status string) ([]UserStory, error) {
	book, err := cr.book()
	if err != nil {
		return nil, err
	}
	if status == "" {
		return book.Stories, nil
	}
	var filtered []UserStory
	for _, story := range book.Stories {
		if story.Status == status {
			filtered = append(filtered, story)
		}
	}
	return filtered, nil
}

// UpdateStatus moves a story through its lifecycle (draft, ready,
// in_progress, completed).
func (cr *Creator) UpdateStatus(id, status string) (bool, error) {
	book, err := cr.book()
	if err != nil {
		return false, err
	}
	for i := range book.Stories {
		if book.Stories[i].ID == id {
			book.Stories[i].Status = status
			book.Stories[i].UpdatedAt = time.Now()
			return true, cr.store.Write(book)
		}
	}
	return false, nil
}

// ListStories displays the collection to the user.
func (cr *Creator) ListStories(status string) {
	if cr.comm == nil {
		return
	}
	stories, err := cr.Stories(status)
	if err != nil {
		slog.Warn("list stories", "error", err)
		return
	}
	if len(stories) == 0 {
		cr.comm.ShowAgent("No user stories found.")
		return
	}

	header := "All User Stories:"
	if status != "" {
		header = fmt.Sprintf("User Stories (%s status):", status)
	}
	var b strings.Builder
	b.WriteString(header + "\n")
	for _, story := range stories {
		fmt.Fprintf(&b, "- %s: %s [%s]\n", story.ID, story.Title, story.Status)
	}
	cr.comm.ShowAgent(strings.TrimSpace(b.String()))
}

// Stats summarizes the collection for the session summary.
func (cr *Creator) Stats() (StoryStats, error) {
	book, err := cr.book()
	if err != nil {
		return StoryStats{}, err
	}
	stats := StoryStats{Total: len(book.Stories), ByStatus: map[string]int{}}
	for _, story := range book.Stories {
		stats.ByStatus[story.Status]++
	}
	return stats, nil
}

// ClearAll drops the story collection.
func (cr *Creator) ClearAll() {
	if err := cr.store.Delete(); err != nil {
		slog.Warn("clear stories", "error", err)
	}
}
