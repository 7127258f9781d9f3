package coord

import (
	"fmt"
	"time"
)

// Participant binds a Store to one agent identity and exposes the
// coordination operations that agent is allowed to perform. Every mutation is
// a whole-document read-modify-write cycle.
type Participant struct {
	store *Store
	name  string
}

func NewParticipant(store *Store, name string) *Participant {
	return &Participant{store: store, name: name}
}

func (p *Participant) Name() string {
	return p.name
}

// Read returns the current document.
func (p *Participant) Read() (*Document, error) {
	return p.store.Read()
}

// Write replaces the document.
func (p *Participant) Write(doc *Document) error {
	return p.store.Write(doc)
}

// UpdateStatus sets this agent's status and last-update timestamp. An empty
// message leaves the previous status note in place.
func (p *Participant) UpdateStatus(status Status, message string) error {
	doc, err := p.store.Read()
	if err != nil {
		return err
	}

	rec, ok := doc.Agents[p.name]
	if !ok {
		return fmt.Errorf("unknown agent %q in document", p.name)
	}
	rec.Status = status
	if message != "" {
		rec.Message = message
	}
	rec.LastUpdate = time.Now().UTC()

	return p.store.Write(doc)
}

// Send leaves an addressed note for another agent under the given key.
// A duplicate key overwrites the previous message.
func (p *Participant) Send(to, key, content string) error {
	doc, err := p.store.Read()
	if err != nil {
		return err
	}

	if doc.Messages == nil {
		doc.Messages = make(map[string]map[string]*Message)
	}
	if doc.Messages[to] == nil {
		doc.Messages[to] = make(map[string]*Message)
	}
	doc.Messages[to][key] = &Message{
		Content:   content,
		From:      p.name,
		Timestamp: time.Now().UTC(),
	}

	return p.store.Write(doc)
}

// Messages returns all messages addressed to this agent. With markRead set,
// each returned message is flagged read in a second read-modify-write pass.
// Messages are never deleted.
func (p *Participant) Messages(markRead bool) (map[string]Message, error) {
	doc, err := p.store.Read()
	if err != nil {
		return nil, err
	}

	inbox := doc.Messages[p.name]
	if len(inbox) == 0 {
		return map[string]Message{}, nil
	}

	out := make(map[string]Message, len(inbox))
	for key, msg := range inbox {
		out[key] = *msg
	}

	if markRead {
		for _, msg := range inbox {
			msg.Read = true
		}
		if err := p.store.Write(doc); err != nil {
			return nil, err
		}
	}

	return out, nil
}

// OtherStatuses returns the status of every agent except this one.
func (p *Participant) OtherStatuses() (map[string]Status, error) {
	doc, err := p.store.Read()
	if err != nil {
		return nil, err
	}

	statuses := make(map[string]Status, len(doc.Agents))
	for name, rec := range doc.Agents {
		if name != p.name {
			statuses[name] = rec.Status
		}
	}
	return statuses, nil
}

// IncrementIteration bumps the run's iteration counter and returns the new
// value. Nothing in the workflow reads the counter to stop anything.
func (p *Participant) IncrementIteration() (int, error) {
	doc, err := p.store.Read()
	if err != nil {
		return 0, err
	}
	doc.Iterations++
	if err := p.store.Write(doc); err != nil {
		return 0, err
	}
	return doc.Iterations, nil
}
