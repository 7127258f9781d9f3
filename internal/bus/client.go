package bus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for workflow events. Run-scoped events append the run ID.
const (
	SubjectEvents = "synergo.events"
	SubjectRuns   = "synergo.events.run"
)

func RunSubject(runID string) string {
	return SubjectRuns + "." + runID
}

// Event is the envelope published for every lifecycle transition.
type Event struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Agent     string    `json:"agent,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type Client struct {
	conn *nats.Conn
}

// NewClient connects in-process to an embedded bus.
func NewClient(b *Bus) (*Client, error) {
	conn, err := b.Connect()
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

func NewClientFromURL(url string) (*Client, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Publish(subject string, data []byte) error {
	return c.conn.Publish(subject, data)
}

func (c *Client) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return c.conn.Publish(subject, data)
}

// PublishEvent stamps and fans the event out to the global subject and,
// when run-scoped, to the run subject too.
func (c *Client) PublishEvent(ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if err := c.PublishJSON(SubjectEvents, ev); err != nil {
		return err
	}
	if ev.RunID != "" {
		return c.PublishJSON(RunSubject(ev.RunID), ev)
	}
	return nil
}

func (c *Client) Subscribe(subject string, handler func(msg *nats.Msg)) (*nats.Subscription, error) {
	return c.conn.Subscribe(subject, handler)
}

func (c *Client) Flush() error {
	return c.conn.Flush()
}

func (c *Client) Close() {
	c.conn.Close()
}
