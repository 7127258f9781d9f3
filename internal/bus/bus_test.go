package bus

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mkaravel/synergo/internal/config"
	"github.com/nats-io/nats.go"
)

func newTestBus(t *testing.T) *Bus {
	t.Helper()
	b, err := New(config.NATSConfig{
		Port:    0, // Random port
		DataDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create bus: %v", err)
	}
	t.Cleanup(b.Close)
	return b
}

func TestBusStartStop(t *testing.T) {
	b := newTestBus(t)
	if b.ClientURL() == "" {
		t.Fatal("expected non-empty client URL")
	}
}

func TestPubSub(t *testing.T) {
	b := newTestBus(t)

	client, err := NewClient(b)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	received := make(chan string, 1)
	_, err = client.Subscribe("test.subject", func(msg *nats.Msg) {
		received <- string(msg.Data)
	})
	if err != nil {
		t.Fatalf("subscribe error: %v", err)
	}

	if err := client.Publish("test.subject", []byte("hello")); err != nil {
		t.Fatalf("publish error: %v", err)
	}
	client.Flush()

	select {
	case data := <-received:
		if data != "hello" {
			t.Errorf("expected 'hello', got '%s'", data)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for message")
	}
}

func TestPublishEvent(t *testing.T) {
	b := newTestBus(t)

	client, err := NewClient(b)
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	defer client.Close()

	global := make(chan []byte, 1)
	scoped := make(chan []byte, 1)
	if _, err := client.Subscribe(SubjectEvents, func(msg *nats.Msg) {
		global <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe global: %v", err)
	}
	if _, err := client.Subscribe(RunSubject("r1"), func(msg *nats.Msg) {
		scoped <- msg.Data
	}); err != nil {
		t.Fatalf("subscribe scoped: %v", err)
	}

	ev := Event{Type: "agent_completed", RunID: "r1", Agent: "product_owner"}
	if err := client.PublishEvent(ev); err != nil {
		t.Fatalf("publish event: %v", err)
	}
	client.Flush()

	for name, ch := range map[string]chan []byte{"global": global, "scoped": scoped} {
		select {
		case data := <-ch:
			var got Event
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("unmarshal %s event: %v", name, err)
			}
			if got.Type != "agent_completed" || got.Agent != "product_owner" {
				t.Errorf("unexpected %s event: %+v", name, got)
			}
			if got.Timestamp.IsZero() {
				t.Errorf("expected %s event timestamp to be stamped", name)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timeout waiting for %s event", name)
		}
	}
}

func TestRunSubject(t *testing.T) {
	if got := RunSubject("abc"); got != "synergo.events.run.abc" {
		t.Errorf("expected synergo.events.run.abc, got %s", got)
	}
}
