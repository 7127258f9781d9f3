package web

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mkaravel/synergo/internal/bus"
)

func TestHubRunFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go srv.hub.Run(ctx)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	all, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial unfiltered client: %v", err)
	}
	defer all.Close()

	scoped, _, err := websocket.DefaultDialer.Dial(wsURL+"?run=r1", nil)
	if err != nil {
		t.Fatalf("dial scoped client: %v", err)
	}
	defer scoped.Close()

	// Registration happens in the handler goroutine after the upgrade.
	time.Sleep(100 * time.Millisecond)

	srv.hub.Broadcast(bus.Event{Type: "agent_started", RunID: "r2"})
	srv.hub.Broadcast(bus.Event{Type: "agent_started", RunID: "r1"})

	for _, want := range []string{"r2", "r1"} {
		var ev bus.Event
		all.SetReadDeadline(time.Now().Add(2 * time.Second))
		if err := all.ReadJSON(&ev); err != nil {
			t.Fatalf("read unfiltered event: %v", err)
		}
		if ev.RunID != want {
			t.Errorf("expected run %s, got %s", want, ev.RunID)
		}
	}

	var ev bus.Event
	scoped.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := scoped.ReadJSON(&ev); err != nil {
		t.Fatalf("read scoped event: %v", err)
	}
	if ev.RunID != "r1" {
		t.Errorf("scoped client got event for run %s", ev.RunID)
	}

	scoped.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if err := scoped.ReadJSON(&ev); err == nil {
		t.Errorf("scoped client received unexpected extra event: %+v", ev)
	}
}
