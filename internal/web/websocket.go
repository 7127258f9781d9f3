package web

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/mkaravel/synergo/internal/bus"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans workflow events out to websocket clients. A client may
// restrict its feed to a single run with the "run" query parameter.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]string // conn -> run ID filter, "" means all
	broadcast chan bus.Event
}

func NewHub() *Hub {
	return &Hub{
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan bus.Event, 256),
	}
}

func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-h.broadcast:
			h.deliver(event)
		}
	}
}

func (h *Hub) deliver(event bus.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Warn("marshal websocket event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, filter := range h.clients {
		if filter != "" && filter != event.RunID {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func (h *Hub) Broadcast(event bus.Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("websocket broadcast channel full, dropping event")
	}
}

func (h *Hub) register(conn *websocket.Conn, runID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[conn] = runID
}

func (h *Hub) unregister(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("websocket upgrade failed", "error", err)
		return
	}

	s.hub.register(conn, r.URL.Query().Get("run"))
	defer func() {
		s.hub.unregister(conn)
		conn.Close()
	}()

	// Drain until the client goes away. Inbound messages are ignored.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
