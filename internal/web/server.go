// Package web serves the observational HTTP API and the websocket event
// stream. It only reads workflow state; runs are started from the CLI or the
// scheduler.
package web

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/mkaravel/synergo/internal/bus"
	"github.com/mkaravel/synergo/internal/config"
	"github.com/mkaravel/synergo/internal/coord"
	"github.com/mkaravel/synergo/internal/ledger"
)

type Server struct {
	ledger    *ledger.Ledger
	store     *coord.Store
	bus       *bus.Bus
	nats      *bus.Client
	hub       *Hub
	cfg       config.WebConfig
	version   string
	startedAt time.Time
}

func NewServer(l *ledger.Ledger, store *coord.Store, b *bus.Bus, cfg config.WebConfig, version string) *Server {
	return &Server{
		ledger:    l,
		store:     store,
		bus:       b,
		hub:       NewHub(),
		cfg:       cfg,
		version:   version,
		startedAt: time.Now(),
	}
}

func (s *Server) Start(ctx context.Context) error {
	go s.hub.Run(ctx)
	s.subscribeEvents()

	handler := s.withMiddleware(s.Handler())
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	server := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	slog.Info("web server listening", "addr", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Handler builds the route table. Split out from Start for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerAPI(mux)
	mux.HandleFunc("/api/ws", s.handleWebSocket)
	return mux
}

func (s *Server) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// subscribeEvents forwards bus events to connected websocket clients.
func (s *Server) subscribeEvents() {
	if s.bus == nil {
		return
	}
	client, err := bus.NewClient(s.bus)
	if err != nil {
		slog.Error("web server nats client failed", "error", err)
		return
	}
	s.nats = client

	_, _ = client.Subscribe(bus.SubjectEvents, func(msg *natsgo.Msg) {
		var event bus.Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			slog.Warn("invalid bus event payload", "error", err)
			return
		}
		s.hub.Broadcast(event)
	})
}
