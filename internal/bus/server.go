// Package bus runs an embedded NATS server and publishes workflow events
// for observers. Agent coordination itself goes through the shared document,
// not the bus.
package bus

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/mkaravel/synergo/internal/config"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
)

const readyTimeout = 5 * time.Second

// Bus owns the embedded server. The serve process talks to it in-process
// via Connect; external observers dial ClientURL.
type Bus struct {
	ns *natsserver.Server
}

// New starts an embedded server with JetStream backed by cfg.DataDir.
// A port of zero binds an ephemeral port.
func New(cfg config.NATSConfig) (*Bus, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bus data dir: %w", err)
	}

	port := cfg.Port
	if port <= 0 {
		port = natsserver.RANDOM_PORT
	}

	ns, err := natsserver.NewServer(&natsserver.Options{
		ServerName: "synergo-bus",
		Port:       port,
		StoreDir:   cfg.DataDir,
		JetStream:  true,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("configure embedded nats: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats not ready after %s", readyTimeout)
	}

	return &Bus{ns: ns}, nil
}

func (b *Bus) ClientURL() string {
	return b.ns.ClientURL()
}

// Port reports the port the server actually bound.
func (b *Bus) Port() int {
	if addr, ok := b.ns.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Connect opens an in-process connection, bypassing the TCP listener.
func (b *Bus) Connect(opts ...nats.Option) (*nats.Conn, error) {
	opts = append(opts, nats.InProcessServer(b.ns))
	return nats.Connect("", opts...)
}

func (b *Bus) Close() {
	b.ns.Shutdown()
	b.ns.WaitForShutdown()
}
