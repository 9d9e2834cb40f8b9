// Package ws provides a WebSocket implementation of the MCP transport.
//
// Each text frame carries one JSON-RPC message; replies go back on the same
// connection.
package ws

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"

	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/transport"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown
const DefaultShutdownTimeout = 10 * time.Second

// Transport serves MCP over WebSocket connections.
type Transport struct {
	transport.BaseTransport
	addr    string
	logger  *slog.Logger
	conns   map[net.Conn]bool
	connsMu sync.Mutex
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New creates a WebSocket transport listening on addr.
func New(addr string, opts ...Option) *Transport {
	t := &Transport{
		addr:   addr,
		logger: logx.Discard(),
		conns:  make(map[net.Conn]bool),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Handler returns the HTTP handler that upgrades requests and serves each
// connection until it closes.
func (t *Transport) Handler() http.Handler {
	return http.HandlerFunc(t.handleWebSocketRequest)
}

// Run listens on the configured address until ctx is done, then closes open
// connections and shuts the server down.
func (t *Transport) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              t.addr,
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("websocket transport listening", "addr", t.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	t.closeAll()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func (t *Transport) closeAll() {
	t.connsMu.Lock()
	defer t.connsMu.Unlock()
	for conn := range t.conns {
		conn.Close()
	}
	t.conns = make(map[net.Conn]bool)
}

// handleWebSocketRequest handles incoming WebSocket connection requests
func (t *Transport) handleWebSocketRequest(w http.ResponseWriter, r *http.Request) {
	// Upgrade the HTTP connection to WebSocket
	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		t.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	t.connsMu.Lock()
	t.conns[conn] = true
	t.connsMu.Unlock()

	// Hijacked connections are closed by Run on shutdown, not by ctx.
	t.handleServerConnection(context.WithoutCancel(r.Context()), conn)
}

// handleServerConnection reads messages from a client until the connection
// closes.
func (t *Transport) handleServerConnection(ctx context.Context, conn net.Conn) {
	defer func() {
		t.connsMu.Lock()
		delete(t.conns, conn)
		t.connsMu.Unlock()
		conn.Close()
	}()

	for {
		msg, op, err := wsutil.ReadClientData(conn)
		if err != nil {
			t.logger.Debug("websocket connection closed", "error", err)
			return
		}
		if op != ws.OpText && op != ws.OpBinary {
			continue
		}

		reply, err := t.HandleMessage(ctx, msg)
		if err != nil {
			t.logger.Error("failed to handle message", "error", err)
			continue
		}
		if len(reply) == 0 {
			continue
		}
		if err := wsutil.WriteServerMessage(conn, ws.OpText, reply); err != nil {
			t.logger.Warn("failed to write websocket reply", "error", err)
			return
		}
	}
}
