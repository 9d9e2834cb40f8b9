// Package http provides an HTTP implementation of the MCP transport.
//
// Each POST to /mcp carries one JSON-RPC message or batch and receives the
// reply in the response body. The router also serves a health check and
// Prometheus metrics.
package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/transport"
)

// DefaultShutdownTimeout is the default timeout for graceful shutdown
const DefaultShutdownTimeout = 10 * time.Second

// MaxBodyBytes bounds a single request body.
const MaxBodyBytes = 1 << 20

// Transport serves MCP over plain HTTP.
type Transport struct {
	transport.BaseTransport
	addr     string
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// WithGatherer sets the registry exposed on /metrics. Defaults to
// prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(t *Transport) {
		t.gatherer = g
	}
}

// New creates an HTTP transport listening on addr.
func New(addr string, opts ...Option) *Transport {
	t := &Transport{
		addr:     addr,
		logger:   logx.Discard(),
		gatherer: prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Router returns the transport's routes.
func (t *Transport) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/mcp", t.handleMessage)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(t.gatherer, promhttp.HandlerOpts{}))
	return r
}

func (t *Transport) handleMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}

	reply, err := t.HandleMessage(r.Context(), body)
	if err != nil {
		t.logger.ErrorContext(r.Context(), "failed to handle message",
			"error", err, "requestId", middleware.GetReqID(r.Context()))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if len(reply) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(reply); err != nil {
		t.logger.WarnContext(r.Context(), "failed to write reply", "error", err)
	}
}

// Run listens on the configured address until ctx is done, then shuts the
// server down.
func (t *Transport) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              t.addr,
		Handler:           t.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info("http transport listening", "addr", t.addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
