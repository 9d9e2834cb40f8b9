// Package logx builds the process logger. Output is JSON on stderr (stdout
// carries the protocol stream), the level can be changed at runtime, and
// records pick up a correlation id from the context.
package logx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/localrivet/currentdt/protocol"
)

// LevelFatal sits above slog.LevelError.
const LevelFatal = slog.Level(12)

// Level names accepted by ParseLevel.
var LevelNames = []string{"debug", "info", "warn", "error", "fatal"}

// ParseLevel maps a configured level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	case "fatal":
		return LevelFatal, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
}

// FromProtocolLevel maps an MCP logging level onto a slog level.
func FromProtocolLevel(level protocol.LoggingLevel) (slog.Level, error) {
	switch level {
	case protocol.LogLevelDebug:
		return slog.LevelDebug, nil
	case protocol.LogLevelInfo, protocol.LogLevelNotice:
		return slog.LevelInfo, nil
	case protocol.LogLevelWarn:
		return slog.LevelWarn, nil
	case protocol.LogLevelError:
		return slog.LevelError, nil
	case protocol.LogLevelCritical, protocol.LogLevelAlert, protocol.LogLevelEmergency:
		return LevelFatal, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown logging level %q", level)
}

// New returns a JSON logger writing to w, and the LevelVar controlling it.
func New(w io.Writer, level string) (*slog.Logger, *slog.LevelVar) {
	lv := new(slog.LevelVar)
	if l, err := ParseLevel(level); err == nil {
		lv.Set(l)
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       lv,
		ReplaceAttr: replaceLevel,
	})
	return slog.New(NewContextHandler(h)), lv
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelFatal {
		a.Value = slog.StringValue("FATAL")
	}
	return a
}

type correlationKey struct{}

// CorrelationKey is the attribute name carrying the correlation id.
const CorrelationKey = "correlationId"

// WithCorrelationID returns a context whose log records carry id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// CorrelationID returns the id stored by WithCorrelationID.
func CorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(correlationKey{}).(string)
	return id
}

// ContextHandler adds the context's correlation id to every record.
type ContextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h.
func NewContextHandler(h slog.Handler) *ContextHandler {
	return &ContextHandler{Handler: h}
}

// Handle implements slog.Handler.
func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := CorrelationID(ctx); id != "" {
		r.AddAttrs(slog.String(CorrelationKey, id))
	}
	return h.Handler.Handle(ctx, r)
}

// WithAttrs implements slog.Handler.
func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

// WithGroup implements slog.Handler.
func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{Handler: h.Handler.WithGroup(name)}
}
