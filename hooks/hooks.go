// Package hooks defines the middleware chain wrapped around tool execution,
// allowing logging, metrics and recovery to be layered over the final tool
// handler.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/localrivet/currentdt/metrics"
	"github.com/localrivet/currentdt/protocol"
)

// FinalToolHandler defines the signature for the actual tool execution logic.
type FinalToolHandler func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error)

// BeforeToolCallHook wraps the next handler in the chain, allowing modification before execution.
// It receives the next handler (which could be another hook wrapper or the final handler)
// and returns a new handler function that incorporates the hook's logic.
type BeforeToolCallHook func(next FinalToolHandler) FinalToolHandler

// Chain wraps final with hooks. The first hook is the outermost.
func Chain(final FinalToolHandler, hooks ...BeforeToolCallHook) FinalToolHandler {
	h := final
	for i := len(hooks) - 1; i >= 0; i-- {
		h = hooks[i](h)
	}
	return h
}

// Logging logs every tool call and its outcome.
func Logging(logger *slog.Logger) BeforeToolCallHook {
	return func(next FinalToolHandler) FinalToolHandler {
		return func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
			logger.InfoContext(ctx, "tool call received", "toolName", name, "arguments", string(arguments))
			start := time.Now()
			res, err := next(ctx, name, arguments)
			if err != nil {
				logger.ErrorContext(ctx, "tool call failed", "toolName", name, "error", err,
					"duration", time.Since(start))
				return res, err
			}
			logger.DebugContext(ctx, "tool call completed", "toolName", name, "duration", time.Since(start))
			return res, nil
		}
	}
}

// Metrics counts tool calls by outcome. Names rejected by known are counted
// under metrics.UnknownTool so client input cannot mint new series; a nil
// known accepts every name.
func Metrics(m *metrics.Metrics, known func(name string) bool) BeforeToolCallHook {
	return func(next FinalToolHandler) FinalToolHandler {
		return func(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
			res, err := next(ctx, name, arguments)
			label := name
			if known != nil && !known(name) {
				label = metrics.UnknownTool
			}
			m.IncrementToolCall(label, err != nil || (res != nil && res.IsError))
			return res, err
		}
	}
}

// Recover turns a panic in the chain into an internal error.
func Recover(logger *slog.Logger) BeforeToolCallHook {
	return func(next FinalToolHandler) FinalToolHandler {
		return func(ctx context.Context, name string, arguments json.RawMessage) (res *protocol.CallToolResult, err error) {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "tool handler panicked", "toolName", name, "panic", fmt.Sprint(r))
					res, err = nil, protocol.NewInternalError(fmt.Sprintf("tool '%s' panicked: %v", name, r))
				}
			}()
			return next(ctx, name, arguments)
		}
	}
}
