// Package handler dispatches tool, tool listing and prompt requests and is
// the single place where domain errors become protocol errors.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/hooks"
	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/protocol"
)

// DateTimeService produces the formatted current instant.
type DateTimeService interface {
	CurrentDateTime(ctx context.Context, raw interface{}) (string, error)
}

// ErrorData is attached to internal errors raised by datetime and provider
// failures.
type ErrorData struct {
	Provider string      `json:"provider,omitempty"`
	Format   string      `json:"format,omitempty"`
	Details  interface{} `json:"details,omitempty"`
}

// ConfigErrorData is attached to invalid-params errors raised by
// configuration failures.
type ConfigErrorData struct {
	ConfigPath       string   `json:"configPath,omitempty"`
	ValidationErrors []string `json:"validationErrors"`
}

// RequestHandler serves tools/call, tools/list and the prompt methods.
type RequestHandler struct {
	service  DateTimeService
	registry *ToolRegistry
	logger   *slog.Logger
	hooks    []hooks.BeforeToolCallHook
	call     hooks.FinalToolHandler
}

// Option configures a RequestHandler.
type Option func(*RequestHandler)

// WithLogger sets the handler logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *RequestHandler) {
		h.logger = logger
	}
}

// WithHooks appends tool call hooks. They run inside the built-in recovery
// and logging hooks.
func WithHooks(hs ...hooks.BeforeToolCallHook) Option {
	return func(h *RequestHandler) {
		h.hooks = append(h.hooks, hs...)
	}
}

// NewRequestHandler returns a handler serving the tools in registry.
func NewRequestHandler(svc DateTimeService, registry *ToolRegistry, opts ...Option) *RequestHandler {
	h := &RequestHandler{
		service:  svc,
		registry: registry,
		logger:   logx.Discard(),
	}
	for _, opt := range opts {
		opt(h)
	}
	chain := append([]hooks.BeforeToolCallHook{hooks.Recover(h.logger), hooks.Logging(h.logger)}, h.hooks...)
	h.call = hooks.Chain(h.dispatch, chain...)
	return h
}

// HandleToolCall runs the named tool. Every returned error is a
// *protocol.MCPError.
func (h *RequestHandler) HandleToolCall(ctx context.Context, params protocol.CallToolParams) (*protocol.CallToolResult, error) {
	res, err := h.call(ctx, params.Name, params.Arguments)
	if err != nil {
		return nil, Translate(err)
	}
	return res, nil
}

func (h *RequestHandler) dispatch(ctx context.Context, name string, arguments json.RawMessage) (*protocol.CallToolResult, error) {
	if !h.registry.Has(name) {
		return nil, protocol.NewError(protocol.CodeMethodNotFound, fmt.Sprintf("Tool '%s' not found", name), nil)
	}

	switch name {
	case DateTimeToolName:
		var raw interface{}
		if len(arguments) > 0 {
			raw = arguments
		}
		text, err := h.service.CurrentDateTime(ctx, raw)
		if err != nil {
			return nil, err
		}
		h.logger.DebugContext(ctx, "datetime retrieved", "datetime", text)
		return protocol.NewTextResult(text), nil
	default:
		return nil, protocol.NewError(protocol.CodeMethodNotFound,
			fmt.Sprintf("Handler not implemented for tool '%s'", name), nil)
	}
}

// Translate maps err onto the protocol error vocabulary.
func Translate(err error) *protocol.MCPError {
	var mcpErr *protocol.MCPError
	if errors.As(err, &mcpErr) {
		return mcpErr
	}

	if de, ok := dterr.As(err); ok {
		switch de.Kind {
		case dterr.KindConfiguration:
			errs := de.ValidationErrors
			if errs == nil {
				errs = []string{}
			}
			return protocol.NewError(protocol.CodeInvalidParams, de.Message, ConfigErrorData{
				ConfigPath:       de.ConfigPath,
				ValidationErrors: errs,
			})
		default:
			return protocol.NewError(protocol.CodeInternalError, de.Message, ErrorData{
				Provider: de.Provider,
				Format:   de.Format,
				Details:  de.Details,
			})
		}
	}

	return protocol.NewInternalError(err.Error())
}

// HandleListTools returns the registered tools.
func (h *RequestHandler) HandleListTools(ctx context.Context) protocol.ListToolsResult {
	tools := h.registry.All()
	h.logger.DebugContext(ctx, "tools listed", "toolCount", len(tools))
	return protocol.ListToolsResult{Tools: tools}
}

// HandleListPrompts returns an empty prompt list. Some clients call it
// regardless of advertised capabilities.
func (h *RequestHandler) HandleListPrompts(ctx context.Context) protocol.ListPromptsResult {
	h.logger.DebugContext(ctx, "prompts listed")
	return protocol.ListPromptsResult{Prompts: []protocol.Prompt{}}
}

// HandleGetPrompt always fails with method not found.
func (h *RequestHandler) HandleGetPrompt(_ context.Context, params protocol.GetPromptRequestParams) error {
	return protocol.NewError(protocol.CodeMethodNotFound,
		fmt.Sprintf("Prompt '%s' not found - this MCP server provides tools, not prompts", params.Name), nil)
}
