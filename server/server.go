// Package server provides the MCP server implementation.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/mcp"
	"github.com/localrivet/currentdt/protocol"
	"github.com/localrivet/currentdt/transport"
)

// Dispatcher serves the tool and prompt methods.
type Dispatcher interface {
	HandleToolCall(ctx context.Context, params protocol.CallToolParams) (*protocol.CallToolResult, error)
	HandleListTools(ctx context.Context) protocol.ListToolsResult
	HandleListPrompts(ctx context.Context) protocol.ListPromptsResult
	HandleGetPrompt(ctx context.Context, params protocol.GetPromptRequestParams) error
}

// NotificationHandlerFunc defines the signature for functions that handle client-to-server notifications.
type NotificationHandlerFunc func(ctx context.Context, params json.RawMessage) error

// Server represents the core MCP server logic, independent of transport.
type Server struct {
	serverName         string
	serverVersion      string
	serverInstructions string
	logger             *slog.Logger
	levelVar           *slog.LevelVar

	dispatcher Dispatcher
	versions   *mcp.VersionDetector

	// handleMu serializes message handling across connections.
	handleMu sync.Mutex

	clientMu   sync.RWMutex
	clientInfo *protocol.Implementation
	negotiated string

	notificationHandlers map[string]NotificationHandlerFunc
	notificationMu       sync.RWMutex
}

// ServerOption defines a function signature for configuring a Server.
type ServerOption func(*Server)

// WithLogger provides an option to set a custom logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithLevelVar lets 'logging/setLevel' adjust the given level.
func WithLevelVar(lv *slog.LevelVar) ServerOption {
	return func(s *Server) {
		s.levelVar = lv
	}
}

// WithInstructions sets the instructions returned from 'initialize'.
func WithInstructions(instructions string) ServerOption {
	return func(s *Server) {
		s.serverInstructions = instructions
	}
}

// NewServer creates a server that routes tool and prompt requests to d.
func NewServer(serverName, serverVersion string, d Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		serverName:           serverName,
		serverVersion:        serverVersion,
		dispatcher:           d,
		logger:               logx.Discard(),
		versions:             mcp.NewVersionDetector(),
		notificationHandlers: make(map[string]NotificationHandlerFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.RegisterNotificationHandler(protocol.MethodInitialized, s.handleInitializedNotification)
	s.RegisterNotificationHandler(protocol.MethodCancelled, s.handleCancellationNotification)
	return s
}

// Serve attaches the server to t and runs it until ctx is done or the
// transport's input ends.
func (s *Server) Serve(ctx context.Context, t transport.Transport) error {
	t.SetMessageHandler(s.HandleMessage)
	return t.Run(ctx)
}

// HandleMessage processes an incoming raw JSON message, which can be a single JSON-RPC object
// or a JSON array representing a batch of requests/notifications.
// It returns the encoded reply, or nil when nothing is to be sent (notifications only).
func (s *Server) HandleMessage(ctx context.Context, rawMessage []byte) ([]byte, error) {
	s.handleMu.Lock()
	defer s.handleMu.Unlock()

	s.logger.DebugContext(ctx, "handling message", "message", string(rawMessage))

	trimmedMsg := bytes.TrimSpace(rawMessage)
	if len(trimmedMsg) > 0 && trimmedMsg[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmedMsg, &batch); err != nil {
			s.logger.ErrorContext(ctx, "failed to unmarshal batch request", "error", err)
			return encode(protocol.NewErrorResponse(nil, protocol.CodeParseError, fmt.Sprintf("Failed to parse batch JSON: %v", err), nil))
		}
		if len(batch) == 0 {
			return encode(protocol.NewErrorResponse(nil, protocol.CodeInvalidRequest, "Received empty batch request", nil))
		}

		responses := make([]*protocol.JSONRPCResponse, 0, len(batch))
		for _, single := range batch {
			if resp := s.handleSingleMessage(ctx, single); resp != nil {
				responses = append(responses, resp)
			}
		}
		// JSON-RPC: never reply with an empty array.
		if len(responses) == 0 {
			return nil, nil
		}
		return encode(responses)
	}

	resp := s.handleSingleMessage(ctx, trimmedMsg)
	if resp == nil {
		return nil, nil
	}
	return encode(resp)
}

func encode(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response: %w", err)
	}
	return data, nil
}

// handleSingleMessage processes a single JSON-RPC request or notification object.
func (s *Server) handleSingleMessage(ctx context.Context, rawMessage json.RawMessage) *protocol.JSONRPCResponse {
	var req protocol.JSONRPCRequest
	if err := json.Unmarshal(rawMessage, &req); err != nil {
		s.logger.ErrorContext(ctx, "failed to parse message", "error", err, "raw", string(rawMessage))
		return protocol.NewErrorResponse(nil, protocol.CodeParseError, fmt.Sprintf("Failed to parse JSON: %v", err), nil)
	}

	if req.JSONRPC != protocol.JSONRPCVersion {
		s.logger.WarnContext(ctx, "invalid jsonrpc version", "jsonrpc", req.JSONRPC)
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidRequest, "Invalid jsonrpc version", nil)
	}
	if req.Method == "" {
		return protocol.NewErrorResponse(req.ID, protocol.CodeInvalidRequest,
			"Invalid message: must be request (with id) or notification (with method)", nil)
	}

	if req.IsNotification() {
		if err := s.handleNotification(ctx, req.Method, req.Params); err != nil {
			s.logger.ErrorContext(ctx, "error handling notification", "method", req.Method, "error", err)
		}
		return nil
	}

	result, err := s.handleRequest(ctx, req.Method, req.Params)
	if err != nil {
		return protocol.NewErrorResponseFrom(req.ID, asMCPError(err))
	}
	return protocol.NewSuccessResponse(req.ID, result)
}

func asMCPError(err error) *protocol.MCPError {
	if mcpErr, ok := err.(*protocol.MCPError); ok {
		return mcpErr
	}
	return protocol.NewInternalError(err.Error())
}

// handleRequest routes a request by method.
func (s *Server) handleRequest(ctx context.Context, method string, rawParams json.RawMessage) (interface{}, error) {
	s.logger.DebugContext(ctx, "handling request", "method", method)

	switch method {
	case protocol.MethodInitialize:
		return s.handleInitializeRequest(ctx, rawParams)
	case protocol.MethodPing:
		return struct{}{}, nil
	case protocol.MethodListTools:
		var params protocol.ListToolsRequestParams
		if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
			return nil, protocol.NewInvalidParamsError(err.Error())
		}
		return s.dispatcher.HandleListTools(ctx), nil
	case protocol.MethodCallTool:
		var params protocol.CallToolParams
		if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
			return nil, protocol.NewInvalidParamsError(fmt.Sprintf("Failed to unmarshal CallTool params: %v", err))
		}
		return s.dispatcher.HandleToolCall(ctx, params)
	case protocol.MethodListPrompts:
		return s.dispatcher.HandleListPrompts(ctx), nil
	case protocol.MethodGetPrompt:
		var params protocol.GetPromptRequestParams
		if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
			return nil, protocol.NewInvalidParamsError(fmt.Sprintf("Failed to unmarshal GetPrompt params: %v", err))
		}
		return nil, s.dispatcher.HandleGetPrompt(ctx, params)
	case protocol.MethodLoggingSetLevel:
		return s.handleSetLevel(ctx, rawParams)
	default:
		s.logger.WarnContext(ctx, "method not found", "method", method)
		return nil, protocol.NewMethodNotFoundError(method)
	}
}

func (s *Server) handleInitializeRequest(ctx context.Context, rawParams json.RawMessage) (interface{}, error) {
	var params protocol.InitializeRequestParams
	if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
		return nil, protocol.NewInvalidParamsError(fmt.Sprintf("Failed to parse initialize params: %v", err))
	}

	version := s.versions.Negotiate(params.ProtocolVersion)
	s.clientMu.Lock()
	info := params.ClientInfo
	s.clientInfo = &info
	s.negotiated = version
	s.clientMu.Unlock()

	s.logger.InfoContext(ctx, "client initializing",
		"client", params.ClientInfo.Name,
		"clientVersion", params.ClientInfo.Version,
		"requestedVersion", params.ProtocolVersion,
		"protocolVersion", version)

	return protocol.InitializeResult{
		ProtocolVersion: version,
		Capabilities: protocol.ServerCapabilities{
			Logging: &struct{}{},
			Prompts: &protocol.PromptsCapability{},
			Tools:   &protocol.ToolsCapability{},
		},
		ServerInfo:   protocol.Implementation{Name: s.serverName, Version: s.serverVersion},
		Instructions: s.serverInstructions,
	}, nil
}

func (s *Server) handleSetLevel(ctx context.Context, rawParams json.RawMessage) (interface{}, error) {
	var params protocol.SetLevelRequestParams
	if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
		return nil, protocol.NewInvalidParamsError(fmt.Sprintf("Failed to parse setLevel params: %v", err))
	}
	level, err := logx.FromProtocolLevel(params.Level)
	if err != nil {
		return nil, protocol.NewInvalidParamsError(err.Error())
	}
	if s.levelVar != nil {
		s.levelVar.Set(level)
	}
	s.logger.InfoContext(ctx, "log level changed", "level", level.String())
	return struct{}{}, nil
}

// NegotiatedVersion returns the protocol version agreed in 'initialize', or
// "" before it.
func (s *Server) NegotiatedVersion() string {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	return s.negotiated
}

// ClientInfo returns the client's self-description from 'initialize'.
func (s *Server) ClientInfo() (protocol.Implementation, bool) {
	s.clientMu.RLock()
	defer s.clientMu.RUnlock()
	if s.clientInfo == nil {
		return protocol.Implementation{}, false
	}
	return *s.clientInfo, true
}

// --- Notifications ---

// RegisterNotificationHandler sets the handler for a notification method.
func (s *Server) RegisterNotificationHandler(method string, handler NotificationHandlerFunc) {
	s.notificationMu.Lock()
	defer s.notificationMu.Unlock()
	s.notificationHandlers[method] = handler
}

func (s *Server) handleNotification(ctx context.Context, method string, rawParams json.RawMessage) error {
	s.notificationMu.RLock()
	handler, ok := s.notificationHandlers[method]
	s.notificationMu.RUnlock()
	if !ok {
		s.logger.DebugContext(ctx, "no handler registered for notification", "method", method)
		return nil
	}
	return handler(ctx, rawParams)
}

func (s *Server) handleInitializedNotification(ctx context.Context, _ json.RawMessage) error {
	s.logger.InfoContext(ctx, "client initialized")
	return nil
}

// Requests are handled one at a time to completion, so there is never an
// in-flight request to cancel; the notification is only logged.
func (s *Server) handleCancellationNotification(ctx context.Context, rawParams json.RawMessage) error {
	var params protocol.CancelledParams
	if err := protocol.UnmarshalParams(rawParams, &params); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "received cancellation", "requestId", params.RequestID, "reason", params.Reason)
	return nil
}
