// Package protocol defines the structures and constants for the Model Context Protocol (MCP),
// based on the JSON-RPC 2.0 specification.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// JSONRPCVersion is the only version string accepted on the wire.
const JSONRPCVersion = "2.0"

// ErrorPayload defines the structure for the 'error' object within a JSON-RPC error response.
type ErrorPayload struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// JSONRPCRequest represents an incoming JSON-RPC request or notification.
// The ID is kept raw so it can be echoed back byte for byte; a request
// without an id member is a notification.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// IsNotification reports whether the request carries no id.
func (r *JSONRPCRequest) IsNotification() bool {
	return len(r.ID) == 0
}

// JSONRPCResponse represents a standard JSON-RPC response object.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *ErrorPayload   `json:"error,omitempty"`
}

// JSONRPCNotification represents an outgoing JSON-RPC notification object.
type JSONRPCNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// NewNotification creates a new JSON-RPC notification object.
func NewNotification(method string, params interface{}) *JSONRPCNotification {
	return &JSONRPCNotification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
}

// UnmarshalParams decodes raw params into target. Absent or null params
// leave target untouched.
func UnmarshalParams(params json.RawMessage, target interface{}) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, target); err != nil {
		return fmt.Errorf("failed to unmarshal params into %T: %w", target, err)
	}
	return nil
}

// NewSuccessResponse creates a new JSON-RPC success response object.
func NewSuccessResponse(id json.RawMessage, result interface{}) *JSONRPCResponse {
	if result == nil {
		result = struct{}{}
	}
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Result:  result,
	}
}

// NewErrorResponse creates a new JSON-RPC error response object.
// A nil id is encoded as null, which is what JSON-RPC requires when the
// request id could not be determined.
func NewErrorResponse(id json.RawMessage, code ErrorCode, message string, data interface{}) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Error: &ErrorPayload{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// NewErrorResponseFrom builds an error response from an MCPError.
func NewErrorResponseFrom(id json.RawMessage, err *MCPError) *JSONRPCResponse {
	return NewErrorResponse(id, err.Code, err.Message, err.Data)
}
