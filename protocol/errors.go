package protocol

import "fmt"

// ErrorCode is a JSON-RPC error code.
type ErrorCode int

// Standard JSON-RPC 2.0 error codes.
const (
	CodeParseError     ErrorCode = -32700
	CodeInvalidRequest ErrorCode = -32600
	CodeMethodNotFound ErrorCode = -32601
	CodeInvalidParams  ErrorCode = -32602
	CodeInternalError  ErrorCode = -32603
)

// MCPError wraps ErrorPayload to implement the error interface.
// Handlers can return this type to provide specific JSON-RPC error details.
type MCPError struct {
	ErrorPayload
}

// Error implements the error interface for MCPError.
func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP Error: Code=%d, Message=%s", e.Code, e.Message)
}

// NewError creates an MCPError with an arbitrary code and optional data.
func NewError(code ErrorCode, message string, data interface{}) *MCPError {
	return &MCPError{
		ErrorPayload: ErrorPayload{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// NewInvalidParamsError creates an MCPError for invalid params.
func NewInvalidParamsError(message string) *MCPError {
	return NewError(CodeInvalidParams, message, nil)
}

// NewMethodNotFoundError creates an MCPError for an unknown method.
func NewMethodNotFoundError(methodName string) *MCPError {
	return NewError(CodeMethodNotFound, fmt.Sprintf("Method not found: %s", methodName), nil)
}

// NewInternalError creates an MCPError for an internal failure.
func NewInternalError(message string) *MCPError {
	return NewError(CodeInternalError, message, nil)
}
