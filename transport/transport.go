// Package transport provides the transport layer implementations for the MCP protocol.
//
// This package contains the Transport interface shared by the stdio,
// WebSocket and HTTP implementations in its subpackages.
package transport

import (
	"context"
	"errors"
)

// ErrNoHandler is returned by HandleMessage before a handler is set.
var ErrNoHandler = errors.New("no message handler set")

// MessageHandler processes one raw inbound message and returns the reply to
// send, or nil when there is nothing to send.
type MessageHandler func(ctx context.Context, message []byte) ([]byte, error)

// Transport represents a communication transport for MCP messages.
type Transport interface {
	// SetMessageHandler sets the message handler
	SetMessageHandler(handler MessageHandler)

	// Run serves messages until ctx is done or the input ends. Both cases
	// return nil.
	Run(ctx context.Context) error
}

// BaseTransport provides common transport functionality
type BaseTransport struct {
	handler MessageHandler
}

// SetMessageHandler sets the message handler
func (t *BaseTransport) SetMessageHandler(handler MessageHandler) {
	t.handler = handler
}

// HandleMessage handles an incoming message
func (t *BaseTransport) HandleMessage(ctx context.Context, message []byte) ([]byte, error) {
	if t.handler == nil {
		return nil, ErrNoHandler
	}
	return t.handler(ctx, message)
}
