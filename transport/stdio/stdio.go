// Package stdio provides a Transport implementation that uses standard input/output.
package stdio

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/transport"
)

// Transport reads newline-delimited messages from a reader and writes each
// reply, newline-terminated, to a writer.
type Transport struct {
	transport.BaseTransport

	reader     io.Reader
	writer     io.Writer
	writeMutex sync.Mutex
	logger     *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = logger
	}
}

// New creates a transport over r and w.
func New(r io.Reader, w io.Writer, opts ...Option) *Transport {
	t := &Transport{reader: r, writer: w, logger: logx.Discard()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NewStdio creates a transport over os.Stdin and os.Stdout.
func NewStdio(opts ...Option) *Transport {
	return New(os.Stdin, os.Stdout, opts...)
}

type line struct {
	data []byte
	err  error
}

// Run handles messages one at a time until ctx is done or the reader hits
// EOF.
func (t *Transport) Run(ctx context.Context) error {
	lines := make(chan line)
	done := make(chan struct{})
	defer close(done)

	// Goroutine to perform the blocking reads
	go func() {
		br := bufio.NewReader(t.reader)
		for {
			data, err := br.ReadBytes('\n')
			select {
			case lines <- line{data: data, err: err}:
			case <-done:
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			t.logger.Debug("stdio transport stopping", "reason", ctx.Err())
			return nil
		case l := <-lines:
			if msg := bytes.TrimSpace(l.data); len(msg) > 0 {
				if err := t.handle(ctx, msg); err != nil {
					return err
				}
			}
			if l.err != nil {
				if errors.Is(l.err, io.EOF) {
					t.logger.Debug("stdio input closed")
					return nil
				}
				return fmt.Errorf("failed to read message: %w", l.err)
			}
		}
	}
}

func (t *Transport) handle(ctx context.Context, msg []byte) error {
	reply, err := t.HandleMessage(ctx, msg)
	if err != nil {
		t.logger.Error("failed to handle message", "error", err)
		return nil
	}
	if len(reply) == 0 {
		return nil
	}
	return t.Send(reply)
}

// Send writes a message to the underlying writer.
// It ensures the message ends with exactly one newline.
func (t *Transport) Send(data []byte) error {
	if len(data) == 0 {
		return errors.New("cannot send empty message")
	}
	data = append(bytes.TrimRight(data, "\n"), '\n')

	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if flusher, ok := t.writer.(interface{ Flush() error }); ok {
		if err := flusher.Flush(); err != nil {
			t.logger.Warn("failed to flush writer", "error", err)
		}
	}
	return nil
}
