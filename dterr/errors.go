// Package dterr defines the domain error type shared by the datetime
// pipeline. Every failure surfaced to a caller is one of three kinds; the
// request dispatch layer is the only place that turns them into protocol
// errors.
package dterr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind string

const (
	// KindDateTime covers bad input, formatting failures and anything
	// unexpected inside the orchestration.
	KindDateTime Kind = "datetime"

	// KindProvider covers time source construction and fetch failures.
	KindProvider Kind = "provider"

	// KindConfiguration covers configuration load and validation failures.
	KindConfiguration Kind = "configuration"
)

// Numeric codes carried by each kind.
const (
	CodeDateTime      = -1
	CodeProvider      = -2
	CodeConfiguration = -3
)

// Error is a tagged domain error. Fields beyond Kind and Message are only
// populated for the kinds that use them.
type Error struct {
	Kind    Kind
	Code    int
	Message string

	// Format is the format specification in effect, if known.
	Format string
	// Details carries free-form context for the caller.
	Details interface{}

	// Provider errors.
	Provider  string
	Retryable bool

	// Configuration errors.
	ValidationErrors []string
	ConfigPath       string

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap supports error unwrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// DateTime creates a datetime error.
func DateTime(message string) *Error {
	return &Error{Kind: KindDateTime, Code: CodeDateTime, Message: message}
}

// DateTimef creates a datetime error with a formatted message.
func DateTimef(format string, args ...interface{}) *Error {
	return DateTime(fmt.Sprintf(format, args...))
}

// Provider creates a provider error for the named time source.
func Provider(provider, message string, retryable bool) *Error {
	return &Error{
		Kind:      KindProvider,
		Code:      CodeProvider,
		Message:   message,
		Provider:  provider,
		Retryable: retryable,
	}
}

// Configuration creates a configuration error.
func Configuration(message string, validationErrors []string, configPath string) *Error {
	return &Error{
		Kind:             KindConfiguration,
		Code:             CodeConfiguration,
		Message:          message,
		ValidationErrors: validationErrors,
		ConfigPath:       configPath,
	}
}

// WithFormat records the format specification on the error and returns it.
func (e *Error) WithFormat(format string) *Error {
	e.Format = format
	return e
}

// WithProvider records the time source involved and returns the error.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// WithDetails attaches caller-facing details and returns the error.
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// WithCause records the underlying error and returns the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// As extracts a domain error from err.
func As(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err is a domain error of the given kind.
func IsKind(err error, kind Kind) bool {
	de, ok := As(err)
	return ok && de.Kind == kind
}

// IsRetryable reports whether err is a provider error marked retryable.
func IsRetryable(err error) bool {
	de, ok := As(err)
	return ok && de.Kind == KindProvider && de.Retryable
}
