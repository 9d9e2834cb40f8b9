// Package provider supplies the current instant from interchangeable time
// sources and picks one at request time.
package provider

import (
	"context"
	"time"
)

// Built-in source names.
const (
	LocalName  = "local"
	RemoteName = "remote"
)

// TimeSource yields the current instant.
type TimeSource interface {
	// CurrentDateTime returns the current instant or a provider error.
	CurrentDateTime(ctx context.Context) (time.Time, error)
	// IsAvailable is a cheap health probe. It never fails; problems read
	// as false.
	IsAvailable(ctx context.Context) bool
	Name() string
	Priority() int
}

// Local reads the system clock.
type Local struct {
	now func() time.Time
}

// NewLocal returns a Local source reading now, or time.Now when nil.
func NewLocal(now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	return &Local{now: now}
}

// CurrentDateTime returns the system clock reading.
func (l *Local) CurrentDateTime(context.Context) (time.Time, error) {
	return l.now(), nil
}

// IsAvailable is always true.
func (l *Local) IsAvailable(context.Context) bool {
	return true
}

// Name returns "local".
func (l *Local) Name() string {
	return LocalName
}

// Priority returns 1.
func (l *Local) Priority() int {
	return 1
}
