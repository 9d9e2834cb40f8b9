package provider

import (
	"context"
	"sync"
	"time"
)

// OffsetStore remembers, per source, how far its clock was from the local
// clock at the last reading. It holds at most maxSize entries and evicts
// the oldest first.
type OffsetStore struct {
	mu      sync.Mutex
	maxSize int
	entries map[string]offsetEntry
	order   []string
}

type offsetEntry struct {
	offset  time.Duration
	expires time.Time
}

// NewOffsetStore returns a store bounded by maxSize (at least 1).
func NewOffsetStore(maxSize int) *OffsetStore {
	if maxSize < 1 {
		maxSize = 1
	}
	return &OffsetStore{maxSize: maxSize, entries: make(map[string]offsetEntry)}
}

func (s *OffsetStore) get(name string, now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[name]
	if !ok || !now.Before(e.expires) {
		return 0, false
	}
	return e.offset, true
}

func (s *OffsetStore) put(name string, offset time.Duration, expires time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[name]; !ok {
		if len(s.order) >= s.maxSize {
			oldest := s.order[0]
			s.order = s.order[1:]
			delete(s.entries, oldest)
		}
		s.order = append(s.order, name)
	}
	s.entries[name] = offsetEntry{offset: offset, expires: expires}
}

// resize changes the bound, evicting the oldest entries beyond it.
func (s *OffsetStore) resize(maxSize int) {
	if maxSize < 1 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxSize = maxSize
	for len(s.order) > s.maxSize {
		delete(s.entries, s.order[0])
		s.order = s.order[1:]
	}
}

// Len returns the number of entries.
func (s *OffsetStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Purge drops every entry.
func (s *OffsetStore) Purge() {
	s.mu.Lock()
	s.entries = make(map[string]offsetEntry)
	s.order = nil
	s.mu.Unlock()
}

// Cached wraps a source so that, for ttl after a successful reading, the
// instant is derived from the local clock plus the recorded offset instead
// of a new fetch.
type Cached struct {
	TimeSource
	ttl   time.Duration
	store *OffsetStore
	now   func() time.Time
}

// NewCached wraps src. now defaults to time.Now.
func NewCached(src TimeSource, ttl time.Duration, store *OffsetStore, now func() time.Time) *Cached {
	if now == nil {
		now = time.Now
	}
	return &Cached{TimeSource: src, ttl: ttl, store: store, now: now}
}

// CurrentDateTime implements TimeSource.
func (c *Cached) CurrentDateTime(ctx context.Context) (time.Time, error) {
	if off, ok := c.store.get(c.Name(), c.now()); ok {
		return c.now().Add(off).UTC(), nil
	}
	t, err := c.TimeSource.CurrentDateTime(ctx)
	if err != nil {
		return t, err
	}
	local := c.now()
	c.store.put(c.Name(), t.Sub(local), local.Add(c.ttl))
	return t, nil
}

// Unwrap returns the wrapped source.
func (c *Cached) Unwrap() TimeSource {
	return c.TimeSource
}
