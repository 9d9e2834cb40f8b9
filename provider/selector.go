package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/util/conversion"
)

// Factory builds a source. settings is the source's entry in the
// configuration, or nil when there is none.
type Factory func(settings *config.ProviderConfig) (TimeSource, error)

// Selector maps names to sources, memoizes constructed instances, and picks
// an available source when asked.
type Selector struct {
	mu        sync.Mutex
	order     []string
	factories map[string]Factory
	instances map[string]TimeSource
	group     singleflight.Group
	offsets   *OffsetStore

	logger *slog.Logger
	client *http.Client
	now    func() time.Time
}

// SelectorOption configures a Selector.
type SelectorOption func(*Selector)

// WithLogger sets the selector's logger.
func WithLogger(logger *slog.Logger) SelectorOption {
	return func(s *Selector) {
		s.logger = logger
	}
}

// WithHTTPClient sets the client used by the built-in remote source.
func WithHTTPClient(client *http.Client) SelectorOption {
	return func(s *Selector) {
		s.client = client
	}
}

// WithClock sets the clock used by the built-in local source and the
// offset cache.
func WithClock(now func() time.Time) SelectorOption {
	return func(s *Selector) {
		s.now = now
	}
}

// NewSelector returns a selector with the local and remote sources
// registered, in that order.
func NewSelector(opts ...SelectorOption) *Selector {
	s := &Selector{
		factories: make(map[string]Factory),
		instances: make(map[string]TimeSource),
		offsets:   NewOffsetStore(config.DefaultCacheMaxSize),
		logger:    logx.Discard(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.Register(LocalName, func(*config.ProviderConfig) (TimeSource, error) {
		return NewLocal(s.now), nil
	})
	s.Register(RemoteName, s.newRemote)
	return s
}

// newRemote honours url, timeout (ms) and priority from the configuration
// when a url is configured.
func (s *Selector) newRemote(settings *config.ProviderConfig) (TimeSource, error) {
	opts := RemoteOptions{
		URL:      DefaultRemoteURL,
		Timeout:  DefaultRemoteTimeout,
		Priority: DefaultRemotePriority,
		Client:   s.client,
	}
	if settings != nil {
		if u, ok := settings.Config["url"].(string); ok && u != "" {
			opts.URL = u
			if ms, err := conversion.ToInt(settings.Config["timeout"]); err == nil && ms > 0 {
				opts.Timeout = time.Duration(ms) * time.Millisecond
			}
			if settings.Priority > 0 {
				opts.Priority = settings.Priority
			}
		}
	}
	return NewRemote(opts)
}

// Register adds or replaces a factory. A replaced factory's memoized
// instance is dropped.
func (s *Selector) Register(name string, factory Factory) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.factories[name]; !exists {
		s.order = append(s.order, name)
	}
	s.factories[name] = factory
	delete(s.instances, name)
	s.group.Forget(name)
}

// Names returns the registered names in registration order.
func (s *Selector) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.order...)
}

// Has reports whether name is registered.
func (s *Selector) Has(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.factories[name]
	return ok
}

// Create returns the memoized instance for name, constructing it on first
// use. cfg may be nil.
func (s *Selector) Create(name string, cfg *config.Configuration) (TimeSource, error) {
	s.mu.Lock()
	inst, cached := s.instances[name]
	factory, known := s.factories[name]
	s.mu.Unlock()

	if cached {
		return inst, nil
	}
	if !known {
		return nil, dterr.Provider(name, fmt.Sprintf("Provider '%s' not found", name), false)
	}

	var settings *config.ProviderConfig
	if cfg != nil {
		if pc, ok := cfg.Provider(name); ok {
			if !pc.Enabled {
				return nil, dterr.Provider(name, fmt.Sprintf("Provider '%s' is disabled", name), false)
			}
			settings = &pc
		}
	}

	v, err, _ := s.group.Do(name, func() (interface{}, error) {
		s.mu.Lock()
		if inst, ok := s.instances[name]; ok {
			s.mu.Unlock()
			return inst, nil
		}
		s.mu.Unlock()

		src, err := factory(settings)
		if err != nil {
			return nil, dterr.Provider(name,
				fmt.Sprintf("Failed to create provider '%s': %v", name, err), false).WithCause(err)
		}
		if cfg != nil && cfg.Cache != nil && cfg.Cache.Enabled && name != LocalName {
			s.offsets.resize(cfg.Cache.MaxSize)
			src = NewCached(src, time.Duration(cfg.Cache.TTL)*time.Millisecond, s.offsets, s.now)
		}

		s.mu.Lock()
		s.instances[name] = src
		s.mu.Unlock()
		s.logger.Debug("provider created", "provider", name, "priority", src.Priority())
		return src, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(TimeSource), nil
}

// AvailableProvider returns the first source that can be constructed and
// reports itself available, trying prefs first and then every registered
// name in registration order.
func (s *Selector) AvailableProvider(ctx context.Context, prefs []string) (TimeSource, error) {
	for _, name := range append(append([]string(nil), prefs...), s.Names()...) {
		src, err := s.Create(name, nil)
		if err != nil {
			s.logger.DebugContext(ctx, "provider unusable", "provider", name, "error", err)
			continue
		}
		if src.IsAvailable(ctx) {
			return src, nil
		}
		s.logger.DebugContext(ctx, "provider unavailable", "provider", name)
	}
	return nil, dterr.Provider("unknown", "No available datetime providers found", false)
}

// Clear drops every memoized instance and cached offset.
func (s *Selector) Clear() {
	s.mu.Lock()
	s.instances = make(map[string]TimeSource)
	for name := range s.factories {
		s.group.Forget(name)
	}
	s.mu.Unlock()
	s.offsets.Purge()
}
