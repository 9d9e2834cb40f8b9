// Package service orchestrates a datetime request: validate the options,
// pick a time source, fetch, fall back to the local clock, and format.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/format"
	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/metrics"
	"github.com/localrivet/currentdt/options"
	"github.com/localrivet/currentdt/provider"
)

// TracerName names the tracer used when none is supplied.
const TracerName = "github.com/localrivet/currentdt/service"

// CustomFormatsHint is the last entry of SupportedFormats.
const CustomFormatsHint = "custom (using YYYY, MM, DD, HH, mm, ss, SSS tokens)"

// DateTimeService answers datetime requests.
type DateTimeService struct {
	mu  sync.RWMutex
	cfg config.Configuration

	selector *provider.Selector
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a DateTimeService.
type Option func(*DateTimeService)

// WithSelector sets the time source selector.
func WithSelector(s *provider.Selector) Option {
	return func(svc *DateTimeService) {
		svc.selector = s
	}
}

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(svc *DateTimeService) {
		svc.logger = logger
	}
}

// WithMetrics sets the metrics sink. Nil disables metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(svc *DateTimeService) {
		svc.metrics = m
	}
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(svc *DateTimeService) {
		svc.tracer = t
	}
}

// New creates a service using cfg.
func New(cfg config.Configuration, opts ...Option) *DateTimeService {
	svc := &DateTimeService{
		cfg:    cfg.Clone(),
		logger: logx.Discard(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.selector == nil {
		svc.selector = provider.NewSelector(provider.WithLogger(svc.logger))
	}
	if svc.tracer == nil {
		svc.tracer = otel.Tracer(TracerName)
	}
	return svc
}

// Config returns a copy of the configuration in use.
func (s *DateTimeService) Config() config.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Clone()
}

// CurrentDateTime returns the current instant rendered per the request
// options. raw is the untrusted argument object. Every error returned is a
// *dterr.Error.
func (s *DateTimeService) CurrentDateTime(ctx context.Context, raw interface{}) (string, error) {
	id := "dt-" + uuid.NewString()
	ctx = logx.WithCorrelationID(ctx, id)
	ctx, span := s.tracer.Start(ctx, "DateTimeService.CurrentDateTime",
		trace.WithAttributes(attribute.String("correlation.id", id)))
	defer span.End()

	s.logger.DebugContext(ctx, "datetime request started", "options", raw)

	out, err := s.currentDateTime(ctx, raw, span)
	if err != nil {
		if _, ok := dterr.As(err); !ok {
			err = dterr.DateTimef("Unexpected error: %v", err).WithCause(err)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "datetime request failed", "error", err)
		return "", err
	}
	return out, nil
}

func (s *DateTimeService) currentDateTime(ctx context.Context, raw interface{}, span trace.Span) (string, error) {
	cfg := s.Config()

	args := options.Sanitize(raw)
	res := options.Validate(args, options.WithCustomFormats(cfg.CustomFormats))
	if !res.OK() {
		requested, _ := args["format"].(string)
		return "", dterr.DateTime("Invalid options: " + strings.Join(res.Errors, ", ")).
			WithFormat(requested).
			WithDetails(res.Errors)
	}

	spec := res.Value.Format
	if !res.Explicit.Format && cfg.DefaultFormat != "" {
		spec = cfg.DefaultFormat
	}
	name := res.Value.Provider
	if !res.Explicit.Provider && cfg.DefaultProvider != "" {
		name = cfg.DefaultProvider
	}
	template := format.Resolve(spec, cfg.CustomFormats)

	span.SetAttributes(
		attribute.String("datetime.format", spec),
		attribute.String("datetime.provider", name),
	)
	s.logger.DebugContext(ctx, "processing datetime request", "format", spec, "provider", name)

	available := s.selector.Names()
	if !slices.Contains(available, name) {
		return "", dterr.Provider(name, fmt.Sprintf("Provider '%s' is not available. Available providers: %s",
			name, strings.Join(available, ", ")), false)
	}

	t, err := s.fetch(ctx, name, &cfg)
	if err != nil {
		return "", err
	}
	if !format.ValidInstant(t) {
		return "", dterr.DateTime("Invalid date returned from provider").WithProvider(name)
	}

	out, err := format.Format(t, template)
	if err != nil {
		return "", err
	}
	s.logger.DebugContext(ctx, "datetime request completed", "format", spec, "provider", name, "result", out)
	return out, nil
}

// fetch reads from the named source and, on any failure, once from the
// first available source preferring local.
func (s *DateTimeService) fetch(ctx context.Context, name string, cfg *config.Configuration) (time.Time, error) {
	t, err := s.fetchFrom(ctx, name, cfg)
	if err == nil {
		s.logger.DebugContext(ctx, "retrieved datetime from provider", "provider", name, "datetime", t)
		return t, nil
	}

	level := slog.LevelError
	if dterr.IsRetryable(err) {
		level = slog.LevelWarn
	}
	s.logger.Log(ctx, level, "primary provider failed, attempting fallback", "provider", name, "error", err)

	fallback, fbErr := s.selector.AvailableProvider(ctx, []string{provider.LocalName})
	if fbErr == nil {
		t, fbErr = s.read(ctx, fallback)
	}
	if fbErr != nil {
		return time.Time{}, dterr.Provider("all",
			fmt.Sprintf("All providers failed. Primary: %s. Fallback: %s", err.Error(), fbErr.Error()), false).
			WithDetails(map[string]string{"primary": err.Error(), "fallback": fbErr.Error()})
	}

	s.metrics.IncrementFallback()
	s.logger.InfoContext(ctx, "used fallback provider", "fallbackProvider", fallback.Name())
	return t, nil
}

func (s *DateTimeService) fetchFrom(ctx context.Context, name string, cfg *config.Configuration) (time.Time, error) {
	src, err := s.selector.Create(name, cfg)
	if err != nil {
		return time.Time{}, err
	}
	return s.read(ctx, src)
}

func (s *DateTimeService) read(ctx context.Context, src provider.TimeSource) (time.Time, error) {
	start := time.Now()
	t, err := src.CurrentDateTime(ctx)
	s.metrics.ObserveFetch(src.Name(), time.Since(start))
	if err != nil {
		s.metrics.IncrementFailure(src.Name(), dterr.IsRetryable(err))
	}
	return t, err
}

// ValidateFormat reports whether spec is usable, counting configured custom
// format names.
func (s *DateTimeService) ValidateFormat(spec string) bool {
	s.mu.RLock()
	_, custom := s.cfg.CustomFormats[spec]
	s.mu.RUnlock()
	return custom || format.Validate(spec)
}

// SupportedProviders returns the registered time source names.
func (s *DateTimeService) SupportedProviders() []string {
	return s.selector.Names()
}

// SupportedFormats lists iso, the predefined names, the configured custom
// names, and a hint about token templates.
func (s *DateTimeService) SupportedFormats() []string {
	out := []string{format.ISO}
	for _, name := range format.PredefinedNames() {
		if name != format.ISO {
			out = append(out, name)
		}
	}

	s.mu.RLock()
	custom := make([]string, 0, len(s.cfg.CustomFormats))
	for name := range s.cfg.CustomFormats {
		custom = append(custom, name)
	}
	s.mu.RUnlock()
	sort.Strings(custom)

	out = append(out, custom...)
	return append(out, CustomFormatsHint)
}

// FormatExample renders the reference instant with spec.
func (s *DateTimeService) FormatExample(spec string) string {
	s.mu.RLock()
	template := format.Resolve(spec, s.cfg.CustomFormats)
	s.mu.RUnlock()
	return format.Example(template)
}

// UpdateConfiguration swaps in cfg and drops memoized time sources so they
// are rebuilt with the new settings.
func (s *DateTimeService) UpdateConfiguration(cfg config.Configuration) {
	s.mu.Lock()
	s.cfg = cfg.Clone()
	s.mu.Unlock()

	s.selector.Clear()
	s.logger.Info("configuration updated",
		"defaultFormat", cfg.DefaultFormat,
		"defaultProvider", cfg.DefaultProvider,
		"debug", cfg.Debug)
}
