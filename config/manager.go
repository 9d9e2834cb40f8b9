package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/logx"
)

// Environment variables read by the manager.
const (
	EnvConfigPath = "CURRENTDT_CONFIG"
	EnvFormat     = "CURRENTDT_FORMAT"
	EnvProvider   = "CURRENTDT_PROVIDER"
	EnvDebug      = "CURRENTDT_DEBUG"
)

// DefaultFileName is where Save writes when no file was loaded.
const DefaultFileName = "currentdt-config.json"

// DefaultWatchInterval is the polling interval used by Watch when none is given.
const DefaultWatchInterval = 30 * time.Second

// Subscriber is notified with the new configuration after every change.
// A returned error is logged and does not affect other subscribers.
type Subscriber func(Configuration) error

// Manager owns the live configuration.
type Manager struct {
	mu      sync.RWMutex
	cfg     Configuration
	path    string
	modTime time.Time
	subs    []Subscriber

	logger  *slog.Logger
	getenv  func(string) string
	workDir string
	homeDir string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithEnv replaces os.Getenv, mainly for tests.
func WithEnv(getenv func(string) string) Option {
	return func(m *Manager) {
		m.getenv = getenv
	}
}

// WithWorkDir sets the directory searched for project-local files.
func WithWorkDir(dir string) Option {
	return func(m *Manager) {
		m.workDir = dir
	}
}

// WithHomeDir sets the directory searched for per-user files.
func WithHomeDir(dir string) Option {
	return func(m *Manager) {
		m.homeDir = dir
	}
}

// NewManager returns a manager holding the default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		cfg:    Default(),
		logger: logx.Discard(),
		getenv: os.Getenv,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workDir == "" {
		m.workDir, _ = os.Getwd()
	}
	if m.homeDir == "" {
		m.homeDir, _ = os.UserHomeDir()
	}
	return m
}

// SearchPaths lists candidate files in priority order.
func (m *Manager) SearchPaths() []string {
	var paths []string
	if p := m.getenv(EnvConfigPath); p != "" {
		paths = append(paths, p)
	}
	if m.workDir != "" {
		paths = append(paths,
			filepath.Join(m.workDir, "currentdt-config.json"),
			filepath.Join(m.workDir, "currentdt-config.yaml"),
			filepath.Join(m.workDir, "currentdt-config.yml"),
			filepath.Join(m.workDir, "currentdt-config.toml"),
			filepath.Join(m.workDir, "config.json"),
		)
	}
	if m.homeDir != "" {
		paths = append(paths,
			filepath.Join(m.homeDir, ".currentdt-config.json"),
			filepath.Join(m.homeDir, ".config", "currentdt", "config.json"),
		)
	}
	return paths
}

// Load discovers and reads the configuration file, then applies environment
// overrides. Without a file the defaults stand. On failure the manager keeps
// the defaults (plus overrides) and returns a configuration error.
func (m *Manager) Load() error {
	path := ""
	for _, p := range m.SearchPaths() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			path = p
			break
		}
	}

	cfg := Default()
	var loadErr error
	var modTime time.Time
	if path == "" {
		m.logger.Debug("no configuration file found, using defaults")
	} else {
		m.logger.Debug("found configuration file", "path", path)
		loaded, mt, err := readFile(path)
		if err != nil {
			loadErr = err
		} else {
			cfg = loaded
			modTime = mt
			m.logger.Debug("configuration loaded",
				"path", path,
				"defaultFormat", cfg.DefaultFormat,
				"defaultProvider", cfg.DefaultProvider)
		}
	}

	m.applyEnv(&cfg)

	m.mu.Lock()
	m.cfg = cfg
	m.path = path
	m.modTime = modTime
	m.mu.Unlock()
	return loadErr
}

func readFile(path string) (Configuration, time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Configuration{}, time.Time{}, loadError(path, err)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Configuration{}, time.Time{}, loadError(path, err)
	}

	raw, err := unmarshal(path, data)
	if err != nil {
		return Configuration{}, time.Time{}, loadError(path, err)
	}
	cfg, errs := Decode(raw)
	if len(errs) > 0 {
		return Configuration{}, time.Time{}, dterr.Configuration("Configuration validation failed", errs, path)
	}
	return cfg, info.ModTime(), nil
}

func loadError(path string, err error) error {
	return dterr.Configuration(
		fmt.Sprintf("Failed to load configuration from %s: %v", path, err), nil, path).WithCause(err)
}

func unmarshal(path string, data []byte) (map[string]interface{}, error) {
	raw := map[string]interface{}{}
	if len(bytes.TrimSpace(data)) == 0 {
		return raw, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case ".toml":
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

func (m *Manager) applyEnv(cfg *Configuration) {
	var applied []any
	if v := m.getenv(EnvFormat); v != "" {
		cfg.DefaultFormat = v
		applied = append(applied, "defaultFormat", v)
	}
	if v := m.getenv(EnvProvider); v != "" {
		cfg.DefaultProvider = v
		applied = append(applied, "defaultProvider", v)
	}
	if v := m.getenv(EnvDebug); v != "" {
		cfg.Debug = strings.ToLower(v) == "true"
		applied = append(applied, "debug", cfg.Debug)
	}
	if len(applied) > 0 {
		m.logger.Debug("applied environment variable overrides", applied...)
	}
}

// Config returns a copy of the live configuration.
func (m *Manager) Config() Configuration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.Clone()
}

// Path returns the file the configuration was loaded from, if any.
func (m *Manager) Path() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.path
}

// OnChange registers fn to be called after every successful change.
func (m *Manager) OnChange(fn Subscriber) {
	m.mu.Lock()
	m.subs = append(m.subs, fn)
	m.mu.Unlock()
}

// Update applies fn to a copy of the configuration, validates the result,
// and swaps it in. Subscribers are notified synchronously. fn runs under the
// manager's lock and must not call back into it.
func (m *Manager) Update(fn func(*Configuration)) error {
	m.mu.Lock()
	next := m.cfg.Clone()
	fn(&next)
	if errs := Validate(next); len(errs) > 0 {
		path := m.path
		m.mu.Unlock()
		return dterr.Configuration("Invalid configuration update", errs, path)
	}
	m.cfg = next
	m.mu.Unlock()

	m.logger.Info("configuration updated",
		"defaultFormat", next.DefaultFormat,
		"defaultProvider", next.DefaultProvider,
		"logLevel", next.LogLevel)
	m.notify(next)
	return nil
}

func (m *Manager) notify(cfg Configuration) {
	m.mu.RLock()
	subs := append([]Subscriber(nil), m.subs...)
	m.mu.RUnlock()

	for _, fn := range subs {
		m.callSubscriber(fn, cfg.Clone())
	}
}

func (m *Manager) callSubscriber(fn Subscriber, cfg Configuration) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("configuration change callback panicked", "panic", fmt.Sprint(r))
		}
	}()
	if err := fn(cfg); err != nil {
		m.logger.Error("error in configuration change callback", "error", err)
	}
}

// Save writes the live configuration to path, or to the loaded file, or to
// DefaultFileName in the working directory. The encoding follows the
// extension.
func (m *Manager) Save(path string) error {
	m.mu.Lock()
	if path == "" {
		path = m.path
	}
	if path == "" {
		path = filepath.Join(m.workDir, DefaultFileName)
	}
	cfg := m.cfg.Clone()
	m.mu.Unlock()

	data, err := marshal(path, cfg)
	if err == nil {
		err = os.WriteFile(path, data, 0o644)
	}
	if err != nil {
		return dterr.Configuration(
			fmt.Sprintf("Failed to save configuration to %s: %v", path, err), nil, path).WithCause(err)
	}

	m.mu.Lock()
	m.path = path
	if info, statErr := os.Stat(path); statErr == nil {
		m.modTime = info.ModTime()
	}
	m.mu.Unlock()

	m.logger.Info("configuration saved", "path", path)
	return nil
}

func marshal(path string, cfg Configuration) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Marshal(cfg)
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	}
}

// Reset restores the defaults and forgets the loaded file and subscribers.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.cfg = Default()
	m.path = ""
	m.modTime = time.Time{}
	m.subs = nil
	m.mu.Unlock()
	m.logger.Info("configuration reset to defaults")
}

// Watch polls the loaded file every interval and reloads it when its
// modification time changes. It returns when ctx is done. Reload failures
// are logged and the previous configuration stays live.
func (m *Manager) Watch(ctx context.Context, interval time.Duration) {
	if m.Path() == "" {
		m.logger.Debug("no configuration file to watch")
		return
	}
	if interval <= 0 {
		interval = DefaultWatchInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Reload(); err != nil {
				m.logger.Warn("configuration file watch error", "error", err)
			}
		}
	}
}

// Reload re-reads the loaded file if it changed since the last read and
// reports whether a new configuration was applied.
func (m *Manager) Reload() (bool, error) {
	m.mu.RLock()
	path, last := m.path, m.modTime
	m.mu.RUnlock()
	if path == "" {
		return false, nil
	}

	info, err := os.Stat(path)
	if err != nil {
		return false, loadError(path, err)
	}
	if info.ModTime().Equal(last) {
		return false, nil
	}

	cfg, modTime, err := readFile(path)
	if err != nil {
		return false, err
	}
	m.applyEnv(&cfg)

	m.mu.Lock()
	m.cfg = cfg
	m.modTime = modTime
	m.mu.Unlock()

	m.logger.Info("configuration reloaded", "path", path)
	m.notify(cfg)
	return true, nil
}
