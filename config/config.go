// Package config holds the process configuration: its schema and defaults,
// file discovery, environment overrides, and runtime updates.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/localrivet/currentdt/format"
	"github.com/localrivet/currentdt/logx"
	"github.com/localrivet/currentdt/util/conversion"
	"github.com/localrivet/currentdt/util/validator"
)

// Defaults for values left out of a configuration file.
const (
	DefaultFormat   = "iso"
	DefaultProvider = "local"
	DefaultLogLevel = "info"

	DefaultPriority = 1

	DefaultCacheTTL     = 1000
	DefaultCacheMaxSize = 100

	DefaultRemoteTimeout = 5000
)

// Configuration is the full process configuration. Every field is
// populated; Default returns the baseline.
type Configuration struct {
	DefaultFormat   string                    `json:"defaultFormat" yaml:"defaultFormat" toml:"defaultFormat"`
	DefaultProvider string                    `json:"defaultProvider" yaml:"defaultProvider" toml:"defaultProvider"`
	Providers       map[string]ProviderConfig `json:"providers" yaml:"providers" toml:"providers"`
	CustomFormats   map[string]string         `json:"customFormats" yaml:"customFormats" toml:"customFormats"`
	Cache           *CacheConfig              `json:"cache,omitempty" yaml:"cache,omitempty" toml:"cache,omitempty"`
	Debug           bool                      `json:"debug" yaml:"debug" toml:"debug"`
	LogLevel        string                    `json:"logLevel" yaml:"logLevel" toml:"logLevel"`
}

// ProviderConfig configures one time source. Config carries
// provider-specific settings, e.g. url and timeout for the remote source.
type ProviderConfig struct {
	Name     string                 `json:"name" yaml:"name" toml:"name"`
	Enabled  bool                   `json:"enabled" yaml:"enabled" toml:"enabled"`
	Priority int                    `json:"priority" yaml:"priority" toml:"priority"`
	Config   map[string]interface{} `json:"config,omitempty" yaml:"config,omitempty" toml:"config,omitempty"`
}

// CacheConfig controls the remote reading cache. TTL is in milliseconds.
type CacheConfig struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	TTL     int  `json:"ttl" yaml:"ttl" toml:"ttl"`
	MaxSize int  `json:"maxSize" yaml:"maxSize" toml:"maxSize"`
}

// Default returns the built-in configuration.
func Default() Configuration {
	return Configuration{
		DefaultFormat:   DefaultFormat,
		DefaultProvider: DefaultProvider,
		Providers: map[string]ProviderConfig{
			"local": {Name: "local", Enabled: true, Priority: DefaultPriority},
		},
		CustomFormats: map[string]string{},
		LogLevel:      DefaultLogLevel,
	}
}

// DefaultCache returns the cache settings used when a cache section is
// present but incomplete.
func DefaultCache() CacheConfig {
	return CacheConfig{Enabled: true, TTL: DefaultCacheTTL, MaxSize: DefaultCacheMaxSize}
}

// Clone returns a copy that shares no maps with c.
func (c Configuration) Clone() Configuration {
	out := c
	if c.Providers != nil {
		out.Providers = make(map[string]ProviderConfig, len(c.Providers))
		for k, v := range c.Providers {
			if v.Config != nil {
				m := make(map[string]interface{}, len(v.Config))
				for ck, cv := range v.Config {
					m[ck] = cv
				}
				v.Config = m
			}
			out.Providers[k] = v
		}
	}
	if c.CustomFormats != nil {
		out.CustomFormats = make(map[string]string, len(c.CustomFormats))
		for k, v := range c.CustomFormats {
			out.CustomFormats[k] = v
		}
	}
	if c.Cache != nil {
		cc := *c.Cache
		out.Cache = &cc
	}
	return out
}

// Provider returns the configuration for name, if any.
func (c Configuration) Provider(name string) (ProviderConfig, bool) {
	pc, ok := c.Providers[name]
	return pc, ok
}

// Validate checks c and returns one message per violation.
func Validate(c Configuration) []string {
	v := validator.NewValidator()

	v.Required("defaultFormat", c.DefaultFormat)
	if c.DefaultFormat != "" {
		_, custom := c.CustomFormats[c.DefaultFormat]
		v.Check(custom || format.Validate(c.DefaultFormat), "defaultFormat", "invalid format string")
	}
	v.Required("defaultProvider", c.DefaultProvider)
	v.OneOf("logLevel", c.LogLevel, logx.LevelNames...)

	for _, name := range sortedKeys(c.Providers) {
		pc := c.Providers[name]
		field := "providers." + name
		v.Required(field+".name", pc.Name)
		v.Min(field+".priority", pc.Priority, 1)
		validateProviderSettings(v, field+".config", pc.Config)
	}

	for _, name := range sortedKeys(c.CustomFormats) {
		v.Check(format.Validate(c.CustomFormats[name]), "customFormats."+name, "invalid format string")
	}

	if c.Cache != nil {
		v.Between("cache.ttl", c.Cache.TTL, 100, 60000)
		v.Between("cache.maxSize", c.Cache.MaxSize, 10, 10000)
	}
	return v.Errors()
}

func validateProviderSettings(v *validator.Validator, field string, settings map[string]interface{}) {
	if raw, ok := settings["url"]; ok {
		s, isString := raw.(string)
		u, err := url.Parse(s)
		v.Check(isString && err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "",
			field+".url", "must be an absolute http(s) URL")
	}
	if raw, ok := settings["timeout"]; ok {
		n, err := conversion.ToInt(raw)
		if err != nil {
			v.Check(false, field+".timeout", "must be an integer")
		} else {
			v.Between(field+".timeout", n, 1000, 30000)
		}
	}
}

// Decode builds a Configuration from a generic document (as produced by a
// JSON, YAML or TOML decoder). Unknown keys are ignored and missing keys
// take their defaults. It returns one message per invalid field.
func Decode(raw map[string]interface{}) (Configuration, []string) {
	cfg := Default()
	var errs []string

	top := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == "providers" || k == "cache" {
			continue
		}
		top[k] = v
	}
	errs = append(errs, decodeInto(top, &cfg, "")...)

	if rawProviders, ok := raw["providers"]; ok && rawProviders != nil {
		providers, perrs := decodeProviders(rawProviders)
		errs = append(errs, perrs...)
		if providers != nil {
			cfg.Providers = providers
		}
	}

	if rawCache, ok := raw["cache"]; ok && rawCache != nil {
		cache := DefaultCache()
		m, err := conversion.ToMap(rawCache)
		if err != nil {
			errs = append(errs, "cache: expected object")
		} else {
			errs = append(errs, decodeInto(m, &cache, "cache.")...)
			cfg.Cache = &cache
		}
	}

	if cfg.CustomFormats == nil {
		cfg.CustomFormats = map[string]string{}
	}

	if len(errs) > 0 {
		sort.Strings(errs)
		return cfg, errs
	}
	return cfg, Validate(cfg)
}

func decodeProviders(raw interface{}) (map[string]ProviderConfig, []string) {
	m, err := conversion.ToMap(raw)
	if err != nil {
		return nil, []string{"providers: expected object"}
	}

	out := make(map[string]ProviderConfig, len(m))
	var errs []string
	for _, name := range sortedKeys(m) {
		entry, err := conversion.ToMap(m[name])
		if err != nil || entry == nil {
			errs = append(errs, fmt.Sprintf("providers.%s: expected object", name))
			continue
		}
		pc := ProviderConfig{Name: name, Enabled: true, Priority: DefaultPriority}
		errs = append(errs, decodeInto(entry, &pc, "providers."+name+".")...)
		out[name] = pc
	}
	return out, errs
}

var (
	fieldError = regexp.MustCompile(`^'([^']*)' (.*)$`)
	hookError  = regexp.MustCompile(`^error decoding '([^']*)': (.*)$`)
)

func decodeInto(input map[string]interface{}, target interface{}, prefix string) []string {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:    "json",
		Result:     target,
		DecodeHook: strictIntHook,
	})
	if err != nil {
		return []string{err.Error()}
	}
	err = dec.Decode(input)
	if err == nil {
		return nil
	}

	var merr *mapstructure.Error
	if !errors.As(err, &merr) {
		return []string{prefix + err.Error()}
	}
	out := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		switch {
		case hookError.MatchString(e):
			m := hookError.FindStringSubmatch(e)
			out = append(out, prefix+m[1]+": "+m[2])
		case fieldError.MatchString(e):
			m := fieldError.FindStringSubmatch(e)
			out = append(out, prefix+m[1]+": "+m[2])
		default:
			out = append(out, prefix+e)
		}
	}
	return out
}

// strictIntHook refuses to truncate fractional numbers into int fields.
func strictIntHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to.Kind() != reflect.Int {
		return data, nil
	}
	switch from.Kind() {
	case reflect.Float32, reflect.Float64:
		n, err := conversion.ToInt(data)
		if err != nil {
			return nil, fmt.Errorf("expected integer, got %v", data)
		}
		return n, nil
	}
	return data, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
