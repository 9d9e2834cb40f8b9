// Package options sanitizes and validates the untrusted arguments of a
// datetime request.
package options

import (
	"encoding/json"
	"errors"
	"reflect"
	"regexp"
	"sort"

	"github.com/mitchellh/mapstructure"

	"github.com/localrivet/currentdt/format"
	"github.com/localrivet/currentdt/util/conversion"
	"github.com/localrivet/currentdt/util/validator"
)

// Defaults applied to fields the caller leaves out.
const (
	DefaultFormat   = format.ISO
	DefaultProvider = "local"
)

// Options are the arguments of a datetime request. The struct tags double
// as the tool's input schema.
type Options struct {
	Format   string `json:"format,omitempty" default:"iso" description:"Date format: \"iso\" for ISO 8601 (default), or custom format using tokens (YYYY, MM, DD, HH, mm, ss, SSS). Common examples: \"iso\", \"YYYY-MM-DD\", \"YYYY-MM-DD HH:mm:ss\", \"MM/DD/YYYY\", \"YYYY-MM-DD-HHmmss\""`
	Provider string `json:"provider,omitempty" default:"local" enum:"local,remote" description:"DateTime provider: \"local\" for system clock (default), \"remote\" for network time service"`
}

// Explicit records which fields the caller actually supplied.
type Explicit struct {
	Format   bool
	Provider bool
}

// Result is the outcome of Validate.
type Result struct {
	Value    Options
	Explicit Explicit
	Errors   []string
}

// OK reports whether validation succeeded.
func (r Result) OK() bool {
	return len(r.Errors) == 0
}

// Option configures Validate.
type Option func(*settings)

type settings struct {
	customFormats map[string]string
}

// WithCustomFormats makes the given custom format names acceptable as a
// format value.
func WithCustomFormats(custom map[string]string) Option {
	return func(s *settings) {
		s.customFormats = custom
	}
}

// Keys that must never reach decoding.
var reservedKeys = []string{"__proto__", "constructor", "prototype"}

var knownKeys = map[string]struct{}{"format": {}, "provider": {}}

// Sanitize turns arbitrary input into a plain object. Anything that is not
// an object becomes an empty object, and reserved keys are dropped. The
// input is never modified.
func Sanitize(raw interface{}) map[string]interface{} {
	out := map[string]interface{}{}
	if raw == nil {
		return out
	}

	var (
		m   map[string]interface{}
		err error
	)
	switch v := raw.(type) {
	case map[string]interface{}:
		m, err = conversion.ToMap(v)
	case json.RawMessage, []byte:
		m, err = conversion.ToMap(v)
	default:
		k := reflect.TypeOf(raw).Kind()
		if k == reflect.Ptr {
			k = reflect.TypeOf(raw).Elem().Kind()
		}
		if k != reflect.Struct && k != reflect.Map {
			return out
		}
		m, err = conversion.ToMap(v)
	}
	if err != nil || m == nil {
		return out
	}

	for _, key := range reservedKeys {
		delete(m, key)
	}
	return m
}

// mapstructure reports field errors as "'<field>' <problem>".
var fieldError = regexp.MustCompile(`^'([^']*)' (.*)$`)

// Validate strictly decodes raw into Options, fills defaults, and checks the
// format. Unknown keys are errors. Every violation yields one message.
func Validate(raw map[string]interface{}, opts ...Option) Result {
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	v := validator.NewValidator()

	// mapstructure matches names case-insensitively, so unknown keys are
	// filtered here rather than left to the decoder.
	known := make(map[string]interface{}, len(raw))
	var unknown, nulls []string
	for key, val := range raw {
		if _, ok := knownKeys[key]; ok {
			// The decoder would zero a null, which reads as "not given".
			if val == nil {
				nulls = append(nulls, key)
				continue
			}
			known[key] = val
			continue
		}
		unknown = append(unknown, key)
	}

	var decoded Options
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      &decoded,
		ErrorUnused: true,
	})
	if err != nil {
		return Result{Errors: []string{err.Error()}}
	}
	if err := dec.Decode(known); err != nil {
		for _, msg := range decodeErrors(err) {
			v.Add(msg)
		}
	}

	sort.Strings(nulls)
	for _, key := range nulls {
		v.Check(false, key, "expected string")
	}

	sort.Strings(unknown)
	for _, key := range unknown {
		v.Check(false, key, "Unrecognized key")
	}

	if v.HasErrors() {
		return Result{Errors: v.Errors()}
	}

	res := Result{
		Value: decoded,
		Explicit: Explicit{
			Format:   decoded.Format != "",
			Provider: decoded.Provider != "",
		},
	}
	if res.Value.Format == "" {
		res.Value.Format = DefaultFormat
	}
	if res.Value.Provider == "" {
		res.Value.Provider = DefaultProvider
	}

	if f := res.Value.Format; res.Explicit.Format && f != format.ISO && !format.Validate(f) {
		if _, custom := s.customFormats[f]; !custom {
			return Result{Errors: []string{"Invalid format string: " + f}}
		}
	}
	return res
}

func decodeErrors(err error) []string {
	var merr *mapstructure.Error
	if !errors.As(err, &merr) {
		return []string{err.Error()}
	}
	out := make([]string, 0, len(merr.Errors))
	for _, e := range merr.Errors {
		if m := fieldError.FindStringSubmatch(e); m != nil {
			out = append(out, m[1]+": "+m[2])
			continue
		}
		out = append(out, e)
	}
	sort.Strings(out)
	return out
}
