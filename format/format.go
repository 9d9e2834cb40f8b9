// Package format renders instants using a small token grammar.
//
// A format specification is either "iso", one of the predefined names
// (filename, logdate, simple), or a template in which the tokens
// YYYY MM DD HH mm ss SSS are replaced by zero-padded UTC components.
// Everything else in a template is copied through unchanged.
package format

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/localrivet/currentdt/dterr"
)

// ISO is the name of the default format.
const ISO = "iso"

// InvalidFormat is what Example returns for a specification it cannot render.
const InvalidFormat = "Invalid format"

// isoLayout renders the "iso" format with millisecond precision.
const isoLayout = "2006-01-02T15:04:05.000Z"

var (
	tokenPattern = regexp.MustCompile(`YYYY|MM|DD|HH|mm|ss|SSS`)

	// Runs of one repeated token letter, in either case. A run of two or
	// more that is not itself a token (yyyy, dd, hh, MMM, YY) is a mistyped
	// token.
	letterRun = regexp.MustCompile(`Y+|M+|D+|H+|S+|m+|s+|y+|d+|h+`)

	// UPPER_SNAKE placeholders left after the tokens are removed.
	placeholder = regexp.MustCompile(`[A-Z][A-Z0-9]*(?:_[A-Z0-9]+)+`)

	referenceInstant = time.Date(2025, time.August, 26, 14, 30, 0, 123_000_000, time.UTC)
)

var tokens = map[string]string{
	"YYYY": "4-digit year",
	"MM":   "2-digit month",
	"DD":   "2-digit day",
	"HH":   "24-hour format hour",
	"mm":   "2-digit minutes",
	"ss":   "2-digit seconds",
	"SSS":  "3-digit milliseconds",
}

var predefined = map[string]string{
	"iso":      "YYYY-MM-DDTHH:mm:ss.SSSZ",
	"filename": "YYYY-MM-DD-HHmmss",
	"logdate":  "YYYY/MM/DD HH:mm:ss",
	"simple":   "MM/DD/YYYY",
}

// Tokens returns the supported tokens and their descriptions.
func Tokens() map[string]string {
	out := make(map[string]string, len(tokens))
	for k, v := range tokens {
		out[k] = v
	}
	return out
}

// Predefined returns the predefined format names and their templates.
func Predefined() map[string]string {
	out := make(map[string]string, len(predefined))
	for k, v := range predefined {
		out[k] = v
	}
	return out
}

// PredefinedNames returns the predefined format names, sorted.
func PredefinedNames() []string {
	names := make([]string, 0, len(predefined))
	for k := range predefined {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// ValidInstant reports whether t can be rendered by every format.
func ValidInstant(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.UTC().Year()
	return y >= 0 && y <= 9999
}

// Format renders t according to spec. An empty spec means "iso".
func Format(t time.Time, spec string) (string, error) {
	if !ValidInstant(t) {
		return "", dterr.DateTime("Invalid date provided for formatting").WithFormat(spec)
	}
	t = t.UTC()

	if spec == "" || spec == ISO {
		return t.Format(isoLayout), nil
	}
	if pattern, ok := predefined[spec]; ok {
		return render(t, pattern), nil
	}
	return render(t, spec), nil
}

func render(t time.Time, template string) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(token string) string {
		switch token {
		case "YYYY":
			return fmt.Sprintf("%04d", t.Year())
		case "MM":
			return fmt.Sprintf("%02d", int(t.Month()))
		case "DD":
			return fmt.Sprintf("%02d", t.Day())
		case "HH":
			return fmt.Sprintf("%02d", t.Hour())
		case "mm":
			return fmt.Sprintf("%02d", t.Minute())
		case "ss":
			return fmt.Sprintf("%02d", t.Second())
		case "SSS":
			return fmt.Sprintf("%03d", t.Nanosecond()/int(time.Millisecond))
		}
		return token
	})
}

// Validate reports whether spec is a usable format specification.
func Validate(spec string) bool {
	if spec == "" {
		return false
	}
	if spec == ISO {
		return true
	}
	if _, ok := predefined[spec]; ok {
		return true
	}
	for _, run := range letterRun.FindAllString(spec, -1) {
		if _, ok := tokens[run]; !ok && len(run) > 1 {
			return false
		}
	}
	return !placeholder.MatchString(tokenPattern.ReplaceAllString(spec, " "))
}

// Example renders the reference instant 2025-08-26T14:30:00.123Z with spec,
// or returns InvalidFormat.
func Example(spec string) string {
	if !Validate(spec) {
		return InvalidFormat
	}
	out, err := Format(referenceInstant, spec)
	if err != nil {
		return InvalidFormat
	}
	return out
}

// Resolve maps a custom format name to its template. Names that are not
// custom formats are returned unchanged.
func Resolve(spec string, custom map[string]string) string {
	if custom == nil {
		return spec
	}
	if _, ok := predefined[spec]; ok {
		return spec
	}
	if tmpl, ok := custom[strings.TrimSpace(spec)]; ok && tmpl != "" {
		return tmpl
	}
	return spec
}
