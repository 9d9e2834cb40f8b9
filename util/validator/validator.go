// Package validator collects field validation errors using a fluent interface.
// Messages have the form "<field>: <problem>".
package validator

import (
	"fmt"
	"strings"
)

// Validator accumulates validation errors.
type Validator struct {
	errors []string
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

func (v *Validator) addf(field, format string, args ...interface{}) *Validator {
	v.errors = append(v.errors, field+": "+fmt.Sprintf(format, args...))
	return v
}

// Required checks that a string field is not empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		return v.addf(field, "is required")
	}
	return v
}

// Min checks if a numeric field meets minimum value requirement.
func (v *Validator) Min(field string, value, min int) *Validator {
	if value < min {
		return v.addf(field, "must be at least %d", min)
	}
	return v
}

// Max checks if a numeric field meets maximum value requirement.
func (v *Validator) Max(field string, value, max int) *Validator {
	if value > max {
		return v.addf(field, "must be at most %d", max)
	}
	return v
}

// Between checks min <= value <= max.
func (v *Validator) Between(field string, value, min, max int) *Validator {
	return v.Min(field, value, min).Max(field, value, max)
}

// OneOf checks that value is one of allowed.
func (v *Validator) OneOf(field, value string, allowed ...string) *Validator {
	for _, a := range allowed {
		if value == a {
			return v
		}
	}
	return v.addf(field, "must be one of [%s], got %q", strings.Join(allowed, ", "), value)
}

// Check records message for field when ok is false.
func (v *Validator) Check(ok bool, field, message string) *Validator {
	if !ok {
		return v.addf(field, "%s", message)
	}
	return v
}

// Add records an already formatted message.
func (v *Validator) Add(message string) *Validator {
	v.errors = append(v.errors, message)
	return v
}

// Errors returns any validation errors.
func (v *Validator) Errors() []string {
	return v.errors
}

// HasErrors checks if there are any validation errors.
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Error returns a combined error message if there are any validation errors.
func (v *Validator) Error() error {
	if !v.HasErrors() {
		return nil
	}
	return fmt.Errorf("validation failed: %s", strings.Join(v.errors, ", "))
}
