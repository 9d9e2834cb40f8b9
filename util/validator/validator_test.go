package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidatorCollectsErrors(t *testing.T) {
	v := NewValidator().
		Required("defaultFormat", "").
		Between("cache.ttl", 50, 100, 60000).
		Between("cache.maxSize", 20000, 10, 10000).
		OneOf("logLevel", "verbose", "debug", "info").
		Check(false, "providers.local.priority", "must be at least 1")

	assert.True(t, v.HasErrors())
	assert.Equal(t, []string{
		"defaultFormat: is required",
		"cache.ttl: must be at least 100",
		"cache.maxSize: must be at most 10000",
		`logLevel: must be one of [debug, info], got "verbose"`,
		"providers.local.priority: must be at least 1",
	}, v.Errors())
	assert.EqualError(t, v.Error(), "validation failed: "+
		"defaultFormat: is required, cache.ttl: must be at least 100, "+
		"cache.maxSize: must be at most 10000, "+
		`logLevel: must be one of [debug, info], got "verbose", `+
		"providers.local.priority: must be at least 1")
}

func TestValidatorPasses(t *testing.T) {
	v := NewValidator().
		Required("defaultProvider", "local").
		Between("cache.ttl", 1000, 100, 60000).
		OneOf("logLevel", "info", "debug", "info").
		Check(true, "x", "unused")

	assert.False(t, v.HasErrors())
	assert.NoError(t, v.Error())
	assert.Empty(t, v.Errors())
}

func TestValidatorAdd(t *testing.T) {
	v := NewValidator().Add("Invalid format string: QQ")
	assert.Equal(t, []string{"Invalid format string: QQ"}, v.Errors())
}
