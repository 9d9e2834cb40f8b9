package dterr_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/currentdt/dterr"
)

func TestKindsCarryCodes(t *testing.T) {
	assert.Equal(t, dterr.CodeDateTime, dterr.DateTime("x").Code)
	assert.Equal(t, dterr.CodeProvider, dterr.Provider("remote", "x", true).Code)
	assert.Equal(t, dterr.CodeConfiguration, dterr.Configuration("x", nil, "").Code)
}

func TestAsThroughWrapping(t *testing.T) {
	base := dterr.Provider("remote", "Remote provider returned 503: Service Unavailable", true)
	wrapped := fmt.Errorf("fetch: %w", base)

	de, ok := dterr.As(wrapped)
	require.True(t, ok)
	assert.Equal(t, "remote", de.Provider)
	assert.True(t, dterr.IsRetryable(wrapped))
	assert.True(t, dterr.IsKind(wrapped, dterr.KindProvider))
	assert.False(t, dterr.IsKind(wrapped, dterr.KindDateTime))
}

func TestIsRetryableOnlyForProviders(t *testing.T) {
	de := dterr.DateTime("bad")
	de.Retryable = true
	assert.False(t, dterr.IsRetryable(de))
	assert.False(t, dterr.IsRetryable(errors.New("plain")))
}

func TestBuilders(t *testing.T) {
	cause := errors.New("boom")
	de := dterr.DateTimef("Unexpected error: %s", cause).WithFormat("iso").WithProvider("local").WithDetails("d").WithCause(cause)

	assert.Equal(t, "Unexpected error: boom", de.Error())
	assert.Equal(t, "iso", de.Format)
	assert.Equal(t, "local", de.Provider)
	assert.Equal(t, dterr.KindDateTime, de.Kind)
	assert.Equal(t, "d", de.Details)
	assert.ErrorIs(t, de, cause)
}

func TestConfigurationPayload(t *testing.T) {
	de := dterr.Configuration("Invalid configuration", []string{"logLevel: invalid value"}, "/etc/currentdt.json")
	assert.Equal(t, dterr.KindConfiguration, de.Kind)
	assert.Equal(t, []string{"logLevel: invalid value"}, de.ValidationErrors)
	assert.Equal(t, "/etc/currentdt.json", de.ConfigPath)
}
