package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/currentdt/dterr"
)

func newTestRemote(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	r, err := NewRemote(RemoteOptions{URL: srv.URL, Timeout: timeout, Client: srv.Client()})
	require.NoError(t, err)
	return r
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}
}

func TestNewRemoteDefaults(t *testing.T) {
	r, err := NewRemote(RemoteOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultRemoteURL, r.URL())
	assert.Equal(t, DefaultRemoteTimeout, r.Timeout())
	assert.Equal(t, "remote", r.Name())
	assert.Equal(t, 2, r.Priority())
}

func TestNewRemoteRejectsBadURL(t *testing.T) {
	for _, u := range []string{"not a url", "ftp://example.com", "/relative"} {
		_, err := NewRemote(RemoteOptions{URL: u})
		assert.Error(t, err, u)
	}
}

func TestRemoteResponseShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"datetime", `{"datetime":"2025-08-26T14:30:00.123+00:00"}`, fixed},
		{"utc_datetime", `{"utc_datetime":"2025-08-26T14:30:00.123Z"}`, fixed},
		{"timestamp", `{"timestamp":1756218600.123}`, fixed},
		{"iso", `{"iso":"2025-08-26T14:30:00.123Z"}`, fixed},
		{"datetime wins", `{"datetime":"2025-08-26T14:30:00.123Z","iso":"2000-01-01T00:00:00Z"}`, fixed},
		{"zero timestamp skipped", `{"timestamp":0,"iso":"2025-08-26T14:30:00.123Z"}`, fixed},
		{"offset", `{"datetime":"2025-08-26T16:30:00.123+02:00"}`, fixed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRemote(t, jsonBody(tt.body), time.Second)
			got, err := r.CurrentDateTime(context.Background())
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestRemoteUnparseableBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		msg  string
	}{
		{"no known field", `{"foo":"bar"}`, "Unable to parse datetime from remote provider response"},
		{"malformed json", `{`, "Unable to parse datetime from remote provider response"},
		{"bad datetime", `{"datetime":"yesterday"}`, "Invalid datetime received from remote provider: yesterday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRemote(t, jsonBody(tt.body), time.Second)
			_, err := r.CurrentDateTime(context.Background())
			require.Error(t, err)
			de, ok := dterr.As(err)
			require.True(t, ok)
			assert.Equal(t, dterr.KindProvider, de.Kind)
			assert.Equal(t, "remote", de.Provider)
			assert.Equal(t, tt.msg, de.Message)
			assert.False(t, de.Retryable)
		})
	}
}

func TestRemoteStatusCodes(t *testing.T) {
	tests := []struct {
		status    int
		msg       string
		retryable bool
	}{
		{http.StatusNotFound, "Remote provider returned 404: Not Found", false},
		{http.StatusServiceUnavailable, "Remote provider returned 503: Service Unavailable", true},
	}
	for _, tt := range tests {
		r := newTestRemote(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(tt.status)
		}, time.Second)
		_, err := r.CurrentDateTime(context.Background())
		de, ok := dterr.As(err)
		require.True(t, ok)
		assert.Equal(t, tt.msg, de.Message)
		assert.Equal(t, tt.retryable, de.Retryable)
	}
}

func TestRemoteTimeout(t *testing.T) {
	release := make(chan struct{})
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		select {
		case <-release:
		case <-req.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	_, err := r.CurrentDateTime(context.Background())
	de, ok := dterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Remote provider request timed out after 50ms", de.Message)
	assert.True(t, de.Retryable)
}

func TestRemoteUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	r, err := NewRemote(RemoteOptions{URL: url, Timeout: time.Second})
	require.NoError(t, err)
	_, err = r.CurrentDateTime(context.Background())
	de, ok := dterr.As(err)
	require.True(t, ok)
	assert.Contains(t, de.Message, "Failed to fetch datetime from remote provider: ")
	assert.True(t, de.Retryable)
	assert.False(t, r.IsAvailable(context.Background()))
}

func TestRemoteIsAvailable(t *testing.T) {
	methods := make(chan string, 1)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		methods <- req.Method
	}, time.Second)
	assert.True(t, r.IsAvailable(context.Background()))
	assert.Equal(t, http.MethodHead, <-methods)

	down := newTestRemote(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}, time.Second)
	assert.False(t, down.IsAvailable(context.Background()))
}

func TestParseDateTime(t *testing.T) {
	for _, s := range []string{
		"2025-08-26T14:30:00.123Z",
		"2025-08-26T14:30:00.123+00:00",
		"2025-08-26T14:30:00.123",
		"2025-08-26 14:30:00.123",
		" 2025-08-26T14:30:00.123Z ",
	} {
		got, err := ParseDateTime(s)
		require.NoError(t, err, s)
		assert.True(t, fixed.Equal(got), s)
	}

	day, err := ParseDateTime("2025-08-26")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 8, 26, 0, 0, 0, 0, time.UTC), day)

	_, err = ParseDateTime("garbage")
	assert.Error(t, err)
}
