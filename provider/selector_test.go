package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/dterr"
	"github.com/localrivet/currentdt/provider/mocks"
)

func stubSource(ctrl *gomock.Controller, name string, available bool) *mocks.MockTimeSource {
	m := mocks.NewMockTimeSource(ctrl)
	m.EXPECT().Name().Return(name).AnyTimes()
	m.EXPECT().Priority().Return(5).AnyTimes()
	m.EXPECT().IsAvailable(gomock.Any()).Return(available).AnyTimes()
	return m
}

func register(s *Selector, name string, src TimeSource) {
	s.Register(name, func(*config.ProviderConfig) (TimeSource, error) {
		return src, nil
	})
}

func TestSelectorBuiltins(t *testing.T) {
	s := NewSelector()
	assert.Equal(t, []string{"local", "remote"}, s.Names())
	assert.True(t, s.Has("local"))
	assert.False(t, s.Has("ntp"))
}

func TestSelectorCreateMemoizes(t *testing.T) {
	s := NewSelector(WithClock(fixedClock))

	first, err := s.Create("local", nil)
	require.NoError(t, err)
	second, err := s.Create("local", nil)
	require.NoError(t, err)
	assert.Same(t, first, second)

	got, err := first.CurrentDateTime(context.Background())
	require.NoError(t, err)
	assert.Equal(t, fixed, got)
}

func TestSelectorCreateConcurrent(t *testing.T) {
	s := NewSelector()
	var calls int32
	s.Register("slow", func(*config.ProviderConfig) (TimeSource, error) {
		atomic.AddInt32(&calls, 1)
		time.Sleep(10 * time.Millisecond)
		return NewLocal(nil), nil
	})

	var wg sync.WaitGroup
	results := make([]TimeSource, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = s.Create("slow", nil)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, r := range results {
		assert.Same(t, results[0], r)
	}
}

func TestSelectorCreateErrors(t *testing.T) {
	s := NewSelector()
	s.Register("broken", func(*config.ProviderConfig) (TimeSource, error) {
		return nil, errors.New("boom")
	})

	disabled := config.Default()
	disabled.Providers["remote"] = config.ProviderConfig{Name: "remote", Enabled: false, Priority: 2}

	tests := []struct {
		name string
		cfg  *config.Configuration
		msg  string
	}{
		{"ntp", nil, "Provider 'ntp' not found"},
		{"broken", nil, "Failed to create provider 'broken': boom"},
		{"remote", &disabled, "Provider 'remote' is disabled"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Create(tt.name, tt.cfg)
			de, ok := dterr.As(err)
			require.True(t, ok)
			assert.Equal(t, dterr.KindProvider, de.Kind)
			assert.Equal(t, tt.name, de.Provider)
			assert.Equal(t, tt.msg, de.Message)
			assert.False(t, de.Retryable)
		})
	}
}

func TestSelectorRemoteSettings(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	cfg := config.Default()
	cfg.Providers["remote"] = config.ProviderConfig{
		Name: "remote", Enabled: true, Priority: 7,
		Config: map[string]interface{}{"url": srv.URL, "timeout": 1500},
	}

	src, err := NewSelector().Create("remote", &cfg)
	require.NoError(t, err)
	r, ok := src.(*Remote)
	require.True(t, ok)
	assert.Equal(t, srv.URL, r.URL())
	assert.Equal(t, 1500*time.Millisecond, r.Timeout())
	assert.Equal(t, 7, r.Priority())
}

func TestSelectorRemoteSettingsIgnoredWithoutURL(t *testing.T) {
	cfg := config.Default()
	cfg.Providers["remote"] = config.ProviderConfig{
		Name: "remote", Enabled: true, Priority: 7,
		Config: map[string]interface{}{"timeout": 1500},
	}

	src, err := NewSelector().Create("remote", &cfg)
	require.NoError(t, err)
	r := src.(*Remote)
	assert.Equal(t, DefaultRemoteURL, r.URL())
	assert.Equal(t, DefaultRemoteTimeout, r.Timeout())
	assert.Equal(t, DefaultRemotePriority, r.Priority())
}

func TestSelectorWrapsCachedSources(t *testing.T) {
	cfg := config.Default()
	cache := config.DefaultCache()
	cfg.Cache = &cache

	s := NewSelector()
	remote, err := s.Create("remote", &cfg)
	require.NoError(t, err)
	_, ok := remote.(*Cached)
	assert.True(t, ok)

	local, err := s.Create("local", &cfg)
	require.NoError(t, err)
	_, ok = local.(*Local)
	assert.True(t, ok)
}

func TestSelectorAvailableProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSelector()
	register(s, "down", stubSource(ctrl, "down", false))
	register(s, "up", stubSource(ctrl, "up", true))

	src, err := s.AvailableProvider(context.Background(), []string{"down", "missing", "up"})
	require.NoError(t, err)
	assert.Equal(t, "up", src.Name())

	src, err = s.AvailableProvider(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "local", src.Name())
}

func TestSelectorNoAvailableProvider(t *testing.T) {
	ctrl := gomock.NewController(t)
	s := NewSelector()
	register(s, "local", stubSource(ctrl, "local", false))
	register(s, "remote", stubSource(ctrl, "remote", false))

	_, err := s.AvailableProvider(context.Background(), []string{"local"})
	de, ok := dterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "unknown", de.Provider)
	assert.Equal(t, "No available datetime providers found", de.Message)
}

func TestSelectorRegisterReplacesInstance(t *testing.T) {
	s := NewSelector()
	before, err := s.Create("local", nil)
	require.NoError(t, err)

	replacement := NewLocal(fixedClock)
	register(s, "local", replacement)
	after, err := s.Create("local", nil)
	require.NoError(t, err)

	assert.NotSame(t, before, after)
	assert.Same(t, replacement, after)
	assert.Equal(t, []string{"local", "remote"}, s.Names())
}

func TestSelectorClear(t *testing.T) {
	s := NewSelector()
	var calls int
	s.Register("counted", func(*config.ProviderConfig) (TimeSource, error) {
		calls++
		return NewLocal(nil), nil
	})

	_, err := s.Create("counted", nil)
	require.NoError(t, err)
	_, err = s.Create("counted", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	s.Clear()
	_, err = s.Create("counted", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
