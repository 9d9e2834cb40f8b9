package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/currentdt/config"
	"github.com/localrivet/currentdt/dterr"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func newManager(t *testing.T, vars map[string]string) (*config.Manager, string, string) {
	t.Helper()
	work, home := t.TempDir(), t.TempDir()
	m := config.NewManager(
		config.WithWorkDir(work),
		config.WithHomeDir(home),
		config.WithEnv(env(vars)),
	)
	return m, work, home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestSearchPathsOrder(t *testing.T) {
	m, work, home := newManager(t, map[string]string{config.EnvConfigPath: "/etc/currentdt.json"})

	assert.Equal(t, []string{
		"/etc/currentdt.json",
		filepath.Join(work, "currentdt-config.json"),
		filepath.Join(work, "currentdt-config.yaml"),
		filepath.Join(work, "currentdt-config.yml"),
		filepath.Join(work, "currentdt-config.toml"),
		filepath.Join(work, "config.json"),
		filepath.Join(home, ".currentdt-config.json"),
		filepath.Join(home, ".config", "currentdt", "config.json"),
	}, m.SearchPaths())
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	m, _, _ := newManager(t, nil)
	require.NoError(t, m.Load())
	assert.Equal(t, config.Default(), m.Config())
	assert.Empty(t, m.Path())
}

func TestLoadPrefersProjectFileOverHome(t *testing.T) {
	m, work, home := newManager(t, nil)
	writeFile(t, filepath.Join(home, ".config", "currentdt", "config.json"), `{"defaultFormat":"simple"}`)
	writeFile(t, filepath.Join(work, "config.json"), `{"defaultFormat":"logdate"}`)

	require.NoError(t, m.Load())
	assert.Equal(t, "logdate", m.Config().DefaultFormat)
	assert.Equal(t, filepath.Join(work, "config.json"), m.Path())
}

func TestLoadYAML(t *testing.T) {
	m, work, _ := newManager(t, nil)
	writeFile(t, filepath.Join(work, "currentdt-config.yaml"), `
defaultProvider: remote
logLevel: debug
providers:
  remote:
    priority: 2
    config:
      url: https://time.example.com/utc
      timeout: 3000
customFormats:
  stamp: YYYYMMDD
`)

	require.NoError(t, m.Load())
	cfg := m.Config()
	assert.Equal(t, "remote", cfg.DefaultProvider)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 2, cfg.Providers["remote"].Priority)
	assert.Equal(t, 3000, cfg.Providers["remote"].Config["timeout"])
	assert.Equal(t, "YYYYMMDD", cfg.CustomFormats["stamp"])
}

func TestLoadTOML(t *testing.T) {
	m, work, _ := newManager(t, nil)
	writeFile(t, filepath.Join(work, "currentdt-config.toml"), `
defaultFormat = "filename"
debug = true

[cache]
ttl = 2000
maxSize = 50
`)

	require.NoError(t, m.Load())
	cfg := m.Config()
	assert.Equal(t, "filename", cfg.DefaultFormat)
	assert.True(t, cfg.Debug)
	require.NotNil(t, cfg.Cache)
	assert.Equal(t, config.CacheConfig{Enabled: true, TTL: 2000, MaxSize: 50}, *cfg.Cache)
}

func TestLoadInvalidFileKeepsDefaults(t *testing.T) {
	m, work, _ := newManager(t, map[string]string{config.EnvProvider: "remote"})
	path := filepath.Join(work, "currentdt-config.json")
	writeFile(t, path, `{"logLevel":"loud","cache":{"ttl":5}}`)

	err := m.Load()
	require.Error(t, err)

	de, ok := dterr.As(err)
	require.True(t, ok)
	assert.Equal(t, dterr.KindConfiguration, de.Kind)
	assert.Equal(t, path, de.ConfigPath)
	assert.Contains(t, de.ValidationErrors, "cache.ttl: must be at least 100")

	cfg := m.Config()
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "remote", cfg.DefaultProvider, "env overrides still apply")
}

func TestLoadMalformedJSON(t *testing.T) {
	m, work, _ := newManager(t, nil)
	writeFile(t, filepath.Join(work, "config.json"), `{not json`)

	err := m.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to load configuration from")
	assert.True(t, dterr.IsKind(err, dterr.KindConfiguration))
}

func TestEnvOverrides(t *testing.T) {
	m, work, _ := newManager(t, map[string]string{
		config.EnvFormat:   "YYYY",
		config.EnvProvider: "remote",
		config.EnvDebug:    "TRUE",
	})
	writeFile(t, filepath.Join(work, "config.json"), `{"defaultFormat":"simple","debug":false}`)

	require.NoError(t, m.Load())
	cfg := m.Config()
	assert.Equal(t, "YYYY", cfg.DefaultFormat)
	assert.Equal(t, "remote", cfg.DefaultProvider)
	assert.True(t, cfg.Debug)
}

func TestEnvConfigPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	writeFile(t, path, "defaultFormat: logdate\n")

	m, work, _ := newManager(t, map[string]string{config.EnvConfigPath: path})
	writeFile(t, filepath.Join(work, "currentdt-config.json"), `{"defaultFormat":"simple"}`)

	require.NoError(t, m.Load())
	assert.Equal(t, "logdate", m.Config().DefaultFormat)
	assert.Equal(t, path, m.Path())
}

func TestUpdateNotifiesSubscribers(t *testing.T) {
	m, _, _ := newManager(t, nil)

	var first, third []string
	m.OnChange(func(c config.Configuration) error {
		first = append(first, c.DefaultFormat)
		return nil
	})
	m.OnChange(func(config.Configuration) error { return errors.New("subscriber failed") })
	m.OnChange(func(config.Configuration) error { panic("subscriber panicked") })
	m.OnChange(func(c config.Configuration) error {
		third = append(third, c.DefaultFormat)
		return nil
	})

	require.NoError(t, m.Update(func(c *config.Configuration) { c.DefaultFormat = "simple" }))
	assert.Equal(t, []string{"simple"}, first)
	assert.Equal(t, []string{"simple"}, third)
	assert.Equal(t, "simple", m.Config().DefaultFormat)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	m, _, _ := newManager(t, nil)
	called := false
	m.OnChange(func(config.Configuration) error { called = true; return nil })

	err := m.Update(func(c *config.Configuration) { c.LogLevel = "loud" })
	require.Error(t, err)
	de, ok := dterr.As(err)
	require.True(t, ok)
	assert.Equal(t, "Invalid configuration update", de.Message)
	assert.NotEmpty(t, de.ValidationErrors)
	assert.False(t, called)
	assert.Equal(t, "info", m.Config().LogLevel)
}

func TestConfigReturnsCopy(t *testing.T) {
	m, _, _ := newManager(t, nil)
	cfg := m.Config()
	cfg.Providers["local"] = config.ProviderConfig{Name: "local", Priority: 9}
	assert.Equal(t, 1, m.Config().Providers["local"].Priority)
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.json", "out.yaml", "out.toml"} {
		t.Run(name, func(t *testing.T) {
			m, work, _ := newManager(t, nil)
			require.NoError(t, m.Update(func(c *config.Configuration) {
				c.DefaultFormat = "logdate"
				c.Cache = &config.CacheConfig{Enabled: true, TTL: 750, MaxSize: 10}
			}))

			path := filepath.Join(work, name)
			require.NoError(t, m.Save(path))
			assert.Equal(t, path, m.Path())

			other := config.NewManager(config.WithEnv(env(map[string]string{config.EnvConfigPath: path})),
				config.WithWorkDir(t.TempDir()), config.WithHomeDir(t.TempDir()))
			require.NoError(t, other.Load())
			assert.Equal(t, "logdate", other.Config().DefaultFormat)
			require.NotNil(t, other.Config().Cache)
			assert.Equal(t, 750, other.Config().Cache.TTL)
		})
	}
}

func TestSaveDefaultPath(t *testing.T) {
	m, work, _ := newManager(t, nil)
	require.NoError(t, m.Save(""))
	_, err := os.Stat(filepath.Join(work, config.DefaultFileName))
	assert.NoError(t, err)
}

func TestReset(t *testing.T) {
	m, work, _ := newManager(t, nil)
	writeFile(t, filepath.Join(work, "config.json"), `{"defaultFormat":"simple"}`)
	require.NoError(t, m.Load())

	called := false
	m.OnChange(func(config.Configuration) error { called = true; return nil })
	m.Reset()

	assert.Equal(t, config.Default(), m.Config())
	assert.Empty(t, m.Path())
	require.NoError(t, m.Update(func(c *config.Configuration) { c.Debug = true }))
	assert.False(t, called, "subscribers are dropped by Reset")
}

func TestReload(t *testing.T) {
	m, work, _ := newManager(t, nil)
	path := filepath.Join(work, "config.json")
	writeFile(t, path, `{"defaultFormat":"simple"}`)
	require.NoError(t, m.Load())

	var seen []string
	m.OnChange(func(c config.Configuration) error {
		seen = append(seen, c.DefaultFormat)
		return nil
	})

	changed, err := m.Reload()
	require.NoError(t, err)
	assert.False(t, changed)

	writeFile(t, path, `{"defaultFormat":"logdate"}`)
	future := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, future, future))

	changed, err = m.Reload()
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "logdate", m.Config().DefaultFormat)
	assert.Equal(t, []string{"logdate"}, seen)
}

func TestWatchWithoutFileReturns(t *testing.T) {
	m, _, _ := newManager(t, nil)
	done := make(chan struct{})
	go func() {
		m.Watch(context.Background(), time.Millisecond)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Watch did not return without a configuration file")
	}
}

func TestWatchPicksUpChanges(t *testing.T) {
	m, work, _ := newManager(t, nil)
	path := filepath.Join(work, "config.json")
	writeFile(t, path, `{"defaultFormat":"simple"}`)
	require.NoError(t, m.Load())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx, 10*time.Millisecond)

	writeFile(t, path, `{"defaultFormat":"filename"}`)
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		return m.Config().DefaultFormat == "filename"
	}, 2*time.Second, 10*time.Millisecond)
}
