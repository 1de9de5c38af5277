package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "frame", cfg.Refresh.Mode)
	require.Equal(t, 50*time.Millisecond, cfg.FrameInterval())
	require.Equal(t, city.DefaultCityID, cfg.Display.DefaultCity)
	require.Equal(t, locale.Korean, cfg.DefaultLanguage())
	require.Equal(t, DriverMemory, cfg.Store.Driver)
	require.Equal(t, 15*time.Second, cfg.Keepalive())

	cities, err := cfg.CityList()
	require.NoError(t, err)
	require.Len(t, cities, len(city.Defaults()))
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  request_timeout_seconds: 5
auth:
  enabled: true
  api_key: secret
logging:
  development: false
  level: warn
refresh:
  mode: second
  frame_interval_ms: 100
display:
  default_city: reykjavik
  default_language: en-US
store:
  driver: postgres
  dsn: postgres://localhost/worldclock
  table: wc_state
pubsub:
  project_id: demo
  topic_name: clock-state
stream:
  buffer: 8
cities:
  - id: reykjavik
    timezone: Atlantic/Reykjavik
    labels:
      ko: 레이캬비크
      en: Reykjavik
    position:
      x: 44.1
      y: 14.2
  - id: stjohns
    timezone: America/St_Johns
    labels:
      ko: 세인트존스
      en-CA: St. John's
    position:
      x: 33
      y: 22
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 5*time.Second, cfg.RequestTimeout())
	require.True(t, cfg.Auth.Enabled)
	require.Equal(t, "secret", cfg.Auth.APIKey)
	require.False(t, cfg.Logging.Development)
	require.Equal(t, "second", cfg.Refresh.Mode)
	require.Equal(t, locale.English, cfg.DefaultLanguage())
	require.Equal(t, DriverPostgres, cfg.Store.Driver)
	require.Equal(t, "wc_state", cfg.Store.Table)
	require.Equal(t, "clock-state", cfg.PubSub.TopicName)
	require.Equal(t, 8, cfg.Stream.Buffer)

	cities, err := cfg.CityList()
	require.NoError(t, err)
	require.Len(t, cities, 2)
	require.Equal(t, "Atlantic/Reykjavik", cities[0].TimeZone)
	require.Equal(t, "St. John's", cities[1].Labels[locale.English])
	require.InDelta(t, 44.1, cities[0].Position.X, 1e-9)

	cat, err := city.NewCatalog(cities)
	require.NoError(t, err)
	require.Equal(t, 2, cat.Len())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("WORLDCLOCK_SERVER_PORT", "7070")
	t.Setenv("WORLDCLOCK_REFRESH_MODE", "second")
	t.Setenv("WORLDCLOCK_DISPLAY_DEFAULT_LANGUAGE", "en")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 7070, cfg.Server.Port)
	require.Equal(t, "second", cfg.Refresh.Mode)
	require.Equal(t, locale.English, cfg.DefaultLanguage())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() Config {
		return Config{
			Server:  ServerConfig{Port: 8080, RequestTimeoutSeconds: 15},
			Logging: LoggingConfig{Level: "info"},
			Refresh: RefreshConfig{Mode: "frame", FrameIntervalMs: 50},
			Display: DisplayConfig{DefaultCity: "seoul", DefaultLanguage: "ko"},
			Store:   StoreConfig{Driver: DriverMemory},
			Stream:  StreamConfig{Buffer: 4, KeepaliveSeconds: 15},
		}
	}
	require.NoError(t, base().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"port", func(c *Config) { c.Server.Port = 0 }},
		{"timeout", func(c *Config) { c.Server.RequestTimeoutSeconds = 0 }},
		{"auth key", func(c *Config) { c.Auth.Enabled = true }},
		{"log level", func(c *Config) { c.Logging.Level = "chatty" }},
		{"mode", func(c *Config) { c.Refresh.Mode = "vsync" }},
		{"frame interval", func(c *Config) { c.Refresh.FrameIntervalMs = 2000 }},
		{"default city", func(c *Config) { c.Display.DefaultCity = "" }},
		{"default language", func(c *Config) { c.Display.DefaultLanguage = "fr" }},
		{"driver", func(c *Config) { c.Store.Driver = "sqlite" }},
		{"postgres dsn", func(c *Config) { c.Store.Driver = DriverPostgres }},
		{"pubsub project", func(c *Config) { c.PubSub.TopicName = "clock-state" }},
		{"stream buffer", func(c *Config) { c.Stream.Buffer = 0 }},
		{"keepalive", func(c *Config) { c.Stream.KeepaliveSeconds = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base()
			tt.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestCityListRejectsUnknownLabelLanguage(t *testing.T) {
	t.Parallel()

	cfg := Config{Cities: []CityConfig{{
		ID:       "x",
		TimeZone: "UTC",
		Labels:   map[string]string{"fr": "Ville"},
	}}}
	_, err := cfg.CityList()
	require.ErrorIs(t, err, locale.ErrUnsupported)
}
