// Package config loads and validates worldclock configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/worldclock/internal/city"
	"github.com/JakeFAU/worldclock/internal/locale"
	"github.com/JakeFAU/worldclock/internal/logging"
	"github.com/JakeFAU/worldclock/internal/refresh"
)

// Store drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Logging LoggingConfig `mapstructure:"logging"`
	Refresh RefreshConfig `mapstructure:"refresh"`
	Display DisplayConfig `mapstructure:"display"`
	Cities  []CityConfig  `mapstructure:"cities"`
	Store   StoreConfig   `mapstructure:"store"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Stream  StreamConfig  `mapstructure:"stream"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig selects the zap flavor and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// RefreshConfig sets the refresh loop cadence.
type RefreshConfig struct {
	Mode            string `mapstructure:"mode"`
	FrameIntervalMs int    `mapstructure:"frame_interval_ms"`
}

// DisplayConfig holds the initial selection.
type DisplayConfig struct {
	DefaultCity     string `mapstructure:"default_city"`
	DefaultLanguage string `mapstructure:"default_language"`
}

// CityConfig is one catalog entry as written in the config file.
type CityConfig struct {
	ID       string            `mapstructure:"id"`
	TimeZone string            `mapstructure:"timezone"`
	Labels   map[string]string `mapstructure:"labels"`
	Position PositionConfig    `mapstructure:"position"`
}

// PositionConfig is the map hint in percent.
type PositionConfig struct {
	X float64 `mapstructure:"x"`
	Y float64 `mapstructure:"y"`
}

// StoreConfig selects where the clock state persists.
type StoreConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for state-change notifications. An empty topic disables Pub/Sub.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// StreamConfig tunes the SSE frame stream.
type StreamConfig struct {
	Buffer           int `mapstructure:"buffer"`
	KeepaliveSeconds int `mapstructure:"keepalive_seconds"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("WORLDCLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 15)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("refresh.mode", string(refresh.ModeFrame))
	v.SetDefault("refresh.frame_interval_ms", int(refresh.DefaultFrameInterval/time.Millisecond))
	v.SetDefault("display.default_city", city.DefaultCityID)
	v.SetDefault("display.default_language", string(locale.Korean))
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.table", "clock_state")
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("stream.buffer", 4)
	v.SetDefault("stream.keepalive_seconds", 15)
}

// Validate enforces required values and reasonable limits. City entries are
// checked later, when the catalog is built.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be within 1..65535")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging.level: %w", err)
	}
	if _, err := refresh.ParseMode(c.Refresh.Mode); err != nil {
		return fmt.Errorf("refresh.mode: %w", err)
	}
	if c.Refresh.FrameIntervalMs <= 0 || c.Refresh.FrameIntervalMs > 1000 {
		return fmt.Errorf("refresh.frame_interval_ms must be within 1..1000")
	}
	if c.Display.DefaultCity == "" {
		return fmt.Errorf("display.default_city is required")
	}
	if _, err := locale.Parse(c.Display.DefaultLanguage); err != nil {
		return fmt.Errorf("display.default_language: %w", err)
	}
	switch c.Store.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("store.driver must be %q or %q", DriverMemory, DriverPostgres)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is")
	}
	if c.Stream.Buffer <= 0 {
		return fmt.Errorf("stream.buffer must be > 0")
	}
	if c.Stream.KeepaliveSeconds <= 0 {
		return fmt.Errorf("stream.keepalive_seconds must be > 0")
	}
	return nil
}

// FrameInterval is the refresh cadence in frame mode.
func (c Config) FrameInterval() time.Duration {
	return time.Duration(c.Refresh.FrameIntervalMs) * time.Millisecond
}

// RequestTimeout bounds non-streaming handlers.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout bounds graceful shutdown.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// Keepalive is the SSE comment interval.
func (c Config) Keepalive() time.Duration {
	return time.Duration(c.Stream.KeepaliveSeconds) * time.Second
}

// DefaultLanguage resolves display.default_language; Validate has already vetted it.
func (c Config) DefaultLanguage() locale.Language {
	lang, err := locale.Parse(c.Display.DefaultLanguage)
	if err != nil {
		return locale.Korean
	}
	return lang
}

// CityList returns the configured cities, or the built-in map when none are set.
// Label keys are language tags such as "ko" or "en-US".
func (c Config) CityList() ([]city.City, error) {
	if len(c.Cities) == 0 {
		return city.Defaults(), nil
	}
	out := make([]city.City, 0, len(c.Cities))
	for i, cc := range c.Cities {
		labels := make(map[locale.Language]string, len(cc.Labels))
		for tag, label := range cc.Labels {
			lang, err := locale.Parse(tag)
			if err != nil {
				return nil, fmt.Errorf("cities[%d].labels: %w", i, err)
			}
			labels[lang] = label
		}
		out = append(out, city.City{
			ID:       cc.ID,
			TimeZone: cc.TimeZone,
			Labels:   labels,
			Position: city.Position{X: cc.Position.X, Y: cc.Position.Y},
		})
	}
	return out, nil
}
