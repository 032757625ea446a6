// Package config loads and validates matchwatch configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Backend BackendConfig `mapstructure:"backend"`
	Jobs    JobsConfig    `mapstructure:"jobs"`
	Events  EventsConfig  `mapstructure:"events"`
	DB      DBConfig      `mapstructure:"db"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Reports ReportsConfig `mapstructure:"reports"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port               int `mapstructure:"port"`
	ShutdownTimeoutSec int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// BackendConfig points at the article backend that runs jobs.
type BackendConfig struct {
	BaseURL        string  `mapstructure:"base_url"`
	APIKey         string  `mapstructure:"api_key"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	Burst          int     `mapstructure:"burst"`
}

// JobsConfig governs polling and registry retention.
type JobsConfig struct {
	PollIntervalMs  int `mapstructure:"poll_interval_ms"`
	GracePeriodMs   int `mapstructure:"grace_period_ms"`
	TrackTimeoutSec int `mapstructure:"track_timeout_seconds"`
	CloseTimeoutSec int `mapstructure:"close_timeout_seconds"`
}

// EventsConfig tunes the lifecycle event hub.
type EventsConfig struct {
	BufferSize     int `mapstructure:"buffer_size"`
	MaxBatchEvents int `mapstructure:"max_batch_events"`
	MaxBatchWaitMs int `mapstructure:"max_batch_wait_ms"`
	SinkTimeoutMs  int `mapstructure:"sink_timeout_ms"`
}

// DBConfig controls access to the job history database. An empty DSN keeps
// history in memory.
type DBConfig struct {
	DSN                string `mapstructure:"dsn"`
	MaxConns           int32  `mapstructure:"max_conns"`
	MinConns           int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMin int    `mapstructure:"max_conn_lifetime_minutes"`
	Migrate            bool   `mapstructure:"migrate"`
}

// PubSubConfig holds metadata for settled-job notifications. An empty
// project keeps notifications in memory.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ReportsConfig selects where exported reports are written.
type ReportsConfig struct {
	// Provider is one of gcs, local, or memory.
	Provider  string `mapstructure:"provider"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	LocalDir  string `mapstructure:"local_dir"`
	Prefix    string `mapstructure:"prefix"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MATCHWATCH")
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
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("backend.base_url", "http://localhost:3000")
	v.SetDefault("backend.api_key", "")
	v.SetDefault("backend.timeout_seconds", 15)
	v.SetDefault("backend.rate_limit", 10.0)
	v.SetDefault("backend.burst", 5)
	v.SetDefault("jobs.poll_interval_ms", 2000)
	v.SetDefault("jobs.grace_period_ms", 3000)
	v.SetDefault("jobs.track_timeout_seconds", 0)
	v.SetDefault("jobs.close_timeout_seconds", 5)
	v.SetDefault("events.buffer_size", 1024)
	v.SetDefault("events.max_batch_events", 256)
	v.SetDefault("events.max_batch_wait_ms", 250)
	v.SetDefault("events.sink_timeout_ms", 5000)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime_minutes", 30)
	v.SetDefault("db.migrate", true)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "matchwatch-jobs")
	v.SetDefault("reports.provider", "memory")
	v.SetDefault("reports.gcs_bucket", "")
	v.SetDefault("reports.local_dir", "reports")
	v.SetDefault("reports.prefix", "reports")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url must be an absolute URL")
	}
	if c.Backend.TimeoutSeconds <= 0 {
		return fmt.Errorf("backend.timeout_seconds must be > 0")
	}
	if c.Backend.RateLimit < 0 {
		return fmt.Errorf("backend.rate_limit must be >= 0")
	}
	if c.Jobs.PollIntervalMs <= 0 {
		return fmt.Errorf("jobs.poll_interval_ms must be > 0")
	}
	if c.Jobs.GracePeriodMs < 0 {
		return fmt.Errorf("jobs.grace_period_ms must be >= 0")
	}
	if c.Jobs.TrackTimeoutSec < 0 {
		return fmt.Errorf("jobs.track_timeout_seconds must be >= 0")
	}
	if c.Events.BufferSize <= 0 || c.Events.MaxBatchEvents <= 0 {
		return fmt.Errorf("events.buffer_size and events.max_batch_events must be > 0")
	}
	if c.PubSub.ProjectID != "" && c.PubSub.TopicName == "" {
		return fmt.Errorf("pubsub.topic_name must be set when pubsub.project_id is set")
	}
	switch c.Reports.Provider {
	case "memory":
	case "local":
		if c.Reports.LocalDir == "" {
			return fmt.Errorf("reports.local_dir must be set for the local provider")
		}
	case "gcs":
		if c.Reports.GCSBucket == "" {
			return fmt.Errorf("reports.gcs_bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("unknown reports.provider %q", c.Reports.Provider)
	}
	return nil
}

// PollInterval is the default delay between job status queries.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.Jobs.PollIntervalMs) * time.Millisecond
}

// GracePeriod is how long settled jobs stay visible in the registry.
func (c Config) GracePeriod() time.Duration {
	return time.Duration(c.Jobs.GracePeriodMs) * time.Millisecond
}

// TrackTimeout bounds a single job's tracking; zero disables the bound.
func (c Config) TrackTimeout() time.Duration {
	return time.Duration(c.Jobs.TrackTimeoutSec) * time.Second
}

// BackendTimeout bounds a single backend HTTP round trip.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}
