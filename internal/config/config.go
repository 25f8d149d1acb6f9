// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Catalog backends.
const (
	BackendLocal  = "local"
	BackendGCS    = "gcs"
	BackendMemory = "memory"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Remote   RemoteConfig   `mapstructure:"remote"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// RemoteConfig describes the document repository.
type RemoteConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	CookieName  string `mapstructure:"cookie_name"`
	CookieValue string `mapstructure:"cookie_value"`
	UserAgent   string `mapstructure:"user_agent"`
}

// CrawlerConfig governs the scan loop.
type CrawlerConfig struct {
	DelayMillis int `mapstructure:"delay_ms"`
	FlushEvery  int `mapstructure:"flush_every"`
}

// HTTPConfig configures the outbound HTTP client.
type HTTPConfig struct {
	TimeoutSeconds       int     `mapstructure:"timeout_seconds"`
	MaxBodyBytes         int     `mapstructure:"max_body_bytes"`
	MaxRequestsPerSecond float64 `mapstructure:"max_requests_per_second"`
}

// CatalogConfig selects where the catalog is persisted.
type CatalogConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSObject string `mapstructure:"gcs_object"`
}

// PostgresConfig enables the optional run/document mirror.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize         int `mapstructure:"buffer_size"`
	BatchSize          int `mapstructure:"batch_size"`
	FlushIntervalMs    int `mapstructure:"flush_interval_ms"`
	SinkTimeoutSeconds int `mapstructure:"sink_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ETD")
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
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("remote.base_url", "http://etd.intranet.lib.ugm/home/detail_pencarian_downloadfiles/")
	v.SetDefault("remote.cookie_name", "ugmfw_session")
	v.SetDefault("remote.cookie_value", "")
	v.SetDefault("remote.user_agent", "etd-crawler/0.1")
	v.SetDefault("crawler.delay_ms", 1000)
	v.SetDefault("crawler.flush_every", 10)
	v.SetDefault("http.timeout_seconds", 10)
	v.SetDefault("http.max_body_bytes", 64<<20)
	v.SetDefault("http.max_requests_per_second", 0)
	v.SetDefault("catalog.backend", BackendLocal)
	v.SetDefault("catalog.path", "crawled_pdfs.json")
	v.SetDefault("catalog.gcs_bucket", "")
	v.SetDefault("catalog.gcs_object", "crawled_pdfs.json")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.batch_size", 256)
	v.SetDefault("progress.flush_interval_ms", 500)
	v.SetDefault("progress.sink_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	u, err := url.Parse(c.Remote.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("remote.base_url must be an absolute http(s) url")
	}
	if c.Crawler.DelayMillis < 0 {
		return fmt.Errorf("crawler.delay_ms must be >= 0")
	}
	if c.Crawler.FlushEvery <= 0 {
		return fmt.Errorf("crawler.flush_every must be > 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxBodyBytes <= 0 {
		return fmt.Errorf("http.max_body_bytes must be > 0")
	}
	if c.HTTP.MaxRequestsPerSecond < 0 {
		return fmt.Errorf("http.max_requests_per_second must be >= 0")
	}
	switch c.Catalog.Backend {
	case BackendLocal:
		if strings.TrimSpace(c.Catalog.Path) == "" {
			return fmt.Errorf("catalog.path is required for the local backend")
		}
	case BackendGCS:
		if c.Catalog.GCSBucket == "" || c.Catalog.GCSObject == "" {
			return fmt.Errorf("catalog.gcs_bucket and catalog.gcs_object are required for the gcs backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("catalog.backend must be one of %q, %q, %q", BackendLocal, BackendGCS, BackendMemory)
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}

// Delay returns the inter-request pause.
func (c Config) Delay() time.Duration {
	return time.Duration(c.Crawler.DelayMillis) * time.Millisecond
}

// Timeout returns the outbound request timeout.
func (c Config) Timeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// RequestTimeout returns the API handler timeout.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}
