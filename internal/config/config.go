// Package config loads and validates reader configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Preview fetcher backends.
const (
	FetcherStream = "stream"
	FetcherColly  = "colly"
)

// Preview cache backends.
const (
	CacheMemory   = "memory"
	CacheSQLite   = "sqlite"
	CachePostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	HTTP       HTTPConfig       `mapstructure:"http"`
	Preview    PreviewConfig    `mapstructure:"preview"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Database   DatabaseConfig   `mapstructure:"database"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
	HackerNews HackerNewsConfig `mapstructure:"hacker_news"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Telemetry  TelemetryConfig  `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int      `mapstructure:"port"`
	ReadHeaderTimeoutSec   int      `mapstructure:"read_header_timeout_seconds"`
	ShutdownTimeoutSeconds int      `mapstructure:"shutdown_timeout_seconds"`
	AllowedOrigins         []string `mapstructure:"allowed_origins"`
}

// HTTPConfig configures outbound requests made while scraping previews.
type HTTPConfig struct {
	UserAgent    string `mapstructure:"user_agent"`
	BlockPrivate bool   `mapstructure:"block_private"`
}

// PreviewConfig bounds the partial HTML fetch.
type PreviewConfig struct {
	Fetcher             string   `mapstructure:"fetcher"`
	ChunkSize           int      `mapstructure:"chunk_size"`
	MaxChunks           int      `mapstructure:"max_chunks"`
	FetchTimeoutSeconds int      `mapstructure:"fetch_timeout_seconds"`
	RespectRobots       bool     `mapstructure:"respect_robots"`
	WarmWorkers         int      `mapstructure:"warm_workers"`
	WarmQueueDepth      int      `mapstructure:"warm_queue_depth"`
	BlockedHosts        []string `mapstructure:"blocked_hosts"`
}

// CacheConfig selects where previews are persisted.
type CacheConfig struct {
	Backend string `mapstructure:"backend"`
	LRUSize int    `mapstructure:"lru_size"`
}

// DatabaseConfig controls access to the relational database.
type DatabaseConfig struct {
	DSN                   string `mapstructure:"dsn"`
	Path                  string `mapstructure:"path"`
	Table                 string `mapstructure:"table"`
	MaxConns              int32  `mapstructure:"max_conns"`
	MinConns              int32  `mapstructure:"min_conns"`
	MaxConnLifetimeMinute int    `mapstructure:"max_conn_lifetime_minutes"`
	Migrate               bool   `mapstructure:"migrate"`
}

// RateLimitConfig spaces out fetches per destination host.
type RateLimitConfig struct {
	Enabled      bool               `mapstructure:"enabled"`
	DefaultRPS   float64            `mapstructure:"default_rps"`
	DefaultBurst int                `mapstructure:"default_burst"`
	Domains      map[string]float64 `mapstructure:"domains"`
}

// HackerNewsConfig points the API proxy at the upstream service.
type HackerNewsConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PageSize       int    `mapstructure:"page_size"`
	Concurrency    int    `mapstructure:"concurrency"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// TelemetryConfig names the service in traces.
type TelemetryConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	TracingEnabled bool   `mapstructure:"tracing_enabled"`
}

// Load builds a Config from disk/environment. Environment variables use the HNREADER_
// prefix with dots replaced by underscores; PORT also sets server.port.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HNREADER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("server.port", "HNREADER_SERVER_PORT", "PORT"); err != nil {
		return Config{}, fmt.Errorf("bind port env: %w", err)
	}

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
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("http.user_agent", "hnreader/0.1 (+https://github.com/JakeFAU/hnreader)")
	v.SetDefault("http.block_private", true)
	v.SetDefault("preview.fetcher", FetcherStream)
	v.SetDefault("preview.chunk_size", 16<<10)
	v.SetDefault("preview.max_chunks", 15)
	v.SetDefault("preview.fetch_timeout_seconds", 10)
	v.SetDefault("preview.respect_robots", false)
	v.SetDefault("preview.warm_workers", 2)
	v.SetDefault("preview.warm_queue_depth", 128)
	v.SetDefault("cache.backend", CacheMemory)
	v.SetDefault("cache.lru_size", 1024)
	v.SetDefault("database.path", "hnreader.db")
	v.SetDefault("database.table", "previews")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.max_conn_lifetime_minutes", 30)
	v.SetDefault("database.migrate", true)
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.default_rps", 1.0)
	v.SetDefault("rate_limit.default_burst", 2)
	v.SetDefault("hacker_news.base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("hacker_news.page_size", 20)
	v.SetDefault("hacker_news.concurrency", 8)
	v.SetDefault("hacker_news.timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("telemetry.service_name", "hnreader")
	v.SetDefault("telemetry.tracing_enabled", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	switch c.Preview.Fetcher {
	case FetcherStream, FetcherColly:
	default:
		return fmt.Errorf("preview.fetcher must be %q or %q, got %q", FetcherStream, FetcherColly, c.Preview.Fetcher)
	}
	if c.Preview.ChunkSize <= 0 {
		return fmt.Errorf("preview.chunk_size must be > 0")
	}
	if c.Preview.MaxChunks <= 0 {
		return fmt.Errorf("preview.max_chunks must be > 0")
	}
	if c.Preview.FetchTimeoutSeconds <= 0 {
		return fmt.Errorf("preview.fetch_timeout_seconds must be > 0")
	}
	if c.Preview.WarmWorkers < 0 {
		return fmt.Errorf("preview.warm_workers must be >= 0")
	}
	if c.Preview.WarmWorkers > 0 && c.Preview.WarmQueueDepth <= 0 {
		return fmt.Errorf("preview.warm_queue_depth must be > 0 when warm-up workers are enabled")
	}
	switch c.Cache.Backend {
	case CacheMemory:
	case CacheSQLite:
		if c.Database.Path == "" {
			return fmt.Errorf("database.path is required for the sqlite cache")
		}
	case CachePostgres:
		if c.Database.DSN == "" {
			return fmt.Errorf("database.dsn is required for the postgres cache")
		}
	default:
		return fmt.Errorf("cache.backend must be one of memory, sqlite, postgres; got %q", c.Cache.Backend)
	}
	if c.Cache.LRUSize < 0 {
		return fmt.Errorf("cache.lru_size must be >= 0")
	}
	if c.RateLimit.Enabled && c.RateLimit.DefaultRPS < 0 {
		return fmt.Errorf("rate_limit.default_rps must be >= 0")
	}
	if c.HackerNews.PageSize <= 0 {
		return fmt.Errorf("hacker_news.page_size must be > 0")
	}
	if c.HackerNews.TimeoutSeconds <= 0 {
		return fmt.Errorf("hacker_news.timeout_seconds must be > 0")
	}
	return nil
}

// FetchTimeout converts preview.fetch_timeout_seconds to a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Preview.FetchTimeoutSeconds) * time.Second
}

// HackerNewsTimeout converts hacker_news.timeout_seconds to a duration.
func (c Config) HackerNewsTimeout() time.Duration {
	return time.Duration(c.HackerNews.TimeoutSeconds) * time.Second
}

// ShutdownTimeout converts server.shutdown_timeout_seconds to a duration.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// ReadHeaderTimeout converts server.read_header_timeout_seconds to a duration.
func (c Config) ReadHeaderTimeout() time.Duration {
	return time.Duration(c.Server.ReadHeaderTimeoutSec) * time.Second
}

// MaxConnLifetime converts database.max_conn_lifetime_minutes to a duration.
func (c Config) MaxConnLifetime() time.Duration {
	return time.Duration(c.Database.MaxConnLifetimeMinute) * time.Minute
}
