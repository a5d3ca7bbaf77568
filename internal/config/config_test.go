package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, FetcherStream, cfg.Preview.Fetcher)
	require.Equal(t, 16<<10, cfg.Preview.ChunkSize)
	require.Equal(t, 15, cfg.Preview.MaxChunks)
	require.Equal(t, 10*time.Second, cfg.FetchTimeout())
	require.Equal(t, CacheMemory, cfg.Cache.Backend)
	require.Equal(t, "https://hacker-news.firebaseio.com/v0", cfg.HackerNews.BaseURL)
	require.Equal(t, 20, cfg.HackerNews.PageSize)
	require.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	require.True(t, cfg.HTTP.BlockPrivate)
	require.Equal(t, 2, cfg.Preview.WarmWorkers)
	require.Equal(t, 128, cfg.Preview.WarmQueueDepth)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  shutdown_timeout_seconds: 3
http:
  user_agent: test-agent
  block_private: false
preview:
  fetcher: colly
  chunk_size: 4096
  max_chunks: 5
  fetch_timeout_seconds: 2
  blocked_hosts:
    - "*.internal"
cache:
  backend: postgres
  lru_size: 0
database:
  dsn: postgres://localhost/hnreader
  max_conns: 4
rate_limit:
  default_rps: 0.5
  domains:
    github.com: 5
hacker_news:
  page_size: 30
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout())
	require.Equal(t, "test-agent", cfg.HTTP.UserAgent)
	require.False(t, cfg.HTTP.BlockPrivate)
	require.Equal(t, FetcherColly, cfg.Preview.Fetcher)
	require.Equal(t, 4096, cfg.Preview.ChunkSize)
	require.Equal(t, 5, cfg.Preview.MaxChunks)
	require.Equal(t, 2*time.Second, cfg.FetchTimeout())
	require.Equal(t, []string{"*.internal"}, cfg.Preview.BlockedHosts)
	require.Equal(t, CachePostgres, cfg.Cache.Backend)
	require.Zero(t, cfg.Cache.LRUSize)
	require.EqualValues(t, 4, cfg.Database.MaxConns)
	require.InDelta(t, 0.5, cfg.RateLimit.DefaultRPS, 1e-9)
	require.InDelta(t, 5, cfg.RateLimit.Domains["github.com"], 1e-9)
	require.Equal(t, 30, cfg.HackerNews.PageSize)
	require.False(t, cfg.Logging.Development)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorContains(t, err, "read config")
}

func TestLoadPortFromEnv(t *testing.T) {
	t.Setenv("PORT", "4321")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 4321, cfg.Server.Port)
}

func TestLoadPrefixedEnvWins(t *testing.T) {
	t.Setenv("PORT", "4321")
	t.Setenv("HNREADER_SERVER_PORT", "5555")
	t.Setenv("HNREADER_PREVIEW_MAX_CHUNKS", "7")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5555, cfg.Server.Port)
	require.Equal(t, 7, cfg.Preview.MaxChunks)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:     ServerConfig{Port: 8080},
		Preview:    PreviewConfig{Fetcher: FetcherStream, ChunkSize: 1024, MaxChunks: 15, FetchTimeoutSeconds: 10},
		Cache:      CacheConfig{Backend: CacheMemory},
		HackerNews: HackerNewsConfig{PageSize: 20, TimeoutSeconds: 10},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"unknown fetcher", func(c *Config) { c.Preview.Fetcher = "headless" }, "preview.fetcher"},
		{"zero chunk size", func(c *Config) { c.Preview.ChunkSize = 0 }, "preview.chunk_size"},
		{"zero max chunks", func(c *Config) { c.Preview.MaxChunks = 0 }, "preview.max_chunks"},
		{"zero fetch timeout", func(c *Config) { c.Preview.FetchTimeoutSeconds = 0 }, "preview.fetch_timeout_seconds"},
		{"negative warm workers", func(c *Config) { c.Preview.WarmWorkers = -1 }, "preview.warm_workers"},
		{"warm workers without queue", func(c *Config) { c.Preview.WarmWorkers = 2 }, "preview.warm_queue_depth"},
		{"unknown cache", func(c *Config) { c.Cache.Backend = "redis" }, "cache.backend"},
		{"postgres without dsn", func(c *Config) { c.Cache.Backend = CachePostgres }, "database.dsn"},
		{"sqlite without path", func(c *Config) { c.Cache.Backend = CacheSQLite }, "database.path"},
		{"negative lru", func(c *Config) { c.Cache.LRUSize = -1 }, "cache.lru_size"},
		{"negative rps", func(c *Config) { c.RateLimit.Enabled = true; c.RateLimit.DefaultRPS = -1 }, "rate_limit.default_rps"},
		{"zero page size", func(c *Config) { c.HackerNews.PageSize = 0 }, "hacker_news.page_size"},
		{"zero hn timeout", func(c *Config) { c.HackerNews.TimeoutSeconds = 0 }, "hacker_news.timeout_seconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			require.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}
