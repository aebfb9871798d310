// Package config loads and validates crawler configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Fetcher kinds.
const (
	FetcherColly    = "colly"
	FetcherHeadless = "headless"
	// FetcherAuto probes with colly and renders with headless Chrome only
	// when the page looks like a client-side app.
	FetcherAuto = "auto"
)

// Visited set backends.
const (
	VisitedMemory   = "memory"
	VisitedRedis    = "redis"
	VisitedPostgres = "postgres"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Headless HeadlessConfig `mapstructure:"headless"`
	Visited  VisitedConfig  `mapstructure:"visited"`
	Progress ProgressConfig `mapstructure:"progress"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig controls the status server. Port 0 disables it.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// CrawlerConfig governs the crawl itself.
type CrawlerConfig struct {
	Seeds          []string `mapstructure:"seeds"`
	Concurrency    int      `mapstructure:"concurrency"`
	QueueCapacity  int      `mapstructure:"queue_capacity"`
	VisitedCeiling int      `mapstructure:"visited_ceiling"`
	UserAgent      string   `mapstructure:"user_agent"`
	AllowedSchemes []string `mapstructure:"allowed_schemes"`
}

// HTTPConfig configures the HTTP client used by the colly fetcher.
type HTTPConfig struct {
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
	MaxBodyBytes   int `mapstructure:"max_body_bytes"`
}

// FetcherConfig selects the page fetcher.
type FetcherConfig struct {
	Kind string `mapstructure:"kind"`
}

// HeadlessConfig configures the headless Chrome fetcher.
type HeadlessConfig struct {
	MaxParallel     int `mapstructure:"max_parallel"`
	NavTimeoutSec   int `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int `mapstructure:"promotion_threshold"`
}

// VisitedConfig selects and configures the visited set backend.
type VisitedConfig struct {
	Backend          string        `mapstructure:"backend"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	RedisPrefix      string        `mapstructure:"redis_prefix"`
	RedisTTL         time.Duration `mapstructure:"redis_ttl"`
	PostgresDSN      string        `mapstructure:"postgres_dsn"`
	PostgresTable    string        `mapstructure:"postgres_table"`
	PostgresMaxConns int32         `mapstructure:"postgres_max_conns"`
}

// ProgressConfig tunes the progress hub.
type ProgressConfig struct {
	BufferSize     int           `mapstructure:"buffer_size"`
	MaxBatchEvents int           `mapstructure:"max_batch_events"`
	MaxBatchWait   time.Duration `mapstructure:"max_batch_wait"`
	LogEvents      bool          `mapstructure:"log_events"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CRAWLER")
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
	v.SetDefault("crawler.seeds", []string{})
	v.SetDefault("crawler.concurrency", 5)
	v.SetDefault("crawler.queue_capacity", 10000)
	v.SetDefault("crawler.visited_ceiling", 0)
	v.SetDefault("crawler.user_agent", "linkcrawler/0.1")
	v.SetDefault("crawler.allowed_schemes", []string{"http", "https"})
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("fetcher.kind", FetcherColly)
	v.SetDefault("headless.max_parallel", 2)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 2048)
	v.SetDefault("visited.backend", VisitedMemory)
	v.SetDefault("visited.redis_addr", "localhost:6379")
	v.SetDefault("visited.redis_prefix", "linkcrawler:visited:")
	v.SetDefault("visited.redis_ttl", 24*time.Hour)
	v.SetDefault("visited.postgres_dsn", "")
	v.SetDefault("visited.postgres_table", "visited_urls")
	v.SetDefault("visited.postgres_max_conns", 10)
	v.SetDefault("progress.buffer_size", 4096)
	v.SetDefault("progress.max_batch_events", 500)
	v.SetDefault("progress.max_batch_wait", 250*time.Millisecond)
	v.SetDefault("progress.log_events", false)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port < 0 {
		return errors.New("server.port must be >= 0")
	}
	if c.Crawler.Concurrency <= 0 {
		return errors.New("crawler.concurrency must be > 0")
	}
	if c.Crawler.QueueCapacity < 0 {
		return errors.New("crawler.queue_capacity must be >= 0")
	}
	if c.Crawler.VisitedCeiling < 0 {
		return errors.New("crawler.visited_ceiling must be >= 0")
	}
	if len(c.Crawler.AllowedSchemes) == 0 {
		return errors.New("crawler.allowed_schemes must not be empty")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return errors.New("http.timeout_seconds must be > 0")
	}
	switch c.Fetcher.Kind {
	case FetcherColly:
	case FetcherHeadless, FetcherAuto:
		if c.Headless.MaxParallel <= 0 {
			return fmt.Errorf("headless.max_parallel must be > 0 when fetcher.kind is %s", c.Fetcher.Kind)
		}
	default:
		return fmt.Errorf("fetcher.kind %q must be %q, %q or %q",
			c.Fetcher.Kind, FetcherColly, FetcherHeadless, FetcherAuto)
	}
	switch c.Visited.Backend {
	case VisitedMemory:
	case VisitedRedis:
		if c.Visited.RedisAddr == "" {
			return errors.New("visited.redis_addr must be set for the redis backend")
		}
	case VisitedPostgres:
		if c.Visited.PostgresDSN == "" {
			return errors.New("visited.postgres_dsn must be set for the postgres backend")
		}
	default:
		return fmt.Errorf("visited.backend %q is not supported", c.Visited.Backend)
	}
	return nil
}

// FetchTimeout returns the per-request HTTP timeout.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavigationTimeout returns the headless navigation timeout.
func (c Config) NavigationTimeout() time.Duration {
	return time.Duration(c.Headless.NavTimeoutSec) * time.Second
}
