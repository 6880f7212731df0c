// Package config loads the tracker's YAML configuration, layered with .env
// files and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrNotConfigured is returned at the point of use when a subsystem's
// required setting is absent.
var ErrNotConfigured = errors.New("not configured")

// Storage backends.
const (
	BackendMemory     = "memory"
	BackendPostgres   = "postgres"
	BackendClickhouse = "clickhouse"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       StorageConfig       `yaml:"storage"`
	Pricing       PricingConfig       `yaml:"pricing"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Discovery     DiscoveryConfig     `yaml:"discovery"`
	MarketData    MarketDataConfig    `yaml:"market_data"`
	Observability ObservabilityConfig `yaml:"observability"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	AdminSecret     string        `yaml:"admin_secret"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StorageConfig struct {
	Backend     string `yaml:"backend"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

type PricingConfig struct {
	Backend       string        `yaml:"backend"`
	ClickhouseDSN string        `yaml:"clickhouse_dsn"`
	FeedURL       string        `yaml:"feed_url"`
	FeedInterval  time.Duration `yaml:"feed_interval"`
	Source        string        `yaml:"source"`
}

type RateLimitConfig struct {
	Limit           int           `yaml:"limit"`
	Window          time.Duration `yaml:"window"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	RedisAddr       string        `yaml:"redis_addr"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
}

type DiscoveryConfig struct {
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	Timeout           time.Duration `yaml:"timeout"`
	Lookback          time.Duration `yaml:"lookback"`
	HKEXBaseURL       string        `yaml:"hkex_base_url"`
}

type MarketDataConfig struct {
	Concurrency int           `yaml:"concurrency"`
	QuoteURL    string        `yaml:"quote_url"` // empty disables the refresh sweep
	Timeout     time.Duration `yaml:"timeout"`
}

type ObservabilityConfig struct {
	PerformanceCapacity int           `yaml:"performance_capacity"`
	ErrorCapacity       int           `yaml:"error_capacity"`
	SlowThreshold       time.Duration `yaml:"slow_threshold"`
	PruneInterval       time.Duration `yaml:"prune_interval"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	MaxAge int    `yaml:"max_age"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{Backend: BackendMemory},
		Pricing: PricingConfig{
			Backend:      BackendMemory,
			FeedInterval: time.Minute,
			Source:       "ws-feed",
		},
		RateLimit: RateLimitConfig{
			Limit:           60,
			Window:          time.Minute,
			CleanupInterval: 5 * time.Minute,
		},
		Discovery: DiscoveryConfig{
			RequestsPerSecond: 1,
			Burst:             1,
			Timeout:           15 * time.Second,
			Lookback:          30 * 24 * time.Hour,
			HKEXBaseURL:       "https://www1.hkexnews.hk",
		},
		MarketData: MarketDataConfig{Concurrency: 4, Timeout: 10 * time.Second},
		Observability: ObservabilityConfig{
			PerformanceCapacity: 100,
			ErrorCapacity:       50,
			SlowThreshold:       time.Second,
			PruneInterval:       time.Minute,
		},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
	}
}

// Load reads .env (if present), the YAML file at path (if non-empty), then
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	// Missing .env is fine; real env vars win over it.
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		c.Server.Addr = strings.TrimSpace(v)
	}
	if v := os.Getenv("ADMIN_SECRET"); v != "" {
		c.Server.AdminSecret = strings.TrimSpace(v)
	}
	if v := os.Getenv("POSTGRES_DSN"); v != "" {
		c.Storage.PostgresDSN = strings.TrimSpace(v)
		if c.Storage.Backend == BackendMemory {
			c.Storage.Backend = BackendPostgres
		}
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		c.Pricing.ClickhouseDSN = strings.TrimSpace(v)
	}
	if v := os.Getenv("PRICE_FEED_URL"); v != "" {
		c.Pricing.FeedURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("MARKET_DATA_URL"); v != "" {
		c.MarketData.QuoteURL = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.RateLimit.RedisAddr = strings.TrimSpace(v)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.RateLimit.RedisPassword = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid REDIS_DB %q: %w", v, err)
		}
		c.RateLimit.RedisDB = db
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	return nil
}

// Validate checks value ranges and backend/DSN consistency.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for backend %q", c.Storage.Backend)
		}
	default:
		return fmt.Errorf("storage.backend %q is not supported", c.Storage.Backend)
	}

	switch c.Pricing.Backend {
	case BackendMemory:
	case BackendPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("pricing.backend %q requires storage.postgres_dsn", c.Pricing.Backend)
		}
	case BackendClickhouse:
		if c.Pricing.ClickhouseDSN == "" {
			return fmt.Errorf("pricing.clickhouse_dsn is required for backend %q", c.Pricing.Backend)
		}
	default:
		return fmt.Errorf("pricing.backend %q is not supported", c.Pricing.Backend)
	}

	if c.RateLimit.Limit <= 0 {
		return fmt.Errorf("rate_limit.limit must be greater than 0")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit.window must be greater than 0")
	}
	if c.RateLimit.CleanupInterval <= 0 {
		return fmt.Errorf("rate_limit.cleanup_interval must be greater than 0")
	}
	if c.Discovery.RequestsPerSecond <= 0 {
		return fmt.Errorf("discovery.requests_per_second must be greater than 0")
	}
	if c.Discovery.Burst <= 0 {
		return fmt.Errorf("discovery.burst must be greater than 0")
	}
	if c.MarketData.Concurrency <= 0 {
		return fmt.Errorf("market_data.concurrency must be greater than 0")
	}
	if c.Observability.PerformanceCapacity <= 0 || c.Observability.ErrorCapacity <= 0 {
		return fmt.Errorf("observability capacities must be greater than 0")
	}
	if c.Observability.PruneInterval <= 0 {
		return fmt.Errorf("observability.prune_interval must be greater than 0")
	}
	return nil
}

// RedisConfigured reports whether the durable rate-limit tier is set up.
func (c *Config) RedisConfigured() bool {
	return c.RateLimit.RedisAddr != ""
}

// RequireAdminSecret returns the admin secret or ErrNotConfigured.
func (c *Config) RequireAdminSecret() (string, error) {
	if c.Server.AdminSecret == "" {
		return "", fmt.Errorf("admin secret: %w", ErrNotConfigured)
	}
	return c.Server.AdminSecret, nil
}
