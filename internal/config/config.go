// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	API       APIConfig       `mapstructure:"api"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Retry     RetryConfig     `mapstructure:"retry"`
	Breaker   BreakerConfig   `mapstructure:"breaker"`
	Health    HealthConfig    `mapstructure:"health"`
	Scrape    ScrapeConfig    `mapstructure:"scrape"`
	DB        DBConfig        `mapstructure:"db"`
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// APIConfig holds remote API credentials and client behavior.
type APIConfig struct {
	Key            string `mapstructure:"key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// RateLimitConfig mirrors the per-endpoint throughput ceilings. The remote
// API enforces two windows at once, so both are tracked per endpoint class.
type RateLimitConfig struct {
	Per10Sec int `mapstructure:"per_10_sec"`
	Per10Min int `mapstructure:"per_10_min"`
}

// RetryConfig governs the adaptive retry wrapper around each request attempt.
type RetryConfig struct {
	Attempts   int     `mapstructure:"attempts"`
	BaseMs     int     `mapstructure:"base_ms"`
	Factor     float64 `mapstructure:"factor"`
	JitterMs   int     `mapstructure:"jitter_ms"`
	MaxDelayMs int     `mapstructure:"max_delay_ms"`
}

// BreakerConfig controls per-platform circuit breaking.
type BreakerConfig struct {
	FailureThreshold    int `mapstructure:"failure_threshold"`
	ResetTimeoutSeconds int `mapstructure:"reset_timeout_seconds"`
}

// HealthConfig configures the standalone health-check probes.
type HealthConfig struct {
	CacheTTLSeconds int    `mapstructure:"cache_ttl_seconds"`
	DNSTimeoutMs    int    `mapstructure:"dns_timeout_ms"`
	HTTPTimeoutMs   int    `mapstructure:"http_timeout_ms"`
	StatusPath      string `mapstructure:"status_path"`
}

// ScrapeConfig governs discovery and orchestration per region.
type ScrapeConfig struct {
	Platforms        []string `mapstructure:"platforms"`
	Queue            string   `mapstructure:"queue"`
	TargetPerRegion  int      `mapstructure:"target_per_region"`
	GlobalCap        int      `mapstructure:"global_cap"`
	MaxConcurrent    int      `mapstructure:"max_concurrent"`
	ChunkSize        int      `mapstructure:"chunk_size"`
	MatchesPerPlayer int      `mapstructure:"matches_per_player"`
	SeedCount        int      `mapstructure:"seed_count"`
	SeedPUUIDs       []string `mapstructure:"seed_puuids"`
	TargetPatch      string   `mapstructure:"target_patch"`
	PatchStartDate   string   `mapstructure:"patch_start_date"`
	PatchEndDate     string   `mapstructure:"patch_end_date"`
}

// DBConfig controls access to the relational persistence sink. An empty DSN
// selects the in-memory sink.
type DBConfig struct {
	DSN string `mapstructure:"dsn"`
}

// ServerConfig controls the diagnostics HTTP server.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment. A .env file in the working
// directory is folded into the environment first, matching operator habits.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
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
	v.SetDefault("api.key", "")
	v.SetDefault("api.timeout_seconds", 30)
	v.SetDefault("rate_limit.per_10_sec", 20)
	v.SetDefault("rate_limit.per_10_min", 100)
	v.SetDefault("retry.attempts", 4)
	v.SetDefault("retry.base_ms", 200)
	v.SetDefault("retry.factor", 2.0)
	v.SetDefault("retry.jitter_ms", 50)
	v.SetDefault("retry.max_delay_ms", 5000)
	v.SetDefault("breaker.failure_threshold", 5)
	v.SetDefault("breaker.reset_timeout_seconds", 30)
	v.SetDefault("health.cache_ttl_seconds", 30)
	v.SetDefault("health.dns_timeout_ms", 1000)
	v.SetDefault("health.http_timeout_ms", 3000)
	v.SetDefault("health.status_path", "/lol/status/v4/platform-data")
	v.SetDefault("scrape.platforms", []string{"euw1", "eun1", "na1"})
	v.SetDefault("scrape.queue", "RANKED_SOLO_5x5")
	v.SetDefault("scrape.target_per_region", 500)
	v.SetDefault("scrape.max_concurrent", 10)
	v.SetDefault("scrape.chunk_size", 50)
	v.SetDefault("scrape.matches_per_player", 100)
	v.SetDefault("scrape.seed_count", 50)
	v.SetDefault("scrape.target_patch", "")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("api.key must be set (HARVESTER_API_KEY)")
	}
	if c.API.TimeoutSeconds <= 0 {
		return fmt.Errorf("api.timeout_seconds must be > 0")
	}
	if c.RateLimit.Per10Sec <= 0 || c.RateLimit.Per10Min <= 0 {
		return fmt.Errorf("rate_limit windows must be > 0")
	}
	if c.Retry.Attempts <= 0 {
		return fmt.Errorf("retry.attempts must be > 0")
	}
	if c.Breaker.FailureThreshold <= 0 {
		return fmt.Errorf("breaker.failure_threshold must be > 0")
	}
	if c.Scrape.MaxConcurrent <= 0 {
		return fmt.Errorf("scrape.max_concurrent must be > 0")
	}
	if c.Scrape.TargetPerRegion <= 0 {
		return fmt.Errorf("scrape.target_per_region must be > 0")
	}
	if len(c.Scrape.Platforms) == 0 {
		return fmt.Errorf("scrape.platforms must not be empty")
	}
	if c.Scrape.PatchStartDate != "" {
		if _, err := time.Parse("2006-01-02", c.Scrape.PatchStartDate); err != nil {
			return fmt.Errorf("scrape.patch_start_date: %w", err)
		}
	}
	if c.Scrape.PatchEndDate != "" {
		if _, err := time.Parse("2006-01-02", c.Scrape.PatchEndDate); err != nil {
			return fmt.Errorf("scrape.patch_end_date: %w", err)
		}
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0 when server.enabled")
	}
	return nil
}

// APITimeout returns the request timeout as a duration.
func (c APIConfig) APITimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// PatchWindow converts the configured patch dates into unix-second bounds for
// the match-history endpoint. The end bound is zero when open-ended.
func (c ScrapeConfig) PatchWindow() (start, end int64) {
	if c.PatchStartDate != "" {
		if t, err := time.Parse("2006-01-02", c.PatchStartDate); err == nil {
			start = t.Unix()
		}
	}
	if c.PatchEndDate != "" {
		if t, err := time.Parse("2006-01-02", c.PatchEndDate); err == nil {
			end = t.Unix()
		}
	}
	return start, end
}
