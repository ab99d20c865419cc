// Package config provides application configuration loading.
// This is part of the platform layer and contains no business logic.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// =============================================================================
// Module-Specific Config Interfaces (Principle of Least Privilege)
// =============================================================================

// DatabaseConfig provides database connection settings.
type DatabaseConfig interface {
	GetDatabaseURL() string
}

// SchedulerConfig provides settings for the automation scan scheduler.
type SchedulerConfig interface {
	GetRedisURL() string
	GetRedisTLSInsecure() bool
	GetAsynqQueueName() string
	GetAsynqConcurrency() int
	GetScanInterval() time.Duration
	GetScanEvalConcurrency() int
	GetScanRatePerSecond() float64
}

// RuleCacheConfig provides settings for the automation rule snapshot cache.
type RuleCacheConfig interface {
	GetRedisURL() string
	GetRuleCacheTTL() time.Duration
}

// =============================================================================
// Main Config Struct
// =============================================================================

// Config holds all application configuration values.
type Config struct {
	Env                 string
	DatabaseURL         string
	RedisURL            string
	RedisTLSInsecure    bool
	AsynqQueueName      string
	AsynqConcurrency    int
	ScanInterval        time.Duration
	ScanEvalConcurrency int
	ScanRatePerSecond   float64
	RuleCacheTTL        time.Duration
}

// =============================================================================
// Interface Implementations
// =============================================================================

// DatabaseConfig implementation
func (c *Config) GetDatabaseURL() string { return c.DatabaseURL }

// SchedulerConfig implementation
func (c *Config) GetRedisURL() string            { return c.RedisURL }
func (c *Config) GetRedisTLSInsecure() bool      { return c.RedisTLSInsecure }
func (c *Config) GetAsynqQueueName() string      { return c.AsynqQueueName }
func (c *Config) GetAsynqConcurrency() int       { return c.AsynqConcurrency }
func (c *Config) GetScanInterval() time.Duration { return c.ScanInterval }
func (c *Config) GetScanEvalConcurrency() int    { return c.ScanEvalConcurrency }
func (c *Config) GetScanRatePerSecond() float64  { return c.ScanRatePerSecond }

// RuleCacheConfig implementation
func (c *Config) GetRuleCacheTTL() time.Duration { return c.RuleCacheTTL }

// Load reads configuration from the environment, applying .env if present.
// Malformed values are errors, not silent zeroes: a zero TTL or interval
// would quietly change caching and scheduling semantics.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Env:              getEnv("APP_ENV", "development"),
		DatabaseURL:      getEnv("DATABASE_URL", ""),
		RedisURL:         getEnv("REDIS_URL", ""),
		RedisTLSInsecure: strings.EqualFold(getEnv("REDIS_TLS_INSECURE", "false"), "true"),
		AsynqQueueName:   getEnv("ASYNQ_QUEUE", "default"),
	}

	var err error
	if cfg.AsynqConcurrency, err = intEnv("ASYNQ_CONCURRENCY", 10); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = durationEnv("AUTOMATION_SCAN_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.ScanEvalConcurrency, err = intEnv("AUTOMATION_SCAN_EVAL_CONCURRENCY", 8); err != nil {
		return nil, err
	}
	if cfg.ScanRatePerSecond, err = floatEnv("AUTOMATION_SCAN_RATE_PER_SECOND", 25); err != nil {
		return nil, err
	}
	if cfg.RuleCacheTTL, err = durationEnv("RULE_CACHE_TTL", time.Minute); err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.ScanInterval < time.Minute {
		return nil, fmt.Errorf("AUTOMATION_SCAN_INTERVAL must be at least 1m")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q", key, raw)
	}
	return d, nil
}

func intEnv(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, raw)
	}
	return n, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, raw)
	}
	return f, nil
}
