// Package config provides configuration management for the dashboard backend.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Redis     RedisConfig
	Feed      FeedConfig
	Pricing   PricingConfig
	Simulator SimulatorConfig
	RateLimit RateLimitConfig
	Logging   LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// RedisConfig holds the optional quote-cache Redis configuration.
// When Enabled is false the pricing service uses its in-process cache.
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// FeedConfig holds upstream price feed configuration
type FeedConfig struct {
	BaseURL           string
	APIKey            string
	RequestTimeout    time.Duration
	RequestsPerSecond float64
}

// PricingConfig holds price cache behavior
type PricingConfig struct {
	FreshnessWindow time.Duration // how long a cached quote counts as fresh
	DefaultBackoff  time.Duration // rate-limit window when upstream sends no retry hint
	DrainBatchSize  int           // queued refetches replayed per batch
	DrainSpacing    time.Duration // delay between replayed requests
}

// SimulatorConfig holds transaction settlement behavior
type SimulatorConfig struct {
	SettlementDelay time.Duration
	// FailureRate injects settlement failures (0.0-1.0). Zero in production;
	// tests raise it to exercise the failed path.
	FailureRate float64
}

// RateLimitConfig holds per-client API rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// .env file is optional - environment variables can be set directly
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvAsDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Redis: RedisConfig{
			Enabled:        getEnvAsBool("REDIS_ENABLED", false),
			Host:           getEnv("REDIS_HOST", "localhost"),
			Port:           getEnv("REDIS_PORT", "6379"),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 10),
		},
		Feed: FeedConfig{
			BaseURL:           getEnv("FEED_BASE_URL", "https://api.coingecko.com/api/v3"),
			APIKey:            getEnv("FEED_API_KEY", ""),
			RequestTimeout:    getEnvAsDuration("FEED_REQUEST_TIMEOUT", 10*time.Second),
			RequestsPerSecond: getEnvAsFloat("FEED_REQUESTS_PER_SECOND", 0.5),
		},
		Pricing: PricingConfig{
			FreshnessWindow: getEnvAsDuration("PRICE_FRESHNESS_WINDOW", 5*time.Minute),
			DefaultBackoff:  getEnvAsDuration("PRICE_RATE_LIMIT_BACKOFF", 60*time.Second),
			DrainBatchSize:  getEnvAsInt("PRICE_DRAIN_BATCH_SIZE", 3),
			DrainSpacing:    getEnvAsDuration("PRICE_DRAIN_SPACING", 500*time.Millisecond),
		},
		Simulator: SimulatorConfig{
			SettlementDelay: getEnvAsDuration("SETTLEMENT_DELAY", 2*time.Second),
			FailureRate:     getEnvAsFloat("SETTLEMENT_FAILURE_RATE", 0),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: getEnvAsInt("RATE_LIMIT_RPS", 20),
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 40),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}

	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) validate() error {
	if c.Feed.BaseURL == "" {
		return fmt.Errorf("FEED_BASE_URL must not be empty")
	}
	if c.Pricing.FreshnessWindow <= 0 {
		return fmt.Errorf("PRICE_FRESHNESS_WINDOW must be positive")
	}
	if c.Pricing.DrainBatchSize <= 0 {
		return fmt.Errorf("PRICE_DRAIN_BATCH_SIZE must be positive")
	}
	if c.Simulator.SettlementDelay < 0 {
		return fmt.Errorf("SETTLEMENT_DELAY cannot be negative")
	}
	if c.Simulator.FailureRate < 0 || c.Simulator.FailureRate > 1 {
		return fmt.Errorf("SETTLEMENT_FAILURE_RATE must be between 0 and 1")
	}
	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt returns an environment variable as int or a default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsFloat returns an environment variable as float64 or a default
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsBool returns an environment variable as bool or a default
func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvAsDuration returns an environment variable as a duration or a default
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
