// Package config provides configuration management for the insight scraper.
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
	Server   ServerConfig
	Database DatabaseConfig
	Scraper  ScraperConfig
	Cache    CacheConfig
	Worker   WorkerConfig
	Proxy    ProxyConfig
	Logging  LoggingConfig
}

// ServerConfig holds the ops HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ScraperConfig holds the account-pool coordination settings
type ScraperConfig struct {
	// MaxFailureCount is the failure count at which an account is
	// burned instead of cooled down.
	MaxFailureCount int
	// MaxActiveScrapers caps concurrently active scraper instances
	// across all processes.
	MaxActiveScrapers int
	// MaxLoginAttempts bounds account rotation within a single job.
	MaxLoginAttempts int
	// CooldownBase and CooldownMax bound the exponential cooldown.
	CooldownBase time.Duration
	CooldownMax  time.Duration
	// Rest is the mandatory rest window applied after every
	// successful job.
	Rest time.Duration
	// TweetFetchLimit is the timeline page size for single-target
	// runs; BatchTweetFetchLimit applies in batch mode.
	TweetFetchLimit      int
	BatchTweetFetchLimit int
	// TargetTimeout bounds the wall clock of one target's scrape.
	TargetTimeout time.Duration
	// RatePerMinute paces target processing in batch mode.
	RatePerMinute int
	// APIBaseURL is the upstream scrape service endpoint.
	APIBaseURL string
	// RequestTimeout bounds individual upstream HTTP requests.
	RequestTimeout time.Duration
}

// CacheConfig holds scrape-result cache configuration
type CacheConfig struct {
	// TTL is the freshness window; batch mode skips targets scraped
	// within it.
	TTL time.Duration
}

// WorkerConfig holds the polling scrape worker configuration
type WorkerConfig struct {
	PollInterval time.Duration
}

// ProxyConfig holds outbound proxy configuration for the scrape client
type ProxyConfig struct {
	URL string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "insight_scraper"),
				User:           getEnv("POSTGRES_USER", "scraper"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 100),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Scraper: ScraperConfig{
			MaxFailureCount:      getEnvAsInt("MAX_FAILURE_COUNT", 3),
			MaxActiveScrapers:    getEnvAsInt("MAX_ACTIVE_SCRAPERS", 20),
			MaxLoginAttempts:     getEnvAsInt("MAX_LOGIN_ATTEMPTS", 20),
			CooldownBase:         getEnvAsDuration("COOLDOWN_BASE", 60*time.Minute),
			CooldownMax:          getEnvAsDuration("COOLDOWN_MAX", 7*24*time.Hour),
			Rest:                 getEnvAsDuration("REST_WINDOW", time.Minute),
			TweetFetchLimit:      getEnvAsInt("TWEET_FETCH_LIMIT", 20),
			BatchTweetFetchLimit: getEnvAsInt("BATCH_TWEET_FETCH_LIMIT", 1000),
			TargetTimeout:        getEnvAsDuration("TARGET_TIMEOUT", 2*time.Minute),
			RatePerMinute:        getEnvAsInt("SCRAPE_RATE_PER_MINUTE", 6),
			APIBaseURL:           getEnv("SCRAPE_API_BASE_URL", "https://api.x.com"),
			RequestTimeout:       getEnvAsDuration("SCRAPE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Cache: CacheConfig{
			TTL: getEnvAsDuration("CACHE_TTL", time.Hour),
		},
		Worker: WorkerConfig{
			PollInterval: getEnvAsDuration("POLL_INTERVAL", 15*time.Minute),
		},
		Proxy: ProxyConfig{
			URL: getEnv("PROXY_URL", ""),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks configuration bounds that the coordinator relies on
func (c *Config) Validate() error {
	if c.Scraper.MaxFailureCount < 1 {
		return fmt.Errorf("MAX_FAILURE_COUNT must be at least 1, got %d", c.Scraper.MaxFailureCount)
	}
	if c.Scraper.MaxActiveScrapers < 1 {
		return fmt.Errorf("MAX_ACTIVE_SCRAPERS must be at least 1, got %d", c.Scraper.MaxActiveScrapers)
	}
	if c.Scraper.MaxLoginAttempts < 1 {
		return fmt.Errorf("MAX_LOGIN_ATTEMPTS must be at least 1, got %d", c.Scraper.MaxLoginAttempts)
	}
	if c.Scraper.CooldownBase <= 0 || c.Scraper.CooldownMax < c.Scraper.CooldownBase {
		return fmt.Errorf("cooldown bounds invalid: base=%v max=%v", c.Scraper.CooldownBase, c.Scraper.CooldownMax)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
