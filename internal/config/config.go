// Package config loads and validates the dealwatch service configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultReadTimeout is the default HTTP server read timeout.
	DefaultReadTimeout = 10 * time.Second
	// DefaultWriteTimeout is the default HTTP server write timeout.
	DefaultWriteTimeout = 30 * time.Second

	defaultStorefrontTimeout = 30 * time.Second
	defaultRetryAttempts     = 3
	defaultRetryPeriod       = 420 * time.Second
	defaultProbeCount        = 200
	defaultUpdateLimit       = 100
	defaultDiscoverySchedule = 6 * time.Hour
	defaultRefreshSchedule   = 12 * time.Hour
	defaultPublishSchedule   = 24 * time.Hour
)

// Config is the top-level service configuration, loaded from YAML with
// environment-variable overrides.
type Config struct {
	Debug      bool             `yaml:"debug"` // controls log level and format
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Storefront StorefrontConfig `yaml:"storefront"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Address      string        `yaml:"address"`       // e.g., ":8080"
	ReadTimeout  time.Duration `yaml:"read_timeout"`  // Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"` // Default: 30s
}

// DatabaseConfig configures the PostgreSQL connection.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// RedisConfig configures the Redis client used by the metrics tracker.
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// StorefrontConfig configures the external catalog API client and the
// retrying gateway around it.
type StorefrontConfig struct {
	BaseURL       string        `yaml:"base_url"`
	Region        string        `yaml:"region"`         // country code passed as cc=
	Timeout       time.Duration `yaml:"timeout"`        // per-request timeout
	RetryAttempts int           `yaml:"retry_attempts"` // total attempts on rate exhaustion
	RetryPeriod   time.Duration `yaml:"retry_period"`   // fixed delay between attempts
	RateLimitRPS  float64       `yaml:"rate_limit_rps"` // polite pacing of outbound calls
}

// TelegramConfig configures the announcement channel.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
}

// PipelineConfig configures the three scheduled operations.
type PipelineConfig struct {
	DiscoveryInterval time.Duration `yaml:"discovery_interval"`
	RefreshInterval   time.Duration `yaml:"refresh_interval"`
	PublishInterval   time.Duration `yaml:"publish_interval"`
	ProbeCount        int64         `yaml:"probe_count"`  // ids probed per discovery run
	UpdateLimit       int           `yaml:"update_limit"` // rows refreshed per run
}

// Validate checks the server configuration and applies defaults.
func (c *ServerConfig) Validate() error {
	if c.Address == "" {
		c.Address = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	return nil
}

// Validate checks if the configuration is valid and returns an error if not.
func (c *Config) Validate() error {
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.DBName == "" {
		return errors.New("database.dbname is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	if c.Storefront.BaseURL == "" {
		return errors.New("storefront.base_url is required")
	}
	if c.Telegram.Token == "" {
		return errors.New("telegram.token is required")
	}
	if c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required")
	}
	if c.Storefront.RetryAttempts <= 0 {
		return fmt.Errorf("storefront.retry_attempts must be positive, got %d", c.Storefront.RetryAttempts)
	}
	if c.Pipeline.ProbeCount <= 0 {
		return fmt.Errorf("pipeline.probe_count must be positive, got %d", c.Pipeline.ProbeCount)
	}
	if c.Pipeline.UpdateLimit <= 0 {
		return fmt.Errorf("pipeline.update_limit must be positive, got %d", c.Pipeline.UpdateLimit)
	}
	return nil
}

// setDefaults sets default values for configuration fields.
func setDefaults(cfg *Config) {
	if cfg.Database.Port == "" {
		cfg.Database.Port = "5432"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Storefront.Region == "" {
		cfg.Storefront.Region = "US"
	}
	if cfg.Storefront.Timeout == 0 {
		cfg.Storefront.Timeout = defaultStorefrontTimeout
	}
	if cfg.Storefront.RetryAttempts == 0 {
		cfg.Storefront.RetryAttempts = defaultRetryAttempts
	}
	if cfg.Storefront.RetryPeriod == 0 {
		cfg.Storefront.RetryPeriod = defaultRetryPeriod
	}
	if cfg.Pipeline.DiscoveryInterval == 0 {
		cfg.Pipeline.DiscoveryInterval = defaultDiscoverySchedule
	}
	if cfg.Pipeline.RefreshInterval == 0 {
		cfg.Pipeline.RefreshInterval = defaultRefreshSchedule
	}
	if cfg.Pipeline.PublishInterval == 0 {
		cfg.Pipeline.PublishInterval = defaultPublishSchedule
	}
	if cfg.Pipeline.ProbeCount == 0 {
		cfg.Pipeline.ProbeCount = defaultProbeCount
	}
	if cfg.Pipeline.UpdateLimit == 0 {
		cfg.Pipeline.UpdateLimit = defaultUpdateLimit
	}
}

// overrideWithEnvVars overrides configuration with environment variables.
func overrideWithEnvVars(cfg *Config) {
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		cfg.Redis.URL = redisURL
	}
	if token := os.Getenv("TELEGRAM_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if appDebug := os.Getenv("APP_DEBUG"); appDebug != "" {
		cfg.Debug = parseBool(appDebug)
	}
}

// Load reads, defaults, env-overrides and validates the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	setDefaults(&cfg)
	overrideWithEnvVars(&cfg)

	if err := cfg.Server.Validate(); err != nil {
		return nil, fmt.Errorf("server config validation: %w", err)
	}

	if port := os.Getenv("DEALWATCH_PORT"); port != "" {
		cfg.Server.Address = ":" + port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// parseBool parses a string value as a boolean.
// Returns true for "true", "1", "yes" (case-insensitive), false otherwise.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes"
}
