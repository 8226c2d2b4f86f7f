package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// Config holds all configuration settings for the application
type Config struct {
	Environment string        `mapstructure:"environment"`
	LogLevel    string        `mapstructure:"log_level"`
	Poll        PollConfig    `mapstructure:"poll"`
	Store       StoreConfig   `mapstructure:"store"`
	Persist     PersistConfig `mapstructure:"persist"`
	Sweep       SweepConfig   `mapstructure:"sweep"`
}

// PollConfig holds poll lifecycle settings
type PollConfig struct {
	MinOptions    int           `mapstructure:"min_options"`
	MaxOptions    int           `mapstructure:"max_options"`
	DefaultExpiry time.Duration `mapstructure:"default_expiry"`
	IDRetries     int           `mapstructure:"id_retries"`
}

// StoreConfig selects and configures the durable key-value backend
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"` // redis, postgres or memory
	Redis    RedisConfig    `mapstructure:"redis"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// PostgresConfig holds PostgreSQL connection settings
type PostgresConfig struct {
	URL      string        `mapstructure:"url"`
	MaxConns int32         `mapstructure:"max_conns"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// PersistConfig holds persistence bridge settings
type PersistConfig struct {
	QueueSize     int           `mapstructure:"queue_size"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	RetryDelay    time.Duration `mapstructure:"retry_delay"`
}

// SweepConfig holds cleanup sweep settings
type SweepConfig struct {
	Schedule  string        `mapstructure:"schedule"`
	Retention time.Duration `mapstructure:"retention"`
}

// Load reads the configuration file and environment variables
func Load(configPath string) (*Config, error) {
	// Pick up a local .env before viper reads the environment. The
	// logger is not built until the config is loaded, so this note goes
	// straight to stderr.
	if err := godotenv.Load(); err != nil {
		fmt.Fprintln(os.Stderr, "no .env file found, using environment variables")
	}

	v := viper.New()

	// Set default configuration values
	setDefaults(v)

	// Read the config file
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, will rely on defaults and env vars
	}

	// Override with environment variables
	v.SetEnvPrefix("POLLBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Parse the configuration
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate the configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// setDefaults sets default values for all configuration options
func setDefaults(v *viper.Viper) {
	// General defaults
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	// Poll defaults
	v.SetDefault("poll.min_options", 2)
	v.SetDefault("poll.max_options", 5)
	v.SetDefault("poll.default_expiry", "7h")
	v.SetDefault("poll.id_retries", 3)

	// Store defaults
	v.SetDefault("store.backend", "redis")
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.db", 0)
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.timeout", "30s")

	// Persistence bridge defaults
	v.SetDefault("persist.queue_size", 256)
	v.SetDefault("persist.retry_attempts", 3)
	v.SetDefault("persist.retry_delay", "2s")

	// Sweep defaults
	v.SetDefault("sweep.schedule", "* * * * *")
	v.SetDefault("sweep.retention", "24h")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validatePoll(); err != nil {
		return fmt.Errorf("poll config: %w", err)
	}
	if err := c.validateStore(); err != nil {
		return fmt.Errorf("store config: %w", err)
	}
	if err := c.validatePersist(); err != nil {
		return fmt.Errorf("persist config: %w", err)
	}
	if err := c.validateSweep(); err != nil {
		return fmt.Errorf("sweep config: %w", err)
	}
	return nil
}

func (c *Config) validatePoll() error {
	if c.Poll.MinOptions < 2 {
		return fmt.Errorf("min_options must be at least 2")
	}
	if c.Poll.MaxOptions < c.Poll.MinOptions {
		return fmt.Errorf("max_options (%d) cannot be less than min_options (%d)",
			c.Poll.MaxOptions, c.Poll.MinOptions)
	}
	if c.Poll.DefaultExpiry < 0 {
		return fmt.Errorf("default_expiry cannot be negative")
	}
	if c.Poll.IDRetries <= 0 {
		return fmt.Errorf("id_retries must be positive")
	}
	return nil
}

func (c *Config) validateStore() error {
	switch c.Store.Backend {
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr cannot be empty")
		}
	case "postgres":
		if c.Store.Postgres.URL == "" {
			return fmt.Errorf("postgres URL cannot be empty")
		}
		if c.Store.Postgres.MaxConns <= 0 {
			return fmt.Errorf("max_conns must be positive")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown backend %q", c.Store.Backend)
	}
	return nil
}

func (c *Config) validatePersist() error {
	if c.Persist.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive")
	}
	if c.Persist.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts cannot be negative")
	}
	if c.Persist.RetryDelay < 0 {
		return fmt.Errorf("retry_delay cannot be negative")
	}
	return nil
}

func (c *Config) validateSweep() error {
	if c.Sweep.Schedule == "" {
		return fmt.Errorf("schedule cannot be empty")
	}
	if _, err := cron.ParseStandard(c.Sweep.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}
	if c.Sweep.Retention <= 0 {
		return fmt.Errorf("retention must be positive")
	}
	return nil
}

// GetLogLevel returns a zap log level based on the configured string
func (c *Config) GetLogLevel() zap.AtomicLevel {
	level := zap.NewAtomicLevel()
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level.SetLevel(zap.DebugLevel)
	case "info":
		level.SetLevel(zap.InfoLevel)
	case "warn":
		level.SetLevel(zap.WarnLevel)
	case "error":
		level.SetLevel(zap.ErrorLevel)
	default:
		level.SetLevel(zap.InfoLevel)
	}
	return level
}

// IsDevelopment returns true if the environment is set to development
func (c *Config) IsDevelopment() bool {
	return strings.ToLower(c.Environment) == "development"
}
