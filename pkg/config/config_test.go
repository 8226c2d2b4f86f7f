package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := []byte(`
environment: production
log_level: debug
poll:
  min_options: 2
  max_options: 4
  default_expiry: 1h
store:
  backend: memory
sweep:
  schedule: "*/5 * * * *"
  retention: 48h
`)

	err := os.WriteFile(configPath, configContent, 0644)
	require.NoError(t, err)

	t.Run("LoadValidConfig", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)
		assert.NotNil(t, cfg)

		assert.Equal(t, "production", cfg.Environment)
		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 4, cfg.Poll.MaxOptions)
		assert.Equal(t, time.Hour, cfg.Poll.DefaultExpiry)
		assert.Equal(t, "memory", cfg.Store.Backend)
		assert.Equal(t, 48*time.Hour, cfg.Sweep.Retention)
	})

	t.Run("DefaultsApplied", func(t *testing.T) {
		cfg, err := Load(configPath)
		require.NoError(t, err)

		assert.Equal(t, 2, cfg.Poll.MinOptions)
		assert.Equal(t, 3, cfg.Poll.IDRetries)
		assert.Equal(t, 256, cfg.Persist.QueueSize)
		assert.Equal(t, 3, cfg.Persist.RetryAttempts)
	})

	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(tmpDir, "missing.yaml"))
		require.NoError(t, err)
		assert.Equal(t, "development", cfg.Environment)
		assert.Equal(t, "redis", cfg.Store.Backend)
		assert.Equal(t, 7*time.Hour, cfg.Poll.DefaultExpiry)
	})
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Environment: "development",
			LogLevel:    "info",
			Poll: PollConfig{
				MinOptions:    2,
				MaxOptions:    5,
				DefaultExpiry: 7 * time.Hour,
				IDRetries:     3,
			},
			Store: StoreConfig{
				Backend: "redis",
				Redis:   RedisConfig{Addr: "localhost:6379"},
			},
			Persist: PersistConfig{
				QueueSize:     256,
				RetryAttempts: 3,
				RetryDelay:    2 * time.Second,
			},
			Sweep: SweepConfig{
				Schedule:  "* * * * *",
				Retention: 24 * time.Hour,
			},
		}
	}

	t.Run("Valid", func(t *testing.T) {
		require.NoError(t, valid().Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"MinOptionsTooLow", func(c *Config) { c.Poll.MinOptions = 1 }},
		{"MaxBelowMin", func(c *Config) { c.Poll.MaxOptions = 1 }},
		{"NoIDRetries", func(c *Config) { c.Poll.IDRetries = 0 }},
		{"UnknownBackend", func(c *Config) { c.Store.Backend = "scrolls" }},
		{"RedisWithoutAddr", func(c *Config) { c.Store.Redis.Addr = "" }},
		{"PostgresWithoutURL", func(c *Config) { c.Store.Backend = "postgres" }},
		{"ZeroQueue", func(c *Config) { c.Persist.QueueSize = 0 }},
		{"BadCronSchedule", func(c *Config) { c.Sweep.Schedule = "whenever" }},
		{"ZeroRetention", func(c *Config) { c.Sweep.Retention = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestConfig_GetLogLevel(t *testing.T) {
	cfg := &Config{LogLevel: "warn"}
	assert.Equal(t, "warn", cfg.GetLogLevel().String())

	cfg.LogLevel = "nonsense"
	assert.Equal(t, "info", cfg.GetLogLevel().String())
}

func TestConfig_IsDevelopment(t *testing.T) {
	assert.True(t, (&Config{Environment: "Development"}).IsDevelopment())
	assert.False(t, (&Config{Environment: "production"}).IsDevelopment())
}
