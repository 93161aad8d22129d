package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Worker    WorkerConfig    `mapstructure:"worker"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Runtime   RuntimeConfig   `mapstructure:"runtime"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// WorkerConfig holds transport configuration
type WorkerConfig struct {
	// Transport selects how requests reach the worker: "stdio" for the
	// newline-delimited JSON protocol, "mcp" for the MCP tool surface.
	Transport string `mapstructure:"transport"`
}

// ExecutionConfig holds per-request execution limits
type ExecutionConfig struct {
	DefaultTimeoutSec int `mapstructure:"default_timeout_sec"`
	MaxLineBytes      int `mapstructure:"max_line_bytes"`
}

// RuntimeConfig holds warm-runtime configuration
type RuntimeConfig struct {
	// Preload names the prelude modules loaded during the one-time warm
	// start. Empty means the built-in default set.
	Preload []string `mapstructure:"preload"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("worker.transport", "stdio")
	viper.SetDefault("execution.default_timeout_sec", 30)
	viper.SetDefault("execution.max_line_bytes", 10*1024*1024)
	viper.SetDefault("runtime.preload", []string{"path", "text", "assert"})
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Worker.Transport != "stdio" && c.Worker.Transport != "mcp" {
		return fmt.Errorf("invalid worker.transport: %s, must be 'stdio' or 'mcp'", c.Worker.Transport)
	}

	if c.Execution.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("execution.default_timeout_sec must be positive, got: %d", c.Execution.DefaultTimeoutSec)
	}

	if c.Execution.MaxLineBytes <= 0 {
		return fmt.Errorf("execution.max_line_bytes must be positive, got: %d", c.Execution.MaxLineBytes)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	return nil
}

// GetDefaultTimeout returns the default execution timeout as a duration
func (c *Config) GetDefaultTimeout() time.Duration {
	return time.Duration(c.Execution.DefaultTimeoutSec) * time.Second
}
