package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the resolved configuration for one invocation. Precedence
// is CLI flag over environment over config file over defaults; the CLI
// layer applies flag overrides after LoadConfig returns.
type Config struct {
	OutputDir   string            `mapstructure:"output_dir"`
	Quality     int               `mapstructure:"quality"`
	Fetch       FetchConfig       `mapstructure:"fetch"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Processing  ProcessingConfig  `mapstructure:"processing"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// FetchConfig contains remote staging settings.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
}

// PerformanceConfig contains concurrency settings.
type PerformanceConfig struct {
	// WorkerThreads bounds the batch pool. Zero sizes the pool from
	// the CPU count.
	WorkerThreads int `mapstructure:"worker_threads"`
}

// ProcessingConfig contains per-item pipeline settings.
type ProcessingConfig struct {
	RetainTempFiles   bool `mapstructure:"retain_temp_files"`
	KeepMetadata      bool `mapstructure:"keep_metadata"`
	SkipAlreadyShrunk bool `mapstructure:"skip_already_shrunk"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "/tmp",
		Quality:   50,
		Fetch: FetchConfig{
			TimeoutSeconds: 30,
			UserAgent:      "img-compactor/1.0",
		},
		Performance: PerformanceConfig{
			WorkerThreads: 0,
		},
		Processing: ProcessingConfig{
			RetainTempFiles:   false,
			KeepMetadata:      false,
			SkipAlreadyShrunk: false,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables.
// A missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.img-compactor")
		v.AddConfigPath("/etc/img-compactor")
	}

	v.SetEnvPrefix("IMG_COMPACTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// No config file found is fine, defaults apply.
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate checks values and normalizes the ones with safe fallbacks.
// Quality is range-checked here as well so a bad config file fails the
// whole run up front rather than per item.
func (c *Config) Validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}

	if c.Quality < 0 || c.Quality > 100 {
		return fmt.Errorf("quality must be between 0 and 100, got %d", c.Quality)
	}

	if c.Fetch.TimeoutSeconds < 0 {
		return fmt.Errorf("fetch.timeout_seconds cannot be negative")
	}

	if c.Performance.WorkerThreads < 0 {
		c.Performance.WorkerThreads = 0
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}
