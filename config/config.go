// Package config provides YAML-based configuration loading for
// poolbench, with defaults, file values, and POOLBENCH_* environment
// overrides layered in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root application configuration. Every field doubles as
// the default for the matching CLI flag.
type Config struct {
	// Workload selects the synthetic workload: delay or factorize.
	Workload string `mapstructure:"workload"`

	// Tasks is the number of task indices to dispatch.
	Tasks int `mapstructure:"tasks"`

	// Pool selects the backend: thread or process.
	Pool string `mapstructure:"pool"`

	// Style selects the dispatch discipline: submit or map.
	Style string `mapstructure:"style"`

	// AsCompleted switches submit-style collection to completion order.
	AsCompleted bool `mapstructure:"as_completed"`

	// MaxWorkers bounds the pool size; 0 means the backend default.
	MaxWorkers int `mapstructure:"max_workers"`

	// Verbose is forwarded to every adapter invocation.
	Verbose bool `mapstructure:"verbose"`

	Delay     DelayConfig     `mapstructure:"delay"`
	Factorize FactorizeConfig `mapstructure:"factorize"`
	Rate      RateConfig      `mapstructure:"rate"`
	Log       LogConfig       `mapstructure:"log"`
}

// DelayConfig parameterizes the delay workload. Seconds < 0 means
// "draw from the normal distribution" instead of a fixed sleep.
type DelayConfig struct {
	Seconds      float64 `mapstructure:"seconds"`
	SecondsMean  float64 `mapstructure:"seconds_mean"`
	SecondsSigma float64 `mapstructure:"seconds_sigma"`
}

// FactorizeConfig parameterizes the factorization workload.
type FactorizeConfig struct {
	Base int64 `mapstructure:"base"`
}

// RateConfig throttles adapter invocations; zero disables limiting.
type RateConfig struct {
	PerSecond float64 `mapstructure:"per_second"`
	Burst     int     `mapstructure:"burst"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level"`
	// Format: console or json
	Format string `mapstructure:"format"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable"`
	Filename   string `mapstructure:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
	Compress   bool   `mapstructure:"compress"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Workload:    "delay",
		Tasks:       8,
		Pool:        "thread",
		Style:       "submit",
		AsCompleted: false,
		MaxWorkers:  0,
		Verbose:     false,
		Delay: DelayConfig{
			Seconds:      -1,
			SecondsMean:  1,
			SecondsSigma: 0.25,
		},
		Factorize: FactorizeConfig{Base: 100000001},
		Rate:      RateConfig{PerSecond: 0, Burst: 0},
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stderr"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/poolbench.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment
// overrides. Environment variables use the prefix POOLBENCH and
// `.`/`-` are replaced with `_`. Example: POOLBENCH_LOG_LEVEL=debug.
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("POOLBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("workload", cfg.Workload)
	v.SetDefault("tasks", cfg.Tasks)
	v.SetDefault("pool", cfg.Pool)
	v.SetDefault("style", cfg.Style)
	v.SetDefault("as_completed", cfg.AsCompleted)
	v.SetDefault("max_workers", cfg.MaxWorkers)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("delay.seconds", cfg.Delay.Seconds)
	v.SetDefault("delay.seconds_mean", cfg.Delay.SecondsMean)
	v.SetDefault("delay.seconds_sigma", cfg.Delay.SecondsSigma)
	v.SetDefault("factorize.base", cfg.Factorize.Base)
	v.SetDefault("rate.per_second", cfg.Rate.PerSecond)
	v.SetDefault("rate.burst", cfg.Rate.Burst)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)

	if path == "" {
		if envPath := os.Getenv("POOLBENCH_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("poolbench")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".poolbench"))
		}
	}

	// Read config file if present; if not found during search, continue
	// with defaults/env. An explicit path must exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
