// Package config loads the engine's own typed configuration: the
// Pushgateway target, push cadence, and status/debug flags, layering a
// YAML file under environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the engine's full typed configuration.
type Config struct {
	Pushgateway PushgatewayConfig `yaml:"pushgateway"`
	Logging     LoggingConfig     `yaml:"logging"`
	Status      StatusConfig      `yaml:"status"`
}

// PushgatewayConfig controls where and how often the mixer pushes.
type PushgatewayConfig struct {
	URL             string        `yaml:"url"`
	PushInterval    time.Duration `yaml:"push_interval"`
	CleanupOnStart  bool          `yaml:"cleanup_on_start"`
	CleanupOnFinish bool          `yaml:"cleanup_on_finish"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	Debug bool   `yaml:"debug_mode"`
}

// StatusConfig controls how much detail CLI status output includes.
type StatusConfig struct {
	ShowHosts   bool `yaml:"show_hosts_status"`
	ShowMetrics bool `yaml:"show_metrics_status"`
}

// Default returns the engine's baseline configuration.
func Default() *Config {
	return &Config{
		Pushgateway: PushgatewayConfig{
			URL:          "http://localhost:9091",
			PushInterval: 15 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads path (if it exists) over Default(), then applies PROMEMU_*
// environment variable overrides, which always take priority over the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROMEMU_PUSHGATEWAY_URL"); v != "" {
		cfg.Pushgateway.URL = v
	}
	if v := os.Getenv("PROMEMU_PUSH_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Pushgateway.PushInterval = d
		}
	}
	if v := os.Getenv("PROMEMU_SHOW_HOSTS_STATUS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Status.ShowHosts = b
		}
	}
	if v := os.Getenv("PROMEMU_SHOW_METRICS_STATUS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Status.ShowMetrics = b
		}
	}
	if v := os.Getenv("PROMEMU_DEBUG_MODE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.Debug = b
			if b {
				cfg.Logging.Level = "debug"
			}
		}
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Pushgateway.URL == "" {
		return fmt.Errorf("pushgateway.url is required")
	}
	if c.Pushgateway.PushInterval <= 0 {
		return fmt.Errorf("pushgateway.push_interval must be positive")
	}
	return nil
}
