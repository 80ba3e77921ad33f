// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/blueberrycongee/llmgate/internal/cache"
	"github.com/blueberrycongee/llmgate/internal/healthcheck"
	"github.com/blueberrycongee/llmgate/internal/observability"
	"github.com/blueberrycongee/llmgate/internal/provider"
	"github.com/blueberrycongee/llmgate/internal/scheduler"
)

// Config represents the complete gateway configuration.
type Config struct {
	Server      ServerConfig                    `yaml:"server"`
	Provider    provider.Config                 `yaml:"provider"`
	Scheduler   SchedulerConfig                 `yaml:"scheduler"`
	Cache       cache.Config                    `yaml:"cache"`
	HealthCheck healthcheck.Config              `yaml:"healthcheck"`
	Logging     LoggingConfig                   `yaml:"logging"`
	Metrics     MetricsConfig                   `yaml:"metrics"`
	Tracing     observability.TracingConfig     `yaml:"tracing"`
	OTelMetrics observability.OTelMetricsConfig `yaml:"otel_metrics"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	AdminPort       int           `yaml:"admin_port"` // 0 serves admin routes on Port
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodySize     int64         `yaml:"max_body_size"` // Bytes, 0 uses the API default
}

// SchedulerConfig contains admission limits.
type SchedulerConfig struct {
	MaxRequestsPerMinute  int           `yaml:"max_requests_per_minute"`
	MaxConcurrentRequests int           `yaml:"max_concurrent_requests"`
	Window                time.Duration `yaml:"window"`
}

// SchedulerOptions converts the section into scheduler construction options.
func (s SchedulerConfig) SchedulerOptions() scheduler.Config {
	return scheduler.Config{
		MaxRequestsPerMinute:  s.MaxRequestsPerMinute,
		MaxConcurrentRequests: s.MaxConcurrentRequests,
		Window:                s.Window,
	}
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`  // debug, info, warn, error
	Format    string `yaml:"format"` // json, text
	AddSource bool   `yaml:"add_source"`
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	sched := scheduler.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
		},
		Provider: provider.Config{
			Name:    "openai",
			BaseURL: "https://api.openai.com/v1",
			Timeout: 120 * time.Second,
		},
		Scheduler: SchedulerConfig{
			MaxRequestsPerMinute:  sched.MaxRequestsPerMinute,
			MaxConcurrentRequests: sched.MaxConcurrentRequests,
			Window:                sched.Window,
		},
		Cache:       cache.DefaultConfig(),
		HealthCheck: healthcheck.DefaultConfig(),
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing:     observability.DefaultTracingConfig(),
		OTelMetrics: observability.DefaultOTelMetricsConfig(),
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for errors. Zero scheduler and cache
// values are accepted and replaced with defaults by the components.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.AdminPort < 0 || c.Server.AdminPort > 65535 {
		return fmt.Errorf("invalid admin port: %d", c.Server.AdminPort)
	}
	if c.Server.AdminPort != 0 && c.Server.AdminPort == c.Server.Port {
		return fmt.Errorf("admin port must differ from server port: %d", c.Server.AdminPort)
	}
	if c.Server.MaxBodySize < 0 {
		return fmt.Errorf("server.max_body_size cannot be negative")
	}

	if err := c.Scheduler.SchedulerOptions().Validate(); err != nil {
		return fmt.Errorf("scheduler: %w", err)
	}

	if c.Cache.MaxSize < 0 {
		return fmt.Errorf("cache.max_size cannot be negative")
	}
	if c.Cache.EmbeddingMaxSize < 0 {
		return fmt.Errorf("cache.embedding_max_size cannot be negative")
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl cannot be negative")
	}
	if c.Cache.EmbeddingTTLMultiplier < 0 {
		return fmt.Errorf("cache.embedding_ttl_multiplier cannot be negative")
	}

	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider %q: timeout cannot be negative", c.Provider.Name)
	}

	if c.HealthCheck.Interval < 0 || c.HealthCheck.Timeout < 0 {
		return fmt.Errorf("healthcheck interval and timeout cannot be negative")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be between 0 and 1: %v", c.Tracing.SampleRate)
	}

	return nil
}
