// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App       AppConfig       `yaml:"app"`
	Advisor   AdvisorConfig   `yaml:"advisor"`
	Server    ServerConfig    `yaml:"server"`
	Journal   JournalConfig   `yaml:"journal"`
	PriceFeed PriceFeedConfig `yaml:"price_feed"`
	System    SystemConfig    `yaml:"system"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
}

// AdvisorConfig contains recommendation defaults
type AdvisorConfig struct {
	DefaultProfile      string  `yaml:"default_profile"`
	DefaultTargetMargin float64 `yaml:"default_target_margin" validate:"lt=1"`
	SweepWorkers        int     `yaml:"sweep_workers" validate:"min=1,max=64"`
	SweepMaxSteps       int     `yaml:"sweep_max_steps" validate:"min=1,max=10000"`
}

// ServerConfig contains HTTP/WebSocket server settings
type ServerConfig struct {
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	MaxConnections int      `yaml:"max_connections" validate:"min=1"`
	RateLimit      float64  `yaml:"rate_limit" validate:"min=0"`
	RateBurst      int      `yaml:"rate_burst" validate:"min=1"`
	Production     bool     `yaml:"production"`
}

// JournalConfig selects where served recommendations are recorded
type JournalConfig struct {
	Driver   string `yaml:"driver" validate:"oneof=memory sqlite"`
	Path     string `yaml:"path"`
	Capacity int    `yaml:"capacity" validate:"min=1"`
}

// PriceFeedConfig points at a ticker price endpoint
type PriceFeedConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         Secret `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds" validate:"min=1,max=120"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
	EnableTracing bool `yaml:"enable_tracing"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Values missing from the file keep their defaults. A .env file in
// the working directory is loaded first when present.
func LoadConfig(filename string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(data))), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	checks := []func() error{
		c.validateAdvisorConfig,
		c.validateServerConfig,
		c.validateJournalConfig,
		c.validatePriceFeedConfig,
		c.validateSystemConfig,
		c.validateTelemetryConfig,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}
	return nil
}

func (c *Config) validateAdvisorConfig() error {
	if strings.TrimSpace(c.Advisor.DefaultProfile) == "" {
		c.Advisor.DefaultProfile = "default"
	}
	if c.Advisor.DefaultTargetMargin >= 1 {
		return ValidationError{
			Field:   "advisor.default_target_margin",
			Value:   c.Advisor.DefaultTargetMargin,
			Message: "must be below 1",
		}
	}
	if c.Advisor.SweepWorkers < 1 || c.Advisor.SweepWorkers > 64 {
		return ValidationError{
			Field:   "advisor.sweep_workers",
			Value:   c.Advisor.SweepWorkers,
			Message: "must be between 1 and 64",
		}
	}
	if c.Advisor.SweepMaxSteps < 1 || c.Advisor.SweepMaxSteps > 10000 {
		return ValidationError{
			Field:   "advisor.sweep_max_steps",
			Value:   c.Advisor.SweepMaxSteps,
			Message: "must be between 1 and 10000",
		}
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.Port == "" {
		c.Server.Port = ":8090"
	}
	if !strings.HasPrefix(c.Server.Port, ":") && !strings.Contains(c.Server.Port, ":") {
		c.Server.Port = ":" + c.Server.Port
	}
	if c.Server.MaxConnections < 1 {
		return ValidationError{
			Field:   "server.max_connections",
			Value:   c.Server.MaxConnections,
			Message: "must be positive",
		}
	}
	if c.Server.RateLimit < 0 || c.Server.RateBurst < 1 {
		return ValidationError{
			Field:   "server.rate_limit",
			Value:   fmt.Sprintf("%v/%d", c.Server.RateLimit, c.Server.RateBurst),
			Message: "rate limit must be non-negative and burst at least 1",
		}
	}
	if c.Server.Production && contains(c.Server.AllowedOrigins, "*") {
		return ValidationError{
			Field:   "server.allowed_origins",
			Value:   "*",
			Message: "wildcard origin is not allowed in production",
		}
	}
	return nil
}

func (c *Config) validateJournalConfig() error {
	validDrivers := []string{"memory", "sqlite"}
	if !contains(validDrivers, c.Journal.Driver) {
		return ValidationError{
			Field:   "journal.driver",
			Value:   c.Journal.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validDrivers, ", ")),
		}
	}
	if c.Journal.Driver == "sqlite" && c.Journal.Path == "" {
		return ValidationError{
			Field:   "journal.path",
			Message: "path is required for the sqlite driver",
		}
	}
	if c.Journal.Capacity < 1 {
		return ValidationError{
			Field:   "journal.capacity",
			Value:   c.Journal.Capacity,
			Message: "must be positive",
		}
	}
	return nil
}

func (c *Config) validatePriceFeedConfig() error {
	if c.PriceFeed.BaseURL == "" {
		return nil
	}
	if !strings.HasPrefix(c.PriceFeed.BaseURL, "http://") && !strings.HasPrefix(c.PriceFeed.BaseURL, "https://") {
		return ValidationError{
			Field:   "price_feed.base_url",
			Value:   c.PriceFeed.BaseURL,
			Message: "must be an http(s) URL",
		}
	}
	if c.PriceFeed.TimeoutSeconds < 1 || c.PriceFeed.TimeoutSeconds > 120 {
		return ValidationError{
			Field:   "price_feed.timeout_seconds",
			Value:   c.PriceFeed.TimeoutSeconds,
			Message: "must be between 1 and 120",
		}
	}
	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateTelemetryConfig() error {
	if strings.TrimSpace(c.App.Name) == "" {
		c.App.Name = "hedge_advisor"
	}
	if c.Telemetry.MetricsPort < 0 || c.Telemetry.MetricsPort > 65535 {
		return ValidationError{
			Field:   "telemetry.metrics_port",
			Value:   c.Telemetry.MetricsPort,
			Message: "must be between 0 and 65535",
		}
	}
	return nil
}

// String returns a YAML representation of the configuration. Secrets are redacted.
func (c *Config) String() string {
	data, _ := yaml.Marshal(c)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// DefaultConfig returns the built-in configuration
func DefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "hedge_advisor",
			Environment: "development",
		},
		Advisor: AdvisorConfig{
			DefaultProfile:      "default",
			DefaultTargetMargin: 0.15,
			SweepWorkers:        4,
			SweepMaxSteps:       1000,
		},
		Server: ServerConfig{
			Port:           ":8090",
			AllowedOrigins: []string{"http://localhost:8090"},
			MaxConnections: 1000,
			RateLimit:      10,
			RateBurst:      20,
		},
		Journal: JournalConfig{
			Driver:   "memory",
			Capacity: 500,
		},
		PriceFeed: PriceFeedConfig{
			BaseURL:        "https://api.binance.com",
			TimeoutSeconds: 10,
		},
		System: SystemConfig{
			LogLevel: "INFO",
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
	}
}
