// Package config holds the control plane's runtime configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// DeviceName is the advertised BLE name of this half.
	DeviceName string `yaml:"device_name" default:"zmk-split"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" default:"info"`

	// ConnectTimeoutMs bounds central-side connection attempts.
	ConnectTimeoutMs int `yaml:"connect_timeout_ms" default:"30000"`

	// ReassemblyTimeoutMs discards a stale partial run-behavior message.
	// Zero disables the check.
	ReassemblyTimeoutMs int `yaml:"reassembly_timeout_ms"`

	// Sensors enables the sensor state characteristic.
	Sensors bool `yaml:"sensors"`

	// Indicators enables the HID indicators characteristic.
	Indicators bool `yaml:"indicators" default:"true"`

	// ReportQueueCapacity is the outbound HID report queue's slot count.
	ReportQueueCapacity int `yaml:"report_queue_capacity" default:"8"`

	// ReportMaxAttempts bounds delivery attempts per report.
	ReportMaxAttempts int `yaml:"report_max_attempts" default:"3"`

	// ReportRetryBackoffMs is the delay between delivery attempts.
	ReportRetryBackoffMs int `yaml:"report_retry_backoff_ms" default:"10"`
}

// ConnectTimeout returns the connect timeout as a duration.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMs) * time.Millisecond
}

// ReassemblyTimeout returns the reassembly timeout as a duration.
func (c *Config) ReassemblyTimeout() time.Duration {
	return time.Duration(c.ReassemblyTimeoutMs) * time.Millisecond
}

// ReportRetryBackoff returns the retry backoff as a duration.
func (c *Config) ReportRetryBackoff() time.Duration {
	return time.Duration(c.ReportRetryBackoffMs) * time.Millisecond
}

// DefaultConfig returns the configuration with all defaults applied.
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)
	return cfg
}

// Load reads a YAML config file, applying defaults for absent keys.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.ReportQueueCapacity <= 0 {
		return fmt.Errorf("report_queue_capacity must be positive, got %d", c.ReportQueueCapacity)
	}
	if c.ReportMaxAttempts <= 0 {
		return fmt.Errorf("report_max_attempts must be positive, got %d", c.ReportMaxAttempts)
	}
	if c.ReportRetryBackoffMs < 0 {
		return fmt.Errorf("report_retry_backoff_ms must not be negative, got %d", c.ReportRetryBackoffMs)
	}
	if c.ReassemblyTimeoutMs < 0 {
		return fmt.Errorf("reassembly_timeout_ms must not be negative, got %d", c.ReassemblyTimeoutMs)
	}
	return nil
}

// NewLogger creates a logger configured per the config.
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})
	return logger
}
