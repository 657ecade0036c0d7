// Package config loads jig's settings from .jig.yaml, JIG_* environment
// variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Sentinel validation errors.
var (
	ErrInvalidInterval = errors.New("updates.interval must be positive")
	ErrInvalidTimeout  = errors.New("plugins.timeout must not be negative")
	ErrInvalidWorkers  = errors.New("plugins.workers must be at least 1")
	ErrInvalidFormat   = errors.New("output.format must be text or json")
	ErrInvalidLevel    = errors.New("logging.level must be debug, info, warn or error")
)

// Config holds all of jig's settings.
type Config struct {
	Updates   UpdatesConfig   `mapstructure:"updates"`
	Plugins   PluginsConfig   `mapstructure:"plugins"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// UpdatesConfig controls the periodic plugin update check.
type UpdatesConfig struct {
	Interval time.Duration `mapstructure:"interval"`
	Enabled  bool          `mapstructure:"enabled"`
}

// PluginsConfig controls how plugins are run.
type PluginsConfig struct {
	Timeout time.Duration `mapstructure:"timeout"`
	Workers int           `mapstructure:"workers"`
}

// OutputConfig controls report rendering.
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	NoColor bool   `mapstructure:"no_color"`
	Verbose bool   `mapstructure:"verbose"`
}

// LoggingConfig controls diagnostic logs on stderr.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig controls traces and metrics export.
type TelemetryConfig struct {
	OTLPEndpoint    string `mapstructure:"otlp_endpoint"`
	OTLPInsecure    bool   `mapstructure:"otlp_insecure"`
	MetricsTextfile string `mapstructure:"metrics_textfile"`
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.Updates.Interval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInterval, c.Updates.Interval)
	}

	if c.Plugins.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.Plugins.Timeout)
	}

	if c.Plugins.Workers < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Plugins.Workers)
	}

	switch c.Output.Format {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	_, err := c.Logging.SlogLevel()

	return err
}

// SlogLevel maps the configured level name to a slog.Level.
func (l LoggingConfig) SlogLevel() (slog.Level, error) {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, fmt.Errorf("%w: %q", ErrInvalidLevel, l.Level)
	}
}
