// Package config provides configuration management for usagemeter.
//
// Configuration is loaded from multiple sources with the following precedence:
// 1. Command-line flags (highest priority, applied by the caller)
// 2. Environment variables
// 3. Configuration file
// 4. Default values (lowest priority)
//
// Example usage:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Source dirs: %v\n", cfg.SourceDirs)
package config

import (
	"strings"
	"time"
)

// Config represents the complete application configuration.
//
// Invariants:
// - SourceDirs must have at least one directory
// - Aggregation.CostMode must be auto, calculate, or display
// - Aggregation.Order must be asc or desc
// - Performance.Workers must be > 0
// - Watch.Debounce must be > 0.
type Config struct {
	// Usage log directories to aggregate
	SourceDirs []string `yaml:"source_dirs"`

	// Aggregation settings
	Aggregation AggregationConfig `yaml:"aggregation"`

	// Performance settings
	Performance PerformanceConfig `yaml:"performance"`

	// Watch-mode settings
	Watch WatchConfig `yaml:"watch"`

	// Storage settings
	Storage StorageConfig `yaml:"storage"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`
}

// AggregationConfig contains engine-level aggregation settings.
type AggregationConfig struct {
	// Cost resolution mode (auto, calculate, display)
	CostMode string `yaml:"cost_mode"`

	// Timezone for day/week/month bucket keys
	// ("local", "utc", or an IANA zone name)
	Timezone string `yaml:"timezone"`

	// Per-billing-block token budget; 0 disables the check
	TokenLimit int64 `yaml:"token_limit"`

	// Report sort order (asc, desc)
	Order string `yaml:"order"`
}

// PerformanceConfig contains performance tuning settings.
type PerformanceConfig struct {
	// Number of concurrent file workers
	Workers int `yaml:"workers"`
}

// WatchConfig contains live-watch settings.
type WatchConfig struct {
	// Debounce window collapsing rapid successive change events
	Debounce time.Duration `yaml:"debounce"`
}

// StorageConfig contains storage-related settings.
type StorageConfig struct {
	// Path to the watch-mode read-offset database; empty keeps offsets
	// in memory only
	OffsetDBPath string `yaml:"offset_db_path"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Log level (debug, info, warn, error)
	Level string `yaml:"level"`

	// Log output destination (stdout, stderr, file path)
	Output string `yaml:"output"`

	// Log format (text, json)
	Format string `yaml:"format"`
}

// Validate checks if the configuration satisfies all invariants.
//
// Thread-safety: This method is read-only and thread-safe.
func (c *Config) Validate() error {
	if len(c.SourceDirs) == 0 {
		return ErrNoSourceDirs
	}

	validModes := map[string]bool{
		"auto":      true,
		"calculate": true,
		"display":   true,
	}
	if !validModes[c.Aggregation.CostMode] {
		return ErrInvalidCostMode
	}

	validOrders := map[string]bool{
		"asc":  true,
		"desc": true,
	}
	if !validOrders[c.Aggregation.Order] {
		return ErrInvalidOrder
	}

	if c.Aggregation.TokenLimit < 0 {
		return ErrInvalidTokenLimit
	}

	if _, err := c.Location(); err != nil {
		return ErrInvalidTimezone
	}

	if c.Performance.Workers <= 0 {
		return ErrInvalidWorkers
	}

	if c.Watch.Debounce <= 0 {
		return ErrInvalidDebounce
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	validFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validFormats[c.Logging.Format] {
		return ErrInvalidLogFormat
	}

	return nil
}

// Location resolves the configured timezone to a *time.Location.
//
// "local" or empty means the system timezone; "utc" means UTC; anything
// else is looked up as an IANA zone name.
func (c *Config) Location() (*time.Location, error) {
	switch strings.ToLower(c.Aggregation.Timezone) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	default:
		return time.LoadLocation(c.Aggregation.Timezone)
	}
}

// Default returns a configuration with sensible default values.
func Default() *Config {
	return &Config{
		SourceDirs: defaultSourceDirs(),
		Aggregation: AggregationConfig{
			CostMode: "auto",
			Timezone: "local",
			Order:    "asc",
		},
		Performance: PerformanceConfig{
			Workers: 4,
		},
		Watch: WatchConfig{
			Debounce: 100 * time.Millisecond,
		},
		Storage: StorageConfig{
			OffsetDBPath: defaultOffsetDBPath(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			Format: "text",
		},
	}
}
