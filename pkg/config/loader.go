package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Loader provides methods for loading configuration from various sources.
type Loader interface {
	// Load loads configuration with the following precedence:
	// 1. Environment variables
	// 2. Configuration file
	// 3. Default values
	//
	// Returns the merged configuration or an error if validation fails.
	Load() (*Config, error)

	// LoadFromFile loads configuration from a specific file.
	LoadFromFile(path string) (*Config, error)
}

type loader struct {
	configPath string
}

// NewLoader creates a new configuration loader.
//
// If configPath is empty, searches for a config file in:
// 1. ./config.yaml (current directory)
// 2. ~/.config/usagemeter/config.yaml.
func NewLoader(configPath string) Loader {
	return &loader{
		configPath: configPath,
	}
}

// Load implements Loader.Load.
func (l *loader) Load() (*Config, error) {
	cfg := Default()

	configPath := l.configPath
	if configPath == "" {
		configPath = l.findConfigFile()
	}

	if configPath != "" {
		fileCfg, err := l.LoadFromFile(configPath)
		if err != nil {
			// An explicitly requested file must load; a discovered one
			// may be absent and defaults win.
			if l.configPath != "" {
				return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
			}
		} else {
			cfg = l.mergeConfigs(cfg, fileCfg)
		}
	}

	cfg = l.applyEnvVars(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadFromFile implements Loader.LoadFromFile.
func (l *loader) LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) // nolint:gosec
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return &cfg, nil
}

// findConfigFile searches for a config file in standard locations.
//
// Returns empty string if no config file is found.
func (l *loader) findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		defaultConfigPath(),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// mergeConfigs merges file configuration into default configuration.
//
// File values override defaults, but only if they are non-zero.
func (l *loader) mergeConfigs(base, override *Config) *Config {
	result := *base

	if len(override.SourceDirs) > 0 {
		result.SourceDirs = override.SourceDirs
	}

	if override.Aggregation.CostMode != "" {
		result.Aggregation.CostMode = override.Aggregation.CostMode
	}
	if override.Aggregation.Timezone != "" {
		result.Aggregation.Timezone = override.Aggregation.Timezone
	}
	if override.Aggregation.TokenLimit > 0 {
		result.Aggregation.TokenLimit = override.Aggregation.TokenLimit
	}
	if override.Aggregation.Order != "" {
		result.Aggregation.Order = override.Aggregation.Order
	}

	if override.Performance.Workers > 0 {
		result.Performance.Workers = override.Performance.Workers
	}

	if override.Watch.Debounce > 0 {
		result.Watch.Debounce = override.Watch.Debounce
	}

	if override.Storage.OffsetDBPath != "" {
		result.Storage.OffsetDBPath = override.Storage.OffsetDBPath
	}

	if override.Logging.Level != "" {
		result.Logging.Level = override.Logging.Level
	}
	if override.Logging.Output != "" {
		result.Logging.Output = override.Logging.Output
	}
	if override.Logging.Format != "" {
		result.Logging.Format = override.Logging.Format
	}

	return &result
}

// applyEnvVars applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - CLAUDE_CONFIG_DIR: Comma-separated list of source directories
//   - USAGEMETER_COST_MODE: Cost resolution mode
//   - USAGEMETER_TIMEZONE: Bucket timezone
//   - USAGEMETER_OFFSET_DB: Path to the offset database file
//   - USAGEMETER_LOG_LEVEL: Log level
func (l *loader) applyEnvVars(cfg *Config) *Config {
	result := *cfg

	if envDirs := os.Getenv("CLAUDE_CONFIG_DIR"); envDirs != "" {
		dirs := strings.Split(envDirs, ",")
		for i := range dirs {
			dirs[i] = strings.TrimSpace(dirs[i])
			// Bare config roots point at their projects subdirectory.
			if filepath.Base(dirs[i]) != "projects" {
				dirs[i] = filepath.Join(dirs[i], "projects")
			}
		}
		result.SourceDirs = dirs
	}

	if mode := os.Getenv("USAGEMETER_COST_MODE"); mode != "" {
		result.Aggregation.CostMode = strings.ToLower(mode)
	}

	if tz := os.Getenv("USAGEMETER_TIMEZONE"); tz != "" {
		result.Aggregation.Timezone = tz
	}

	if dbPath := os.Getenv("USAGEMETER_OFFSET_DB"); dbPath != "" {
		result.Storage.OffsetDBPath = dbPath
	}

	if logLevel := os.Getenv("USAGEMETER_LOG_LEVEL"); logLevel != "" {
		result.Logging.Level = strings.ToLower(logLevel)
	}

	return &result
}

// Load is a convenience function that creates a loader and loads configuration.
func Load() (*Config, error) {
	return NewLoader("").Load()
}

// LoadFromFile is a convenience function that loads configuration from a file.
func LoadFromFile(path string) (*Config, error) {
	return NewLoader(path).Load()
}

// Save writes the configuration to a YAML file.
//
// Creates parent directories if they don't exist.
// File is created with 0600 permissions (read/write for owner only).
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
