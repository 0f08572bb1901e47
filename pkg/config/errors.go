package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrNoSourceDirs is returned when no source directories are specified.
	ErrNoSourceDirs = errors.New("no source directories specified")

	// ErrInvalidCostMode is returned when the cost mode is not recognized.
	ErrInvalidCostMode = errors.New("invalid cost mode: must be auto, calculate, or display")

	// ErrInvalidOrder is returned when the sort order is not recognized.
	ErrInvalidOrder = errors.New("invalid order: must be asc or desc")

	// ErrInvalidTokenLimit is returned when the token limit is negative.
	ErrInvalidTokenLimit = errors.New("invalid token limit: must be >= 0")

	// ErrInvalidTimezone is returned when the timezone cannot be resolved.
	ErrInvalidTimezone = errors.New("invalid timezone: must be local, utc, or an IANA zone name")

	// ErrInvalidWorkers is returned when the worker count is <= 0.
	ErrInvalidWorkers = errors.New("invalid workers: must be > 0")

	// ErrInvalidDebounce is returned when the watch debounce is <= 0.
	ErrInvalidDebounce = errors.New("invalid debounce: must be > 0")

	// ErrInvalidLogLevel is returned when the log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when the log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when the config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when the config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
