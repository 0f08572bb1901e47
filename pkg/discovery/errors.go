package discovery

import "errors"

// Common errors returned by the discovery package.
var (
	// ErrNoUsableSources is returned when every configured root
	// directory is missing or unreadable.
	ErrNoUsableSources = errors.New("no usable source directories")
)
