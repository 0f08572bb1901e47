package pricing

import "errors"

// Common errors returned by the pricing package.
var (
	// ErrInvalidMode is returned when a cost mode string is not
	// auto, calculate, or display.
	ErrInvalidMode = errors.New("invalid cost mode")

	// ErrCatalogLoad is returned when the bundled pricing catalog
	// cannot be loaded. This is fatal for the run.
	ErrCatalogLoad = errors.New("failed to load pricing catalog")
)
