package event

import "errors"

// Common errors returned by the event package.
var (
	// ErrMissingTimestamp is returned when a record has no parseable timestamp.
	ErrMissingTimestamp = errors.New("record has no valid timestamp")

	// ErrNotUsageRecord is returned when a record carries neither token
	// counts nor a precomputed cost. Callers treat this as a silent skip.
	ErrNotUsageRecord = errors.New("record is not a usage record")

	// ErrNegativeTokenCount is returned when any token count is negative.
	ErrNegativeTokenCount = errors.New("invalid token count: must be non-negative")
)
