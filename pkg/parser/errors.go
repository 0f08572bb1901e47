package parser

import "errors"

// Common errors returned by the parser package.
var (
	// ErrMalformedJSON is returned when a JSONL line cannot be parsed.
	ErrMalformedJSON = errors.New("malformed JSON line")

	// ErrFileNotFound is returned when the source file does not exist.
	ErrFileNotFound = errors.New("file not found")
)
