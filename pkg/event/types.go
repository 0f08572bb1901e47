// Package event defines the usage-event data model shared by the whole
// pipeline: the raw JSONL shape as written by the chat client, the
// normalized UsageEvent the engine works with, and the deduplication
// index that suppresses double counting across overlapping source files.
//
// Example usage:
//
//	ev, err := event.Normalize(raw, "my-project")
//	if err != nil {
//	    // counted as a skipped record, never fatal
//	}
//	if index.Seen(ev.DedupKey()) {
//	    // duplicate, drop
//	}
package event

import (
	"time"
)

// RawEvent is the JSON structure of a single log line.
//
// Field names match the client's JSONL output. Lines of other event
// types share the same files; they simply unmarshal with an empty
// Message and are classified as non-usage records.
type RawEvent struct {
	Timestamp         string     `json:"timestamp"`
	SessionID         string     `json:"sessionId"`
	CWD               string     `json:"cwd,omitempty"`
	Version           string     `json:"version,omitempty"`
	Message           RawMessage `json:"message"`
	CostUSD           *float64   `json:"costUSD,omitempty"`
	RequestID         string     `json:"requestId,omitempty"`
	IsAPIErrorMessage bool       `json:"isApiErrorMessage,omitempty"`
}

// RawMessage contains the API response details including token usage.
type RawMessage struct {
	ID    string      `json:"id,omitempty"`
	Model string      `json:"model,omitempty"`
	Usage TokenCounts `json:"usage"`
}

// TokenCounts holds token consumption by category for one API call.
//
// Invariant: all counts are >= 0.
type TokenCounts struct {
	Input      int64 `json:"input_tokens"`
	Output     int64 `json:"output_tokens"`
	CacheWrite int64 `json:"cache_creation_input_tokens"`
	CacheRead  int64 `json:"cache_read_input_tokens"`
}

// Total returns the sum of all token categories.
func (t TokenCounts) Total() int64 {
	return t.Input + t.Output + t.CacheWrite + t.CacheRead
}

// Add accumulates another set of counts into t.
func (t *TokenCounts) Add(other TokenCounts) {
	t.Input += other.Input
	t.Output += other.Output
	t.CacheWrite += other.CacheWrite
	t.CacheRead += other.CacheRead
}

// IsZero reports whether every category is zero.
func (t TokenCounts) IsZero() bool {
	return t.Input == 0 && t.Output == 0 && t.CacheWrite == 0 && t.CacheRead == 0
}

// Validate checks that no token count is negative.
func (t TokenCounts) Validate() error {
	if t.Input < 0 || t.Output < 0 || t.CacheWrite < 0 || t.CacheRead < 0 {
		return ErrNegativeTokenCount
	}
	return nil
}

// UsageEvent is the canonical, normalized form of a usage record.
//
// Invariant: Timestamp is never zero.
// Invariant: Tokens has non-negative counts.
type UsageEvent struct {
	// Timestamp is the instant the API call completed, in UTC.
	Timestamp time.Time

	// Model is the model identifier as reported, or "unknown".
	Model string

	// Tokens holds the token counts by category.
	Tokens TokenCounts

	// CostUSD is the precomputed cost reported by the client, if any.
	CostUSD *float64

	// SessionID identifies the session the event belongs to.
	SessionID string

	// Project is the project name derived from the file location.
	Project string

	// MessageID and RequestID identify the logical message for dedup.
	MessageID string
	RequestID string

	// Version is the client version that emitted the event, if recorded.
	Version string
}
