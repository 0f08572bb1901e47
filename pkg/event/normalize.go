package event

import (
	"fmt"
	"time"
)

// unknownModel is substituted when a usage record omits the model id.
const unknownModel = "unknown"

// Normalize converts a raw parsed record into a canonical UsageEvent.
//
// Parameters:
//   - raw: Parsed JSONL record
//   - project: Project name derived from the source file location
//
// Returns:
//   - Normalized event
//   - ErrNotUsageRecord if the record is a foreign event type (no token
//     counts and no precomputed cost, or an API error message)
//   - ErrMissingTimestamp if the timestamp is absent or unparseable
//   - ErrNegativeTokenCount if any count is negative
//
// Callers count ErrMissingTimestamp and ErrNegativeTokenCount as skipped
// records; ErrNotUsageRecord is a silent skip.
func Normalize(raw RawEvent, project string) (*UsageEvent, error) {
	if raw.IsAPIErrorMessage {
		return nil, ErrNotUsageRecord
	}

	// A line with neither token counts nor a precomputed cost is some
	// other event type sharing the log file, not a malformed usage record.
	if raw.Message.Usage.IsZero() && raw.CostUSD == nil {
		return nil, ErrNotUsageRecord
	}

	if raw.Timestamp == "" {
		return nil, ErrMissingTimestamp
	}

	ts, err := time.Parse(time.RFC3339, raw.Timestamp)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingTimestamp, err)
	}

	if err := raw.Message.Usage.Validate(); err != nil {
		return nil, err
	}

	model := raw.Message.Model
	if model == "" {
		model = unknownModel
	}

	return &UsageEvent{
		Timestamp: ts.UTC(),
		Model:     model,
		Tokens:    raw.Message.Usage,
		CostUSD:   raw.CostUSD,
		SessionID: raw.SessionID,
		Project:   project,
		MessageID: raw.Message.ID,
		RequestID: raw.RequestID,
		Version:   raw.Version,
	}, nil
}
