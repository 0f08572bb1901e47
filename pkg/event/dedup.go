package event

import (
	"fmt"
	"sync"
)

// DedupKey derives the deduplication key for the event.
//
// When a message or request id is present the key is "messageID:requestID",
// so two independently-emitted copies of the same logical message always
// collide. Events with neither id get a synthetic key derived from the
// timestamp, session id, and token counts, so deduplication stays total.
func (e *UsageEvent) DedupKey() string {
	if e.MessageID != "" || e.RequestID != "" {
		return e.MessageID + ":" + e.RequestID
	}

	return fmt.Sprintf("synth|%d|%s|%d|%d|%d|%d",
		e.Timestamp.UnixNano(), e.SessionID,
		e.Tokens.Input, e.Tokens.Output,
		e.Tokens.CacheWrite, e.Tokens.CacheRead)
}

// DedupIndex is a set of message keys seen during one aggregation pass.
//
// Seen is an atomic check-and-insert, so the index can be shared by
// parallel file workers: exactly one worker claims each key, and the
// merged totals are independent of worker count and file order.
type DedupIndex struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewDedupIndex creates an empty index.
func NewDedupIndex() *DedupIndex {
	return &DedupIndex{
		seen: make(map[string]struct{}),
	}
}

// Seen records the key and reports whether it was already present.
func (d *DedupIndex) Seen(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[key]; ok {
		return true
	}
	d.seen[key] = struct{}{}
	return false
}

// Union merges all keys from other into d.
func (d *DedupIndex) Union(other *DedupIndex) {
	if other == nil {
		return
	}

	other.mu.Lock()
	keys := make([]string, 0, len(other.seen))
	for k := range other.seen {
		keys = append(keys, k)
	}
	other.mu.Unlock()

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, k := range keys {
		d.seen[k] = struct{}{}
	}
}

// Len returns the number of distinct keys recorded.
func (d *DedupIndex) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.seen)
}
