package engine

import (
	"sort"
	"sync"
)

// WarningKind classifies a recoverable problem found during aggregation.
type WarningKind string

// Warning kinds.
const (
	// WarnMalformedLine counts lines that failed JSON parsing.
	WarnMalformedLine WarningKind = "malformed_line"

	// WarnSkippedRecord counts usage records dropped during
	// normalization (missing timestamp, negative counts).
	WarnSkippedRecord WarningKind = "skipped_record"

	// WarnDuplicate counts events dropped by the dedup index.
	WarnDuplicate WarningKind = "duplicate"

	// WarnUnresolvedModel counts events whose model had no pricing.
	WarnUnresolvedModel WarningKind = "unresolved_model"

	// WarnMissingCost counts display-mode events without a precomputed cost.
	WarnMissingCost WarningKind = "missing_cost"

	// WarnUnreadableSource counts files or directories that could not be read.
	WarnUnreadableSource WarningKind = "unreadable_source"

	// WarnTokenLimit counts billing blocks that exceeded the token budget.
	WarnTokenLimit WarningKind = "token_limit"
)

// maxSamples bounds the representative samples kept per kind.
const maxSamples = 5

// Warnings accumulates recoverable problems: counts per kind plus a few
// representative samples. Returned alongside the report, never thrown.
//
// Thread-safety: safe for concurrent use; workers usually record into
// private instances that are merged during the reduction step.
type Warnings struct {
	mu      sync.Mutex
	counts  map[WarningKind]int
	samples map[WarningKind][]string
}

// NewWarnings creates an empty recorder.
func NewWarnings() *Warnings {
	return &Warnings{
		counts:  make(map[WarningKind]int),
		samples: make(map[WarningKind][]string),
	}
}

// Add records one occurrence. The sample may be empty.
func (w *Warnings) Add(kind WarningKind, sample string) {
	w.AddN(kind, 1, sample)
}

// AddN records n occurrences sharing one sample.
func (w *Warnings) AddN(kind WarningKind, n int, sample string) {
	if n <= 0 {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	w.counts[kind] += n
	if sample != "" && len(w.samples[kind]) < maxSamples {
		w.samples[kind] = append(w.samples[kind], sample)
	}
}

// Merge folds other into w. Commutative: counts sum, samples append up
// to the cap.
func (w *Warnings) Merge(other *Warnings) {
	if other == nil {
		return
	}

	other.mu.Lock()
	counts := make(map[WarningKind]int, len(other.counts))
	samples := make(map[WarningKind][]string, len(other.samples))
	for k, n := range other.counts {
		counts[k] = n
	}
	for k, s := range other.samples {
		samples[k] = append([]string(nil), s...)
	}
	other.mu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	for k, n := range counts {
		w.counts[k] += n
	}
	for k, s := range samples {
		for _, sample := range s {
			if len(w.samples[k]) >= maxSamples {
				break
			}
			w.samples[k] = append(w.samples[k], sample)
		}
	}
}

// Count returns the occurrences of one kind.
func (w *Warnings) Count(kind WarningKind) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.counts[kind]
}

// Total returns all occurrences across kinds.
func (w *Warnings) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := 0
	for _, n := range w.counts {
		total += n
	}
	return total
}

// Summary is the renderer-facing view of one warning kind.
type Summary struct {
	Kind    WarningKind `json:"kind"`
	Count   int         `json:"count"`
	Samples []string    `json:"samples,omitempty"`
}

// Summaries returns all recorded kinds sorted by name.
func (w *Warnings) Summaries() []Summary {
	w.mu.Lock()
	defer w.mu.Unlock()

	summaries := make([]Summary, 0, len(w.counts))
	for kind, n := range w.counts {
		summaries = append(summaries, Summary{
			Kind:    kind,
			Count:   n,
			Samples: append([]string(nil), w.samples[kind]...),
		})
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Kind < summaries[j].Kind })
	return summaries
}
