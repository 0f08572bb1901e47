// Package aggregator folds priced usage events into per-granularity
// buckets: day, week, month, session, and 5-hour billing block.
//
// Parallel file workers each fold into a private Partial; partials merge
// with an associative, commutative Merge, so the final report is
// identical regardless of worker count or file order. Billing-block
// boundaries need per-session chronological order, so block assignment
// is deferred to a single-threaded sort-and-fold during Finalize.
//
// Example usage:
//
//	p := aggregator.NewPartial(time.UTC)
//	for _, ev := range events {
//	    p.Fold(ev, cost)
//	}
//	report := p.Finalize(time.Now(), aggregator.FinalizeOptions{})
package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/event"
)

// Granularity identifies one bucket family.
type Granularity string

// Bucket granularities.
const (
	GranularityDay     Granularity = "day"
	GranularityWeek    Granularity = "week"
	GranularityMonth   Granularity = "month"
	GranularitySession Granularity = "session"
	GranularityBlock   Granularity = "block"
)

// BlockDuration is the span of one billing block.
const BlockDuration = 5 * time.Hour

// Bucket is a published aggregate for one (granularity, key) pair.
type Bucket struct {
	// Granularity identifies which bucket family this belongs to.
	Granularity Granularity `json:"granularity"`

	// Key is the bucket identity: a date, ISO week, month, or session id.
	Key string `json:"key"`

	// Tokens holds the summed token counts by category.
	Tokens event.TokenCounts `json:"tokens"`

	// Cost is the exact-decimal USD total.
	Cost decimal.Decimal `json:"costUSD"`

	// Events is the number of events folded in.
	Events int `json:"events"`

	// Models lists the distinct models seen, ordered by cost descending.
	Models []string `json:"models"`

	// Projects lists the distinct projects seen, sorted.
	Projects []string `json:"projects"`

	// Breakdowns holds per-model sums, ordered by cost descending.
	Breakdowns []ModelBreakdown `json:"modelBreakdowns"`

	// FirstSeen and LastSeen bound the event timestamps in this bucket.
	FirstSeen time.Time `json:"firstSeen"`
	LastSeen  time.Time `json:"lastSeen"`
}

// TotalTokens returns the bucket's summed token count.
func (b Bucket) TotalTokens() int64 {
	return b.Tokens.Total()
}

// ModelBreakdown is the per-model share of one bucket.
type ModelBreakdown struct {
	Model  string            `json:"model"`
	Tokens event.TokenCounts `json:"tokens"`
	Cost   decimal.Decimal   `json:"costUSD"`
	Events int               `json:"events"`
}

// Block is one 5-hour billing window within a session.
//
// Windows are anchored at the exact timestamp of the first event of the
// block; an event within BlockDuration of the anchor joins the block,
// otherwise it starts a new one. At most the last block of a session is
// open at evaluation time.
type Block struct {
	// SessionID is the session the block belongs to.
	SessionID string `json:"sessionId"`

	// Project is the session's project.
	Project string `json:"project"`

	// StartTime is the anchor; EndTime is StartTime + BlockDuration.
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	// ActualEndTime is the timestamp of the last event in the block.
	ActualEndTime time.Time `json:"actualEndTime"`

	// Active reports whether the block is still open: it is the
	// session's most recent block and its last event is within
	// BlockDuration of evaluation time.
	Active bool `json:"active"`

	// Tokens, Cost and Events are the block sums.
	Tokens event.TokenCounts `json:"tokens"`
	Cost   decimal.Decimal   `json:"costUSD"`
	Events int               `json:"events"`

	// Models lists the distinct models seen in the block, sorted.
	Models []string `json:"models"`

	// LimitExceeded flags a block whose token total exceeded the
	// configured budget. Presentation concern, not an error.
	LimitExceeded bool `json:"limitExceeded"`
}

// TotalTokens returns the block's summed token count.
func (b Block) TotalTokens() int64 {
	return b.Tokens.Total()
}

// SortOrder controls report ordering.
type SortOrder string

// Sort orders.
const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// FinalizeOptions tune report production.
type FinalizeOptions struct {
	// Order sorts time buckets by key and sessions by last activity.
	// Default: ascending.
	Order SortOrder

	// TokenLimit is the per-block token budget; blocks exceeding it are
	// flagged. Zero disables the check.
	TokenLimit int64
}

// Report is the read-only snapshot handed to the renderer.
type Report struct {
	Daily    []Bucket `json:"daily"`
	Weekly   []Bucket `json:"weekly"`
	Monthly  []Bucket `json:"monthly"`
	Sessions []Bucket `json:"sessions"`
	Blocks   []Block  `json:"blocks"`

	// Events is the total number of distinct events aggregated.
	Events int `json:"events"`

	// GeneratedAt is the evaluation instant used for block activity.
	GeneratedAt time.Time `json:"generatedAt"`
}

// TotalCost sums the daily buckets' costs. Every event lands in exactly
// one day bucket, so this is the run's total spend.
func (r *Report) TotalCost() decimal.Decimal {
	total := decimal.Zero
	for _, b := range r.Daily {
		total = total.Add(b.Cost)
	}
	return total
}

// DayKey formats an event timestamp as a day bucket key in loc.
func DayKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01-02")
}

// WeekKey formats an event timestamp as an ISO week bucket key in loc.
func WeekKey(t time.Time, loc *time.Location) string {
	year, week := t.In(loc).ISOWeek()
	return formatISOWeek(year, week)
}

// MonthKey formats an event timestamp as a month bucket key in loc.
func MonthKey(t time.Time, loc *time.Location) string {
	return t.In(loc).Format("2006-01")
}

func formatISOWeek(year, week int) string {
	// Zero-pad to keep lexicographic order equal to chronological order.
	const digits = "0123456789"
	buf := []byte{0, 0, 0, 0, '-', 'W', 0, 0}
	buf[0] = digits[year/1000%10]
	buf[1] = digits[year/100%10]
	buf[2] = digits[year/10%10]
	buf[3] = digits[year%10]
	buf[6] = digits[week/10%10]
	buf[7] = digits[week%10]
	return string(buf)
}
