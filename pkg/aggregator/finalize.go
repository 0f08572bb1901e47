package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"
)

// Finalize publishes the partial as a read-only Report.
//
// Called once per run, after the merge reduction, on a single goroutine.
// The partial remains valid and may keep accumulating (watch mode calls
// Finalize after every refresh cycle).
func (p *Partial) Finalize(now time.Time, opts FinalizeOptions) *Report {
	if opts.Order == "" {
		opts.Order = OrderAsc
	}

	report := &Report{
		Daily:       publishBuckets(p.day, GranularityDay, opts.Order),
		Weekly:      publishBuckets(p.week, GranularityWeek, opts.Order),
		Monthly:     publishBuckets(p.month, GranularityMonth, opts.Order),
		Sessions:    publishSessions(p.sessions, opts.Order),
		Events:      p.events,
		GeneratedAt: now,
	}

	for _, sid := range sortedKeys(p.blockEvents) {
		report.Blocks = append(report.Blocks, buildBlocks(sid, p.blockEvents[sid], now, opts.TokenLimit)...)
	}
	sort.SliceStable(report.Blocks, func(i, j int) bool {
		if opts.Order == OrderDesc {
			return report.Blocks[i].StartTime.After(report.Blocks[j].StartTime)
		}
		return report.Blocks[i].StartTime.Before(report.Blocks[j].StartTime)
	})

	return report
}

func publishBuckets(m map[string]*bucketAcc, g Granularity, order SortOrder) []Bucket {
	buckets := make([]Bucket, 0, len(m))
	for _, key := range sortedKeys(m) {
		buckets = append(buckets, publish(g, key, m[key]))
	}

	// Day, week, and month keys are zero-padded, so lexicographic key
	// order is chronological order.
	if order == OrderDesc {
		reverse(buckets)
	}
	return buckets
}

func publishSessions(m map[string]*bucketAcc, order SortOrder) []Bucket {
	buckets := make([]Bucket, 0, len(m))
	for _, key := range sortedKeys(m) {
		buckets = append(buckets, publish(GranularitySession, key, m[key]))
	}

	// Sessions order by last activity rather than by id.
	sort.SliceStable(buckets, func(i, j int) bool {
		if order == OrderDesc {
			return buckets[i].LastSeen.After(buckets[j].LastSeen)
		}
		return buckets[i].LastSeen.Before(buckets[j].LastSeen)
	})
	return buckets
}

func publish(g Granularity, key string, acc *bucketAcc) Bucket {
	breakdowns := make([]ModelBreakdown, 0, len(acc.models))
	for _, model := range sortedKeys(acc.models) {
		m := acc.models[model]
		breakdowns = append(breakdowns, ModelBreakdown{
			Model:  model,
			Tokens: m.tokens,
			Cost:   m.cost,
			Events: m.events,
		})
	}
	sort.SliceStable(breakdowns, func(i, j int) bool {
		return breakdowns[i].Cost.GreaterThan(breakdowns[j].Cost)
	})

	models := lo.Map(breakdowns, func(b ModelBreakdown, _ int) string { return b.Model })

	projects := lo.Keys(acc.projects)
	sort.Strings(projects)

	return Bucket{
		Granularity: g,
		Key:         key,
		Tokens:      acc.tokens,
		Cost:        acc.cost,
		Events:      acc.events,
		Models:      models,
		Projects:    projects,
		Breakdowns:  breakdowns,
		FirstSeen:   acc.firstSeen,
		LastSeen:    acc.lastSeen,
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := lo.Keys(m)
	sort.Strings(keys)
	return keys
}

func reverse(buckets []Bucket) {
	for i, j := 0, len(buckets)-1; i < j; i, j = i+1, j-1 {
		buckets[i], buckets[j] = buckets[j], buckets[i]
	}
}
