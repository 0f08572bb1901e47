package aggregator

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/event"
)

func mkEvent(ts time.Time, session, model string, input int64, cost string) (*event.UsageEvent, decimal.Decimal) {
	return &event.UsageEvent{
		Timestamp: ts,
		Model:     model,
		Tokens:    event.TokenCounts{Input: input},
		SessionID: session,
		Project:   "proj",
	}, decimal.RequireFromString(cost)
}

func TestFoldAndFinalize(t *testing.T) {
	p := NewPartial(time.UTC)

	ev1, c1 := mkEvent(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), "s1", "model-a", 100, "1.5")
	ev2, c2 := mkEvent(time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC), "s1", "model-b", 200, "2.5")
	ev3, c3 := mkEvent(time.Date(2025, 6, 16, 9, 0, 0, 0, time.UTC), "s2", "model-a", 300, "3.0")

	p.Fold(ev1, c1)
	p.Fold(ev2, c2)
	p.Fold(ev3, c3)

	report := p.Finalize(time.Date(2025, 6, 17, 0, 0, 0, 0, time.UTC), FinalizeOptions{})

	if report.Events != 3 {
		t.Errorf("Events = %d, want 3", report.Events)
	}

	if len(report.Daily) != 2 {
		t.Fatalf("Daily buckets = %d, want 2", len(report.Daily))
	}
	day1 := report.Daily[0]
	if day1.Key != "2025-06-15" {
		t.Errorf("first day key = %s, want 2025-06-15", day1.Key)
	}
	if day1.Events != 2 || day1.Tokens.Input != 300 {
		t.Errorf("day1 = %d events %d input, want 2 events 300 input", day1.Events, day1.Tokens.Input)
	}
	if !day1.Cost.Equal(decimal.RequireFromString("4.0")) {
		t.Errorf("day1 cost = %s, want 4.0", day1.Cost)
	}

	if len(report.Monthly) != 1 || report.Monthly[0].Key != "2025-06" {
		t.Fatalf("Monthly = %+v, want one 2025-06 bucket", report.Monthly)
	}
	if !report.Monthly[0].Cost.Equal(decimal.RequireFromString("7.0")) {
		t.Errorf("month cost = %s, want 7.0", report.Monthly[0].Cost)
	}

	// Jun 15 2025 is a Sunday, Jun 16 a Monday: the events straddle an
	// ISO week boundary.
	if len(report.Weekly) != 2 || report.Weekly[0].Key != "2025-W24" || report.Weekly[1].Key != "2025-W25" {
		t.Fatalf("Weekly keys = %+v, want 2025-W24 and 2025-W25", report.Weekly)
	}

	if len(report.Sessions) != 2 {
		t.Fatalf("Sessions = %d, want 2", len(report.Sessions))
	}
	// Sessions sort by last activity ascending.
	if report.Sessions[0].Key != "s1" || report.Sessions[1].Key != "s2" {
		t.Errorf("session order = %s, %s; want s1, s2", report.Sessions[0].Key, report.Sessions[1].Key)
	}

	if !report.TotalCost().Equal(decimal.RequireFromString("7.0")) {
		t.Errorf("TotalCost = %s, want 7.0", report.TotalCost())
	}
}

func TestModelBreakdownsOrderedByCost(t *testing.T) {
	p := NewPartial(time.UTC)
	ts := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	cheap, cc := mkEvent(ts, "s1", "cheap-model", 10, "0.1")
	pricey, pc := mkEvent(ts, "s1", "pricey-model", 10, "9.0")
	p.Fold(cheap, cc)
	p.Fold(pricey, pc)

	report := p.Finalize(ts, FinalizeOptions{})
	day := report.Daily[0]

	if len(day.Breakdowns) != 2 {
		t.Fatalf("breakdowns = %d, want 2", len(day.Breakdowns))
	}
	if day.Breakdowns[0].Model != "pricey-model" {
		t.Errorf("first breakdown = %s, want pricey-model", day.Breakdowns[0].Model)
	}
	if day.Models[0] != "pricey-model" {
		t.Errorf("Models[0] = %s, want pricey-model", day.Models[0])
	}
	if day.Projects[0] != "proj" {
		t.Errorf("Projects = %v, want [proj]", day.Projects)
	}
}

func TestMergeOrderInvariance(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	now := base.Add(60 * 24 * time.Hour)

	var events []*event.UsageEvent
	var costs []decimal.Decimal
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		ev, c := mkEvent(
			base.Add(time.Duration(rng.Intn(40*24))*time.Hour),
			[]string{"s1", "s2", "s3"}[i%3],
			[]string{"model-a", "model-b"}[i%2],
			int64(rng.Intn(1000)),
			"0.01",
		)
		events = append(events, ev)
		costs = append(costs, c)
	}

	// Fold all events into one partial.
	single := NewPartial(time.UTC)
	for i, ev := range events {
		single.Fold(ev, costs[i])
	}
	want := single.Finalize(now, FinalizeOptions{})

	// Split across several partials in a different order, then merge in
	// yet another order.
	for _, split := range []int{2, 5} {
		parts := make([]*Partial, split)
		for i := range parts {
			parts[i] = NewPartial(time.UTC)
		}
		perm := rng.Perm(len(events))
		for i, idx := range perm {
			parts[i%split].Fold(events[idx], costs[idx])
		}

		merged := parts[split-1]
		for i := split - 2; i >= 0; i-- {
			merged.Merge(parts[i])
		}
		got := merged.Finalize(now, FinalizeOptions{})

		if got.Events != want.Events {
			t.Fatalf("split %d: Events = %d, want %d", split, got.Events, want.Events)
		}
		if !got.TotalCost().Equal(want.TotalCost()) {
			t.Fatalf("split %d: TotalCost = %s, want %s", split, got.TotalCost(), want.TotalCost())
		}
		if len(got.Daily) != len(want.Daily) {
			t.Fatalf("split %d: Daily len = %d, want %d", split, len(got.Daily), len(want.Daily))
		}
		for i := range want.Daily {
			if got.Daily[i].Key != want.Daily[i].Key ||
				got.Daily[i].Events != want.Daily[i].Events ||
				got.Daily[i].Tokens != want.Daily[i].Tokens ||
				!got.Daily[i].Cost.Equal(want.Daily[i].Cost) {
				t.Fatalf("split %d: Daily[%d] mismatch: got %+v want %+v", split, i, got.Daily[i], want.Daily[i])
			}
		}
		if len(got.Blocks) != len(want.Blocks) {
			t.Fatalf("split %d: Blocks len = %d, want %d", split, len(got.Blocks), len(want.Blocks))
		}
		for i := range want.Blocks {
			if !got.Blocks[i].StartTime.Equal(want.Blocks[i].StartTime) ||
				got.Blocks[i].Events != want.Blocks[i].Events {
				t.Fatalf("split %d: Blocks[%d] mismatch", split, i)
			}
		}
	}
}

func TestFinalizeIdempotent(t *testing.T) {
	p := NewPartial(time.UTC)
	ev, c := mkEvent(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), "s1", "m", 100, "1.0")
	p.Fold(ev, c)

	now := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	first := p.Finalize(now, FinalizeOptions{})
	second := p.Finalize(now, FinalizeOptions{})

	if first.Events != second.Events || !first.TotalCost().Equal(second.TotalCost()) {
		t.Error("Finalize should not mutate the partial")
	}
	if len(first.Blocks) != len(second.Blocks) {
		t.Error("block pass should be repeatable")
	}
}

func TestBlockBoundaries(t *testing.T) {
	p := NewPartial(time.UTC)
	t0 := time.Date(2025, 6, 15, 10, 13, 0, 0, time.UTC)

	// Within the window of the first event.
	ev1, c := mkEvent(t0, "s1", "m", 10, "0.1")
	ev2, _ := mkEvent(t0.Add(4*time.Hour+59*time.Minute), "s1", "m", 10, "0.1")
	// Past the window: starts a new block anchored at its own timestamp.
	ev3, _ := mkEvent(t0.Add(5*time.Hour+1*time.Minute), "s1", "m", 10, "0.1")

	p.Fold(ev1, c)
	p.Fold(ev2, c)
	p.Fold(ev3, c)

	now := t0.Add(30 * time.Hour)
	report := p.Finalize(now, FinalizeOptions{})

	if len(report.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(report.Blocks))
	}

	first, second := report.Blocks[0], report.Blocks[1]
	if !first.StartTime.Equal(t0) {
		t.Errorf("first block start = %v, want %v", first.StartTime, t0)
	}
	if first.Events != 2 {
		t.Errorf("first block events = %d, want 2", first.Events)
	}
	if !first.EndTime.Equal(t0.Add(BlockDuration)) {
		t.Errorf("first block end = %v, want %v", first.EndTime, t0.Add(BlockDuration))
	}

	if !second.StartTime.Equal(t0.Add(5*time.Hour + 1*time.Minute)) {
		t.Errorf("second block start = %v, want anchor at its first event", second.StartTime)
	}
	if second.Events != 1 {
		t.Errorf("second block events = %d, want 1", second.Events)
	}

	// Both blocks are long past; none active.
	if first.Active || second.Active {
		t.Error("no block should be active 30h later")
	}
}

func TestBlockActive(t *testing.T) {
	p := NewPartial(time.UTC)
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	old, c := mkEvent(now.Add(-20*time.Hour), "s1", "m", 10, "0.1")
	recent, _ := mkEvent(now.Add(-30*time.Minute), "s1", "m", 10, "0.1")
	p.Fold(old, c)
	p.Fold(recent, c)

	report := p.Finalize(now, FinalizeOptions{})
	if len(report.Blocks) != 2 {
		t.Fatalf("blocks = %d, want 2", len(report.Blocks))
	}

	if report.Blocks[0].Active {
		t.Error("old block should be closed")
	}
	if !report.Blocks[1].Active {
		t.Error("recent block should be active")
	}
}

func TestBlockTokenLimit(t *testing.T) {
	p := NewPartial(time.UTC)
	ts := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

	ev, c := mkEvent(ts, "s1", "m", 600, "0.1")
	p.Fold(ev, c)

	report := p.Finalize(ts.Add(24*time.Hour), FinalizeOptions{TokenLimit: 500})
	if !report.Blocks[0].LimitExceeded {
		t.Error("block over the budget should be flagged")
	}

	report = p.Finalize(ts.Add(24*time.Hour), FinalizeOptions{TokenLimit: 1000})
	if report.Blocks[0].LimitExceeded {
		t.Error("block under the budget should not be flagged")
	}
}

func TestSessionlessEventsSkipSessionBuckets(t *testing.T) {
	p := NewPartial(time.UTC)
	ev, c := mkEvent(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), "", "m", 100, "1.0")
	p.Fold(ev, c)

	report := p.Finalize(time.Now(), FinalizeOptions{})
	if len(report.Daily) != 1 {
		t.Error("sessionless events still land in day buckets")
	}
	if len(report.Sessions) != 0 {
		t.Error("sessionless events must not create session buckets")
	}
	if len(report.Blocks) != 0 {
		t.Error("sessionless events must not create blocks")
	}
}

func TestOrderDesc(t *testing.T) {
	p := NewPartial(time.UTC)
	ev1, c := mkEvent(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), "s1", "m", 10, "0.1")
	ev2, _ := mkEvent(time.Date(2025, 6, 16, 10, 0, 0, 0, time.UTC), "s2", "m", 10, "0.1")
	p.Fold(ev1, c)
	p.Fold(ev2, c)

	report := p.Finalize(time.Now(), FinalizeOptions{Order: OrderDesc})
	if report.Daily[0].Key != "2025-06-16" {
		t.Errorf("desc first day = %s, want 2025-06-16", report.Daily[0].Key)
	}
	if report.Sessions[0].Key != "s2" {
		t.Errorf("desc first session = %s, want s2", report.Sessions[0].Key)
	}
}

func TestTimezoneAffectsDayKeys(t *testing.T) {
	// 2025-06-15 23:30 UTC is already 06-16 in UTC+5.
	ts := time.Date(2025, 6, 15, 23, 30, 0, 0, time.UTC)
	plus5 := time.FixedZone("UTC+5", 5*3600)

	utcPartial := NewPartial(time.UTC)
	ev, c := mkEvent(ts, "s1", "m", 10, "0.1")
	utcPartial.Fold(ev, c)

	zonedPartial := NewPartial(plus5)
	zonedPartial.Fold(ev, c)

	utcReport := utcPartial.Finalize(time.Now(), FinalizeOptions{})
	zonedReport := zonedPartial.Finalize(time.Now(), FinalizeOptions{})

	if utcReport.Daily[0].Key != "2025-06-15" {
		t.Errorf("UTC day = %s, want 2025-06-15", utcReport.Daily[0].Key)
	}
	if zonedReport.Daily[0].Key != "2025-06-16" {
		t.Errorf("UTC+5 day = %s, want 2025-06-16", zonedReport.Daily[0].Key)
	}
}

func TestWeekKey(t *testing.T) {
	tests := []struct {
		ts   time.Time
		want string
	}{
		// ISO week of a plain mid-year date.
		{time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC), "2025-W24"},
		// Jan 1 can belong to the previous ISO year.
		{time.Date(2027, 1, 1, 12, 0, 0, 0, time.UTC), "2026-W53"},
		// Dec 29 can belong to the next ISO year.
		{time.Date(2025, 12, 29, 12, 0, 0, 0, time.UTC), "2026-W01"},
		// Single-digit weeks zero-pad.
		{time.Date(2025, 2, 3, 12, 0, 0, 0, time.UTC), "2025-W06"},
	}

	for _, tt := range tests {
		if got := WeekKey(tt.ts, time.UTC); got != tt.want {
			t.Errorf("WeekKey(%v) = %s, want %s", tt.ts, got, tt.want)
		}
	}
}
