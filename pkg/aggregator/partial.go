package aggregator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/event"
)

// modelAcc accumulates one model's share of a bucket.
type modelAcc struct {
	tokens event.TokenCounts
	cost   decimal.Decimal
	events int
}

// bucketAcc is the mutable accumulator behind a published Bucket.
type bucketAcc struct {
	tokens    event.TokenCounts
	cost      decimal.Decimal
	events    int
	models    map[string]*modelAcc
	projects  map[string]struct{}
	firstSeen time.Time
	lastSeen  time.Time
}

func newBucketAcc() *bucketAcc {
	return &bucketAcc{
		cost:     decimal.Zero,
		models:   make(map[string]*modelAcc),
		projects: make(map[string]struct{}),
	}
}

func (a *bucketAcc) add(ev *event.UsageEvent, cost decimal.Decimal) {
	a.tokens.Add(ev.Tokens)
	a.cost = a.cost.Add(cost)
	a.events++

	m, ok := a.models[ev.Model]
	if !ok {
		m = &modelAcc{cost: decimal.Zero}
		a.models[ev.Model] = m
	}
	m.tokens.Add(ev.Tokens)
	m.cost = m.cost.Add(cost)
	m.events++

	if ev.Project != "" {
		a.projects[ev.Project] = struct{}{}
	}

	if a.firstSeen.IsZero() || ev.Timestamp.Before(a.firstSeen) {
		a.firstSeen = ev.Timestamp
	}
	if ev.Timestamp.After(a.lastSeen) {
		a.lastSeen = ev.Timestamp
	}
}

// merge folds other into a. Commutative and associative: sums, set
// unions, and min/max of the seen bounds.
func (a *bucketAcc) merge(other *bucketAcc) {
	a.tokens.Add(other.tokens)
	a.cost = a.cost.Add(other.cost)
	a.events += other.events

	for model, om := range other.models {
		m, ok := a.models[model]
		if !ok {
			m = &modelAcc{cost: decimal.Zero}
			a.models[model] = m
		}
		m.tokens.Add(om.tokens)
		m.cost = m.cost.Add(om.cost)
		m.events += om.events
	}

	for p := range other.projects {
		a.projects[p] = struct{}{}
	}

	if a.firstSeen.IsZero() || (!other.firstSeen.IsZero() && other.firstSeen.Before(a.firstSeen)) {
		a.firstSeen = other.firstSeen
	}
	if other.lastSeen.After(a.lastSeen) {
		a.lastSeen = other.lastSeen
	}
}

// blockEvent is the minimal per-event record kept for the deferred
// billing-block pass. Day/week/month/session buckets fold directly;
// block boundaries need per-session chronological order first.
type blockEvent struct {
	timestamp time.Time
	tokens    event.TokenCounts
	cost      decimal.Decimal
	model     string
}

// sessionEvents collects one session's events across all workers.
type sessionEvents struct {
	project string
	events  []blockEvent
}

// Partial is a private per-worker aggregate: buckets for the direct
// granularities plus materialized per-session events for the block pass.
//
// Thread-safety: a Partial is owned by a single worker; only Merge
// brings partials together, on a single goroutine.
type Partial struct {
	loc *time.Location

	day      map[string]*bucketAcc
	week     map[string]*bucketAcc
	month    map[string]*bucketAcc
	sessions map[string]*bucketAcc

	blockEvents map[string]*sessionEvents
	events      int
}

// NewPartial creates an empty partial aggregate. Day, week, and month
// keys are computed in loc.
func NewPartial(loc *time.Location) *Partial {
	if loc == nil {
		loc = time.Local
	}
	return &Partial{
		loc:         loc,
		day:         make(map[string]*bucketAcc),
		week:        make(map[string]*bucketAcc),
		month:       make(map[string]*bucketAcc),
		sessions:    make(map[string]*bucketAcc),
		blockEvents: make(map[string]*sessionEvents),
	}
}

// Events returns the number of events folded so far.
func (p *Partial) Events() int {
	return p.events
}

// Fold adds one priced event to every applicable bucket.
func (p *Partial) Fold(ev *event.UsageEvent, cost decimal.Decimal) {
	p.events++

	p.foldInto(p.day, DayKey(ev.Timestamp, p.loc), ev, cost)
	p.foldInto(p.week, WeekKey(ev.Timestamp, p.loc), ev, cost)
	p.foldInto(p.month, MonthKey(ev.Timestamp, p.loc), ev, cost)

	if ev.SessionID != "" {
		p.foldInto(p.sessions, ev.SessionID, ev, cost)

		se, ok := p.blockEvents[ev.SessionID]
		if !ok {
			se = &sessionEvents{project: ev.Project}
			p.blockEvents[ev.SessionID] = se
		}
		se.events = append(se.events, blockEvent{
			timestamp: ev.Timestamp,
			tokens:    ev.Tokens,
			cost:      cost,
			model:     ev.Model,
		})
	}
}

func (p *Partial) foldInto(m map[string]*bucketAcc, key string, ev *event.UsageEvent, cost decimal.Decimal) {
	acc, ok := m[key]
	if !ok {
		acc = newBucketAcc()
		m[key] = acc
	}
	acc.add(ev, cost)
}

// Merge folds other into p. Bucket-wise sums and per-session event
// concatenation; both commutative over disjoint events, so the merged
// result is independent of worker count and merge order.
func (p *Partial) Merge(other *Partial) {
	if other == nil {
		return
	}

	mergeMaps(p.day, other.day)
	mergeMaps(p.week, other.week)
	mergeMaps(p.month, other.month)
	mergeMaps(p.sessions, other.sessions)

	for sid, ose := range other.blockEvents {
		se, ok := p.blockEvents[sid]
		if !ok {
			se = &sessionEvents{project: ose.project}
			p.blockEvents[sid] = se
		}
		if se.project == "" {
			se.project = ose.project
		}
		se.events = append(se.events, ose.events...)
	}

	p.events += other.events
}

func mergeMaps(dst, src map[string]*bucketAcc) {
	for key, acc := range src {
		existing, ok := dst[key]
		if !ok {
			dst[key] = acc
			continue
		}
		existing.merge(acc)
	}
}
