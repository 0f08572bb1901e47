package aggregator

import (
	"sort"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/event"
)

// buildBlocks runs the single-threaded block pass for one session:
// sort by timestamp, then fold consecutive 5-hour windows anchored at
// the first event of each window.
func buildBlocks(sessionID string, se *sessionEvents, now time.Time, tokenLimit int64) []Block {
	if len(se.events) == 0 {
		return nil
	}

	events := make([]blockEvent, len(se.events))
	copy(events, se.events)
	sort.Slice(events, func(i, j int) bool {
		return events[i].timestamp.Before(events[j].timestamp)
	})

	var blocks []Block
	var cur *blockAcc

	for i := range events {
		ev := &events[i]

		if cur == nil || !ev.timestamp.Before(cur.anchor.Add(BlockDuration)) {
			if cur != nil {
				blocks = append(blocks, cur.finish(sessionID, se.project, tokenLimit))
			}
			cur = newBlockAcc(ev.timestamp)
		}
		cur.add(ev)
	}
	blocks = append(blocks, cur.finish(sessionID, se.project, tokenLimit))

	// Only the most recent block of a session can still be open.
	last := &blocks[len(blocks)-1]
	if now.Sub(last.ActualEndTime) < BlockDuration {
		last.Active = true
	}

	return blocks
}

// blockAcc accumulates one in-progress billing window.
type blockAcc struct {
	anchor  time.Time
	lastEnd time.Time
	tokens  event.TokenCounts
	cost    decimal.Decimal
	events  int
	models  map[string]struct{}
}

func newBlockAcc(anchor time.Time) *blockAcc {
	return &blockAcc{
		anchor: anchor,
		cost:   decimal.Zero,
		models: make(map[string]struct{}),
	}
}

func (a *blockAcc) add(ev *blockEvent) {
	a.tokens.Add(ev.tokens)
	a.cost = a.cost.Add(ev.cost)
	a.events++
	a.models[ev.model] = struct{}{}
	if ev.timestamp.After(a.lastEnd) {
		a.lastEnd = ev.timestamp
	}
}

func (a *blockAcc) finish(sessionID, project string, tokenLimit int64) Block {
	models := lo.Keys(a.models)
	sort.Strings(models)

	return Block{
		SessionID:     sessionID,
		Project:       project,
		StartTime:     a.anchor,
		EndTime:       a.anchor.Add(BlockDuration),
		ActualEndTime: a.lastEnd,
		Tokens:        a.tokens,
		Cost:          a.cost,
		Events:        a.events,
		Models:        models,
		LimitExceeded: tokenLimit > 0 && a.tokens.Total() > tokenLimit,
	}
}
