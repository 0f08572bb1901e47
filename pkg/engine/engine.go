// Package engine orchestrates the aggregation pipeline: discovery,
// streaming parse, normalization and dedup, cost resolution, and the
// fold into per-granularity buckets.
//
// Files are processed by a pool of independent workers, each folding
// into a private partial aggregate. The pricing catalog is shared
// read-only; the dedup index claims keys atomically, so exactly one
// worker counts each logical event and totals are independent of file
// order and worker count. Partials are merged in a single-threaded
// reduction and published as a read-only report.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/discovery"
	"github.com/0xmhha/usagemeter/pkg/event"
	"github.com/0xmhha/usagemeter/pkg/logger"
	"github.com/0xmhha/usagemeter/pkg/parser"
	"github.com/0xmhha/usagemeter/pkg/pricing"
)

// Options tune one aggregation run.
type Options struct {
	// Project restricts aggregation to one project name. Empty means all.
	Project string

	// Since and Until bound event timestamps (inclusive). Zero values
	// disable the bound.
	Since time.Time
	Until time.Time

	// Order sorts the published report. Default: ascending.
	Order aggregator.SortOrder

	// TokenLimit is the per-billing-block token budget; 0 disables it.
	TokenLimit int64

	// Workers is the file-processing parallelism. Default: 4.
	Workers int

	// Location is the timezone for day/week/month bucket keys.
	// Default: the system timezone.
	Location *time.Location
}

// Result is the outcome of one aggregation run.
type Result struct {
	// Report is the published bucket set.
	Report *aggregator.Report

	// Warnings holds every recoverable problem found during the run.
	Warnings *Warnings

	// Files is the number of source files processed.
	Files int
}

// Engine runs aggregation passes over the configured sources.
//
// Thread-safety: the engine itself is immutable after construction;
// each Run owns its own mutable state.
type Engine struct {
	discovery discovery.Discoverer
	parser    parser.Parser
	resolver  *pricing.Resolver
	logger    logger.Logger
	opts      Options
}

// New creates an engine.
//
// Parameters:
//   - disc: Source file discovery
//   - p: JSONL parser
//   - resolver: Cost resolver sharing the read-only catalog
//   - log: Logger instance
//   - opts: Run options
func New(disc discovery.Discoverer, p parser.Parser, resolver *pricing.Resolver, log logger.Logger, opts Options) *Engine {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Order == "" {
		opts.Order = aggregator.OrderAsc
	}

	return &Engine{
		discovery: disc,
		parser:    p,
		resolver:  resolver,
		logger:    log,
		opts:      opts,
	}
}

// Run executes one full aggregation pass.
//
// Per-line and per-source failures accumulate as warnings in the
// result; Run returns an error only for fatal conditions (no usable
// sources) or context cancellation, in which case partial results are
// discarded.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	started := time.Now()

	files, err := e.discovery.Discover(e.opts.Project)
	if err != nil {
		return nil, fmt.Errorf("source discovery failed: %w", err)
	}

	index := event.NewDedupIndex()
	warnings := NewWarnings()

	merged, err := e.runWorkers(ctx, files, index, warnings)
	if err != nil {
		return nil, err
	}

	report := merged.Finalize(time.Now(), aggregator.FinalizeOptions{
		Order:      e.opts.Order,
		TokenLimit: e.opts.TokenLimit,
	})
	e.recordBlockWarnings(report, warnings)

	e.logger.Info("aggregation complete",
		"files", len(files),
		"events", report.Events,
		"duplicates", warnings.Count(WarnDuplicate),
		"elapsed", time.Since(started))

	return &Result{
		Report:   report,
		Warnings: warnings,
		Files:    len(files),
	}, nil
}

// runWorkers fans files out to the worker pool and reduces the private
// partials into one. The reduction is the only synchronization point.
func (e *Engine) runWorkers(ctx context.Context, files []discovery.SourceFile, index *event.DedupIndex, warnings *Warnings) (*aggregator.Partial, error) {
	workers := e.opts.Workers
	if workers > len(files) && len(files) > 0 {
		workers = len(files)
	}
	if workers == 0 {
		workers = 1
	}

	fileCh := make(chan discovery.SourceFile)
	partials := make([]*aggregator.Partial, workers)
	workerWarns := make([]*Warnings, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		partials[i] = aggregator.NewPartial(e.opts.Location)
		workerWarns[i] = NewWarnings()

		wg.Add(1)
		go func(p *aggregator.Partial, w *Warnings) {
			defer wg.Done()
			for file := range fileCh {
				e.processFile(file, p, index, w)
			}
		}(partials[i], workerWarns[i])
	}

	var cancelled error
feed:
	for _, file := range files {
		select {
		case <-ctx.Done():
			cancelled = ctx.Err()
			break feed
		case fileCh <- file:
		}
	}
	close(fileCh)
	wg.Wait()

	if cancelled != nil {
		// Superseded or aborted: discard partial results.
		return nil, cancelled
	}

	merged := partials[0]
	for _, p := range partials[1:] {
		merged.Merge(p)
	}
	for _, w := range workerWarns {
		warnings.Merge(w)
	}

	return merged, nil
}

// processFile streams one file through normalize, dedup, price, fold.
func (e *Engine) processFile(file discovery.SourceFile, partial *aggregator.Partial, index *event.DedupIndex, warnings *Warnings) {
	stats, _, err := e.parser.ParseFile(file.Path, 0, func(raw event.RawEvent, line int) {
		e.foldRaw(raw, file, line, partial, index, warnings)
	})

	for _, sample := range stats.MalformedSamples {
		warnings.Add(WarnMalformedLine, sample)
	}
	if extra := stats.Malformed - len(stats.MalformedSamples); extra > 0 {
		warnings.AddN(WarnMalformedLine, extra, "")
	}

	if err != nil {
		warnings.Add(WarnUnreadableSource, file.Path)
		e.logger.Warn("skipping unreadable file", "path", file.Path, "error", err)
		return
	}

	e.logger.Debug("file processed",
		"path", file.Path,
		"lines", stats.Lines,
		"parsed", stats.Parsed,
		"malformed", stats.Malformed)
}

// foldRaw normalizes, dedups, prices, and folds one raw record.
func (e *Engine) foldRaw(raw event.RawEvent, file discovery.SourceFile, line int, partial *aggregator.Partial, index *event.DedupIndex, warnings *Warnings) {
	ev, err := event.Normalize(raw, file.Project)
	if err != nil {
		// Foreign record types are expected in shared logs; only count
		// genuinely broken usage records.
		if err != event.ErrNotUsageRecord {
			warnings.Add(WarnSkippedRecord, fmt.Sprintf("%s:%d: %v", file.Path, line, err))
		}
		return
	}

	if ev.SessionID == "" {
		ev.SessionID = file.SessionID
	}

	if !e.inRange(ev.Timestamp) {
		return
	}

	if index.Seen(ev.DedupKey()) {
		warnings.Add(WarnDuplicate, "")
		return
	}

	cost, outcome := e.resolver.Resolve(ev)
	switch outcome {
	case pricing.OutcomeUnresolvedModel:
		warnings.Add(WarnUnresolvedModel, ev.Model)
	case pricing.OutcomeMissingCost:
		warnings.Add(WarnMissingCost, fmt.Sprintf("%s:%d", file.Path, line))
	}

	partial.Fold(ev, cost)
}

// FoldEvents folds already-parsed raw records into an existing partial,
// against a caller-owned dedup index. Used by the refresh controller to
// merge re-read files into cumulative watch-mode state.
//
// Returns the number of events folded (excluding duplicates and skips).
func (e *Engine) FoldEvents(raws []event.RawEvent, file discovery.SourceFile, partial *aggregator.Partial, index *event.DedupIndex, warnings *Warnings) int {
	before := partial.Events()
	for i, raw := range raws {
		e.foldRaw(raw, file, i+1, partial, index, warnings)
	}
	return partial.Events() - before
}

// NewPartial creates a partial aggregate in the engine's timezone.
func (e *Engine) NewPartial() *aggregator.Partial {
	return aggregator.NewPartial(e.opts.Location)
}

// Finalize publishes cumulative state with the engine's report options.
func (e *Engine) Finalize(p *aggregator.Partial, now time.Time) *aggregator.Report {
	return p.Finalize(now, aggregator.FinalizeOptions{
		Order:      e.opts.Order,
		TokenLimit: e.opts.TokenLimit,
	})
}

// Discover exposes source discovery for the refresh controller.
func (e *Engine) Discover() ([]discovery.SourceFile, error) {
	return e.discovery.Discover(e.opts.Project)
}

func (e *Engine) inRange(t time.Time) bool {
	if !e.opts.Since.IsZero() && t.Before(e.opts.Since) {
		return false
	}
	if !e.opts.Until.IsZero() && t.After(e.opts.Until) {
		return false
	}
	return true
}

// recordBlockWarnings surfaces exceeded token budgets alongside the
// other warnings.
func (e *Engine) recordBlockWarnings(report *aggregator.Report, warnings *Warnings) {
	if e.opts.TokenLimit <= 0 {
		return
	}
	for _, b := range report.Blocks {
		if b.LimitExceeded {
			warnings.Add(WarnTokenLimit, fmt.Sprintf("session %s block %s", b.SessionID, b.StartTime.Format(time.RFC3339)))
		}
	}
}
