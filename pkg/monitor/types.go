// Package monitor provides the live refresh loop for watch mode.
//
// It combines the file watcher, the incremental reader, and the
// aggregation engine into a long-running controller: an initial full
// pass builds cumulative state, then each debounced file change folds
// only the appended records into that state and republishes a fresh
// report snapshot on the Updates channel.
//
// Example usage:
//
//	m, err := monitor.New(monitor.Config{}, eng, w, r, logger.Default())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer m.Stop()
//
//	if err := m.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
//	for update := range m.Updates() {
//	    render(update.Report)
//	}
package monitor

import (
	"context"
	"time"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
)

// Config holds the configuration for the live monitor.
type Config struct {
	// RefreshInterval is the interval for periodic snapshots even when
	// no files change. Keeps active-block status current. Default: 1s.
	RefreshInterval time.Duration
}

// Update is one published report snapshot.
type Update struct {
	// Timestamp of the snapshot.
	Timestamp time.Time

	// Report is the cumulative aggregation result.
	Report *aggregator.Report

	// Warnings accumulated since the monitor started.
	Warnings *engine.Warnings

	// NewEvents is the number of events folded since the last snapshot.
	NewEvents int
}

// LiveMonitor provides continuously refreshed aggregation.
type LiveMonitor interface {
	// Start performs the initial full pass and begins watching for
	// changes. Background processing runs until the context is
	// cancelled or Stop is called.
	Start(ctx context.Context) error

	// Stop stops the monitor gracefully.
	Stop() error

	// Updates returns the channel of published report snapshots.
	Updates() <-chan Update
}
