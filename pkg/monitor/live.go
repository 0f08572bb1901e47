package monitor

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/discovery"
	"github.com/0xmhha/usagemeter/pkg/engine"
	"github.com/0xmhha/usagemeter/pkg/event"
	"github.com/0xmhha/usagemeter/pkg/logger"
	"github.com/0xmhha/usagemeter/pkg/reader"
	"github.com/0xmhha/usagemeter/pkg/watcher"
)

// liveMonitor implements the LiveMonitor interface.
type liveMonitor struct {
	config  Config
	logger  logger.Logger
	engine  *engine.Engine
	watcher watcher.Watcher
	reader  reader.Reader

	mu       sync.Mutex
	running  bool
	closed   bool
	stopChan chan struct{}

	// Cumulative aggregation state, guarded by mu.
	partial  *aggregator.Partial
	index    *event.DedupIndex
	warnings *engine.Warnings

	// Source files keyed by path, guarded by mu.
	files map[string]discovery.SourceFile

	// Events folded since the last published snapshot, guarded by mu.
	pending int

	updates chan Update
	roots   []string
}

// New creates a new live monitor.
//
// Parameters:
//   - cfg: Monitor configuration
//   - eng: Aggregation engine
//   - w: File watcher
//   - r: Incremental reader
//   - roots: Directory trees to watch
//   - log: Logger instance
//
// Returns:
//   - Configured LiveMonitor
//   - Error if configuration is invalid
func New(cfg Config, eng *engine.Engine, w watcher.Watcher, r reader.Reader, roots []string, log logger.Logger) (LiveMonitor, error) {
	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = time.Second
	}

	m := &liveMonitor{
		config:   cfg,
		logger:   log,
		engine:   eng,
		watcher:  w,
		reader:   r,
		stopChan: make(chan struct{}),
		partial:  eng.NewPartial(),
		index:    event.NewDedupIndex(),
		warnings: engine.NewWarnings(),
		files:    make(map[string]discovery.SourceFile),
		updates:  make(chan Update, 10),
		roots:    roots,
	}

	log.Debug("live monitor created",
		"refresh_interval", cfg.RefreshInterval)

	return m, nil
}

// Start implements LiveMonitor.Start.
func (m *liveMonitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrMonitorClosed
	}
	if m.running {
		m.mu.Unlock()
		return ErrMonitorRunning
	}
	m.running = true
	m.mu.Unlock()

	fail := func(err error) error {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return err
	}

	files, err := m.engine.Discover()
	if err != nil {
		return fail(fmt.Errorf("failed to discover sources: %w", err))
	}
	if len(files) == 0 {
		return fail(ErrNoSources)
	}

	m.mu.Lock()
	for _, f := range files {
		m.files[f.Path] = f
	}
	m.mu.Unlock()

	if err := m.initialRead(ctx, files); err != nil {
		return fail(fmt.Errorf("initial read failed: %w", err))
	}

	if err := m.watcher.Start(ctx, m.roots); err != nil {
		return fail(fmt.Errorf("failed to start watcher: %w", err))
	}

	m.publish()

	go m.processEvents(ctx)
	go m.periodicUpdates()

	m.logger.Info("live monitor started", "files", len(files))
	return nil
}

// Stop implements LiveMonitor.Stop.
func (m *liveMonitor) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMonitorClosed
	}
	if !m.running {
		return ErrMonitorNotRunning
	}

	close(m.stopChan)
	m.running = false
	m.closed = true
	close(m.updates)

	if err := m.watcher.Stop(); err != nil {
		m.logger.Warn("failed to stop watcher", "error", err)
	}

	m.logger.Info("live monitor stopped")
	return nil
}

// Updates implements LiveMonitor.Updates.
func (m *liveMonitor) Updates() <-chan Update {
	return m.updates
}

// initialRead folds every known file from the beginning. Offsets left
// behind by a previous run are discarded first: the cumulative state is
// per-run, so resuming from an old EOF would silently drop everything
// that run had read. Offsets only carry incremental reads within this
// run.
func (m *liveMonitor) initialRead(ctx context.Context, files []discovery.SourceFile) error {
	for _, file := range files {
		if err := m.reader.Reset(file.Path); err != nil {
			m.warnings.Add(engine.WarnUnreadableSource, file.Path)
			m.logger.Warn("failed to reset read position",
				"path", file.Path,
				"error", err)
			continue
		}

		raws, err := m.reader.Read(ctx, file.Path)
		if err != nil {
			m.warnings.Add(engine.WarnUnreadableSource, file.Path)
			m.logger.Warn("failed to read source file",
				"path", file.Path,
				"error", err)
			continue
		}

		m.mu.Lock()
		folded := m.engine.FoldEvents(raws, file, m.partial, m.index, m.warnings)
		m.pending += folded
		m.mu.Unlock()

		m.logger.Debug("initial read complete",
			"path", file.Path,
			"records", len(raws),
			"folded", folded)
	}

	return nil
}

// processEvents handles file change events from the watcher.
func (m *liveMonitor) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case <-m.stopChan:
			return

		case ev, ok := <-m.watcher.Events():
			if !ok {
				m.logger.Debug("watcher events channel closed")
				return
			}

			m.handleFileChange(ctx, ev)

		case err, ok := <-m.watcher.Errors():
			if !ok {
				m.logger.Debug("watcher errors channel closed")
				return
			}

			m.logger.Error("watcher error", "error", err)
		}
	}
}

// handleFileChange folds appended records from a changed file.
func (m *liveMonitor) handleFileChange(ctx context.Context, ev watcher.Event) {
	if ev.Op == watcher.OpRemove || ev.Op == watcher.OpChmod {
		return
	}

	m.logger.Debug("file change detected",
		"path", ev.Path,
		"op", ev.Op)

	m.mu.Lock()
	_, known := m.files[ev.Path]
	m.mu.Unlock()

	file := m.sourceFor(ev.Path)

	// A file first seen during this run has contributed nothing yet, so
	// any position a previous run stored for it is stale.
	if !known {
		if err := m.reader.Reset(ev.Path); err != nil {
			m.logger.Warn("failed to reset read position",
				"path", ev.Path,
				"error", err)
		}
	}

	raws, err := m.reader.Read(ctx, ev.Path)
	if err != nil {
		m.warnings.Add(engine.WarnUnreadableSource, ev.Path)
		m.logger.Warn("failed to read file after change",
			"path", ev.Path,
			"error", err)
		return
	}

	if len(raws) == 0 {
		return
	}

	m.mu.Lock()
	folded := m.engine.FoldEvents(raws, file, m.partial, m.index, m.warnings)
	m.pending += folded
	m.mu.Unlock()

	m.logger.Debug("processed file change",
		"path", ev.Path,
		"records", len(raws),
		"folded", folded)

	if folded > 0 {
		m.publish()
	}
}

// sourceFor resolves a path to its source file metadata, rediscovering
// when the path is new since the last scan.
func (m *liveMonitor) sourceFor(path string) discovery.SourceFile {
	m.mu.Lock()
	file, known := m.files[path]
	m.mu.Unlock()
	if known {
		return file
	}

	if files, err := m.engine.Discover(); err == nil {
		m.mu.Lock()
		for _, f := range files {
			m.files[f.Path] = f
		}
		file, known = m.files[path]
		m.mu.Unlock()
		if known {
			return file
		}
	}

	// Fall back to path-derived metadata for files outside the scan.
	base := filepath.Base(path)
	return discovery.SourceFile{
		Path:      path,
		Project:   filepath.Base(filepath.Dir(path)),
		SessionID: base[:len(base)-len(filepath.Ext(base))],
	}
}

// periodicUpdates publishes snapshots on a timer so active-block status
// stays current even without file changes.
func (m *liveMonitor) periodicUpdates() {
	ticker := time.NewTicker(m.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopChan:
			return

		case <-ticker.C:
			m.publish()
		}
	}
}

// publish finalizes the cumulative state and sends a snapshot.
func (m *liveMonitor) publish() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}

	report := m.engine.Finalize(m.partial, time.Now())
	newEvents := m.pending
	m.pending = 0

	update := Update{
		Timestamp: time.Now(),
		Report:    report,
		Warnings:  m.warnings,
		NewEvents: newEvents,
	}

	// The send stays under the lock so Stop cannot close the channel
	// between the closed check and the send. It never blocks.
	select {
	case m.updates <- update:
	default:
		m.logger.Debug("updates channel full, dropping snapshot")
	}
	m.mu.Unlock()
}
