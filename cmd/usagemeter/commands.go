package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/config"
	"github.com/0xmhha/usagemeter/pkg/discovery"
	"github.com/0xmhha/usagemeter/pkg/display"
	"github.com/0xmhha/usagemeter/pkg/engine"
	"github.com/0xmhha/usagemeter/pkg/logger"
	"github.com/0xmhha/usagemeter/pkg/monitor"
	"github.com/0xmhha/usagemeter/pkg/parser"
	"github.com/0xmhha/usagemeter/pkg/pricing"
	"github.com/0xmhha/usagemeter/pkg/reader"
	"github.com/0xmhha/usagemeter/pkg/watcher"
)

// reportCommand renders one granularity of the aggregated report.
type reportCommand struct {
	granularity string
	project     string
	since       string
	until       string
	mode        string
	order       string
	format      string
	timezone    string
	compact     bool
	breakdowns  bool
	workers     int
	configPath  string
}

// Execute runs a report command.
func (c *reportCommand) Execute() error {
	result, err := c.aggregate(0)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	formatter := c.formatter()

	var buckets []aggregator.Bucket
	var title string
	switch c.granularity {
	case "weekly":
		buckets, title = result.Report.Weekly, "Weekly Usage"
	case "monthly":
		buckets, title = result.Report.Monthly, "Monthly Usage"
	case "sessions":
		buckets, title = result.Report.Sessions, "Session Usage"
	default:
		buckets, title = result.Report.Daily, "Daily Usage"
	}

	if err := formatter.FormatBuckets(os.Stdout, title, buckets); err != nil {
		return err
	}

	return c.renderWarnings(formatter, result.Warnings)
}

// aggregate loads configuration, builds the engine, and runs one pass.
func (c *reportCommand) aggregate(tokenLimit int64) (*engine.Result, error) {
	cfg, err := c.loadConfig()
	if err != nil {
		return nil, err
	}

	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})

	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}

	since, until, err := c.parseRange(loc)
	if err != nil {
		return nil, err
	}

	mode, err := pricing.ParseMode(cfg.Aggregation.CostMode)
	if err != nil {
		return nil, err
	}

	catalog, err := pricing.NewCatalog()
	if err != nil {
		return nil, fmt.Errorf("failed to load pricing catalog: %w", err)
	}

	order := aggregator.OrderAsc
	if cfg.Aggregation.Order == "desc" {
		order = aggregator.OrderDesc
	}
	if tokenLimit == 0 {
		tokenLimit = cfg.Aggregation.TokenLimit
	}

	disc := discovery.New(cfg.SourceDirs, log)
	eng := engine.New(disc, parser.New(), pricing.NewResolver(catalog, mode), log, engine.Options{
		Project:    c.project,
		Since:      since,
		Until:      until,
		Order:      order,
		TokenLimit: tokenLimit,
		Workers:    cfg.Performance.Workers,
		Location:   loc,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := eng.Run(ctx)
	if err != nil {
		if noUsageData(err) {
			fmt.Println("No usage log files found")
			return nil, nil
		}
		return nil, err
	}

	return result, nil
}

// loadConfig loads configuration and applies flag overrides.
func (c *reportCommand) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFromFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// Flags take precedence over file and environment.
	if c.mode != "" {
		cfg.Aggregation.CostMode = c.mode
	}
	if c.order != "" {
		cfg.Aggregation.Order = c.order
	}
	if c.timezone != "" {
		cfg.Aggregation.Timezone = c.timezone
	}
	if c.workers > 0 {
		cfg.Performance.Workers = c.workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// parseRange parses the since/until date bounds in the report timezone.
// Both bounds are inclusive: until covers the whole named day.
func (c *reportCommand) parseRange(loc *time.Location) (time.Time, time.Time, error) {
	var since, until time.Time

	if c.since != "" {
		t, err := time.ParseInLocation("2006-01-02", c.since, loc)
		if err != nil {
			return since, until, fmt.Errorf("invalid -since date %q: %w", c.since, err)
		}
		since = t
	}

	if c.until != "" {
		t, err := time.ParseInLocation("2006-01-02", c.until, loc)
		if err != nil {
			return since, until, fmt.Errorf("invalid -until date %q: %w", c.until, err)
		}
		until = t.Add(24*time.Hour - time.Nanosecond)
	}

	if !since.IsZero() && !until.IsZero() && until.Before(since) {
		return since, until, fmt.Errorf("-until %s is before -since %s", c.until, c.since)
	}

	return since, until, nil
}

// formatter builds the configured display formatter.
func (c *reportCommand) formatter() display.Formatter {
	var format display.Format
	switch c.format {
	case "json":
		format = display.FormatJSON
	case "simple":
		format = display.FormatSimple
	default:
		format = display.FormatTable
	}

	return display.New(display.Config{
		Format:         format,
		ShowBreakdowns: c.breakdowns,
		Compact:        c.compact,
	})
}

// renderWarnings prints accumulated warnings. JSON output keeps stdout
// machine-parseable, so warnings go to stderr there.
func (c *reportCommand) renderWarnings(formatter display.Formatter, warnings *engine.Warnings) error {
	summaries := warnings.Summaries()
	if len(summaries) == 0 {
		return nil
	}

	out := os.Stdout
	if c.format == "json" {
		out = os.Stderr
	}

	return formatter.FormatWarnings(out, summaries)
}

// blocksCommand renders the billing block report.
type blocksCommand struct {
	reportCommand
	activeOnly bool
	tokenLimit int64
}

// Execute runs the blocks command.
func (c *blocksCommand) Execute() error {
	result, err := c.aggregate(c.tokenLimit)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}

	blocks := result.Report.Blocks
	if c.activeOnly {
		active := blocks[:0:0]
		for _, b := range blocks {
			if b.Active {
				active = append(active, b)
			}
		}
		blocks = active
	}

	formatter := c.formatter()
	if err := formatter.FormatBlocks(os.Stdout, blocks); err != nil {
		return err
	}

	return c.renderWarnings(formatter, result.Warnings)
}

// watchCommand provides live usage monitoring.
type watchCommand struct {
	project     string
	mode        string
	format      string
	refresh     time.Duration
	history     bool
	clearScreen bool
	configPath  string
}

// Execute runs the watch command.
func (c *watchCommand) Execute() error {
	var cfg *config.Config
	var err error
	if c.configPath != "" {
		cfg, err = config.LoadFromFile(c.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if c.mode != "" {
		cfg.Aggregation.CostMode = c.mode
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	// Quiet logging; the screen belongs to the report.
	log := logger.New(logger.Config{
		Level:  "error",
		Format: cfg.Logging.Format,
		Output: "stderr",
	})

	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("invalid timezone: %w", err)
	}

	mode, err := pricing.ParseMode(cfg.Aggregation.CostMode)
	if err != nil {
		return err
	}

	catalog, err := pricing.NewCatalog()
	if err != nil {
		return fmt.Errorf("failed to load pricing catalog: %w", err)
	}

	order := aggregator.OrderAsc
	if cfg.Aggregation.Order == "desc" {
		order = aggregator.OrderDesc
	}

	disc := discovery.New(cfg.SourceDirs, log)
	eng := engine.New(disc, parser.New(), pricing.NewResolver(catalog, mode), log, engine.Options{
		Project:    c.project,
		Order:      order,
		TokenLimit: cfg.Aggregation.TokenLimit,
		Workers:    cfg.Performance.Workers,
		Location:   loc,
	})

	// Offsets track incremental reads within this run; the monitor
	// resets them at startup so totals always rebuild from the full
	// source files.
	store, closeStore, err := openPositionStore(cfg.Storage.OffsetDBPath, log)
	if err != nil {
		return err
	}
	defer closeStore()

	r, err := reader.New(reader.Config{
		PositionStore: store,
		Parser:        parser.New(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize reader: %w", err)
	}
	defer func() {
		if err := r.Close(); err != nil {
			log.Error("failed to close reader", "error", err)
		}
	}()

	w, err := watcher.New(watcher.Config{
		DebounceInterval: cfg.Watch.Debounce,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to initialize watcher: %w", err)
	}
	defer func() {
		if err := w.Close(); err != nil {
			log.Error("failed to close watcher", "error", err)
		}
	}()

	mon, err := monitor.New(monitor.Config{
		RefreshInterval: c.refresh,
	}, eng, w, r, cfg.SourceDirs, log)
	if err != nil {
		return fmt.Errorf("failed to create monitor: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	if err := mon.Start(ctx); err != nil {
		return fmt.Errorf("failed to start monitor: %w", err)
	}

	if c.clearScreen {
		fmt.Print("\033[2J\033[H")
	}

	fmt.Println("Live Usage Monitor - Press Ctrl+C to stop")
	if c.project != "" {
		fmt.Printf("Project: %s | ", c.project)
	} else {
		fmt.Print("All Projects | ")
	}
	fmt.Printf("Refresh: %s\n", c.refresh)
	fmt.Println(strings.Repeat("-", 80))
	fmt.Println()

	for {
		select {
		case <-sigChan:
			fmt.Print("\n\n")
			fmt.Println("Stopping monitor...")
			cancel()
			if err := mon.Stop(); err != nil {
				log.Error("failed to stop monitor", "error", err)
			}
			return nil

		case update, ok := <-mon.Updates():
			if !ok {
				return nil
			}
			c.displayUpdate(update)
		}
	}
}

// displayUpdate renders one live snapshot.
func (c *watchCommand) displayUpdate(update monitor.Update) {
	if c.clearScreen {
		// Move cursor below the header and clear from there.
		fmt.Print("\033[5;1H\033[J")
	}

	fmt.Printf("Last updated: %s | Total cost: %s | New events: %+d\n",
		update.Timestamp.Format("15:04:05"),
		"$"+update.Report.TotalCost().StringFixed(4),
		update.NewEvents)

	var format display.Format
	if c.format == "simple" {
		format = display.FormatSimple
	} else {
		format = display.FormatTable
	}

	formatter := display.New(display.Config{
		Format:  format,
		Compact: true,
	})

	if err := formatter.FormatBuckets(os.Stdout, "Today", tailBuckets(update.Report.Daily, 3)); err != nil {
		fmt.Fprintf(os.Stderr, "render error: %v\n", err)
		return
	}

	if err := formatter.FormatBlocks(os.Stdout, activeBlocks(update.Report.Blocks)); err != nil {
		fmt.Fprintf(os.Stderr, "render error: %v\n", err)
	}
}

// noUsageData reports whether err means no usage log files exist. The
// sentinel arrives wrapped, so this must match through the chain.
func noUsageData(err error) bool {
	return errors.Is(err, discovery.ErrNoUsableSources)
}

// tailBuckets returns the last n buckets.
func tailBuckets(buckets []aggregator.Bucket, n int) []aggregator.Bucket {
	if len(buckets) <= n {
		return buckets
	}
	return buckets[len(buckets)-n:]
}

// activeBlocks filters to currently active blocks.
func activeBlocks(blocks []aggregator.Block) []aggregator.Block {
	active := make([]aggregator.Block, 0, 1)
	for _, b := range blocks {
		if b.Active {
			active = append(active, b)
		}
	}
	return active
}

// openPositionStore opens the offset database, falling back to an
// in-memory store when no path is configured.
func openPositionStore(path string, log logger.Logger) (reader.PositionStore, func(), error) {
	if path == "" {
		return reader.NewMemoryPositionStore(), func() {}, nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create offset db directory: %w", err)
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open offset db: %w", err)
	}

	store, err := reader.NewBoltPositionStore(db)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to initialize position store: %w", err)
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error("failed to close offset db", "error", err)
		}
	}

	return store, closeDB, nil
}

// modelsCommand lists the bundled pricing catalog.
type modelsCommand struct {
	format string
}

// Execute runs the models command.
func (c *modelsCommand) Execute() error {
	catalog, err := pricing.NewCatalog()
	if err != nil {
		return fmt.Errorf("failed to load pricing catalog: %w", err)
	}

	models := catalog.Models()

	if c.format == "json" {
		type modelRates struct {
			Model      string `json:"model"`
			Input      string `json:"input"`
			Output     string `json:"output"`
			CacheWrite string `json:"cacheWrite"`
			CacheRead  string `json:"cacheRead"`
		}

		out := make([]modelRates, 0, len(models))
		for _, m := range models {
			rates, _ := catalog.Rates(m)
			out = append(out, modelRates{
				Model:      m,
				Input:      rates.Input.String(),
				Output:     rates.Output.String(),
				CacheWrite: rates.CacheWrite.String(),
				CacheRead:  rates.CacheRead.String(),
			})
		}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal models: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Known models (USD per 1M tokens):")
	fmt.Println()
	fmt.Printf("  %-24s %10s %10s %12s %11s\n", "Model", "Input", "Output", "Cache Write", "Cache Read")
	for _, m := range models {
		rates, _ := catalog.Rates(m)
		fmt.Printf("  %-24s %10s %10s %12s %11s\n",
			m, rates.Input.String(), rates.Output.String(), rates.CacheWrite.String(), rates.CacheRead.String())
	}
	fmt.Println()
	fmt.Println("Dated or prefixed variants resolve to these families by fuzzy match.")

	return nil
}
