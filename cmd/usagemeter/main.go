// Package main provides the usagemeter CLI application.
//
// Usagemeter aggregates Claude Code usage logs into daily, weekly,
// monthly, per-session, and billing-block cost reports, with optional
// live watch mode.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"
)

// version is set during build time.
var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run executes the main application logic.
func run() error {
	// Define global flags.
	configPath := flag.String("config", "", "path to configuration file")
	showVersion := flag.Bool("version", false, "show version information")

	flag.Parse()

	if *showVersion {
		fmt.Printf("usagemeter %s\n", version)
		return nil
	}

	args := flag.Args()
	if len(args) == 0 {
		return showUsage()
	}

	command := args[0]

	switch command {
	case "daily", "weekly", "monthly", "sessions":
		return runReportCommand(*configPath, command, args[1:])
	case "blocks":
		return runBlocksCommand(*configPath, args[1:])
	case "watch":
		return runWatchCommand(*configPath, args[1:])
	case "models":
		return runModelsCommand(args[1:])
	case "config":
		return runConfigCommand(*configPath, args[1:])
	case "version":
		fmt.Printf("usagemeter %s\n", version)
		return nil
	case "help":
		return showUsage()
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// reportFlags defines the flags shared by all report commands.
func reportFlags(fs *flag.FlagSet, c *reportCommand) {
	fs.StringVar(&c.project, "project", "", "filter by project name")
	fs.StringVar(&c.since, "since", "", "include events on or after this date (YYYY-MM-DD)")
	fs.StringVar(&c.until, "until", "", "include events on or before this date (YYYY-MM-DD)")
	fs.StringVar(&c.mode, "mode", "", "cost mode (auto, calculate, display)")
	fs.StringVar(&c.order, "order", "", "sort order (asc, desc)")
	fs.StringVar(&c.format, "format", "table", "output format (table, json, simple)")
	fs.StringVar(&c.timezone, "timezone", "", "timezone for bucket keys (local, utc, or IANA name)")
	fs.BoolVar(&c.compact, "compact", false, "compact output")
	fs.BoolVar(&c.breakdowns, "breakdowns", false, "show per-model rows under each bucket")
	fs.IntVar(&c.workers, "workers", 0, "number of concurrent file workers")
}

// runReportCommand runs a bucket report command.
func runReportCommand(configPath, granularity string, args []string) error {
	fs := flag.NewFlagSet(granularity, flag.ExitOnError)
	cmd := &reportCommand{granularity: granularity, configPath: configPath}
	reportFlags(fs, cmd)

	if err := fs.Parse(args); err != nil {
		return err
	}

	return cmd.Execute()
}

// runBlocksCommand runs the billing blocks command.
func runBlocksCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("blocks", flag.ExitOnError)
	cmd := &blocksCommand{reportCommand: reportCommand{configPath: configPath}}
	reportFlags(fs, &cmd.reportCommand)
	fs.BoolVar(&cmd.activeOnly, "active", false, "show only the active block")
	fs.Int64Var(&cmd.tokenLimit, "token-limit", 0, "per-block token budget; flags blocks that exceed it")

	if err := fs.Parse(args); err != nil {
		return err
	}

	return cmd.Execute()
}

// runWatchCommand runs the watch command.
func runWatchCommand(configPath string, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	cmd := &watchCommand{configPath: configPath}
	fs.StringVar(&cmd.project, "project", "", "filter by project name")
	fs.StringVar(&cmd.mode, "mode", "", "cost mode (auto, calculate, display)")
	fs.StringVar(&cmd.format, "format", "table", "output format (table, simple)")
	fs.DurationVar(&cmd.refresh, "refresh", time.Second, "refresh interval (e.g., 1s, 500ms)")
	fs.BoolVar(&cmd.history, "history", false, "keep history of updates (append mode)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd.clearScreen = !cmd.history
	return cmd.Execute()
}

// runModelsCommand runs the models command.
func runModelsCommand(args []string) error {
	fs := flag.NewFlagSet("models", flag.ExitOnError)
	format := fs.String("format", "table", "output format (table, json)")

	if err := fs.Parse(args); err != nil {
		return err
	}

	cmd := &modelsCommand{format: *format}
	return cmd.Execute()
}

// runConfigCommand runs the config command.
func runConfigCommand(configPath string, args []string) error {
	cmd := &configCommand{configPath: configPath}
	return cmd.Execute(args)
}

// showUsage displays usage information.
func showUsage() error {
	usage := `Usagemeter - Claude Code usage aggregation and cost reporting

Usage:
  usagemeter [flags] <command> [command flags]

Commands:
  daily       Daily usage and cost report
  weekly      ISO-week usage and cost report
  monthly     Monthly usage and cost report
  sessions    Per-session usage and cost report
  blocks      5-hour billing block report
  watch       Live monitoring with continuous refresh
  models      List known models and pricing rates
  config      Configuration management (show, path, reset)
  version     Show version information
  help        Show this help message

Global Flags:
  -config     Path to configuration file
  -version    Show version information

Report Command Flags:
  -project    Filter by project name
  -since      Include events on or after this date (YYYY-MM-DD)
  -until      Include events on or before this date (YYYY-MM-DD)
  -mode       Cost mode (auto, calculate, display)
  -order      Sort order (asc, desc)
  -format     Output format (table, json, simple)
  -timezone   Timezone for bucket keys (local, utc, or IANA name)
  -compact    Compact output
  -breakdowns Show per-model rows under each bucket
  -workers    Number of concurrent file workers

Blocks Command Flags:
  -active       Show only the active block
  -token-limit  Per-block token budget; flags blocks that exceed it

Watch Command Flags:
  -project    Filter by project name
  -mode       Cost mode (auto, calculate, display)
  -refresh    Refresh interval (default: 1s, e.g., 500ms, 2s)
  -format     Output format (table, simple)
  -history    Keep history of updates (append mode, default: false)

Examples:
  # Daily report
  usagemeter daily

  # Monthly report in JSON
  usagemeter monthly -format json

  # Daily report for one project, computed costs only
  usagemeter daily -project myapp -mode calculate

  # Reports bounded by date
  usagemeter daily -since 2025-06-01 -until 2025-06-30

  # Billing blocks with a token budget
  usagemeter blocks -token-limit 500000

  # Live monitoring
  usagemeter watch

  # Known models and rates
  usagemeter models

Version: %s
`

	fmt.Printf(usage, version)
	return nil
}
