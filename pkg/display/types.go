// Package display provides output formatting for usage reports.
//
// It supports multiple output formats (table, JSON, simple text) and
// renders bucket reports, billing blocks, and warning summaries.
package display

import (
	"io"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
)

// Format represents an output format.
type Format string

const (
	// FormatTable displays reports in a formatted table.
	FormatTable Format = "table"

	// FormatJSON displays reports as JSON.
	FormatJSON Format = "json"

	// FormatSimple displays reports in simple text format.
	FormatSimple Format = "simple"
)

// Formatter formats and displays usage reports.
type Formatter interface {
	// FormatBuckets formats one granularity's buckets.
	//
	// Parameters:
	//   - w: Output writer
	//   - title: Section title
	//   - buckets: Buckets to format
	//
	// Returns error if formatting fails.
	FormatBuckets(w io.Writer, title string, buckets []aggregator.Bucket) error

	// FormatBlocks formats billing blocks.
	//
	// Parameters:
	//   - w: Output writer
	//   - blocks: Blocks to format
	//
	// Returns error if formatting fails.
	FormatBlocks(w io.Writer, blocks []aggregator.Block) error

	// FormatWarnings formats accumulated warning summaries.
	//
	// Parameters:
	//   - w: Output writer
	//   - summaries: Warning summaries to format
	//
	// Returns error if formatting fails.
	FormatWarnings(w io.Writer, summaries []engine.Summary) error
}

// Config contains formatter configuration.
type Config struct {
	// Format specifies the output format.
	// Default: FormatTable.
	Format Format

	// ShowBreakdowns enables per-model rows under each bucket.
	// Default: false.
	ShowBreakdowns bool

	// Compact enables compact output (less whitespace).
	// Default: false.
	Compact bool

	// Width caps table width in characters. 0 means autodetect from
	// the terminal, falling back to no cap.
	Width int
}
