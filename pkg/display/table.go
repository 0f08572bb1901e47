package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
)

// tableFormatter formats output as tables.
type tableFormatter struct {
	config Config
}

// FormatBuckets implements Formatter.FormatBuckets.
func (f *tableFormatter) FormatBuckets(w io.Writer, title string, buckets []aggregator.Bucket) error {
	if err := writeHeader(w, title, f.config.Compact); err != nil {
		return err
	}

	header := []string{"Period", "Events", "Input", "Output", "Cache W", "Cache R", "Total", "Cost", "Models"}

	rows := make([][]string, 0, len(buckets))
	total := decimal.Zero
	var totalTokens int64
	var totalEvents int

	for _, b := range buckets {
		rows = append(rows, []string{
			b.Key,
			formatNumber(int64(b.Events)),
			formatNumber(b.Tokens.Input),
			formatNumber(b.Tokens.Output),
			formatNumber(b.Tokens.CacheWrite),
			formatNumber(b.Tokens.CacheRead),
			formatNumber(b.Tokens.Total()),
			formatCost(b.Cost),
			truncate(strings.Join(b.Models, ", "), f.modelsWidth()),
		})

		if f.config.ShowBreakdowns {
			for _, mb := range b.Breakdowns {
				rows = append(rows, []string{
					"  " + mb.Model,
					formatNumber(int64(mb.Events)),
					formatNumber(mb.Tokens.Input),
					formatNumber(mb.Tokens.Output),
					formatNumber(mb.Tokens.CacheWrite),
					formatNumber(mb.Tokens.CacheRead),
					formatNumber(mb.Tokens.Total()),
					formatCost(mb.Cost),
					"",
				})
			}
		}

		total = total.Add(b.Cost)
		totalTokens += b.Tokens.Total()
		totalEvents += b.Events
	}

	if len(rows) > 0 {
		rows = append(rows, []string{
			"Total",
			formatNumber(int64(totalEvents)),
			"", "", "", "",
			formatNumber(totalTokens),
			formatCost(total),
			"",
		})
	}

	return f.writeTable(w, header, rows)
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *tableFormatter) FormatBlocks(w io.Writer, blocks []aggregator.Block) error {
	if err := writeHeader(w, "Billing Blocks", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Start", "End", "Session", "Events", "Tokens", "Cost", "Status"}

	rows := make([][]string, len(blocks))
	for i, b := range blocks {
		status := "closed"
		if b.Active {
			status = "ACTIVE"
		}
		if b.LimitExceeded {
			status += " OVER LIMIT"
		}

		rows[i] = []string{
			b.StartTime.Format("2006-01-02 15:04"),
			b.EndTime.Format("15:04"),
			truncate(b.SessionID, 20),
			formatNumber(int64(b.Events)),
			formatNumber(b.Tokens.Total()),
			formatCost(b.Cost),
			status,
		}
	}

	return f.writeTable(w, header, rows)
}

// FormatWarnings implements Formatter.FormatWarnings.
func (f *tableFormatter) FormatWarnings(w io.Writer, summaries []engine.Summary) error {
	if len(summaries) == 0 {
		return nil
	}

	if err := writeHeader(w, "Warnings", f.config.Compact); err != nil {
		return err
	}

	header := []string{"Kind", "Count", "Samples"}

	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		rows[i] = []string{
			string(s.Kind),
			formatNumber(int64(s.Count)),
			truncate(strings.Join(s.Samples, "; "), f.modelsWidth()),
		}
	}

	return f.writeTable(w, header, rows)
}

// modelsWidth bounds the free-text column so wide tables still fit the
// terminal.
func (f *tableFormatter) modelsWidth() int {
	if f.config.Width <= 0 {
		return 0 // No cap.
	}

	// Leave room for the numeric columns.
	width := f.config.Width - 80
	if width < 12 {
		width = 12
	}
	return width
}

// writeTable writes a formatted table.
func (f *tableFormatter) writeTable(w io.Writer, header []string, rows [][]string) error {
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No data")
		return err
	}

	// Calculate column widths.
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	if err := f.writeRow(w, header, widths); err != nil {
		return err
	}

	if !f.config.Compact {
		separator := make([]string, len(header))
		for i, width := range widths {
			separator[i] = strings.Repeat("-", width)
		}
		if err := f.writeRow(w, separator, widths); err != nil {
			return err
		}
	}

	for _, row := range rows {
		if err := f.writeRow(w, row, widths); err != nil {
			return err
		}
	}

	if !f.config.Compact {
		_, err := fmt.Fprintln(w)
		return err
	}

	return nil
}

// writeRow writes a single table row.
func (f *tableFormatter) writeRow(w io.Writer, cells []string, widths []int) error {
	for i, cell := range cells {
		if i > 0 {
			if f.config.Compact {
				if _, err := fmt.Fprint(w, " "); err != nil {
					return err
				}
			} else {
				if _, err := fmt.Fprint(w, "  "); err != nil {
					return err
				}
			}
		}

		format := fmt.Sprintf("%%-%ds", widths[i])
		if _, err := fmt.Fprintf(w, format, cell); err != nil {
			return err
		}
	}

	_, err := fmt.Fprintln(w)
	return err
}
