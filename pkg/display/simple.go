package display

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
)

// simpleFormatter formats output as simple text.
type simpleFormatter struct {
	config Config
}

// FormatBuckets implements Formatter.FormatBuckets.
func (f *simpleFormatter) FormatBuckets(w io.Writer, title string, buckets []aggregator.Bucket) error {
	total := decimal.Zero
	for _, b := range buckets {
		if _, err := fmt.Fprintf(w, "%s: %d events, %s tokens, %s\n",
			b.Key,
			b.Events,
			formatNumber(b.Tokens.Total()),
			formatCost(b.Cost)); err != nil {
			return err
		}
		total = total.Add(b.Cost)
	}

	_, err := fmt.Fprintf(w, "%s total: %s\n", strings.ToLower(title), formatCost(total))
	return err
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *simpleFormatter) FormatBlocks(w io.Writer, blocks []aggregator.Block) error {
	for _, b := range blocks {
		status := ""
		if b.Active {
			status = " [active]"
		}
		if b.LimitExceeded {
			status += " [over limit]"
		}

		if _, err := fmt.Fprintf(w, "%s %s: %s tokens, %s%s\n",
			b.SessionID,
			b.StartTime.Format("2006-01-02 15:04"),
			formatNumber(b.Tokens.Total()),
			formatCost(b.Cost),
			status); err != nil {
			return err
		}
	}

	return nil
}

// FormatWarnings implements Formatter.FormatWarnings.
func (f *simpleFormatter) FormatWarnings(w io.Writer, summaries []engine.Summary) error {
	for _, s := range summaries {
		if _, err := fmt.Fprintf(w, "warning: %s x%d\n", s.Kind, s.Count); err != nil {
			return err
		}
	}

	return nil
}
