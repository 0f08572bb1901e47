package display

import (
	"encoding/json"
	"io"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
)

// jsonFormatter formats output as JSON.
type jsonFormatter struct {
	config Config
}

func (f *jsonFormatter) encode(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	if !f.config.Compact {
		encoder.SetIndent("", "  ")
	}

	return encoder.Encode(v)
}

// FormatBuckets implements Formatter.FormatBuckets.
func (f *jsonFormatter) FormatBuckets(w io.Writer, _ string, buckets []aggregator.Bucket) error {
	if buckets == nil {
		buckets = []aggregator.Bucket{}
	}
	return f.encode(w, buckets)
}

// FormatBlocks implements Formatter.FormatBlocks.
func (f *jsonFormatter) FormatBlocks(w io.Writer, blocks []aggregator.Block) error {
	if blocks == nil {
		blocks = []aggregator.Block{}
	}
	return f.encode(w, blocks)
}

// FormatWarnings implements Formatter.FormatWarnings.
func (f *jsonFormatter) FormatWarnings(w io.Writer, summaries []engine.Summary) error {
	if summaries == nil {
		summaries = []engine.Summary{}
	}
	return f.encode(w, summaries)
}
