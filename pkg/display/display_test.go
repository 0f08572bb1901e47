package display

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/engine"
	"github.com/0xmhha/usagemeter/pkg/event"
)

func sampleBuckets() []aggregator.Bucket {
	return []aggregator.Bucket{
		{
			Granularity: aggregator.GranularityDay,
			Key:         "2025-06-15",
			Tokens:      tokens(1500, 300),
			Cost:        decimal.RequireFromString("1.25"),
			Events:      3,
			Models:      []string{"claude-sonnet-4-5"},
			Breakdowns: []aggregator.ModelBreakdown{
				{Model: "claude-sonnet-4-5", Tokens: tokens(1500, 300), Cost: decimal.RequireFromString("1.25"), Events: 3},
			},
		},
		{
			Granularity: aggregator.GranularityDay,
			Key:         "2025-06-16",
			Tokens:      tokens(4000, 0),
			Cost:        decimal.RequireFromString("2.75"),
			Events:      1,
			Models:      []string{"claude-opus-4-1"},
		},
	}
}

func sampleBlocks() []aggregator.Block {
	start := time.Date(2025, 6, 15, 10, 13, 0, 0, time.UTC)
	return []aggregator.Block{
		{
			SessionID: "sess-1",
			StartTime: start,
			EndTime:   start.Add(aggregator.BlockDuration),
			Tokens:    tokens(1000, 0),
			Cost:      decimal.RequireFromString("0.5"),
			Events:    2,
		},
		{
			SessionID:     "sess-2",
			StartTime:     start.Add(6 * time.Hour),
			EndTime:       start.Add(11 * time.Hour),
			Tokens:        tokens(9000, 0),
			Cost:          decimal.RequireFromString("4.5"),
			Events:        5,
			Active:        true,
			LimitExceeded: true,
		},
	}
}

func TestFormatNumber(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}

	for _, tt := range tests {
		if got := formatNumber(tt.n); got != tt.want {
			t.Errorf("formatNumber(%d) = %s, want %s", tt.n, got, tt.want)
		}
	}
}

func TestFormatCost(t *testing.T) {
	if got := formatCost(decimal.RequireFromString("1.2")); got != "$1.2000" {
		t.Errorf("formatCost(1.2) = %s, want $1.2000", got)
	}
	if got := formatCost(decimal.Zero); got != "$0.0000" {
		t.Errorf("formatCost(0) = %s, want $0.0000", got)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly-ten", 0, "exactly-ten"},
		{"a-long-model-name", 10, "a-long-..."},
		{"abcdef", 3, "abc"},
	}

	for _, tt := range tests {
		if got := truncate(tt.s, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}

func TestTableFormatBuckets(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 200})

	if err := f.FormatBuckets(&buf, "Daily Usage", sampleBuckets()); err != nil {
		t.Fatalf("FormatBuckets() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"Daily Usage",
		"2025-06-15",
		"2025-06-16",
		"1,500",
		"$1.2500",
		"claude-opus-4-1",
		"Total",
		"$4.0000",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	// Breakdowns only render when asked for.
	if strings.Contains(out, "  claude-sonnet-4-5 ") && strings.Count(out, "claude-sonnet-4-5") > 1 {
		t.Error("breakdown rows rendered without ShowBreakdowns")
	}
}

func TestTableFormatBucketsBreakdowns(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, ShowBreakdowns: true, Width: 200})

	if err := f.FormatBuckets(&buf, "Daily Usage", sampleBuckets()); err != nil {
		t.Fatalf("FormatBuckets() error: %v", err)
	}

	if strings.Count(buf.String(), "claude-sonnet-4-5") < 2 {
		t.Errorf("expected a breakdown row:\n%s", buf.String())
	}
}

func TestTableFormatBucketsEmpty(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 200})

	if err := f.FormatBuckets(&buf, "Daily Usage", nil); err != nil {
		t.Fatalf("FormatBuckets() error: %v", err)
	}
	if !strings.Contains(buf.String(), "No data") {
		t.Errorf("empty table should say No data:\n%s", buf.String())
	}
}

func TestTableFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 200})

	if err := f.FormatBlocks(&buf, sampleBlocks()); err != nil {
		t.Fatalf("FormatBlocks() error: %v", err)
	}

	out := buf.String()
	for _, want := range []string{"Billing Blocks", "sess-1", "closed", "ACTIVE OVER LIMIT", "2025-06-15 10:13"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableFormatWarnings(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatTable, Width: 200})

	summaries := []engine.Summary{
		{Kind: engine.WarnMalformedLine, Count: 3, Samples: []string{"a.jsonl:7"}},
	}
	if err := f.FormatWarnings(&buf, summaries); err != nil {
		t.Fatalf("FormatWarnings() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "malformed_line") || !strings.Contains(out, "a.jsonl:7") {
		t.Errorf("warnings output incomplete:\n%s", out)
	}

	// Nothing to report renders nothing.
	buf.Reset()
	if err := f.FormatWarnings(&buf, nil); err != nil {
		t.Fatalf("FormatWarnings() error: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("empty warnings should render nothing, got:\n%s", buf.String())
	}
}

func TestJSONFormatBuckets(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON, Width: 200})

	if err := f.FormatBuckets(&buf, "Daily Usage", sampleBuckets()); err != nil {
		t.Fatalf("FormatBuckets() error: %v", err)
	}

	var decoded []aggregator.Bucket
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if len(decoded) != 2 || decoded[0].Key != "2025-06-15" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestJSONFormatEmptySlices(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatJSON, Compact: true, Width: 200})

	if err := f.FormatBlocks(&buf, nil); err != nil {
		t.Fatalf("FormatBlocks() error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "[]" {
		t.Errorf("nil blocks = %q, want []", buf.String())
	}
}

func TestSimpleFormatBuckets(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple, Width: 200})

	if err := f.FormatBuckets(&buf, "Daily Usage", sampleBuckets()); err != nil {
		t.Fatalf("FormatBuckets() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "2025-06-15: 3 events, 1,800 tokens, $1.2500") {
		t.Errorf("unexpected bucket line:\n%s", out)
	}
	if !strings.Contains(out, "daily usage total: $4.0000") {
		t.Errorf("missing total line:\n%s", out)
	}
}

func TestSimpleFormatBlocks(t *testing.T) {
	var buf bytes.Buffer
	f := New(Config{Format: FormatSimple, Width: 200})

	if err := f.FormatBlocks(&buf, sampleBlocks()); err != nil {
		t.Fatalf("FormatBlocks() error: %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "[active] [over limit]") {
		t.Errorf("missing status markers:\n%s", out)
	}
}

func TestNewDefaultsToTable(t *testing.T) {
	f := New(Config{Width: 200})
	if _, ok := f.(*tableFormatter); !ok {
		t.Errorf("New() = %T, want *tableFormatter", f)
	}
}

func tokens(input, output int64) event.TokenCounts {
	return event.TokenCounts{Input: input, Output: output}
}
