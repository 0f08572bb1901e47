package main

import (
	"fmt"
	"testing"
	"time"

	"github.com/0xmhha/usagemeter/pkg/aggregator"
	"github.com/0xmhha/usagemeter/pkg/discovery"
)

func TestParseRange(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name      string
		since     string
		until     string
		wantSince time.Time
		wantUntil time.Time
		wantErr   bool
	}{
		{
			name: "both empty",
		},
		{
			name:      "since only",
			since:     "2025-06-15",
			wantSince: time.Date(2025, 6, 15, 0, 0, 0, 0, loc),
		},
		{
			name:      "until covers the whole day",
			until:     "2025-06-15",
			wantUntil: time.Date(2025, 6, 15, 23, 59, 59, 999999999, loc),
		},
		{
			name:      "full range",
			since:     "2025-06-01",
			until:     "2025-06-30",
			wantSince: time.Date(2025, 6, 1, 0, 0, 0, 0, loc),
			wantUntil: time.Date(2025, 6, 30, 23, 59, 59, 999999999, loc),
		},
		{
			name:    "until before since",
			since:   "2025-06-30",
			until:   "2025-06-01",
			wantErr: true,
		},
		{
			name:    "bad since",
			since:   "June 15th",
			wantErr: true,
		},
		{
			name:    "bad until",
			until:   "2025-13-40",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &reportCommand{since: tt.since, until: tt.until}

			since, until, err := c.parseRange(loc)
			if tt.wantErr {
				if err == nil {
					t.Error("parseRange() succeeded, want error")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseRange() error: %v", err)
			}
			if !since.Equal(tt.wantSince) {
				t.Errorf("since = %v, want %v", since, tt.wantSince)
			}
			if !until.Equal(tt.wantUntil) {
				t.Errorf("until = %v, want %v", until, tt.wantUntil)
			}
		})
	}
}

func TestParseRangeTimezone(t *testing.T) {
	plus5 := time.FixedZone("UTC+5", 5*3600)
	c := &reportCommand{since: "2025-06-15"}

	since, _, err := c.parseRange(plus5)
	if err != nil {
		t.Fatalf("parseRange() error: %v", err)
	}

	// Midnight in the report timezone, not UTC.
	want := time.Date(2025, 6, 15, 0, 0, 0, 0, plus5)
	if !since.Equal(want) {
		t.Errorf("since = %v, want %v", since, want)
	}
}

func TestTailBuckets(t *testing.T) {
	buckets := []aggregator.Bucket{
		{Key: "2025-06-13"},
		{Key: "2025-06-14"},
		{Key: "2025-06-15"},
	}

	got := tailBuckets(buckets, 2)
	if len(got) != 2 || got[0].Key != "2025-06-14" {
		t.Errorf("tailBuckets(3, 2) = %+v", got)
	}

	got = tailBuckets(buckets, 5)
	if len(got) != 3 {
		t.Errorf("tailBuckets(3, 5) = %d buckets, want all 3", len(got))
	}

	if got := tailBuckets(nil, 3); len(got) != 0 {
		t.Errorf("tailBuckets(nil) = %+v, want empty", got)
	}
}

func TestActiveBlocks(t *testing.T) {
	blocks := []aggregator.Block{
		{SessionID: "old"},
		{SessionID: "live", Active: true},
		{SessionID: "done"},
	}

	got := activeBlocks(blocks)
	if len(got) != 1 || got[0].SessionID != "live" {
		t.Errorf("activeBlocks() = %+v, want only the active block", got)
	}

	if got := activeBlocks(nil); len(got) != 0 {
		t.Errorf("activeBlocks(nil) = %+v, want empty", got)
	}
}

func TestReportCommandFormatter(t *testing.T) {
	tests := []struct {
		format string
		want   string
	}{
		{"", "*display.tableFormatter"},
		{"table", "*display.tableFormatter"},
		{"json", "*display.jsonFormatter"},
		{"simple", "*display.simpleFormatter"},
	}

	for _, tt := range tests {
		c := &reportCommand{format: tt.format}
		if got := fmt.Sprintf("%T", c.formatter()); got != tt.want {
			t.Errorf("formatter(%q) = %s, want %s", tt.format, got, tt.want)
		}
	}
}

func TestNoUsageData(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "bare sentinel",
			err:  discovery.ErrNoUsableSources,
			want: true,
		},
		{
			name: "wrapped once",
			err:  fmt.Errorf("scan failed: %w", discovery.ErrNoUsableSources),
			want: true,
		},
		{
			name: "wrapped twice as the pipeline does",
			err:  fmt.Errorf("discovery failed: %w", fmt.Errorf("no usable source directories: %w", discovery.ErrNoUsableSources)),
			want: true,
		},
		{
			name: "unrelated error",
			err:  fmt.Errorf("disk on fire"),
			want: false,
		},
		{
			name: "nil",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := noUsageData(tt.err); got != tt.want {
				t.Errorf("noUsageData(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
