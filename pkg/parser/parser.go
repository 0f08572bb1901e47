// Package parser turns JSONL log files into streams of raw usage events.
//
// Files are read line by line, so arbitrarily large logs process
// without loading them whole. Each line is parsed independently: a
// malformed line is counted and skipped, never aborting the file, and
// end-of-file is normal termination. The returned offset counts the
// bytes actually consumed, including line delimiters, so a later call
// can resume exactly where this one stopped.
//
// Example usage:
//
//	p := parser.New()
//	stats, offset, err := p.ParseFile("/path/to/session.jsonl", 0, func(raw event.RawEvent, line int) {
//	    // handle one event
//	})
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/0xmhha/usagemeter/pkg/event"
)

// MaxLineLength is the maximum allowed line length (1MB). Longer lines
// are reported as malformed.
const MaxLineLength = 1024 * 1024

// LineFunc receives each successfully parsed line with its 1-indexed
// line number.
type LineFunc func(raw event.RawEvent, line int)

// Stats summarizes one file pass.
type Stats struct {
	// Lines is the number of non-empty lines visited.
	Lines int

	// Parsed is the number of lines that yielded a raw event.
	Parsed int

	// Malformed is the number of lines that failed JSON parsing.
	Malformed int

	// MalformedSamples holds a few truncated examples of bad lines.
	MalformedSamples []string
}

// maxMalformedSamples bounds how many bad-line examples are retained.
const maxMalformedSamples = 3

// Parser streams raw usage events out of JSONL files.
type Parser interface {
	// ParseFile reads the file from the given byte offset, invoking fn
	// once per parseable line.
	//
	// Returns per-file stats, the byte offset after the last complete
	// line read, and an error only when the file itself cannot be read.
	// Malformed lines never fail the file; they are counted in stats.
	//
	// Thread-safety: safe to call concurrently with different files.
	ParseFile(path string, offset int64, fn LineFunc) (Stats, int64, error)

	// ParseLine parses a single JSONL line into a raw event.
	ParseLine(line []byte) (*event.RawEvent, error)
}

type jsonlParser struct{}

// New creates a new Parser.
func New() Parser {
	return &jsonlParser{}
}

// ParseFile implements Parser.ParseFile.
func (p *jsonlParser) ParseFile(path string, offset int64, fn LineFunc) (Stats, int64, error) {
	var stats Stats

	f, err := os.Open(path) // #nosec G304 -- path comes from directory discovery
	if err != nil {
		if os.IsNotExist(err) {
			return stats, 0, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return stats, 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if offset > 0 {
		if _, seekErr := f.Seek(offset, io.SeekStart); seekErr != nil {
			return stats, 0, fmt.Errorf("failed to seek to offset %d: %w", offset, seekErr)
		}
	}

	br := bufio.NewReaderSize(f, 64*1024)

	read := offset
	lineNum := 0

	for {
		// ReadBytes keeps the delimiter, so the offset advances by the
		// exact bytes consumed. Reconstructing it from trimmed line
		// lengths would drop the \r of CRLF files and make resumed
		// reads land mid-line.
		chunk, readErr := br.ReadBytes('\n')
		read += int64(len(chunk))

		line := bytes.TrimRight(chunk, "\r\n")
		if len(line) > 0 {
			lineNum++
			stats.Lines++

			if len(line) > MaxLineLength {
				stats.Malformed++
				if len(stats.MalformedSamples) < maxMalformedSamples {
					stats.MalformedSamples = append(stats.MalformedSamples, truncate(string(line), 100))
				}
			} else if raw, parseErr := p.ParseLine(line); parseErr != nil {
				stats.Malformed++
				if len(stats.MalformedSamples) < maxMalformedSamples {
					stats.MalformedSamples = append(stats.MalformedSamples, truncate(string(line), 100))
				}
			} else {
				stats.Parsed++
				fn(*raw, lineNum)
			}
		}

		if readErr != nil {
			// A read failure mid-file should not discard the events
			// parsed before it.
			if readErr != io.EOF {
				stats.Malformed++
			}
			break
		}
	}

	return stats, read, nil
}

// ParseLine implements Parser.ParseLine.
func (p *jsonlParser) ParseLine(line []byte) (*event.RawEvent, error) {
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedJSON)
	}

	var raw event.RawEvent
	if err := json.Unmarshal(line, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedJSON, err)
	}

	return &raw, nil
}

// truncate shortens s to at most n bytes for warning samples.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
