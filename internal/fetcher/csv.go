// Package fetcher reads tabular listing exports (CSV and XLSX) into header-keyed rows.
package fetcher

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// CSVOptions configures the streaming CSV parser.
type CSVOptions struct {
	Delimiter rune            // default ','
	HasHeader bool            // if true, first row is skipped but sent to HeaderCh
	HeaderCh  chan<- []string // optional: receives the header row
	Comment   rune            // comment character (0 = none)
	// LazyQuotes re-reads a row rejected for a bare quote with lenient
	// quoting confined to that row. Quoting stays strict everywhere else, so
	// one stray quote can never swallow the rows after it.
	LazyQuotes bool
	TrimSpace  bool
	// OnMalformed, when set, receives row-level parse errors and the stream
	// continues with the next physical line instead of failing. Line numbers
	// are relative to the start of the input.
	OnMalformed func(err *csv.ParseError)
}

// StreamCSV reads a CSV file and sends rows to a channel.
// Caller must consume the returned row channel. Errors are sent on the error channel.
// Both channels are closed when processing completes.
//
// The input is buffered in memory so parsing can resume on the line after a
// malformed row.
func StreamCSV(ctx context.Context, r io.Reader, opts CSVOptions) (<-chan []string, <-chan error) {
	rowCh := make(chan []string, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(rowCh)
		defer close(errCh)

		data, err := io.ReadAll(r)
		if err != nil {
			errCh <- eris.Wrap(err, "csv: read input")
			return
		}
		starts := lineStarts(data)

		first := true
		emit := func(record []string) bool {
			if opts.TrimSpace {
				for i, field := range record {
					record[i] = strings.TrimSpace(field)
				}
			}

			if first && opts.HasHeader {
				first = false
				if opts.HeaderCh != nil {
					select {
					case opts.HeaderCh <- record:
					case <-ctx.Done():
						errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled sending header")
						return false
					}
				}
				return true
			}
			first = false

			select {
			case rowCh <- record:
				return true
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
				return false
			}
		}

		// base is the 0-based physical line the current reader starts on.
		base := 0
		for base < len(starts) {
			reader := newCSVReader(bytes.NewReader(data[starts[base]:]), opts, false)
			next := len(starts)

			for {
				if ctx.Err() != nil {
					errCh <- eris.Wrap(ctx.Err(), "csv: context cancelled")
					return
				}

				record, err := reader.Read()
				if err == io.EOF {
					break
				}
				if err == nil {
					if !emit(record) {
						return
					}
					continue
				}

				var parseErr *csv.ParseError
				if !errors.As(err, &parseErr) {
					errCh <- eris.Wrap(err, "csv: read row")
					return
				}
				startLine := base + parseErr.StartLine - 1
				endLine := base + parseErr.Line - 1

				if opts.LazyQuotes && errors.Is(parseErr.Err, csv.ErrBareQuote) {
					if record, ok := rereadLenient(data, starts, startLine, endLine, opts); ok {
						if !emit(record) {
							return
						}
						next = endLine + 1
						break
					}
				}

				if opts.OnMalformed == nil {
					errCh <- eris.Wrap(err, "csv: read row")
					return
				}
				abs := *parseErr
				abs.StartLine = startLine + 1
				abs.Line = endLine + 1
				opts.OnMalformed(&abs)
				next = startLine + 1
				break
			}
			base = next
		}
	}()

	return rowCh, errCh
}

func newCSVReader(r io.Reader, opts CSVOptions, lazy bool) *csv.Reader {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = lazy
	reader.FieldsPerRecord = -1 // allow variable fields
	return reader
}

// rereadLenient parses physical lines from..to (0-based, inclusive) as a
// single record with lazy quoting.
func rereadLenient(data []byte, starts []int, from, to int, opts CSVOptions) ([]string, bool) {
	end := len(data)
	if to+1 < len(starts) {
		end = starts[to+1]
	}
	record, err := newCSVReader(bytes.NewReader(data[starts[from]:end]), opts, true).Read()
	if err != nil {
		return nil, false
	}
	return record, true
}

// lineStarts returns the byte offset of every physical line in data.
func lineStarts(data []byte) []int {
	if len(data) == 0 {
		return nil
	}
	starts := []int{0}
	for i, b := range data {
		if b == '\n' && i+1 < len(data) {
			starts = append(starts, i+1)
		}
	}
	return starts
}
