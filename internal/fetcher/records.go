package fetcher

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Row maps a header name to the cell value of one data row.
type Row map[string]string

// Table is a fully read export: its header and header-keyed data rows.
type Table struct {
	Header []string
	Rows   []Row
	// Malformed counts rows dropped because the parser could not read them.
	Malformed int
}

// ReadRecords reads a CSV or XLSX export into header-keyed rows. The format
// is chosen by file extension; anything other than .xlsx is parsed as CSV
// with variable column counts. A CSV row with a bare quote is re-read
// leniently; any other quoting error skips that row and is counted in
// Table.Malformed.
func ReadRecords(ctx context.Context, path string) (*Table, error) {
	var (
		raw       [][]string
		malformed int
		err       error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		if _, statErr := os.Stat(path); statErr != nil {
			return nil, eris.Wrapf(statErr, "fetcher: open %s", path)
		}
		raw, err = ReadXLSX(path)
	default:
		raw, malformed, err = readCSV(ctx, path)
	}
	if err != nil {
		return nil, err
	}

	t := tableFromRows(raw)
	t.Malformed = malformed
	if len(t.Rows) == 0 {
		return nil, eris.Errorf("fetcher: %s parsed but contained 0 rows", path)
	}
	return t, nil
}

func readCSV(ctx context.Context, path string) ([][]string, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, eris.Wrapf(err, "fetcher: open %s", path)
	}
	defer f.Close() //nolint:errcheck

	malformed := 0
	rowCh, errCh := StreamCSV(ctx, f, CSVOptions{
		LazyQuotes: true,
		OnMalformed: func(perr *csv.ParseError) {
			malformed++
			zap.L().Debug("fetcher: skipping malformed csv row",
				zap.Int("line", perr.Line),
				zap.Error(perr.Err),
			)
		},
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	for err := range errCh {
		if err != nil {
			return nil, malformed, err
		}
	}
	return rows, malformed, nil
}

// tableFromRows treats the first non-blank row as the header and maps every
// later non-blank row onto it. Short rows are padded with empty values and
// cells beyond the header are dropped. A repeated header name keeps its
// first column.
func tableFromRows(raw [][]string) *Table {
	t := &Table{}
	for _, cells := range raw {
		if isBlank(cells) {
			continue
		}
		if t.Header == nil {
			t.Header = cleanHeader(cells)
			continue
		}
		t.Rows = append(t.Rows, mapRow(t.Header, cells))
	}
	return t
}

// mapRow pairs each header with the corresponding value in the row.
func mapRow(headers []string, cells []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		if _, dup := row[h]; dup {
			continue
		}
		if i < len(cells) {
			row[h] = cells[i]
		} else {
			row[h] = ""
		}
	}
	return row
}

func cleanHeader(cells []string) []string {
	header := make([]string, len(cells))
	for i, c := range cells {
		if i == 0 {
			c = strings.TrimPrefix(c, "\ufeff")
		}
		header[i] = strings.TrimSpace(c)
	}
	return header
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
