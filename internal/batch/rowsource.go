// Package batch runs many analysis requests through a bounded worker pool,
// deduplicating identical rows and prefetching shared quote data.
package batch

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Row is one parsed batch input line.
type Row struct {
	Ticker string
	Date   string // YYYY-MM-DD, empty means today
	Model  string // empty means the configured default
}

// RowSource yields the rows of one batch input.
type RowSource interface {
	Rows() ([]Row, error)
}

// NewRowSource selects a parser for the uploaded file. Only CSV is
// supported; spreadsheet formats are rejected here so the executor never
// sees them.
func NewRowSource(filename string, r io.Reader) (RowSource, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xls":
		return nil, fmt.Errorf("spreadsheet input is not supported, export %q as CSV", filename)
	default:
		return &csvSource{reader: r}, nil
	}
}

// csvSource parses `ticker, date, [model]` rows. A leading header row is
// detected by its first cell and skipped.
type csvSource struct {
	reader io.Reader
}

func (s *csvSource) Rows() ([]Row, error) {
	parser := csv.NewReader(s.reader)
	parser.FieldsPerRecord = -1
	parser.TrimLeadingSpace = true

	records, err := parser.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse batch CSV: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if len(record) == 0 {
			continue
		}
		first := strings.TrimSpace(record[0])
		if first == "" {
			continue
		}
		if i == 0 && strings.EqualFold(first, "ticker") {
			continue
		}

		row := Row{Ticker: first}
		if len(record) > 1 {
			row.Date = strings.TrimSpace(record[1])
		}
		if len(record) > 2 {
			row.Model = strings.TrimSpace(record[2])
		}
		rows = append(rows, row)
	}
	return rows, nil
}
