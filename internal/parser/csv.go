package parser

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/timetable"
)

// CSVParser reads comma-separated files. Extract returns one unit per
// record; Table loads the grid for the timetable formatter.
type CSVParser struct{}

func (p *CSVParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	records, err := readRecords(r)
	if err != nil {
		return nil, err
	}
	text := &document.Text{}
	for _, rec := range records {
		text.Append(strings.Join(rec, ", ") + "\n")
	}
	return text, nil
}

// Table reads the first record as the header and the rest as rows.
func (p *CSVParser) Table(r io.Reader) (timetable.Table, error) {
	records, err := readRecords(r)
	if err != nil {
		return timetable.Table{}, err
	}
	if len(records) == 0 {
		return timetable.Table{}, fmt.Errorf("parse csv: no header row")
	}
	return timetable.Table{Header: records[0], Rows: records[1:]}, nil
}

func readRecords(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	return records, nil
}
