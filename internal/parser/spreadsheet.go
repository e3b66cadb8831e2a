package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"github.com/tsawler/tabula/xlsx"
)

// SheetMode selects how a spreadsheet is rendered as text.
type SheetMode string

const (
	// SheetJSON renders every sheet as nested lesson/venue objects under a
	// top-level "timetable" key.
	SheetJSON SheetMode = "json"
	// SheetCSV renders every sheet as CSV, sheets separated by a blank line.
	SheetCSV SheetMode = "csv"
)

// ParseSheetMode accepts "json", "csv", or "" (json).
func ParseSheetMode(s string) (SheetMode, error) {
	switch SheetMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", SheetJSON:
		return SheetJSON, nil
	case SheetCSV:
		return SheetCSV, nil
	}
	return "", fmt.Errorf("unknown sheet mode %q", s)
}

// SpreadsheetParser reads .xlsx natively and .xls through an external
// converter. The first row of each sheet holds the column labels; blank
// cells are filled from the cell above.
type SpreadsheetParser struct {
	Mode       SheetMode
	XLSCommand string
}

// sheet is a spreadsheet tab as a plain string grid.
type sheet struct {
	Name string
	Rows [][]string
}

func (p *SpreadsheetParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	var (
		sheets []sheet
		err    error
	)
	if FormatFromFilename(filename) == FormatXLS {
		sheets, err = p.readXLS(r)
	} else {
		sheets, err = readXLSX(r)
	}
	if err != nil {
		return nil, err
	}

	for i := range sheets {
		sheets[i].Rows = fillDown(sheets[i].Rows)
	}

	text := &document.Text{}
	if p.Mode == SheetCSV {
		for i, s := range sheets {
			out, err := renderCSV(s)
			if err != nil {
				return nil, fmt.Errorf("sheet %s: %w", s.Name, err)
			}
			if i > 0 {
				out = "\n" + out
			}
			text.Append(out)
		}
		return text, nil
	}

	out, err := renderJSON(sheets)
	if err != nil {
		return nil, err
	}
	text.Append(out)
	return text, nil
}

func readXLSX(r io.Reader) ([]sheet, error) {
	path, _, cleanup, err := spool(r, "unbowed-xlsx-*.xlsx")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	book, err := xlsx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer book.Close()

	sheets := make([]sheet, 0, book.SheetCount())
	for i := 0; i < book.SheetCount(); i++ {
		xs, err := book.Sheet(i)
		if err != nil {
			return nil, fmt.Errorf("sheet %d: %w", i+1, err)
		}
		s := sheet{Name: xs.Name, Rows: make([][]string, len(xs.Rows))}
		for ri, row := range xs.Rows {
			cells := make([]string, len(row))
			for ci, c := range row {
				cells[ci] = c.Value
			}
			s.Rows[ri] = cells
		}
		sheets = append(sheets, s)
	}
	return sheets, nil
}

// readXLS runs the converter, which prints every sheet as CSV followed by
// a form feed. Sheets are named by position.
func (p *SpreadsheetParser) readXLS(r io.Reader) ([]sheet, error) {
	out, err := convert(r, orDefault(p.XLSCommand, "xls2csv"), nil)
	if err != nil {
		return nil, err
	}

	var sheets []sheet
	for i, part := range strings.Split(string(out), "\f") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		cr := csv.NewReader(strings.NewReader(part))
		cr.LazyQuotes = true
		cr.FieldsPerRecord = -1
		rows, err := cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("parse sheet %d: %w", i+1, err)
		}
		sheets = append(sheets, sheet{Name: "Sheet" + strconv.Itoa(i+1), Rows: rows})
	}
	return sheets, nil
}

// fillDown pads rows to a common width, drops blank data rows and copies
// the last non-blank value of each column into the blank cells below it.
// Row 0 is the header and is left as is.
func fillDown(rows [][]string) [][]string {
	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	out := make([][]string, 0, len(rows))
	var last []string
	for i, row := range rows {
		cells := make([]string, width)
		blank := true
		for j := range cells {
			if j < len(row) {
				cells[j] = strings.TrimSpace(row[j])
			}
			if cells[j] != "" {
				blank = false
			}
		}
		if i == 0 {
			out = append(out, cells)
			continue
		}
		if blank {
			continue
		}
		for j := range cells {
			if cells[j] == "" && last != nil {
				cells[j] = last[j]
			}
		}
		last = cells
		out = append(out, cells)
	}
	return out
}

func columnLabels(header []string) []string {
	labels := make([]string, len(header))
	for i, h := range header {
		if h == "" {
			h = "Unnamed: " + strconv.Itoa(i)
		}
		labels[i] = h
	}
	return labels
}

type lessonJSON struct {
	Lesson string `json:"lesson"`
	Venue  string `json:"venue"`
}

// renderJSON builds {"timetable": {sheet: {day: {slot: {lesson, venue}}}}}
// with keys in source order, indented four spaces.
func renderJSON(sheets []sheet) (string, error) {
	doc := `{"timetable":{}}`
	var err error
	for _, s := range sheets {
		sheetPath := "timetable." + escapePath(s.Name)
		if doc, err = sjson.SetRaw(doc, sheetPath, "{}"); err != nil {
			return "", fmt.Errorf("sheet %s: %w", s.Name, err)
		}
		if len(s.Rows) == 0 {
			continue
		}
		labels := columnLabels(s.Rows[0])
		for ri, row := range s.Rows[1:] {
			day := row[0]
			if day == "" {
				day = strconv.Itoa(ri + 2)
			}
			rowPath := sheetPath + "." + escapePath(day)
			if doc, err = sjson.SetRaw(doc, rowPath, "{}"); err != nil {
				return "", fmt.Errorf("sheet %s row %s: %w", s.Name, day, err)
			}
			for ci := 1; ci < len(row); ci++ {
				if row[ci] == "" {
					continue
				}
				cell := splitLesson(row[ci])
				if doc, err = sjson.Set(doc, rowPath+"."+escapePath(labels[ci]), cell); err != nil {
					return "", fmt.Errorf("sheet %s row %s: %w", s.Name, day, err)
				}
			}
		}
	}
	out := pretty.PrettyOptions([]byte(doc), &pretty.Options{Width: 80, Indent: "    "})
	return string(out), nil
}

// splitLesson takes the first two tokens as the lesson (one when that is
// all there is) and the third as the venue.
func splitLesson(cell string) lessonJSON {
	fields := strings.Fields(cell)
	var l lessonJSON
	switch {
	case len(fields) > 1:
		l.Lesson = fields[0] + " " + fields[1]
	case len(fields) == 1:
		l.Lesson = fields[0]
	}
	if len(fields) > 2 {
		l.Venue = fields[2]
	}
	return l
}

// escapePath escapes a key for use as one sjson path component.
func escapePath(key string) string {
	var sb strings.Builder
	for i, r := range key {
		switch r {
		case '.', '*', '?', '|', '#', '@', '\\', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		case ':':
			if i == 0 {
				sb.WriteByte('\\')
			}
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func renderCSV(s sheet) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if len(s.Rows) > 0 {
		if err := w.Write(columnLabels(s.Rows[0])); err != nil {
			return "", err
		}
		for _, row := range s.Rows[1:] {
			if err := w.Write(row); err != nil {
				return "", err
			}
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
