package parser

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/geraldbahati/unbowed/internal/document"
)

// ErrUnsupportedFormat is returned when no extractor handles a format.
var ErrUnsupportedFormat = errors.New("unsupported format")

// Extractor converts raw document bytes into ordered units of text.
type Extractor interface {
	Extract(r io.Reader, filename string) (*document.Text, error)
}

// ExtractionError reports a document that could not be converted to text.
type ExtractionError struct {
	File   string
	Format Format
	Err    error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s (%s): %v", e.File, e.Format, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Options configures the extractors returned by ForFormat.
type Options struct {
	// ForceGoPDF skips pdftotext and always uses the Go PDF reader.
	ForceGoPDF bool
	// SheetMode selects how spreadsheets are rendered.
	SheetMode SheetMode
	// Converter commands for legacy binary formats. Empty values use
	// antiword, catppt and xls2csv.
	DOCCommand string
	PPTCommand string
	XLSCommand string
}

// ForFormat returns the extractor for f.
func ForFormat(f Format, opts Options) (Extractor, error) {
	switch f {
	case FormatPDF:
		return &PDFParser{ForceGo: opts.ForceGoPDF}, nil
	case FormatDOCX:
		return &DOCXParser{}, nil
	case FormatPPTX:
		return &PPTXParser{}, nil
	case FormatDOC:
		return &LegacyParser{Command: orDefault(opts.DOCCommand, "antiword")}, nil
	case FormatPPT:
		return &LegacyParser{Command: orDefault(opts.PPTCommand, "catppt")}, nil
	case FormatXLS, FormatXLSX:
		return &SpreadsheetParser{
			Mode:       opts.SheetMode,
			XLSCommand: orDefault(opts.XLSCommand, "xls2csv"),
		}, nil
	case FormatText:
		return &TextParser{}, nil
	case FormatHTML:
		return &HTMLParser{}, nil
	case FormatMarkdown:
		return &MarkdownParser{}, nil
	case FormatCSV:
		return &CSVParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
	}
}

// Extract runs the extractor for f over r. Failures other than an
// unsupported format are returned as *ExtractionError.
func Extract(f Format, opts Options, r io.Reader, filename string) (*document.Text, error) {
	ex, err := ForFormat(f, opts)
	if err != nil {
		return nil, err
	}
	text, err := ex.Extract(r, filename)
	if err != nil {
		return nil, &ExtractionError{File: filename, Format: f, Err: err}
	}
	return text, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

// spool copies r to a temp file for libraries and converters that need a
// path or a ReaderAt. The returned cleanup removes the file.
func spool(r io.Reader, pattern string) (path string, size int64, cleanup func(), err error) {
	tmp, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", 0, nil, fmt.Errorf("create temp file: %w", err)
	}
	path = tmp.Name()
	cleanup = func() { os.Remove(path) }

	size, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		cleanup()
		return "", 0, nil, fmt.Errorf("write temp file: %w", err)
	}
	return path, size, cleanup, nil
}
