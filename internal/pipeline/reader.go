package pipeline

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/geraldbahati/unbowed/internal/chunker"
	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/geraldbahati/unbowed/internal/parser"
	"github.com/geraldbahati/unbowed/internal/stats"
	"github.com/geraldbahati/unbowed/internal/timetable"
	"github.com/google/uuid"
)

// BatchDocName names the synthetic document that owns batch chunks.
const BatchDocName = "batch"

// ReaderOptions configures a Reader.
type ReaderOptions struct {
	Parser parser.Options
	// Tokenizer counts .txt chunk sizes in tokens; nil counts characters.
	Tokenizer chunker.Tokenizer
	// TimetableTitle is written above formatted timetables.
	TimetableTitle string
	// Stats receives extraction and chunking latencies; may be nil.
	Stats *stats.Recorder
}

// Reader turns documents into chunks.
type Reader struct {
	log       *slog.Logger
	opts      parser.Options
	tokenizer chunker.Tokenizer
	formatter *timetable.Formatter
	stats     *stats.Recorder
}

func NewReader(log *slog.Logger, opts ReaderOptions) *Reader {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Reader{
		log:       log,
		opts:      opts.Parser,
		tokenizer: opts.Tokenizer,
		formatter: &timetable.Formatter{Title: opts.TimetableTitle},
		stats:     opts.Stats,
	}
}

// Upload pairs a document with its bytes. Nil Data means the document is
// read from Doc.Path.
type Upload struct {
	Doc  *document.Document
	Data []byte
}

func (u Upload) open() (io.ReadCloser, error) {
	if u.Data != nil {
		return io.NopCloser(bytes.NewReader(u.Data)), nil
	}
	if u.Doc.Path == "" {
		return nil, fmt.Errorf("document %s has neither data nor path", u.Doc.Name)
	}
	return os.Open(u.Doc.Path)
}

func (u Upload) bytes() ([]byte, error) {
	if u.Data != nil {
		return u.Data, nil
	}
	rc, err := u.open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// Result is the outcome for one document.
type Result struct {
	Doc    *document.Document
	Chunks []document.Chunk
	Err    error

	// MIMEType is the type the document was extracted as. It is sniffed
	// when the upload carried none; Doc is never modified.
	MIMEType string
}

// Failed reports whether the document could not be processed.
func (r Result) Failed() bool {
	return r.Err != nil
}

// BatchResult holds the chunks of a concatenated batch and the per-document
// extraction outcomes. Results carry no chunks: batch chunks span
// documents.
type BatchResult struct {
	Chunks  []document.Chunk
	Results []Result
}

// ReadDoc chunks the document at doc.Path.
func (rd *Reader) ReadDoc(doc *document.Document, cfg chunker.Config) ([]document.Chunk, error) {
	return rd.read(Upload{Doc: doc}, cfg)
}

// ReadStream chunks a document whose bytes arrive as a stream.
func (rd *Reader) ReadStream(doc *document.Document, r io.Reader, cfg chunker.Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return rd.dispatch(doc, r, cfg)
}

func (rd *Reader) read(u Upload, cfg chunker.Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rc, err := u.open()
	if err != nil {
		return nil, &parser.ExtractionError{File: u.Doc.Name, Format: parser.FormatFromFilename(u.Doc.Name), Err: err}
	}
	defer rc.Close()
	return rd.dispatch(u.Doc, rc, cfg)
}

// dispatch picks the extractor and chunker from the document's suffix.
// Anything unrecognized is treated as line-oriented text.
func (rd *Reader) dispatch(doc *document.Document, r io.Reader, cfg chunker.Config) ([]document.Chunk, error) {
	name := doc.Name
	if doc.Path != "" {
		name = filepath.Base(doc.Path)
	}
	format := parser.FormatFromFilename(name)

	start := time.Now()
	defer func() { rd.stats.Record(format.String(), time.Since(start)) }()

	switch format {
	case parser.FormatPDF:
		text, err := rd.extract(format, r, name)
		if err != nil {
			return nil, err
		}
		return chunker.ChunkUnits(text.Units, doc, cfg, chunker.Pages)

	case parser.FormatPPTX:
		text, err := rd.extract(format, r, name)
		if err != nil {
			return nil, err
		}
		return chunker.ChunkUnits(text.Units, doc, cfg, chunker.Slides)

	case parser.FormatText, parser.FormatHTML, parser.FormatMarkdown:
		text, err := rd.extract(format, r, name)
		if err != nil {
			return nil, err
		}
		return rd.chunkText(text.String(), doc, cfg)

	case parser.FormatDOCX, parser.FormatDOC, parser.FormatPPT, parser.FormatXLS, parser.FormatXLSX:
		text, err := rd.extract(format, r, name)
		if err != nil {
			return nil, err
		}
		return chunker.ChunkText(text.String(), doc, cfg)

	case parser.FormatCSV:
		return rd.readTimetable(doc, r, cfg)

	default:
		text, err := (&parser.LineParser{}).Extract(r, name)
		if err != nil {
			return nil, &parser.ExtractionError{File: name, Format: format, Err: err}
		}
		return chunker.ChunkUnits(text.Units, doc, cfg, chunker.Lines)
	}
}

func (rd *Reader) extract(format parser.Format, r io.Reader, name string) (*document.Text, error) {
	return parser.Extract(format, rd.opts, r, name)
}

// chunkText counts in tokens when a tokenizer is configured.
func (rd *Reader) chunkText(text string, doc *document.Document, cfg chunker.Config) ([]document.Chunk, error) {
	if rd.tokenizer != nil {
		return chunker.ChunkTokens(text, doc, cfg, rd.tokenizer)
	}
	return chunker.ChunkText(text, doc, cfg)
}

func (rd *Reader) readTimetable(doc *document.Document, r io.Reader, cfg chunker.Config) ([]document.Chunk, error) {
	table, err := (&parser.CSVParser{}).Table(r)
	if err != nil {
		return nil, &parser.ExtractionError{File: doc.Name, Format: parser.FormatCSV, Err: err}
	}
	text, err := rd.formatter.Format(table)
	if err != nil {
		return nil, fmt.Errorf("timetable %s: %w", doc.Name, err)
	}
	return chunker.SnapChunk(text, doc, cfg)
}

// ReadAll chunks every upload on its own. A failing document is logged and
// reported in its Result without affecting the others.
func (rd *Reader) ReadAll(uploads []Upload, cfg chunker.Config) ([]Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	results := make([]Result, 0, len(uploads))
	for _, u := range uploads {
		chunks, err := rd.read(u, cfg)
		if err != nil {
			rd.log.Error("document failed", "file", u.Doc.Name, "error", err)
		}
		results = append(results, Result{Doc: u.Doc, Chunks: chunks, Err: err})
	}
	return results, nil
}

// Batch extracts every upload by its MIME type, concatenates the text in
// upload order and chunks the whole buffer once. Document boundaries are
// not preserved. Uploads without a MIME type are sniffed.
func (rd *Reader) Batch(uploads []Upload, cfg chunker.Config) (BatchResult, error) {
	if err := cfg.Validate(); err != nil {
		return BatchResult{}, err
	}

	var (
		buf strings.Builder
		res BatchResult
	)
	for _, u := range uploads {
		text, mime, err := rd.extractUpload(u)
		if err != nil {
			rd.log.Error("extraction failed", "file", u.Doc.Name, "error", err)
			res.Results = append(res.Results, Result{Doc: u.Doc, Err: err, MIMEType: mime})
			continue
		}
		buf.WriteString(text)
		res.Results = append(res.Results, Result{Doc: u.Doc, MIMEType: mime})
	}

	batchDoc := &document.Document{ID: uuid.NewString(), Name: BatchDocName}
	chunks, err := chunker.ChunkText(buf.String(), batchDoc, cfg)
	if err != nil {
		return res, err
	}
	res.Chunks = chunks
	return res, nil
}

// extractUpload returns the upload's text and the MIME type it was read as.
// u.Doc is shared with job snapshots and stays read-only here.
func (rd *Reader) extractUpload(u Upload) (string, string, error) {
	mime := u.Doc.MIMEType
	data, err := u.bytes()
	if err != nil {
		return "", mime, &parser.ExtractionError{File: u.Doc.Name, Err: err}
	}

	format := parser.FormatFromMIME(mime)
	if mime == "" {
		format, mime = parser.DetectFormat(data, u.Doc.Name)
	}
	if format == parser.FormatUnknown {
		return "", mime, fmt.Errorf("%s: %w: %q", u.Doc.Name, parser.ErrUnsupportedFormat, mime)
	}

	start := time.Now()
	text, err := parser.Extract(format, rd.opts, bytes.NewReader(data), u.Doc.Name)
	rd.stats.Record(format.String(), time.Since(start))
	if err != nil {
		return "", mime, err
	}
	return text.String(), mime, nil
}

// IsUnsupported reports whether err stems from an unrecognized format.
func IsUnsupported(err error) bool {
	return errors.Is(err, parser.ErrUnsupportedFormat)
}
