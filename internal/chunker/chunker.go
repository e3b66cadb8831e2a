package chunker

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/geraldbahati/unbowed/internal/document"
)

// ErrInvalidConfig is returned when a Config would never advance the window.
var ErrInvalidConfig = errors.New("invalid chunk config")

// Config controls chunking behavior.
type Config struct {
	ChunkChars int // Maximum chunk length in characters (tokens for ChunkTokens).
	Overlap    int // Length shared by consecutive chunks.
}

// DefaultConfig returns the per-document defaults.
func DefaultConfig() Config {
	return Config{
		ChunkChars: 3000,
		Overlap:    100,
	}
}

// Validate rejects configs where the window could not make progress.
func (c Config) Validate() error {
	if c.ChunkChars <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidConfig, c.ChunkChars)
	}
	if c.Overlap < 0 {
		return fmt.Errorf("%w: overlap must not be negative, got %d", ErrInvalidConfig, c.Overlap)
	}
	if c.Overlap >= c.ChunkChars {
		return fmt.Errorf("%w: overlap %d must be smaller than chunk size %d", ErrInvalidConfig, c.Overlap, c.ChunkChars)
	}
	return nil
}

// Locator names the kind of unit a chunk range refers to.
type Locator string

const (
	Pages  Locator = "pages"
	Lines  Locator = "lines"
	Slides Locator = "slides"
)

// FormatRange renders a locator range as "first-last", or "first" when the
// range covers a single unit.
func FormatRange(first, last int) string {
	if first == last {
		return strconv.Itoa(first)
	}
	return strconv.Itoa(first) + "-" + strconv.Itoa(last)
}

// ChunkUnits slices page or line units into overlapping chunks named after
// the units each chunk was cut from. A document that never fills a window is
// emitted as a single chunk, even when it is no longer than the overlap.
func ChunkUnits(units []document.Unit, doc *document.Document, cfg Config, loc Locator) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []document.Chunk
	w := &window[rune]{
		size:    cfg.ChunkChars,
		overlap: cfg.Overlap,
		emit: func(part []rune, first, last int) {
			chunks = append(chunks, document.Chunk{
				Text: string(part),
				Name: fmt.Sprintf("%s %s %s", docName(doc), loc, FormatRange(first, last)),
				Doc:  doc,
			})
		},
	}
	for _, u := range units {
		w.add([]rune(u.Text), u.Number)
	}
	w.flush()

	return chunks, nil
}

// ChunkText slices text without locator tracking; chunks are numbered
// sequentially from zero. Text that never fills a window becomes one chunk,
// even when it is no longer than the overlap.
func ChunkText(text string, doc *document.Document, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var chunks []document.Chunk
	w := &window[rune]{
		size:    cfg.ChunkChars,
		overlap: cfg.Overlap,
		emit: func(part []rune, _, _ int) {
			chunks = append(chunks, document.Chunk{
				Text: string(part),
				Name: fmt.Sprintf("%s chunk %d", docName(doc), len(chunks)),
				Doc:  doc,
			})
		},
	}
	w.add([]rune(text), 1)
	w.flush()

	return chunks, nil
}

// SnapChunk cuts text into consecutive, non-overlapping parts of at most
// cfg.ChunkChars characters. Each cut is moved back to the last newline in
// the window when there is one, so a paragraph is not split mid-line.
func SnapChunk(text string, doc *document.Document, cfg Config) ([]document.Chunk, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runes := []rune(text)
	var chunks []document.Chunk
	for start := 0; start < len(runes); {
		end := start + cfg.ChunkChars
		if end >= len(runes) {
			end = len(runes)
		} else if nl := lastNewline(runes[start:end]); nl > 0 {
			end = start + nl
		}
		chunks = append(chunks, document.Chunk{
			Text: string(runes[start:end]),
			Name: fmt.Sprintf("%s - Timetable Part %d", docName(doc), len(chunks)+1),
			Doc:  doc,
		})
		start = end
	}
	return chunks, nil
}

// lastNewline returns the index of the last '\n' in rs, or -1.
func lastNewline(rs []rune) int {
	for i := len(rs) - 1; i >= 0; i-- {
		if rs[i] == '\n' {
			return i
		}
	}
	return -1
}

func docName(doc *document.Document) string {
	if doc == nil {
		return ""
	}
	return doc.Name
}
