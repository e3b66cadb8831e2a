package document

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Document identifies one submitted source file.
type Document struct {
	ID       string // Assigned at creation
	Name     string // Display name used as the chunk name prefix (docname)
	Path     string // File-system path; empty when the document arrived as a stream
	MIMEType string // Optional type discriminator supplied by the uploader
}

// New creates a Document for the file at path. An empty name defaults to the
// file's base name.
func New(path, name string) *Document {
	if name == "" {
		name = filepath.Base(path)
	}
	return &Document{
		ID:   uuid.NewString(),
		Name: name,
		Path: path,
	}
}

// Unit is one page, slide, line or paragraph of extracted text.
type Unit struct {
	Number int    // 1-based position within the document
	Text   string // Extracted text, including any trailing newline
}

// Text is the output of a format extractor: the ordered units of a document.
type Text struct {
	Units []Unit
}

// String concatenates every unit in order.
func (t *Text) String() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, u := range t.Units {
		sb.WriteString(u.Text)
	}
	return sb.String()
}

// Append adds a unit numbered after the last one.
func (t *Text) Append(text string) {
	t.Units = append(t.Units, Unit{Number: len(t.Units) + 1, Text: text})
}

// Chunk is a bounded slice of document text ready for embedding.
type Chunk struct {
	Text string    // At most the configured chunk size
	Name string    // Document name plus locator, e.g. "notes.pdf pages 2-3"
	Doc  *Document // Owning document; attribution only
}

// DocName returns the owning document's name, or "" when detached.
func (c Chunk) DocName() string {
	if c.Doc == nil {
		return ""
	}
	return c.Doc.Name
}
