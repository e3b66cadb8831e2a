package parser

import (
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Format tags the kind of source document an extractor handles.
type Format int

const (
	FormatUnknown Format = iota
	FormatPDF
	FormatDOCX
	FormatPPTX
	FormatDOC
	FormatPPT
	FormatXLS
	FormatXLSX
	FormatText
	FormatHTML
	FormatMarkdown
	FormatCSV
)

var formatNames = map[Format]string{
	FormatUnknown:  "unknown",
	FormatPDF:      "pdf",
	FormatDOCX:     "docx",
	FormatPPTX:     "pptx",
	FormatDOC:      "doc",
	FormatPPT:      "ppt",
	FormatXLS:      "xls",
	FormatXLSX:     "xlsx",
	FormatText:     "text",
	FormatHTML:     "html",
	FormatMarkdown: "markdown",
	FormatCSV:      "csv",
}

func (f Format) String() string {
	if s, ok := formatNames[f]; ok {
		return s
	}
	return "unknown"
}

var extFormats = map[string]Format{
	".pdf":      FormatPDF,
	".docx":     FormatDOCX,
	".pptx":     FormatPPTX,
	".doc":      FormatDOC,
	".ppt":      FormatPPT,
	".xls":      FormatXLS,
	".xlsx":     FormatXLSX,
	".txt":      FormatText,
	".html":     FormatHTML,
	".htm":      FormatHTML,
	".md":       FormatMarkdown,
	".markdown": FormatMarkdown,
	".csv":      FormatCSV,
}

var mimeFormats = map[string]Format{
	"application/pdf":    FormatPDF,
	"application/msword": FormatDOC,

	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   FormatDOCX,
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": FormatPPTX,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":         FormatXLSX,

	"application/vnd.ms-powerpoint": FormatPPT,
	"application/vnd.ms-excel":      FormatXLS,

	"text/plain":      FormatText,
	"text/html":       FormatHTML,
	"text/markdown":   FormatMarkdown,
	"text/x-markdown": FormatMarkdown,
	"text/csv":        FormatCSV,
}

// FormatFromFilename returns the format implied by the file's suffix.
func FormatFromFilename(name string) Format {
	ext := strings.ToLower(filepath.Ext(name))
	if f, ok := extFormats[ext]; ok {
		return f
	}
	return FormatUnknown
}

// FormatFromMIME maps a MIME type to a format. Parameters such as charset
// are ignored.
func FormatFromMIME(mime string) Format {
	mime, _, _ = strings.Cut(mime, ";")
	mime = strings.ToLower(strings.TrimSpace(mime))
	if f, ok := mimeFormats[mime]; ok {
		return f
	}
	return FormatUnknown
}

// DetectFormat sniffs the leading bytes of a document. When the content
// only identifies as generic text or a container the sniffer cannot
// narrow down, the filename suffix decides.
func DetectFormat(data []byte, filename string) (Format, string) {
	m := mimetype.Detect(data)
	mime := m.String()
	f := FormatFromMIME(mime)
	if f == FormatUnknown || f == FormatText {
		if byName := FormatFromFilename(filename); byName != FormatUnknown {
			return byName, mimeFor(byName, mime)
		}
	}
	return f, mime
}

// mimeFor picks the canonical MIME type of f, keeping sniffed when it
// already maps to f.
func mimeFor(f Format, sniffed string) string {
	if FormatFromMIME(sniffed) == f {
		return sniffed
	}
	for mime, mf := range mimeFormats {
		if mf == f && mime != "text/x-markdown" {
			return mime
		}
	}
	return sniffed
}
