package parser

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/geraldbahati/unbowed/internal/document"
)

// DOCXParser extracts every body paragraph as one newline-terminated line.
// Empty paragraphs keep their blank line.
type DOCXParser struct{}

func (p *DOCXParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	// go-docx needs a ReaderAt and size.
	path, size, cleanup, err := spool(r, "unbowed-docx-*.docx")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open temp file: %w", err)
	}
	defer f.Close()

	doc, err := docx.Parse(f, size)
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var sb strings.Builder
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		sb.WriteString(docxParagraphText(para))
		sb.WriteByte('\n')
	}

	text := &document.Text{}
	text.Append(sb.String())
	return text, nil
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			if t, ok := rc.(*docx.Text); ok {
				buf.WriteString(t.Text)
			}
		}
	}
	return buf.String()
}
