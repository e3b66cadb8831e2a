package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
	"github.com/tsawler/tabula/pptx"
)

// PPTXParser extracts one unit per slide. Each text-bearing shape on the
// slide contributes its text followed by a newline.
type PPTXParser struct{}

func (p *PPTXParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	path, _, cleanup, err := spool(r, "unbowed-pptx-*.pptx")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	deck, err := pptx.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pptx: %w", err)
	}
	defer deck.Close()

	text := &document.Text{}
	for i := 0; i < deck.SlideCount(); i++ {
		slide, err := deck.Slide(i)
		if err != nil {
			return nil, fmt.Errorf("slide %d: %w", i+1, err)
		}
		var sb strings.Builder
		for _, block := range slide.Content {
			if block.Text == "" {
				continue
			}
			sb.WriteString(block.Text)
			sb.WriteByte('\n')
		}
		text.Append(sb.String())
	}
	return text, nil
}
