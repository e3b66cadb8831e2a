package parser

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
)

// TextParser reads a plain text file whole. Bytes that are not valid UTF-8
// are dropped.
type TextParser struct{}

func (p *TextParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read text: %w", err)
	}
	text := &document.Text{}
	text.Append(strings.ToValidUTF8(string(data), ""))
	return text, nil
}

// LineParser yields one unit per line, line terminators included, for
// source code and other line-oriented files.
type LineParser struct{}

func (p *LineParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	br := bufio.NewReaderSize(r, 64*1024)
	text := &document.Text{}
	for {
		line, err := br.ReadString('\n')
		if line != "" {
			text.Append(strings.ToValidUTF8(line, ""))
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read lines: %w", err)
		}
	}
	return text, nil
}
