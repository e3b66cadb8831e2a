package parser

import (
	"fmt"
	"io"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
	"golang.org/x/net/html"
)

// HTMLParser converts HTML to plain text. Block elements become paragraphs
// separated by blank lines; script and style content is skipped.
type HTMLParser struct{}

func (p *HTMLParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	text := &document.Text{}
	text.Append(HTMLToText(doc))
	return text, nil
}

// HTMLToText renders the text content of an HTML tree.
func HTMLToText(doc *html.Node) string {
	var (
		out     strings.Builder
		current strings.Builder
	)
	flush := func() {
		t := collapseSpace(current.String())
		current.Reset()
		if t == "" {
			return
		}
		if out.Len() > 0 {
			out.WriteString("\n\n")
		}
		out.WriteString(t)
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			current.WriteString(n.Data)
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "head", "noscript", "template":
				return
			case "br":
				current.WriteString("\n")
				return
			}
		}

		block := n.Type == html.ElementNode && isBlock(n.Data)
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(doc)
	flush()

	if out.Len() == 0 {
		return ""
	}
	return out.String() + "\n"
}

func isBlock(tag string) bool {
	switch tag {
	case "p", "div", "section", "article", "header", "footer", "nav", "aside", "main",
		"h1", "h2", "h3", "h4", "h5", "h6",
		"ul", "ol", "li", "dl", "dt", "dd",
		"table", "tr", "blockquote", "pre", "hr", "form", "fieldset",
		"body", "html":
		return true
	}
	return false
}

// collapseSpace squeezes runs of spaces and tabs and trims each line.
func collapseSpace(s string) string {
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
