// Package parsertest builds small documents for extractor tests.
package parsertest

import (
	"bytes"
	"fmt"
	"strings"
)

// PDF returns a PDF with one page per element of pages. Each non-empty
// string is drawn as a single line of Helvetica; an empty string yields a
// page without a content stream. Text must not contain parentheses or
// backslashes.
func PDF(pages []string) []byte {
	// Objects 1-3 are the catalog, page tree and font. Pages follow, then
	// content streams.
	const fontObj = 3
	kids := make([]string, len(pages))
	pageObjs := make([]string, len(pages))
	var streams []string

	next := fontObj + len(pages) + 1
	for i, text := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", fontObj+1+i)
		page := "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << /Font << /F1 3 0 R >> >>"
		if text != "" {
			content := fmt.Sprintf("BT /F1 12 Tf 72 712 Td (%s) Tj ET", text)
			streams = append(streams, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(content), content))
			page += fmt.Sprintf(" /Contents %d 0 R", next)
			next++
		}
		pageObjs[i] = page + " >>"
	}
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}
	objs = append(objs, pageObjs...)
	objs = append(objs, streams...)

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objs))
	for i, obj := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}
	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objs)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}
