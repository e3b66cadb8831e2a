package parser

import (
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/geraldbahati/unbowed/internal/document"
	pdflib "github.com/ledongthuc/pdf"
)

// PDFParser extracts one unit per page. It prefers poppler's pdftotext and
// uses the pure Go reader when pdftotext is not installed or ForceGo is set.
type PDFParser struct {
	ForceGo bool
}

func (p *PDFParser) Extract(r io.Reader, filename string) (*document.Text, error) {
	path, _, cleanup, err := spool(r, "unbowed-pdf-*.pdf")
	if err != nil {
		return nil, err
	}
	defer cleanup()

	var pages []string
	if !p.ForceGo && pdftotextAvailable() {
		pages, err = extractPdftotext(path)
		if err != nil {
			pages, err = extractPDFText(path)
		}
	} else {
		pages, err = extractPDFText(path)
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	text := &document.Text{}
	for _, page := range pages {
		text.Append(page)
	}
	return text, nil
}

func pdftotextAvailable() bool {
	_, err := exec.LookPath("pdftotext")
	return err == nil
}

func extractPDFText(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := reader.NumPage()
	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			pages = append(pages, "")
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}

func extractPdftotext(path string) ([]string, error) {
	cmd := exec.Command("pdftotext", "-layout", path, "-")
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

// splitPages splits pdftotext output on form feeds. pdftotext terminates
// every page with one, so the empty tail is dropped.
func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if n := len(pages); n > 1 && pages[n-1] == "" {
		pages = pages[:n-1]
	}
	return pages
}
