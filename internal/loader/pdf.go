package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	xhtml "golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// PDFLoader handles PDF files. Each page becomes a section of
// paragraphs so page boundaries stay block boundaries.
type PDFLoader struct{}

func (l *PDFLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	// ledongthuc/pdf requires a ReadSeeker+size, so we write to a
	// temp file.
	tmp, err := os.CreateTemp("", "mms-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	pages, err := extractPages(tmpPath)
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html><html><head><title>")
	buf.WriteString(xhtml.EscapeString(strings.TrimSuffix(filename, ".pdf")))
	buf.WriteString("</title></head><body>")
	for _, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		buf.WriteString("<section>")
		for _, block := range strings.Split(page, "\n\n") {
			block = strings.TrimSpace(block)
			if block == "" {
				continue
			}
			buf.WriteString("<p>")
			buf.WriteString(xhtml.EscapeString(block))
			buf.WriteString("</p>")
		}
		buf.WriteString("</section>")
	}
	buf.WriteString("</body></html>")

	return dom.ParseString(buf.String())
}

func extractPages(path string) ([]string, error) {
	f, reader, err := pdflib.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []string
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
