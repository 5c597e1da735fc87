package loader

import (
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// HTMLLoader handles native HTML files.
type HTMLLoader struct{}

func (l *HTMLLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	return dom.Parse(r)
}

// buildParagraphDocument wraps plain-text blocks into a minimal HTML
// body, one <p> per block, escaping content on the way in.
func buildParagraphDocument(title string, blocks []string) (*dom.Document, error) {
	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html><html><head><title>")
	buf.WriteString(html.EscapeString(title))
	buf.WriteString("</title></head><body>")
	for _, block := range blocks {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		buf.WriteString("<p>")
		buf.WriteString(html.EscapeString(block))
		buf.WriteString("</p>")
	}
	buf.WriteString("</body></html>")
	return dom.ParseString(buf.String())
}
