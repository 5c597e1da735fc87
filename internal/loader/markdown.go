package loader

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	xhtml "golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// MarkdownLoader renders markdown to HTML with goldmark and parses the
// result, so markdown documents get real inline structure (emphasis,
// links, code spans) for the segmenter to flow across.
type MarkdownLoader struct{}

func (l *MarkdownLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rendered bytes.Buffer
	if err := goldmark.New().Convert(src, &rendered); err != nil {
		return nil, fmt.Errorf("render markdown: %w", err)
	}

	title := strings.TrimSuffix(strings.TrimSuffix(filename, ".md"), ".markdown")
	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html><html><head><title>")
	buf.WriteString(xhtml.EscapeString(title))
	buf.WriteString("</title></head><body>")
	buf.Write(rendered.Bytes())
	buf.WriteString("</body></html>")

	return dom.ParseString(buf.String())
}
