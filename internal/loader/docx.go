package loader

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fumiama/go-docx"
	xhtml "golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// DOCXLoader handles .docx files. Heading-styled paragraphs become
// heading elements so the document keeps its block structure.
type DOCXLoader struct{}

func (l *DOCXLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	// go-docx needs a ReadSeeker+size, so write to a temp file.
	tmp, err := os.CreateTemp("", "mms-docx-*.docx")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, r)
	if err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("seek temp file: %w", err)
	}

	doc, err := docx.Parse(tmp, int64(size))
	tmp.Close()
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html><html><head><title>")
	buf.WriteString(xhtml.EscapeString(strings.TrimSuffix(filename, ".docx")))
	buf.WriteString("</title></head><body>")
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		text := paragraphText(para)
		if text == "" {
			continue
		}
		if level := headingLevel(para); level > 0 {
			fmt.Fprintf(&buf, "<h%d>%s</h%d>", level, xhtml.EscapeString(text), level)
		} else {
			buf.WriteString("<p>")
			buf.WriteString(xhtml.EscapeString(text))
			buf.WriteString("</p>")
		}
	}
	buf.WriteString("</body></html>")

	return dom.ParseString(buf.String())
}

func headingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(para.Properties.Style.Val)
	for level := 1; level <= 6; level++ {
		if style == fmt.Sprintf("heading%d", level) || style == fmt.Sprintf("heading %d", level) {
			return level
		}
	}
	return 0
}

func paragraphText(para *docx.Paragraph) string {
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
	return strings.TrimSpace(buf.String())
}
