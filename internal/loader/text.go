package loader

import (
	"bufio"
	"io"
	"strings"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// TextLoader handles plain text files: blank-line-separated blocks
// become paragraphs.
type TextLoader struct{}

func (l *TextLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var blocks []string
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				blocks = append(blocks, current.String())
				current.Reset()
			}
		} else {
			if current.Len() > 0 {
				current.WriteString("\n")
			}
			current.WriteString(line)
		}
	}
	if current.Len() > 0 {
		blocks = append(blocks, current.String())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return buildParagraphDocument(strings.TrimSuffix(filename, ".txt"), blocks)
}
