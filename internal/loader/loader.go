// Package loader converts source documents into the DOM tree the
// highlight engine consumes. Every format normalizes to HTML: native
// HTML directly, markdown through goldmark, and page-oriented formats
// as paragraph sequences.
package loader

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// Loader converts raw document bytes into a DOM document.
type Loader interface {
	Load(r io.Reader, filename string) (*dom.Document, error)
}

// SupportedExtensions lists file extensions this module can handle.
var SupportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".csv":  true,
	".html": true,
	".htm":  true,
	".pdf":  true,
	".docx": true,
}

// ForFile returns the appropriate loader for a filename.
func ForFile(filename string) (Loader, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLLoader{}, nil
	case ".md", ".markdown":
		return &MarkdownLoader{}, nil
	case ".txt":
		return &TextLoader{}, nil
	case ".csv":
		return &CSVLoader{}, nil
	case ".pdf":
		return &PDFLoader{}, nil
	case ".docx":
		return &DOCXLoader{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// LoadFile opens and loads a document from disk.
func LoadFile(path string, open func(string) (io.ReadCloser, error)) (*dom.Document, error) {
	l, err := ForFile(path)
	if err != nil {
		return nil, err
	}
	f, err := open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return l.Load(f, filepath.Base(path))
}
