package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	xhtml "golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// CSVLoader handles CSV files, producing a real table so each cell is
// its own block boundary for segmentation.
type CSVLoader struct{}

func (l *CSVLoader) Load(r io.Reader, filename string) (*dom.Document, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}

	var buf strings.Builder
	buf.WriteString("<!DOCTYPE html><html><head><title>")
	buf.WriteString(xhtml.EscapeString(strings.TrimSuffix(filename, ".csv")))
	buf.WriteString("</title></head><body><table>")
	for i, row := range records {
		cell := "td"
		if i == 0 {
			cell = "th" // first row is headers
		}
		buf.WriteString("<tr>")
		for _, field := range row {
			buf.WriteString("<" + cell + ">")
			buf.WriteString(xhtml.EscapeString(field))
			buf.WriteString("</" + cell + ">")
		}
		buf.WriteString("</tr>")
	}
	buf.WriteString("</table></body></html>")

	return dom.ParseString(buf.String())
}
