package loader

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
)

func elements(doc *dom.Document, tag string) []*html.Node {
	var found []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == tag {
			found = append(found, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc.Root())
	return found
}

func TestForFile_SelectsLoaderByExtension(t *testing.T) {
	for _, filename := range []string{
		"page.html", "page.htm", "notes.md", "notes.txt",
		"data.csv", "paper.pdf", "report.docx",
	} {
		l, err := ForFile(filename)
		if err != nil {
			t.Errorf("%s: unexpected error %v", filename, err)
			continue
		}
		if l == nil {
			t.Errorf("%s: expected a loader", filename)
		}
	}
}

func TestForFile_UnsupportedExtension(t *testing.T) {
	if _, err := ForFile("image.png"); err == nil {
		t.Fatalf("expected error for unsupported extension")
	}
	if IsSupportedExtension("image.png") {
		t.Errorf("expected png unsupported")
	}
	if !IsSupportedExtension("notes.TXT") {
		t.Errorf("expected extension check case-insensitive")
	}
}

func TestHTMLLoader_PreservesStructure(t *testing.T) {
	src := "<html><body><p>hello <b>world</b></p></body></html>"
	doc, err := (&HTMLLoader{}).Load(strings.NewReader(src), "page.html")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(elements(doc, "b")); got != 1 {
		t.Errorf("expected inline markup preserved, got %d <b> elements", got)
	}
	if got := doc.TextContent(doc.Body()); got != "hello world" {
		t.Errorf("expected text %q, got %q", "hello world", got)
	}
}

func TestTextLoader_BlankLinesSplitParagraphs(t *testing.T) {
	src := "first block\nstill first\n\nsecond block\n\n\nthird"
	doc, err := (&TextLoader{}).Load(strings.NewReader(src), "notes.txt")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ps := elements(doc, "p")
	if len(ps) != 3 {
		t.Fatalf("expected 3 paragraphs, got %d", len(ps))
	}
	if got := doc.TextContent(ps[0]); got != "first block\nstill first" {
		t.Errorf("expected joined lines within a block, got %q", got)
	}

	// Each paragraph is its own flow.
	flows := flow.Segment(doc, doc.Body(), flow.DefaultTagSet())
	if len(flows) != 3 {
		t.Errorf("expected 3 flows, got %d", len(flows))
	}
}

func TestMarkdownLoader_RendersInlineStructure(t *testing.T) {
	src := "# Title\n\nSome *emphasized* text.\n"
	doc, err := (&MarkdownLoader{}).Load(strings.NewReader(src), "notes.md")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(elements(doc, "h1")); got != 1 {
		t.Errorf("expected 1 heading, got %d", got)
	}
	if got := len(elements(doc, "em")); got != 1 {
		t.Errorf("expected emphasis rendered as <em>, got %d", got)
	}

	// The emphasis is inline, so the paragraph reads as one flow.
	flows := flow.Segment(doc, doc.Body(), flow.DefaultTagSet())
	found := false
	for _, f := range flows {
		if strings.Contains(f.Text(), "Some emphasized text.") {
			found = true
		}
	}
	if !found {
		t.Errorf("expected flow text to cross the emphasis boundary")
	}
}

func TestCSVLoader_CellsAreBlockBoundaries(t *testing.T) {
	src := "name,city\nalice,berlin\nbob,paris\n"
	doc, err := (&CSVLoader{}).Load(strings.NewReader(src), "data.csv")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(elements(doc, "th")); got != 2 {
		t.Errorf("expected 2 header cells, got %d", got)
	}
	if got := len(elements(doc, "td")); got != 4 {
		t.Errorf("expected 4 data cells, got %d", got)
	}

	// Adjacent cells never join into one flow.
	flows := flow.Segment(doc, doc.Body(), flow.DefaultTagSet())
	for _, f := range flows {
		if strings.Contains(f.Text(), "aliceberlin") {
			t.Errorf("expected cells segmented apart, got flow %q", f.Text())
		}
	}
}

func TestCSVLoader_EscapesMarkup(t *testing.T) {
	src := "col\n<script>alert(1)</script>\n"
	doc, err := (&CSVLoader{}).Load(strings.NewReader(src), "data.csv")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got := len(elements(doc, "script")); got != 0 {
		t.Errorf("expected markup in cells escaped, got %d script elements", got)
	}
}
