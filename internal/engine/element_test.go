package engine

import (
	"strings"
	"testing"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

func mustParse(t *testing.T, src string) *dom.Document {
	t.Helper()
	doc, err := dom.ParseString(src)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

func firstText(n *html.Node) *html.Node {
	if n.Type == html.TextNode {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := firstText(c); found != nil {
			return found
		}
	}
	return nil
}

func renderDoc(t *testing.T, doc *dom.Document) string {
	t.Helper()
	var buf strings.Builder
	if err := doc.Render(&buf); err != nil {
		t.Fatalf("render: %v", err)
	}
	return buf.String()
}

func terms(phrases ...string) []term.Term {
	out := make([]term.Term, len(phrases))
	for i, p := range phrases {
		out[i] = term.New(p, term.MatchMode{})
	}
	return out
}

func newElement(t *testing.T, doc *dom.Document) *ElementBackend {
	t.Helper()
	tags := flow.DefaultTagSet()
	cache := match.NewCache(doc, tags, nil)
	return NewElementBackend(doc, cache, tags, nil)
}

func TestElementBackend_WrapsMatchesInMarkerElements(t *testing.T) {
	doc := mustParse(t, "<p>the cat sat</p>")
	e := newElement(t, doc)

	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	out := renderDoc(t, doc)
	if !strings.Contains(out, "<"+MarkerTag) {
		t.Fatalf("expected marker element in output, got %q", out)
	}
	if !strings.Contains(out, ">cat</"+MarkerTag+">") {
		t.Errorf("expected the match wrapped, got %q", out)
	}
	// Wrapping must not disturb the visible text.
	if got := doc.TextContent(doc.Body()); got != "the cat sat" {
		t.Errorf("expected text content preserved, got %q", got)
	}
}

func TestElementBackend_EndHighlightingRestoresTree(t *testing.T) {
	doc := mustParse(t, "<p>the cat sat on the cat mat</p>")
	before := renderDoc(t, doc)
	e := newElement(t, doc)

	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	e.EndHighlighting()
	if after := renderDoc(t, doc); after != before {
		t.Errorf("expected tree restored\nbefore: %q\nafter:  %q", before, after)
	}
}

func TestElementBackend_OwnWritesDoNotFeedObserver(t *testing.T) {
	doc := mustParse(t, "<p>the cat sat</p>")
	obs := doc.Observe()
	e := newElement(t, doc)

	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if records := obs.TakeRecords(); len(records) != 0 {
		t.Fatalf("expected wrapping to leave no observer records, got %d", len(records))
	}

	e.EndHighlighting()
	if records := obs.TakeRecords(); len(records) != 0 {
		t.Errorf("expected unwrapping to leave no observer records, got %d", len(records))
	}
}

func TestElementBackend_HandleMutationsRewrapsRegion(t *testing.T) {
	doc := mustParse(t, "<p>stable cat</p><p>plain text</p>")
	obs := doc.Observe()
	e := newElement(t, doc)
	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// An outside edit introduces a new match in the second paragraph.
	p2 := doc.Body().FirstChild.NextSibling
	doc.SetText(firstText(p2), "another cat here")
	e.HandleMutations(obs.TakeRecords())

	out := renderDoc(t, doc)
	if strings.Count(out, ">cat</"+MarkerTag+">") != 2 {
		t.Fatalf("expected both matches wrapped after mutation, got %q", out)
	}
	if got := len(e.MatchedOwners()); got != 2 {
		t.Errorf("expected 2 matched owners, got %d", got)
	}
	// The rewrap itself must not have produced fresh records.
	if records := obs.TakeRecords(); len(records) != 0 {
		t.Errorf("expected no records from the backend's own rewrap, got %d", len(records))
	}
}

func TestElementBackend_MatchRemovedOnEdit(t *testing.T) {
	doc := mustParse(t, "<p>a cat x</p>")
	obs := doc.Observe()
	e := newElement(t, doc)
	whole := []term.Term{term.New("cat", term.MatchMode{Whole: true})}
	if err := e.StartHighlighting(whole, []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Gluing a suffix onto the match breaks the word boundary; the
	// marker must go too.
	p := doc.Body().FirstChild
	doc.SetText(p.LastChild, "s")
	e.HandleMutations(obs.TakeRecords())

	out := renderDoc(t, doc)
	if strings.Contains(out, "<"+MarkerTag) {
		t.Errorf("expected markers removed after the match vanished, got %q", out)
	}
	if got := len(e.MatchedOwners()); got != 0 {
		t.Errorf("expected 0 matched owners, got %d", got)
	}
}

func TestElementBackend_CrossUnitMatchWrapsEachFragment(t *testing.T) {
	doc := mustParse(t, "<p>ca<b>t</b>s</p>")
	e := newElement(t, doc)
	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	out := renderDoc(t, doc)
	if strings.Count(out, "<"+MarkerTag) != 2 {
		t.Fatalf("expected one marker per fragment, got %q", out)
	}
	if got := doc.TextContent(doc.Body()); got != "cats" {
		t.Errorf("expected text preserved, got %q", got)
	}
}

func TestElementBackend_RestartReplacesMarkers(t *testing.T) {
	doc := mustParse(t, "<p>The cat sat</p>")
	e := newElement(t, doc)
	if err := e.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	// A second start with a different term set replaces the markers
	// wholesale: nothing of the old set may survive.
	if err := e.StartHighlighting(terms("sat"), []int{120}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	out := renderDoc(t, doc)
	if strings.Contains(out, ">cat</"+MarkerTag+">") {
		t.Fatalf("expected stale markers removed on restart, got %q", out)
	}
	if !strings.Contains(out, ">sat</"+MarkerTag+">") {
		t.Fatalf("expected new term wrapped after restart, got %q", out)
	}

	// Restarting with an unchanged set must not nest wrappers.
	if err := e.StartHighlighting(terms("sat"), []int{120}); err != nil {
		t.Fatalf("restart: %v", err)
	}
	out = renderDoc(t, doc)
	if got := strings.Count(out, "<"+MarkerTag); got != 1 {
		t.Errorf("expected exactly 1 marker after repeated start, got %d in %q", got, out)
	}
	if got := doc.TextContent(doc.Body()); got != "The cat sat" {
		t.Errorf("expected text content preserved, got %q", got)
	}
}
