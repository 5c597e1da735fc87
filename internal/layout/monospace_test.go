package layout

import (
	"testing"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
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

func TestMonospace_WrapsAtSpaces(t *testing.T) {
	doc := mustParse(t, "<p>hello world</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 6)

	if got := m.TotalLines(); got != 2 {
		t.Fatalf("expected 2 lines, got %d", got)
	}
	if got := m.Line(0); got != "hello " {
		t.Errorf("expected line 0 %q, got %q", "hello ", got)
	}
	if got := m.Line(1); got != "world" {
		t.Errorf("expected line 1 %q, got %q", "world", got)
	}
}

func TestMonospace_BlocksStartNewLines(t *testing.T) {
	doc := mustParse(t, "<p>alpha</p><p>beta</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 80)

	if got := m.TotalLines(); got != 2 {
		t.Fatalf("expected 2 lines, got %d", got)
	}
	p2 := doc.Body().FirstChild.NextSibling
	line, ok := m.OwnerLine(doc.ID(p2))
	if !ok || line != 1 {
		t.Errorf("expected second paragraph on line 1, got %d (ok=%v)", line, ok)
	}
}

func TestMatchBoxes_SingleLine(t *testing.T) {
	doc := mustParse(t, "<p>hello world</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 6)
	unit := doc.ID(firstText(doc.Body()))

	boxes := m.MatchBoxes(unit, 6, 11) // "world"
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}
	want := Box{X: 0, Y: 1, Width: 5, Height: 1}
	if boxes[0] != want {
		t.Errorf("expected box %+v, got %+v", want, boxes[0])
	}
}

func TestMatchBoxes_RangeSpanningWrap(t *testing.T) {
	doc := mustParse(t, "<p>hello world</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 6)
	unit := doc.ID(firstText(doc.Body()))

	boxes := m.MatchBoxes(unit, 4, 8) // "o wo" across the wrap
	if len(boxes) != 2 {
		t.Fatalf("expected 2 boxes, got %d", len(boxes))
	}
	if boxes[0] != (Box{X: 4, Y: 0, Width: 2, Height: 1}) {
		t.Errorf("expected first box at end of line 0, got %+v", boxes[0])
	}
	if boxes[1] != (Box{X: 0, Y: 1, Width: 2, Height: 1}) {
		t.Errorf("expected second box at start of line 1, got %+v", boxes[1])
	}
}

func TestMatchBoxes_UnknownUnitOrBadRange(t *testing.T) {
	doc := mustParse(t, "<p>text</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 80)
	unit := doc.ID(firstText(doc.Body()))

	if got := m.MatchBoxes(9999, 0, 2); got != nil {
		t.Errorf("expected nil for unknown unit, got %v", got)
	}
	if got := m.MatchBoxes(unit, 2, 2); got != nil {
		t.Errorf("expected nil for empty range, got %v", got)
	}
	if got := m.MatchBoxes(unit, 0, 100); got != nil {
		t.Errorf("expected nil for range past flow end, got %v", got)
	}
}

func TestMatchBoxes_FlowAcrossInlineMarkup(t *testing.T) {
	// The flow key is its first unit, and offsets address the joined
	// flow text, not any single node.
	doc := mustParse(t, "<p>ca<b>t</b>s</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 80)
	unit := doc.ID(firstText(doc.Body()))

	boxes := m.MatchBoxes(unit, 0, 3) // "cat"
	if len(boxes) != 1 {
		t.Fatalf("expected 1 box, got %d", len(boxes))
	}
	if boxes[0].Width != 3 {
		t.Errorf("expected box width 3, got %d", boxes[0].Width)
	}
}

func TestOwnerVisible_RespectsViewportMargin(t *testing.T) {
	doc := mustParse(t, "<p>a</p><p>b</p><p>c</p><p>d</p><p>e</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 80)
	last := doc.Body().LastChild
	lastID := doc.ID(last)

	m.SetViewport(Viewport{Top: 0, Height: 1, Margin: 0})
	if m.OwnerVisible(lastID) {
		t.Errorf("expected last paragraph outside a 1-line viewport")
	}
	m.SetViewport(Viewport{Top: 0, Height: 1, Margin: 10})
	if !m.OwnerVisible(lastID) {
		t.Errorf("expected margin to extend visibility")
	}
}

func TestReflow_TracksTextMutation(t *testing.T) {
	doc := mustParse(t, "<p>short</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 10)
	if got := m.TotalLines(); got != 1 {
		t.Fatalf("expected 1 line, got %d", got)
	}

	doc.SetText(firstText(doc.Body()), "a very much longer paragraph")
	m.Reflow()
	if got := m.TotalLines(); got < 2 {
		t.Errorf("expected reflow to grow the line count, got %d", got)
	}
}

func TestSetWidth_AppliesOnReflow(t *testing.T) {
	doc := mustParse(t, "<p>hello world</p>")
	m := NewMonospace(doc, flow.DefaultTagSet(), 80)
	if got := m.TotalLines(); got != 1 {
		t.Fatalf("expected 1 line at width 80, got %d", got)
	}

	m.SetWidth(6)
	m.Reflow()
	if got := m.TotalLines(); got != 2 {
		t.Errorf("expected 2 lines at width 6, got %d", got)
	}
}
