package engine

import (
	"strings"
	"testing"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/match"
)

func newPaint(t *testing.T, doc *dom.Document, width int) *PaintBackend {
	t.Helper()
	tags := flow.DefaultTagSet()
	cache := match.NewCache(doc, tags, nil)
	provider := layout.NewMonospace(doc, tags, width)
	return NewPaintBackend(doc, cache, tags, provider, nil)
}

func TestPaintBackend_DerivesBoxesWithoutMutatingTree(t *testing.T) {
	doc := mustParse(t, "<p>the cat sat</p>")
	before := renderDoc(t, doc)
	obs := doc.Observe()
	p := newPaint(t, doc, 80)

	if err := p.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if after := renderDoc(t, doc); after != before {
		t.Fatalf("expected tree untouched by paint strategy")
	}
	if records := obs.TakeRecords(); len(records) != 0 {
		t.Errorf("expected no observer records, got %d", len(records))
	}

	group := p.groupFor(p.cache.Owners()[0])
	payloads := p.Payload(group)
	if len(payloads) != 1 {
		t.Fatalf("expected 1 payload box, got %d", len(payloads))
	}
	want := layout.Box{X: 4, Y: 0, Width: 3, Height: 1}
	if payloads[0].Box != want {
		t.Errorf("expected box %+v, got %+v", want, payloads[0].Box)
	}
	if payloads[0].Style.CSS == "" {
		t.Errorf("expected payload to carry its term style")
	}
}

func TestPaintBackend_CrossUnitFragmentsShareOneBoxSet(t *testing.T) {
	// Two span fragments describe the same logical match; geometry must
	// be derived once, not once per fragment.
	doc := mustParse(t, "<p>ca<b>t</b>s</p>")
	p := newPaint(t, doc, 80)
	if err := p.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	total := 0
	for _, payloads := range p.Payloads() {
		total += len(payloads)
	}
	if total != 1 {
		t.Fatalf("expected 1 deduplicated box, got %d", total)
	}
}

func TestPaintBackend_BoxesGroupUnderHighlightableAncestor(t *testing.T) {
	doc := mustParse(t, "<p><a href=\"#\">cat link</a></p>")
	p := newPaint(t, doc, 80)
	if err := p.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}

	owners := p.cache.Owners()
	if len(owners) != 1 {
		t.Fatalf("expected 1 owner, got %d", len(owners))
	}
	ownerNode := doc.Node(owners[0])
	if ownerNode.Data != "a" {
		t.Fatalf("expected owner <a>, got %q", ownerNode.Data)
	}
	group := p.groupFor(owners[0])
	if doc.Node(group).Data != "p" {
		t.Errorf("expected boxes grouped under <p>, got %q", doc.Node(group).Data)
	}
	if len(p.Payload(group)) == 0 {
		t.Errorf("expected payloads attached to the group element")
	}
}

func TestPaintBackend_MutationRefreshesGeometry(t *testing.T) {
	doc := mustParse(t, "<p>the dog sat</p>")
	obs := doc.Observe()
	p := newPaint(t, doc, 80)
	if err := p.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	if len(p.Payloads()) != 0 {
		t.Fatalf("expected no boxes before the edit")
	}

	doc.SetText(firstText(doc.Body()), "the cat sat")
	p.HandleMutations(obs.TakeRecords())

	total := 0
	for _, payloads := range p.Payloads() {
		total += len(payloads)
	}
	if total != 1 {
		t.Fatalf("expected 1 box after the edit, got %d", total)
	}
}

func TestPaintBackend_EndHighlightingDropsBoxes(t *testing.T) {
	doc := mustParse(t, "<p>cat</p>")
	p := newPaint(t, doc, 80)
	if err := p.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	p.EndHighlighting()
	if len(p.Payloads()) != 0 {
		t.Errorf("expected no payloads after end")
	}
	if len(p.MatchedOwners()) != 0 {
		t.Errorf("expected cache cleared")
	}
}

func TestURLBackend_RendersDataURLPerOwner(t *testing.T) {
	doc := mustParse(t, "<p>the cat sat</p><p>no match</p>")
	tags := flow.DefaultTagSet()
	cache := match.NewCache(doc, tags, nil)
	provider := layout.NewMonospace(doc, tags, 80)
	u := NewURLBackend(doc, cache, tags, provider, nil)

	if err := u.StartHighlighting(terms("cat"), []int{300}); err != nil {
		t.Fatalf("start: %v", err)
	}
	owners := cache.Owners()
	if len(owners) != 1 {
		t.Fatalf("expected 1 owner, got %d", len(owners))
	}
	url := u.BackgroundFor(owners[0])
	if !strings.HasPrefix(url, "data:image/svg+xml;base64,") {
		t.Fatalf("expected SVG data URL, got %q", url)
	}

	p2 := doc.Body().FirstChild.NextSibling
	if got := u.BackgroundFor(doc.ID(p2)); got != "" {
		t.Errorf("expected empty URL for unmatched owner, got %q", got)
	}

	u.EndHighlighting()
	if got := u.BackgroundFor(owners[0]); got != "" {
		t.Errorf("expected URLs dropped after end, got %q", got)
	}
}
