// Package flow partitions document text into maximal contiguous runs.
// A flow is what a reader perceives as one continuous piece of text:
// it continues across inline markup and terminates at block-level
// boundaries, so matching can see "Hello world" as one string even
// when markup splits it across several text nodes.
package flow

import (
	"strings"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
)

// Unit is one text-bearing leaf contributing to a flow.
type Unit struct {
	Node *html.Node
	ID   dom.NodeID
}

// Flow is an ordered sequence of text units whose concatenation is
// treated as a single string for matching.
type Flow struct {
	Units []Unit
}

// Text concatenates the current content of all units.
func (f Flow) Text() string {
	var buf strings.Builder
	for _, u := range f.Units {
		buf.WriteString(u.Node.Data)
	}
	return buf.String()
}

// Empty reports whether the flow carries no text at all.
func (f Flow) Empty() bool {
	for _, u := range f.Units {
		if u.Node.Data != "" {
			return false
		}
	}
	return true
}

// Segment walks the subtree under root in document order and returns
// its non-empty flows. Reject subtrees are skipped entirely; entering
// or leaving a non-inline element terminates the current flow, so a
// block boundary always breaks flow on both sides.
func Segment(doc *dom.Document, root *html.Node, tags TagSet) []Flow {
	s := segmenter{doc: doc, tags: tags}
	s.visit(root)
	s.breakFlow()
	// Boundary flows may legitimately be empty (no content before the
	// first or after the last block); trim them here so offset math
	// downstream only ever sees real text.
	flows := s.flows[:0]
	for _, f := range s.flows {
		if !f.Empty() {
			flows = append(flows, f)
		}
	}
	return flows
}

type segmenter struct {
	doc     *dom.Document
	tags    TagSet
	flows   []Flow
	current Flow
}

func (s *segmenter) visit(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		switch c.Type {
		case html.TextNode:
			s.current.Units = append(s.current.Units, Unit{Node: c, ID: s.doc.ID(c)})
		case html.ElementNode:
			if s.tags.Rejected(c.Data) {
				continue
			}
			if s.tags.Inline(c.Data) {
				s.visit(c)
				continue
			}
			s.breakFlow()
			s.visit(c)
			s.breakFlow()
		}
	}
}

func (s *segmenter) breakFlow() {
	s.flows = append(s.flows, s.current)
	s.current = Flow{}
}

// Owner returns the element a flow's spans are cached against: the
// deepest common ancestor element of all its units.
func Owner(f Flow) *html.Node {
	nodes := make([]*html.Node, len(f.Units))
	for i, u := range f.Units {
		nodes[i] = u.Node
	}
	owner := dom.CommonAncestor(nodes...)
	for owner != nil && owner.Type != html.ElementNode {
		owner = owner.Parent
	}
	return owner
}

// HighlightableAncestor climbs from an element to the nearest ancestor
// that is safe to attach overlays to, stepping out of inline and
// otherwise unhighlightable hosts such as links.
func HighlightableAncestor(n *html.Node, tags TagSet) *html.Node {
	for n != nil && n.Parent != nil && n.Type == html.ElementNode && tags.Unhighlightable(n.Data) {
		n = n.Parent
	}
	for n != nil && n.Type != html.ElementNode {
		n = n.Parent
	}
	return n
}

// SelfContained reports whether elem's flows cannot leak outside it:
// true for any non-inline element, whose entry and exit are both
// block boundaries.
func SelfContained(elem *html.Node, tags TagSet) bool {
	if elem.Type != html.ElementNode {
		return false
	}
	return !tags.Inline(elem.Data)
}
