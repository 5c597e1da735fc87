package engine

import (
	"log/slog"
	"sort"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// MarkerTag is the inline element the element backend wraps matches
// in. It is classified as a flow tag so segmentation sees through it.
const MarkerTag = "mms-h"

// ElementBackend highlights destructively: each matched substring is
// wrapped in a dedicated inline marker element, splitting text nodes
// as needed. Universally compatible, but it mutates the tree it is
// watching, so observation is disconnected around its own writes and
// every insertion is tagged as known; otherwise the mutation feed
// would treat the markers as new unmatched content and loop forever.
type ElementBackend struct {
	base
}

// NewElementBackend builds the DOM-splitting strategy.
func NewElementBackend(doc *dom.Document, cache *match.Cache, tags flow.TagSet, log *slog.Logger) *ElementBackend {
	return &ElementBackend{base: base{doc: doc, cache: cache, tags: tags, log: log}}
}

func (e *ElementBackend) Name() string { return "element" }

func (e *ElementBackend) StartHighlighting(terms []term.Term, hues []int) error {
	// A restart with a changed term set re-wraps from scratch; stale
	// markers from the previous set must come out first, or they
	// survive the rebuild and repeated terms get nested wrappers.
	e.unwrapUnder(e.doc.Body())
	e.cache.Rebuild(terms)
	e.assignStyles(e.cache.Terms(), hues)
	e.wrapAll(e.doc.Body())
	return nil
}

func (e *ElementBackend) EndHighlighting() {
	e.unwrapUnder(e.doc.Body())
	e.cache.Clear()
}

func (e *ElementBackend) HandleMutations(batch []dom.Mutation) {
	obs := e.doc.Observe()
	obs.Disconnect()
	defer obs.Reconnect()

	for _, target := range distinctTargets(batch) {
		n := e.doc.Node(target)
		if n == nil {
			continue
		}
		// Undo our own markers in the affected region first so the
		// recompute matches clean text, then re-wrap from the fresh
		// cache. The recompute keys on the region element: unwrapping
		// merges text nodes, which may release the original target.
		region := e.regionFor(n)
		if region == nil {
			continue
		}
		e.unwrapUnder(region)
		e.cache.RecomputeAt(e.doc.ID(region))
		e.wrapRegion(region)
	}
}

// regionFor finds the self-contained element enclosing a mutation, the
// same climb the cache does, so unwrap/re-wrap covers exactly the
// recomputed flows.
func (e *ElementBackend) regionFor(n *html.Node) *html.Node {
	if n.Type != html.ElementNode {
		n = n.Parent
	}
	for n != nil && !flow.SelfContained(n, e.tags) {
		n = n.Parent
	}
	return n
}

// wrapAll wraps every cached span under root. Observation is
// suppressed for the duration.
func (e *ElementBackend) wrapAll(root *html.Node) {
	obs := e.doc.Observe()
	obs.Disconnect()
	defer obs.Reconnect()
	e.wrapRegion(root)
}

// wrapRegion wraps the cached spans of every owner inside region.
// Spans are applied per text unit in reverse offset order so earlier
// offsets stay valid while the node is split.
func (e *ElementBackend) wrapRegion(region *html.Node) {
	for _, owner := range e.cache.Owners() {
		ownerNode := e.doc.Node(owner)
		if ownerNode == nil || !dom.Contains(region, ownerNode) {
			continue
		}
		for _, cf := range e.cache.SpansFor(owner) {
			e.wrapFlow(cf)
		}
	}
}

func (e *ElementBackend) wrapFlow(cf match.CachedFlow) {
	byUnit := make(map[dom.NodeID][]match.Span)
	for _, s := range cf.Spans {
		byUnit[s.Unit] = append(byUnit[s.Unit], s)
	}
	for unit, spans := range byUnit {
		node := e.doc.Node(unit)
		if node == nil || node.Type != html.TextNode {
			continue
		}
		sort.Slice(spans, func(i, j int) bool { return spans[i].Start > spans[j].Start })
		lastStart := len(node.Data) + 1
		for _, s := range spans {
			if s.End > len(node.Data) || s.End > lastStart {
				continue // overlapping spans of different terms: first term wins
			}
			style, _ := e.StyleFor(s.Term.Token())
			wrapper := e.doc.CreateElement(MarkerTag,
				html.Attribute{Key: "class", Val: MarkerTag + " " + s.Term.Token()},
				html.Attribute{Key: "style", Val: "background: " + style.CSS},
			)
			e.doc.WrapTextRange(node, s.Start, s.End, wrapper)
			lastStart = s.Start
		}
	}
}

// unwrapUnder removes every marker element inside root, merging the
// split text nodes back together.
func (e *ElementBackend) unwrapUnder(root *html.Node) {
	obs := e.doc.Observe()
	obs.Disconnect()
	defer obs.Reconnect()
	var markers []*html.Node
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == MarkerTag {
			markers = append(markers, n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(root)
	for _, m := range markers {
		e.doc.Unwrap(m)
	}
}
