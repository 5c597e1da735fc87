package engine

import (
	"log/slog"
	"sync"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// BoxPayload is one painted region: geometry plus the style of the
// term that produced it, grouped under a highlightable ancestor.
type BoxPayload struct {
	Box   layout.Box
	Token string
	Style BackgroundStyle
}

// PaintBackend renders highlights as out-of-band painted regions
// derived from live geometry. It never mutates text content, so the
// mutation feed stays quiet while it works. Geometry is refreshed only
// for owners inside the viewport margin; off-screen owners keep stale
// boxes until they scroll back in.
type PaintBackend struct {
	base
	provider layout.Provider

	mu       sync.Mutex
	payloads map[dom.NodeID][]BoxPayload
}

// NewPaintBackend builds the paint strategy over a geometry provider.
func NewPaintBackend(doc *dom.Document, cache *match.Cache, tags flow.TagSet, provider layout.Provider, log *slog.Logger) *PaintBackend {
	return &PaintBackend{
		base:     base{doc: doc, cache: cache, tags: tags, log: log},
		provider: provider,
		payloads: make(map[dom.NodeID][]BoxPayload),
	}
}

func (p *PaintBackend) Name() string { return "paint" }

func (p *PaintBackend) StartHighlighting(terms []term.Term, hues []int) error {
	p.cache.Rebuild(terms)
	p.assignStyles(p.cache.Terms(), hues)
	p.provider.Reflow()
	p.repaint(nil)
	return nil
}

func (p *PaintBackend) EndHighlighting() {
	p.mu.Lock()
	p.payloads = make(map[dom.NodeID][]BoxPayload)
	p.mu.Unlock()
	p.cache.Clear()
}

func (p *PaintBackend) HandleMutations(batch []dom.Mutation) {
	for _, target := range distinctTargets(batch) {
		p.cache.RecomputeAt(target)
	}
	p.provider.Reflow()
	p.repaint(nil)
}

// RefreshVisible re-derives boxes after a resize or visibility change,
// touching only owners currently near the viewport.
func (p *PaintBackend) RefreshVisible() {
	p.provider.Reflow()
	visible := make(map[dom.NodeID]bool)
	for _, owner := range p.cache.Owners() {
		if p.provider.OwnerVisible(p.groupFor(owner)) {
			visible[owner] = true
		}
	}
	p.repaint(visible)
}

// repaint rebuilds payloads for the given owners, or for every owner
// when only is nil. Boxes are grouped under the highlightable ancestor
// so overlays never land inside links or other unsafe hosts.
func (p *PaintBackend) repaint(only map[dom.NodeID]bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if only == nil {
		p.payloads = make(map[dom.NodeID][]BoxPayload)
	} else {
		for owner := range only {
			delete(p.payloads, p.groupFor(owner))
		}
	}
	for _, owner := range p.cache.Owners() {
		if only != nil && !only[owner] {
			continue
		}
		group := p.groupFor(owner)
		for _, cf := range p.cache.SpansFor(owner) {
			for _, box := range p.flowBoxes(cf) {
				p.payloads[group] = append(p.payloads[group], box)
			}
		}
	}
}

// flowBoxes derives one payload per visual box of each logical match
// in the flow, deduplicating the per-unit span fragments that share a
// logical match.
func (p *PaintBackend) flowBoxes(cf match.CachedFlow) []BoxPayload {
	if len(cf.Units) == 0 {
		return nil
	}
	firstUnit := cf.Units[0].ID
	var out []BoxPayload
	seen := make(map[[2]int]map[string]bool)
	for _, s := range cf.Spans {
		token := s.Term.Token()
		key := [2]int{s.FlowStart, s.FlowEnd}
		if seen[key] == nil {
			seen[key] = make(map[string]bool)
		}
		if seen[key][token] {
			continue
		}
		seen[key][token] = true
		style, _ := p.StyleFor(token)
		for _, box := range p.provider.MatchBoxes(firstUnit, s.FlowStart, s.FlowEnd) {
			out = append(out, BoxPayload{Box: box, Token: token, Style: style})
		}
	}
	return out
}

func (p *PaintBackend) groupFor(owner dom.NodeID) dom.NodeID {
	n := p.doc.Node(owner)
	if n == nil {
		return owner
	}
	group := flow.HighlightableAncestor(n, p.tags)
	if group == nil {
		return owner
	}
	return p.doc.ID(group)
}

// Payload returns the painted regions grouped under one highlightable
// ancestor.
func (p *PaintBackend) Payload(group dom.NodeID) []BoxPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.payloads[group]
}

// Payloads returns every painted region keyed by group.
func (p *PaintBackend) Payloads() map[dom.NodeID][]BoxPayload {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[dom.NodeID][]BoxPayload, len(p.payloads))
	for k, v := range p.payloads {
		out[k] = append([]BoxPayload(nil), v...)
	}
	return out
}

// distinctTargets dedupes mutation targets preserving order.
func distinctTargets(batch []dom.Mutation) []dom.NodeID {
	var targets []dom.NodeID
	seen := make(map[dom.NodeID]bool)
	for _, m := range batch {
		if !seen[m.Target] {
			seen[m.Target] = true
			targets = append(targets, m.Target)
		}
	}
	return targets
}
