// Package layout turns cached spans into screen-space boxes. The core
// never lays out text itself in the abstract; it consumes geometry
// from whatever renderer owns the page. The in-repo provider is a
// deterministic monospace layouter, which is exactly what the terminal
// viewer renders and what tests measure against.
package layout

import (
	"sync"

	"github.com/mattn/go-runewidth"
	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
)

// Box is a screen-space rectangle for one visual fragment of a match,
// in cell units. Y is an absolute line index in the laid-out document.
type Box struct {
	X, Y, Width, Height int
}

// Viewport is the currently visible line range plus a pre-load margin;
// owners outside it keep stale geometry until they scroll back in.
type Viewport struct {
	Top    int
	Height int
	Margin int
}

// Provider computes box geometry for cached matches.
type Provider interface {
	// Reflow recomputes layout from the current tree content.
	Reflow()
	// MatchBoxes returns the boxes covering [flowStart, flowEnd) of
	// the flow identified by its first unit.
	MatchBoxes(firstUnit dom.NodeID, flowStart, flowEnd int) []Box
	// OwnerVisible reports whether the owner is inside the viewport
	// (including its margin).
	OwnerVisible(owner dom.NodeID) bool
	// OwnerLine returns the first laid-out line of the owner.
	OwnerLine(owner dom.NodeID) (int, bool)
	// TotalLines is the height of the laid-out document.
	TotalLines() int
}

type laidFlow struct {
	firstUnit  dom.NodeID
	startLine  int
	text       string
	lineStarts []int // byte offset of each visual line start in text
}

// Monospace lays the document onto a fixed-width character grid.
type Monospace struct {
	mu    sync.Mutex
	doc   *dom.Document
	tags  flow.TagSet
	width int

	flows      []laidFlow
	byUnit     map[dom.NodeID]int // first unit -> index into flows
	ownerLines map[dom.NodeID]int
	lines      int
	viewport   Viewport
}

// NewMonospace builds a layouter wrapping at the given cell width.
func NewMonospace(doc *dom.Document, tags flow.TagSet, width int) *Monospace {
	if width <= 0 {
		width = 80
	}
	m := &Monospace{doc: doc, tags: tags, width: width, viewport: Viewport{Height: 1 << 30}}
	m.Reflow()
	return m
}

// SetWidth changes the wrap width. Takes effect on the next Reflow.
func (m *Monospace) SetWidth(width int) {
	if width <= 0 {
		return
	}
	m.mu.Lock()
	m.width = width
	m.mu.Unlock()
}

// SetViewport sets the visible line range used by OwnerVisible.
func (m *Monospace) SetViewport(v Viewport) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.viewport = v
}

// Reflow recomputes the full grid from current tree content.
func (m *Monospace) Reflow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flows = nil
	m.byUnit = make(map[dom.NodeID]int)
	m.ownerLines = make(map[dom.NodeID]int)
	line := 0
	for _, f := range flow.Segment(m.doc, m.doc.Body(), m.tags) {
		text := f.Text()
		lf := laidFlow{
			firstUnit:  f.Units[0].ID,
			startLine:  line,
			text:       text,
			lineStarts: wrapOffsets(text, m.width),
		}
		m.byUnit[lf.firstUnit] = len(m.flows)
		m.flows = append(m.flows, lf)
		if owner := flow.Owner(f); owner != nil {
			group := flow.HighlightableAncestor(owner, m.tags)
			for _, n := range []*html.Node{owner, group} {
				if n == nil {
					continue
				}
				id := m.doc.ID(n)
				if _, ok := m.ownerLines[id]; !ok {
					m.ownerLines[id] = line
				}
			}
		}
		line += len(lf.lineStarts)
	}
	m.lines = line
}

// MatchBoxes maps a flow-text byte range onto grid boxes, one per
// visual line the range touches.
func (m *Monospace) MatchBoxes(firstUnit dom.NodeID, flowStart, flowEnd int) []Box {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx, ok := m.byUnit[firstUnit]
	if !ok {
		return nil
	}
	lf := m.flows[idx]
	if flowStart < 0 || flowEnd > len(lf.text) || flowStart >= flowEnd {
		return nil
	}
	var boxes []Box
	for li, lineStart := range lf.lineStarts {
		lineEnd := len(lf.text)
		if li+1 < len(lf.lineStarts) {
			lineEnd = lf.lineStarts[li+1]
		}
		if lineEnd <= flowStart || lineStart >= flowEnd {
			continue
		}
		s := max(flowStart, lineStart)
		e := min(flowEnd, lineEnd)
		boxes = append(boxes, Box{
			X:      runewidth.StringWidth(lf.text[lineStart:s]),
			Y:      lf.startLine + li,
			Width:  runewidth.StringWidth(lf.text[s:e]),
			Height: 1,
		})
	}
	return boxes
}

// OwnerVisible reports whether the owner's first line falls inside the
// viewport extended by its margin.
func (m *Monospace) OwnerVisible(owner dom.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.ownerLines[owner]
	if !ok {
		return false
	}
	v := m.viewport
	return line >= v.Top-v.Margin && line <= v.Top+v.Height+v.Margin
}

// OwnerLine returns the first laid-out line of an owner.
func (m *Monospace) OwnerLine(owner dom.NodeID) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	line, ok := m.ownerLines[owner]
	return line, ok
}

// TotalLines is the laid-out document height in lines.
func (m *Monospace) TotalLines() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lines
}

// Line returns the text of one laid-out line, for rendering.
func (m *Monospace) Line(y int) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, lf := range m.flows {
		if y < lf.startLine || y >= lf.startLine+len(lf.lineStarts) {
			continue
		}
		li := y - lf.startLine
		start := lf.lineStarts[li]
		end := len(lf.text)
		if li+1 < len(lf.lineStarts) {
			end = lf.lineStarts[li+1]
		}
		return lf.text[start:end]
	}
	return ""
}

// wrapOffsets computes the byte offsets of visual line starts,
// wrapping greedily at spaces where possible and hard-wrapping runs
// longer than the width.
func wrapOffsets(text string, width int) []int {
	starts := []int{0}
	col := 0
	lastSpace := -1 // byte offset just past the last space on this line
	for i, r := range text {
		w := runewidth.RuneWidth(r)
		if col+w > width {
			breakAt := i
			if lastSpace > starts[len(starts)-1] {
				breakAt = lastSpace
			}
			starts = append(starts, breakAt)
			col = runewidth.StringWidth(text[breakAt : i+len(string(r))])
			lastSpace = -1
			continue
		}
		col += w
		if r == ' ' {
			lastSpace = i + 1
		}
	}
	return starts
}
