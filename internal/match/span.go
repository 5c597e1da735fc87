// Package match runs compiled term patterns over segmented flows and
// maintains the per-element span cache, including the incremental
// recompute that keeps it consistent with live tree mutations.
package match

import (
	"log/slog"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Span is a single match fragment of one term against one text unit.
// A logical match that straddles unit boundaries is split into several
// spans sharing FlowStart/FlowEnd.
type Span struct {
	Term term.Term
	Unit dom.NodeID
	// Byte offsets within the unit's text.
	Start, End int
	// Byte offsets of the whole logical match within the flow text.
	FlowStart, FlowEnd int
}

// CachedFlow is one segmented flow with the spans matched against it.
type CachedFlow struct {
	Text  string
	Units []flow.Unit
	Spans []Span
}

// Entry is the cache record for one structural element. An entry
// exists iff the element is eligible for highlighting and has been
// visited since the last reset.
type Entry struct {
	HighlightID   string
	Highlightable bool
	Flows         []CachedFlow
}

// PatternSet compiles a term list once, isolating per-term failures:
// a term whose pattern does not compile is logged and matches nothing.
type PatternSet struct {
	Terms    []term.Term
	patterns map[string]*term.Pattern
}

// CompileTerms builds a PatternSet from a deduplicated term list.
func CompileTerms(terms []term.Term, log *slog.Logger) *PatternSet {
	terms = term.Dedup(terms)
	ps := &PatternSet{Terms: terms, patterns: make(map[string]*term.Pattern, len(terms))}
	for _, t := range terms {
		p, err := t.Compile()
		if err != nil {
			if log != nil {
				log.Warn("term pattern rejected", "term", t.Phrase, "error", err)
			}
			continue
		}
		ps.patterns[t.Token()] = p
	}
	return ps
}

// Pattern returns the compiled pattern for a term, nil when the term
// failed to compile or is not part of the set.
func (ps *PatternSet) Pattern(t term.Term) *term.Pattern {
	return ps.patterns[t.Token()]
}

// matchFlow runs every active pattern over the flow's concatenated
// text and maps match offsets back onto the contributing units.
func matchFlow(f flow.Flow, ps *PatternSet) CachedFlow {
	text := f.Text()
	cf := CachedFlow{Text: text, Units: f.Units}
	for _, t := range ps.Terms {
		p := ps.Pattern(t)
		if p == nil {
			continue
		}
		for _, m := range p.FindAll(text) {
			cf.Spans = append(cf.Spans, splitAcrossUnits(t, f, m[0], m[1])...)
		}
	}
	return cf
}

// splitAcrossUnits fragments one logical match at [start, end) of the
// flow text into per-unit spans.
func splitAcrossUnits(t term.Term, f flow.Flow, start, end int) []Span {
	var spans []Span
	offset := 0
	for _, u := range f.Units {
		length := len(u.Node.Data)
		unitStart, unitEnd := offset, offset+length
		if unitEnd > start && unitStart < end {
			s := max(start, unitStart) - unitStart
			e := min(end, unitEnd) - unitStart
			spans = append(spans, Span{
				Term:      t,
				Unit:      u.ID,
				Start:     s,
				End:       e,
				FlowStart: start,
				FlowEnd:   end,
			})
		}
		offset = unitEnd
	}
	return spans
}
