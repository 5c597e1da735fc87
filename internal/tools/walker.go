package tools

import (
	"log/slog"
	"sync"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Position is the walker's selection anchor: the owner it last landed
// on and the occurrence index inside that owner.
type Position struct {
	Owner dom.NodeID
	Index int
	valid bool
}

// Walker steps between matched occurrences in document order. It wraps
// around exactly once when traversal past the anchor finds nothing,
// and finally falls back to matches inside the anchor's own container.
type Walker struct {
	mu       sync.Mutex
	doc      *dom.Document
	cache    *match.Cache
	log      *slog.Logger
	pos      Position
	scrollTo func(dom.NodeID)
}

// NewWalker builds a walker. scrollTo, when non-nil, receives each
// found owner so the host can bring it into centered view.
func NewWalker(doc *dom.Document, cache *match.Cache, scrollTo func(dom.NodeID), log *slog.Logger) *Walker {
	if log == nil {
		log = slog.Default()
	}
	return &Walker{doc: doc, cache: cache, scrollTo: scrollTo, log: log}
}

// Reset clears the selection anchor.
func (w *Walker) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = Position{}
}

// Position returns the current anchor.
func (w *Walker) Position() Position {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pos
}

// Step moves to the next (or previous) occurrence. When t is non-nil
// only that term's occurrences are considered. stepNotJump walks
// occurrence-by-occurrence inside an owner before leaving it; a jump
// always moves to another owner. Returns the owner landed on, or zero
// when the document holds no acceptable occurrence at all.
func (w *Walker) Step(reverse bool, stepNotJump bool, t *term.Term) dom.NodeID {
	w.mu.Lock()
	defer w.mu.Unlock()

	owners := w.owners(t)
	if len(owners) == 0 {
		return 0
	}

	if stepNotJump && w.pos.valid {
		if owner, ok := w.stepWithin(owners, reverse, t); ok {
			w.land(owner)
			return owner.id
		}
	}

	anchor := w.anchorIndex(owners)
	// Pass one: continue from the anchor toward the document edge.
	if owner, ok := scanFrom(owners, anchor, reverse, false); ok {
		w.landOwner(owners[owner], reverse)
		return owners[owner].id
	}
	// Pass two: wrap around once from the opposite end.
	if owner, ok := scanFrom(owners, anchor, reverse, true); ok {
		w.landOwner(owners[owner], reverse)
		return owners[owner].id
	}
	// Last resort: accept a match inside the anchor's own container.
	if w.pos.valid {
		for _, o := range owners {
			if o.id == w.pos.Owner {
				w.landOwner(o, reverse)
				return o.id
			}
		}
	}
	return 0
}

type ownerRef struct {
	id    dom.NodeID
	count int // occurrences inside this owner
}

func (w *Walker) owners(t *term.Term) []ownerRef {
	var ids []dom.NodeID
	if t != nil {
		ids = w.cache.TermOwners(*t)
	} else {
		ids = w.cache.Owners()
	}
	refs := make([]ownerRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, ownerRef{id: id, count: w.occurrences(id, t)})
	}
	return refs
}

func (w *Walker) occurrences(owner dom.NodeID, t *term.Term) int {
	count := 0
	for _, cf := range w.cache.SpansFor(owner) {
		seen := make(map[[2]int]bool)
		for _, s := range cf.Spans {
			if t != nil && !s.Term.Equal(*t) {
				continue
			}
			key := [2]int{s.FlowStart, s.FlowEnd}
			if !seen[key] {
				seen[key] = true
				count++
			}
		}
	}
	return count
}

// stepWithin advances the occurrence index inside the current owner.
func (w *Walker) stepWithin(owners []ownerRef, reverse bool, t *term.Term) (ownerRef, bool) {
	for _, o := range owners {
		if o.id != w.pos.Owner {
			continue
		}
		next := w.pos.Index + 1
		if reverse {
			next = w.pos.Index - 1
		}
		if next >= 0 && next < o.count {
			w.pos.Index = next
			return o, true
		}
		return ownerRef{}, false
	}
	return ownerRef{}, false
}

// anchorIndex locates the anchor among the owners; -1 when the anchor
// is unset or its owner no longer matches.
func (w *Walker) anchorIndex(owners []ownerRef) int {
	if !w.pos.valid {
		return -1
	}
	anchorNode := w.doc.Node(w.pos.Owner)
	if anchorNode == nil {
		return -1
	}
	for i, o := range owners {
		if o.id == w.pos.Owner {
			return i
		}
		n := w.doc.Node(o.id)
		if n != nil && dom.CompareOrder(anchorNode, n) < 0 {
			// Anchor sits between owners; treat the preceding slot as
			// the anchor position.
			return i - 1
		}
	}
	return len(owners) - 1
}

// scanFrom yields the index of the next owner after (or before) the
// anchor. wrapped selects the second, from-the-opposite-end pass.
func scanFrom(owners []ownerRef, anchor int, reverse, wrapped bool) (int, bool) {
	if !reverse {
		start := anchor + 1
		if wrapped {
			start = 0
		}
		for i := start; i < len(owners); i++ {
			if wrapped && i > anchor {
				break
			}
			if i == anchor {
				continue
			}
			return i, true
		}
		return 0, false
	}
	start := anchor - 1
	if wrapped {
		start = len(owners) - 1
	}
	for i := start; i >= 0; i-- {
		if wrapped && i < anchor {
			break
		}
		if i == anchor {
			continue
		}
		return i, true
	}
	return 0, false
}

// landOwner anchors on a freshly entered owner. Stepping backward
// enters at the owner's last occurrence so stepWithin walks it
// back-to-front.
func (w *Walker) landOwner(o ownerRef, reverse bool) {
	idx := 0
	if reverse && o.count > 0 {
		idx = o.count - 1
	}
	w.pos = Position{Owner: o.id, Index: idx, valid: true}
	if w.scrollTo != nil {
		w.scrollTo(o.id)
	}
}

func (w *Walker) land(o ownerRef) {
	w.pos.Owner = o.id
	w.pos.valid = true
	if w.scrollTo != nil {
		w.scrollTo(o.id)
	}
}
