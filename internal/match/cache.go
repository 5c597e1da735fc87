package match

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Cache stores matched spans per structural owner element and keeps
// them consistent with tree mutations through full and partial
// recompute. It is the single source every render backend and
// navigation tool reads from.
type Cache struct {
	mu   sync.Mutex
	doc  *dom.Document
	tags flow.TagSet
	log  *slog.Logger

	entries  map[dom.NodeID]*Entry
	patterns *PatternSet
	nextID   uint64

	// recomputes counts flow-owner recompute passes, for tests that
	// assert a localized mutation does not rescan the whole document.
	recomputes atomic.Int64
}

// NewCache builds an empty cache over a document.
func NewCache(doc *dom.Document, tags flow.TagSet, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{
		doc:     doc,
		tags:    tags,
		log:     log,
		entries: make(map[dom.NodeID]*Entry),
	}
}

// Rebuild discards all entries and recomputes the cache for the whole
// document against the given terms. Safe to call repeatedly: the
// result depends only on tree content and the term set.
func (c *Cache) Rebuild(terms []term.Term) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patterns = CompileTerms(terms, c.log)
	c.entries = make(map[dom.NodeID]*Entry)
	c.recomputeLocked(c.doc.Body())
}

// Clear destroys all cache entries, ending highlighting.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[dom.NodeID]*Entry)
	c.patterns = nil
}

// Terms returns the active term set, nil when highlighting is off.
func (c *Cache) Terms() []term.Term {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patterns == nil {
		return nil
	}
	return c.patterns.Terms
}

// RecomputeAt incrementally recomputes the cache after a mutation at
// the given node. It climbs to the smallest ancestor whose flows are
// self-contained and recomputes that ancestor's entire subtree; flows
// can leak out of inline elements, so the climb continues until a
// strict block boundary encloses the mutation point on both sides.
func (c *Cache) RecomputeAt(target dom.NodeID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.patterns == nil {
		return
	}
	n := c.doc.Node(target)
	if n == nil {
		// The node was removed before the batch was processed; its
		// owner's ChildList record covers the change.
		return
	}
	anchor := n
	if anchor.Type != html.ElementNode {
		anchor = anchor.Parent
	}
	for anchor != nil && !flow.SelfContained(anchor, c.tags) {
		anchor = anchor.Parent
	}
	if anchor == nil || !dom.Contains(c.doc.Body(), anchor) {
		c.log.Warn("recompute anchor outside document, skipping", "target", target)
		return
	}
	if c.tags.Rejected(anchor.Data) {
		return
	}
	if _, ok := c.entries[c.doc.ID(anchor)]; !ok && anchor != c.doc.Body() {
		// The segmenter never visited this element, which means an
		// intermediate state was missed. Abandon this flow's
		// recompute rather than failing the whole pass.
		c.log.Warn("recompute owner has no cache entry, abandoning", "tag", anchor.Data)
		return
	}
	c.recomputeLocked(anchor)
}

// recomputeLocked rebuilds entries for the subtree rooted at elem.
// All descendant flows are invalidated and recomputed together; the
// coarse granularity is intentional, trading recompute cost for a
// provably consistent cache.
func (c *Cache) recomputeLocked(elem *html.Node) {
	c.recomputes.Add(1)

	// Drop entries belonging to the subtree.
	for id := range c.entries {
		n := c.doc.Node(id)
		if n == nil || dom.Contains(elem, n) {
			delete(c.entries, id)
		}
	}

	// Every eligible element visited gets an entry, so a later partial
	// recompute can tell "no matches here" from "never visited".
	c.visitElements(elem)

	for _, f := range flow.Segment(c.doc, elem, c.tags) {
		cf := matchFlow(f, c.patterns)
		owner := flow.Owner(f)
		if owner == nil {
			continue
		}
		entry := c.ensureLocked(c.doc.ID(owner))
		entry.Flows = append(entry.Flows, cf)
		if len(cf.Spans) > 0 && entry.HighlightID == "" {
			c.nextID++
			entry.HighlightID = fmt.Sprintf("h%d", c.nextID)
		}
	}
}

func (c *Cache) visitElements(elem *html.Node) {
	if elem.Type == html.ElementNode {
		if c.tags.Rejected(elem.Data) {
			return
		}
		c.ensureLocked(c.doc.ID(elem))
	}
	for child := elem.FirstChild; child != nil; child = child.NextSibling {
		if child.Type == html.ElementNode {
			c.visitElements(child)
		}
	}
}

func (c *Cache) ensureLocked(id dom.NodeID) *Entry {
	entry, ok := c.entries[id]
	if !ok {
		entry = &Entry{Highlightable: true}
		c.entries[id] = entry
	}
	return entry
}

// Recomputes returns how many owner-level recompute passes have run.
func (c *Cache) Recomputes() int64 { return c.recomputes.Load() }

// Entry returns the cache record for an element, nil when absent.
func (c *Cache) Entry(id dom.NodeID) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[id]
}

// Owners returns every element currently holding at least one span,
// in document order.
func (c *Cache) Owners() []dom.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var owners []dom.NodeID
	for id, entry := range c.entries {
		if entryHasSpans(entry) {
			owners = append(owners, id)
		}
	}
	c.sortByDocumentOrder(owners)
	return owners
}

// TermOwners returns the owners holding spans of one specific term,
// in document order.
func (c *Cache) TermOwners(t term.Term) []dom.NodeID {
	c.mu.Lock()
	defer c.mu.Unlock()
	var owners []dom.NodeID
	for id, entry := range c.entries {
		if entryHasTerm(entry, t) {
			owners = append(owners, id)
		}
	}
	c.sortByDocumentOrder(owners)
	return owners
}

// HasTerm is a short-circuiting existence probe.
func (c *Cache) HasTerm(t term.Term) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entryHasTerm(entry, t) {
			return true
		}
	}
	return false
}

// SpansFor returns the cached flows (with spans) of one owner.
func (c *Cache) SpansFor(id dom.NodeID) []CachedFlow {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry := c.entries[id]
	if entry == nil {
		return nil
	}
	return entry.Flows
}

func (c *Cache) sortByDocumentOrder(ids []dom.NodeID) {
	// Insertion sort on CompareOrder; owner lists are small relative
	// to the tree.
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0; j-- {
			a, b := c.doc.Node(ids[j-1]), c.doc.Node(ids[j])
			if a == nil || b == nil || dom.CompareOrder(a, b) <= 0 {
				break
			}
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}
}

func entryHasSpans(e *Entry) bool {
	for _, f := range e.Flows {
		if len(f.Spans) > 0 {
			return true
		}
	}
	return false
}

func entryHasTerm(e *Entry, t term.Term) bool {
	for _, f := range e.Flows {
		for _, s := range f.Spans {
			if s.Term.Equal(t) {
				return true
			}
		}
	}
	return false
}
