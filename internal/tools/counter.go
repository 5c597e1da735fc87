// Package tools holds the consumers of the span cache: occurrence
// walking, counting and scroll-proxy markers, plus the request
// coalescer that keeps them cheap under churn.
package tools

import (
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Counter answers occurrence-count queries from the cache.
type Counter struct {
	cache *match.Cache
}

// NewCounter builds a counter over the shared cache.
func NewCounter(cache *match.Cache) *Counter {
	return &Counter{cache: cache}
}

// CountFaster is the cheap heuristic count: distinct owner elements
// holding the term. A match fragmented across render splits may be
// over-counted, which is acceptable for the indicator this feeds.
func (c *Counter) CountFaster(t term.Term) int {
	return len(c.cache.TermOwners(t))
}

// CountBetter is reserved for an exact count; it currently aliases
// CountFaster.
func (c *Counter) CountBetter(t term.Term) int {
	return c.CountFaster(t)
}

// Exists is a short-circuiting existence probe.
func (c *Counter) Exists(t term.Term) bool {
	return c.cache.HasTerm(t)
}
