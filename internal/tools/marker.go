package tools

import (
	"math"
	"sort"
	"sync"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Indicator is one mark on the scroll-range proxy: a matched owner
// projected onto a [0, 1) vertical position. Owners sharing a
// container stack with an incremental offset so none is hidden.
type Indicator struct {
	Token       string
	Owner       dom.NodeID
	Position    float64
	StackOffset int
	Raised      bool
}

// Marker projects matched, laid-out owners onto a one-dimensional
// position indicator proportional to scroll position.
type Marker struct {
	mu         sync.Mutex
	cache      *match.Cache
	provider   layout.Provider
	coalescer  *Coalescer
	indicators []Indicator
}

// NewMarker builds a marker. The coalescer rate-limits refreshes; pass
// nil to refresh synchronously.
func NewMarker(cache *match.Cache, provider layout.Provider, coalescer *Coalescer) *Marker {
	return &Marker{cache: cache, provider: provider, coalescer: coalescer}
}

// RequestRefresh schedules an indicator rebuild through the coalescer,
// so repeated requests under churn collapse into one fulfillment.
func (m *Marker) RequestRefresh() {
	if m.coalescer == nil {
		m.Refresh()
		return
	}
	m.coalescer.Request(m.Refresh)
}

// Refresh rebuilds the indicator list from the cache immediately.
func (m *Marker) Refresh() {
	total := m.provider.TotalLines()
	if total <= 0 {
		total = 1
	}
	stack := make(map[int]int) // line -> indicators already placed there
	var indicators []Indicator
	for _, owner := range m.cache.Owners() {
		line, ok := m.provider.OwnerLine(owner)
		if !ok {
			continue
		}
		for _, token := range ownerTokens(m.cache, owner) {
			indicators = append(indicators, Indicator{
				Token:       token,
				Owner:       owner,
				Position:    float64(line) / float64(total),
				StackOffset: stack[line],
			})
			stack[line]++
		}
	}
	sort.SliceStable(indicators, func(i, j int) bool {
		return indicators[i].Position < indicators[j].Position
	})
	m.mu.Lock()
	m.indicators = indicators
	m.mu.Unlock()
}

// Indicators returns the current indicator list.
func (m *Marker) Indicators() []Indicator {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Indicator(nil), m.indicators...)
}

// Raise highlights the indicator of a term nearest the container's
// position. Positions drift between insertion and lookup, so the
// match relaxes decimal precision step by step until something
// matches.
func (m *Marker) Raise(t term.Term, container dom.NodeID) bool {
	line, ok := m.provider.OwnerLine(container)
	if !ok {
		return false
	}
	total := m.provider.TotalLines()
	if total <= 0 {
		total = 1
	}
	target := float64(line) / float64(total)
	token := t.Token()

	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.indicators {
		m.indicators[i].Raised = false
	}
	for precision := 4; precision >= 0; precision-- {
		for i, ind := range m.indicators {
			if ind.Token != token {
				continue
			}
			if roundTo(ind.Position, precision) == roundTo(target, precision) {
				m.indicators[i].Raised = true
				return true
			}
		}
	}
	return false
}

func roundTo(v float64, precision int) float64 {
	scale := math.Pow(10, float64(precision))
	return math.Round(v*scale) / scale
}

// ownerTokens lists the distinct term tokens present in one owner, in
// first-appearance order.
func ownerTokens(cache *match.Cache, owner dom.NodeID) []string {
	var tokens []string
	seen := make(map[string]bool)
	for _, cf := range cache.SpansFor(owner) {
		for _, s := range cf.Spans {
			token := s.Term.Token()
			if !seen[token] {
				seen[token] = true
				tokens = append(tokens, token)
			}
		}
	}
	return tokens
}
