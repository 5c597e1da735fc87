// Package engine owns the render backends that turn cached spans into
// visible highlights, and the manager that composes one active backend
// with the navigation tools.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// Backend is one interchangeable render strategy. Exactly one backend
// is active at a time; all of them consume the same span cache.
type Backend interface {
	StartHighlighting(terms []term.Term, hues []int) error
	EndHighlighting()
	TermBackgroundStyle(colorA, colorB string, cycle int) BackgroundStyle
	// MatchedOwners exposes the live set of matched elements for the
	// navigation tools.
	MatchedOwners() []dom.NodeID
	// HandleMutations applies a batch of observed tree changes:
	// localized cache recompute plus whatever re-render the strategy
	// needs.
	HandleMutations(batch []dom.Mutation)
	Name() string
}

// BackgroundStyle is the visual style descriptor for one term. When
// more terms exist than distinct hues, styles cycle through striped
// gradients so every term stays distinguishable.
type BackgroundStyle struct {
	ColorA string
	ColorB string
	Cycle  int
	CSS    string
}

// TermBackgroundStyle builds the style for one hue pair at a given
// cycle. Cycle zero is a solid fill; later cycles are repeating
// stripes of increasing width.
func TermBackgroundStyle(colorA, colorB string, cycle int) BackgroundStyle {
	s := BackgroundStyle{ColorA: colorA, ColorB: colorB, Cycle: cycle}
	if cycle == 0 {
		s.CSS = colorA
		return s
	}
	w := 2 * cycle
	s.CSS = fmt.Sprintf("repeating-linear-gradient(-45deg, %s, %s %dpx, %s %dpx, %s %dpx)",
		colorA, colorA, w, colorB, w, colorB, 2*w)
	return s
}

// HueColor renders a hue as an HSL color string at the given lightness
// percentage.
func HueColor(hue, lightness int) string {
	return fmt.Sprintf("hsl(%d 100%% %d%%)", hue, lightness)
}

// Capabilities describes which render strategies the current
// environment can host. Detection is an external collaborator; the
// engine only consumes its result.
type Capabilities struct {
	Paint       bool
	ElementWrap bool
	URLImage    bool
}

// DetectFunc reports platform capabilities at backend selection time.
type DetectFunc func() Capabilities

// Preference names a backend choice; Auto takes the best available.
type Preference string

const (
	PreferAuto    Preference = "auto"
	PreferPaint   Preference = "paint"
	PreferElement Preference = "element"
	PreferURL     Preference = "url"
)

// base carries the state every backend shares: the cache it renders
// from and the per-term style assignment.
type base struct {
	doc    *dom.Document
	cache  *match.Cache
	tags   flow.TagSet
	log    *slog.Logger
	styles map[string]BackgroundStyle // term token -> style
}

// assignStyles maps each term onto a hue, cycling the style once the
// hues run out.
func (b *base) assignStyles(terms []term.Term, hues []int) {
	b.styles = make(map[string]BackgroundStyle, len(terms))
	if len(hues) == 0 {
		hues = []int{60}
	}
	for i, t := range terms {
		hue := hues[i%len(hues)]
		cycle := i / len(hues)
		b.styles[t.Token()] = TermBackgroundStyle(HueColor(hue, 76), HueColor(hue, 88), cycle)
	}
}

func (b *base) TermBackgroundStyle(colorA, colorB string, cycle int) BackgroundStyle {
	return TermBackgroundStyle(colorA, colorB, cycle)
}

func (b *base) MatchedOwners() []dom.NodeID {
	return b.cache.Owners()
}

// StyleFor returns the style assigned to a term token.
func (b *base) StyleFor(token string) (BackgroundStyle, bool) {
	s, ok := b.styles[token]
	return s, ok
}
