package engine

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// URLBackend is the fallback strategy: it renders each owner's boxes
// into an inline SVG data URL usable as a background image, with no
// tree mutation and no paint surface required.
type URLBackend struct {
	base
	provider layout.Provider

	mu   sync.Mutex
	urls map[dom.NodeID]string
}

// cellPx scales layout cells to SVG pixel units.
const cellPx = 8

// NewURLBackend builds the data-URL strategy.
func NewURLBackend(doc *dom.Document, cache *match.Cache, tags flow.TagSet, provider layout.Provider, log *slog.Logger) *URLBackend {
	return &URLBackend{
		base:     base{doc: doc, cache: cache, tags: tags, log: log},
		provider: provider,
		urls:     make(map[dom.NodeID]string),
	}
}

func (u *URLBackend) Name() string { return "url" }

func (u *URLBackend) StartHighlighting(terms []term.Term, hues []int) error {
	u.cache.Rebuild(terms)
	u.assignStyles(u.cache.Terms(), hues)
	u.provider.Reflow()
	u.regenerate()
	return nil
}

func (u *URLBackend) EndHighlighting() {
	u.mu.Lock()
	u.urls = make(map[dom.NodeID]string)
	u.mu.Unlock()
	u.cache.Clear()
}

func (u *URLBackend) HandleMutations(batch []dom.Mutation) {
	for _, target := range distinctTargets(batch) {
		u.cache.RecomputeAt(target)
	}
	u.provider.Reflow()
	u.regenerate()
}

// BackgroundFor returns the data URL for one owner, empty when the
// owner has no matches.
func (u *URLBackend) BackgroundFor(owner dom.NodeID) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.urls[owner]
}

func (u *URLBackend) regenerate() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.urls = make(map[dom.NodeID]string)
	for _, owner := range u.cache.Owners() {
		ownerNode := u.doc.Node(owner)
		if ownerNode == nil {
			continue
		}
		baseLine, _ := u.provider.OwnerLine(owner)
		var rects []string
		maxX, maxY := 1, 1
		for _, cf := range u.cache.SpansFor(owner) {
			if len(cf.Units) == 0 {
				continue
			}
			firstUnit := cf.Units[0].ID
			for _, s := range cf.Spans {
				style, _ := u.StyleFor(s.Term.Token())
				for _, box := range u.provider.MatchBoxes(firstUnit, s.FlowStart, s.FlowEnd) {
					x := box.X * cellPx
					y := (box.Y - baseLine) * cellPx * 2
					w := box.Width * cellPx
					h := box.Height * cellPx * 2
					if x+w > maxX {
						maxX = x + w
					}
					if y+h > maxY {
						maxY = y + h
					}
					rects = append(rects, fmt.Sprintf(
						`<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
						x, y, w, h, style.ColorA))
				}
			}
		}
		if len(rects) == 0 {
			continue
		}
		svg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d">%s</svg>`,
			maxX, maxY, strings.Join(rects, ""))
		u.urls[owner] = "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(svg))
	}
}
