package main

import (
	"log/slog"
	"sync"

	"github.com/ator-dev/mark-my-search/internal/config"
	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/engine"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/tools"
)

// docState binds one loaded document to its layouter and engine, plus
// the pending scroll request the walker hands back.
type docState struct {
	doc      *dom.Document
	provider *layout.Monospace
	manager  *engine.Manager

	mu         sync.Mutex
	scrollLine int
	hasScroll  bool
}

// scrollTo records the line of the owner the walker landed on; the
// viewer consumes it on its next draw.
func (d *docState) scrollTo(owner dom.NodeID) {
	line, ok := d.provider.OwnerLine(owner)
	if !ok {
		return
	}
	d.mu.Lock()
	d.scrollLine = line
	d.hasScroll = true
	d.mu.Unlock()
}

// takeScroll returns and clears the pending scroll target.
func (d *docState) takeScroll() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	line, ok := d.scrollLine, d.hasScroll
	d.hasScroll = false
	return line, ok
}

// buildEngine assembles the layouter, coalescer and engine manager for
// one document at the given layout width.
func buildEngine(doc *dom.Document, cfg config.Config, log *slog.Logger, width int) *docState {
	tags := cfg.TagSet()
	d := &docState{doc: doc}
	d.provider = layout.NewMonospace(doc, tags, width)
	coalescer := tools.NewCoalescer(cfg.CoalesceWindow, cfg.CoalesceLimit, cfg.CoalesceMaxDelay)
	d.manager = engine.NewManager(doc, tags, d.provider, nil, log, engine.Options{
		Debounce:  cfg.DebounceInterval,
		Coalescer: coalescer,
		ScrollTo:  d.scrollTo,
	})
	d.manager.SetEngine(engine.Preference(cfg.Backend))
	return d
}
