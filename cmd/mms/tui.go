package main

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"github.com/ator-dev/mark-my-search/internal/config"
	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/engine"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// viewer is the interactive terminal front end: it renders the laid-out
// document with highlight overlays, a scroll-proxy marker gutter and a
// status bar, and drives the walker from key input.
type viewer struct {
	screen tcell.Screen
	d      *docState
	terms  []term.Term
	cfg    config.Config
	log    *slog.Logger
	file   string
	watch  bool

	scroll  int
	active  int // index into terms; -1 means all terms
	colors  map[string]tcell.Color
	updates chan struct{}
}

func runViewer(doc *dom.Document, terms []term.Term, opts options, cfg config.Config, log *slog.Logger) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	v := &viewer{
		screen:  screen,
		terms:   term.Dedup(terms),
		cfg:     cfg,
		log:     log,
		file:    opts.File,
		watch:   opts.Watch,
		active:  -1,
		updates: make(chan struct{}, 1),
	}
	v.colors = assignColors(v.terms, cfg.Hues)
	if err := v.attach(doc); err != nil {
		return err
	}
	defer v.d.manager.EndHighlighting()

	reload := make(chan struct{}, 1)
	if opts.Watch {
		stop, err := watchFile(opts.File, reload, log)
		if err != nil {
			return fmt.Errorf("watch %s: %w", opts.File, err)
		}
		defer stop()
	}

	events := make(chan tcell.Event)
	quit := make(chan struct{})
	go screen.ChannelEvents(events, quit)
	defer close(quit)

	v.draw()
	for {
		select {
		case <-v.updates:
			v.draw()
		case <-reload:
			if err := v.reload(); err != nil {
				v.log.Error("reload failed", "file", v.file, "error", err)
			}
			v.draw()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventResize:
				v.resize()
				v.draw()
			case *tcell.EventKey:
				if v.handleKey(ev) {
					return nil
				}
				v.draw()
			}
		}
	}
}

// attach binds the viewer to a freshly loaded document, sizing the
// layout to the current screen and starting highlighting.
func (v *viewer) attach(doc *dom.Document) error {
	width, _ := v.screen.Size()
	d := buildEngine(doc, v.cfg, v.log, contentWidth(width))
	d.manager.AddHighlightingUpdatedListener(func() {
		select {
		case v.updates <- struct{}{}:
		default:
		}
	})
	if err := d.manager.StartHighlighting(v.terms, v.cfg.Hues); err != nil {
		return err
	}
	v.d = d
	return nil
}

// reload replaces the document after the watched file changed, keeping
// terms and scroll position.
func (v *viewer) reload() error {
	doc, err := loadDocument(v.file)
	if err != nil {
		return err
	}
	old := v.d
	if err := v.attach(doc); err != nil {
		return err
	}
	old.manager.EndHighlighting()
	v.clampScroll()
	return nil
}

func (v *viewer) resize() {
	width, _ := v.screen.Size()
	v.d.provider.SetWidth(contentWidth(width))
	if pb, ok := v.d.manager.Backend().(*engine.PaintBackend); ok {
		pb.RefreshVisible()
	} else {
		v.d.provider.Reflow()
	}
	v.d.manager.TermMarker().RequestRefresh()
	v.clampScroll()
}

// handleKey reacts to one key event; true means quit.
func (v *viewer) handleKey(ev *tcell.EventKey) bool {
	_, h := v.screen.Size()
	page := h - 2
	switch {
	case ev.Key() == tcell.KeyEscape || ev.Key() == tcell.KeyCtrlC || ev.Rune() == 'q':
		return true
	case ev.Rune() == 'n' || ev.Key() == tcell.KeyEnter:
		v.step(false, false)
	case ev.Rune() == 'N':
		v.step(true, false)
	case ev.Rune() == 'm':
		v.step(false, true)
	case ev.Rune() == 'M':
		v.step(true, true)
	case ev.Key() == tcell.KeyTab:
		v.cycleTerm(1)
	case ev.Key() == tcell.KeyBacktab:
		v.cycleTerm(-1)
	case ev.Rune() == 'j' || ev.Key() == tcell.KeyDown:
		v.scroll++
	case ev.Rune() == 'k' || ev.Key() == tcell.KeyUp:
		v.scroll--
	case ev.Key() == tcell.KeyPgDn || ev.Rune() == ' ':
		v.scroll += page
	case ev.Key() == tcell.KeyPgUp:
		v.scroll -= page
	case ev.Rune() == 'g' || ev.Key() == tcell.KeyHome:
		v.scroll = 0
	case ev.Rune() == 'G' || ev.Key() == tcell.KeyEnd:
		v.scroll = v.d.provider.TotalLines()
	case ev.Rune() == 'r':
		if err := v.reload(); err != nil {
			v.log.Error("reload failed", "file", v.file, "error", err)
		}
	}
	v.clampScroll()
	return false
}

// step moves the walker and centers the view on wherever it landed.
func (v *viewer) step(reverse, stepNotJump bool) {
	var t *term.Term
	if v.active >= 0 {
		t = &v.terms[v.active]
	}
	owner := v.d.manager.StepToNextOccurrence(reverse, stepNotJump, t)
	if owner == 0 {
		return
	}
	if t != nil {
		v.d.manager.TermMarker().Raise(*t, owner)
	}
	if line, ok := v.d.takeScroll(); ok {
		_, h := v.screen.Size()
		v.scroll = line - (h-1)/2
		v.clampScroll()
	}
}

func (v *viewer) cycleTerm(dir int) {
	v.active += dir
	if v.active >= len(v.terms) {
		v.active = -1
	}
	if v.active < -1 {
		v.active = len(v.terms) - 1
	}
}

func (v *viewer) clampScroll() {
	_, h := v.screen.Size()
	maxScroll := v.d.provider.TotalLines() - (h - 1)
	if v.scroll > maxScroll {
		v.scroll = maxScroll
	}
	if v.scroll < 0 {
		v.scroll = 0
	}
	v.d.provider.SetViewport(layout.Viewport{Top: v.scroll, Height: h - 1, Margin: v.cfg.ViewportMargin})
}

func (v *viewer) draw() {
	v.screen.Clear()
	width, height := v.screen.Size()
	rows := height - 1
	boxes := v.boxesByLine()

	base := tcell.StyleDefault
	for row := 0; row < rows; row++ {
		y := v.scroll + row
		if y >= v.d.provider.TotalLines() {
			break
		}
		text := v.d.provider.Line(y)
		col := 0
		for _, r := range text {
			style := base
			for _, b := range boxes[y] {
				if col >= b.x && col < b.x+b.width {
					style = base.Background(b.color).Foreground(tcell.ColorBlack)
					break
				}
			}
			v.screen.SetContent(col, row, r, nil, style)
			col += runewidth.RuneWidth(r)
			if col >= width-1 {
				break
			}
		}
	}

	v.drawGutter(width-1, rows)
	v.drawStatus(width, height-1)
	v.screen.Show()
}

type paintedRange struct {
	x, width int
	color    tcell.Color
}

// boxesByLine gathers highlight geometry per laid-out line. The paint
// strategy already holds derived boxes; other strategies fall back to
// deriving geometry straight from the cache.
func (v *viewer) boxesByLine() map[int][]paintedRange {
	out := make(map[int][]paintedRange)
	if pb, ok := v.d.manager.Backend().(*engine.PaintBackend); ok {
		for _, payloads := range pb.Payloads() {
			for _, p := range payloads {
				out[p.Box.Y] = append(out[p.Box.Y], paintedRange{
					x: p.Box.X, width: p.Box.Width, color: v.colors[p.Token],
				})
			}
		}
		return out
	}
	cache := v.d.manager.Cache()
	for _, owner := range cache.Owners() {
		for _, cf := range cache.SpansFor(owner) {
			if len(cf.Units) == 0 {
				continue
			}
			firstUnit := cf.Units[0].ID
			for _, s := range cf.Spans {
				for _, box := range v.d.provider.MatchBoxes(firstUnit, s.FlowStart, s.FlowEnd) {
					out[box.Y] = append(out[box.Y], paintedRange{
						x: box.X, width: box.Width, color: v.colors[s.Term.Token()],
					})
				}
			}
		}
	}
	return out
}

// drawGutter renders the scroll-proxy marker column: each indicator is
// an owner projected onto the screen height, raised ones rendered
// double-wide via reverse video.
func (v *viewer) drawGutter(x, rows int) {
	for _, ind := range v.d.manager.TermMarker().Indicators() {
		row := int(ind.Position * float64(rows))
		if row >= rows {
			row = rows - 1
		}
		style := tcell.StyleDefault.Foreground(v.colors[ind.Token])
		if ind.Raised {
			style = style.Reverse(true)
		}
		v.screen.SetContent(x, row, '▐', nil, style)
	}
}

func (v *viewer) drawStatus(width, row int) {
	var parts []string
	parts = append(parts, v.file)
	if b := v.d.manager.Backend(); b != nil {
		parts = append(parts, b.Name())
	}
	counter := v.d.manager.TermCounter()
	for i, t := range v.terms {
		label := fmt.Sprintf("%s:%d", t.Phrase, counter.CountFaster(t))
		if i == v.active {
			label = "[" + label + "]"
		}
		parts = append(parts, label)
	}
	line := strings.Join(parts, "  ")
	style := tcell.StyleDefault.Reverse(true)
	col := 0
	for _, r := range line {
		if col >= width {
			break
		}
		v.screen.SetContent(col, row, r, nil, style)
		col += runewidth.RuneWidth(r)
	}
	for ; col < width; col++ {
		v.screen.SetContent(col, row, ' ', nil, style)
	}
}

// contentWidth reserves the marker gutter column.
func contentWidth(screenWidth int) int {
	if screenWidth <= 2 {
		return 1
	}
	return screenWidth - 2
}

// assignColors maps term tokens onto terminal colors using the same
// hue cycling the backends use for their background styles.
func assignColors(terms []term.Term, hues []int) map[string]tcell.Color {
	if len(hues) == 0 {
		hues = []int{60}
	}
	colors := make(map[string]tcell.Color, len(terms))
	for i, t := range terms {
		r, g, b := hslToRGB(float64(hues[i%len(hues)]), 1.0, 0.72)
		colors[t.Token()] = tcell.NewRGBColor(r, g, b)
	}
	return colors
}

func hslToRGB(h, s, l float64) (int32, int32, int32) {
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2
	var r, g, b float64
	switch {
	case h < 60:
		r, g, b = c, x, 0
	case h < 120:
		r, g, b = x, c, 0
	case h < 180:
		r, g, b = 0, c, x
	case h < 240:
		r, g, b = 0, x, c
	case h < 300:
		r, g, b = x, 0, c
	default:
		r, g, b = c, 0, x
	}
	return int32((r + m) * 255), int32((g + m) * 255), int32((b + m) * 255)
}
