package engine

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/flow"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/match"
	"github.com/ator-dev/mark-my-search/internal/term"
	"github.com/ator-dev/mark-my-search/internal/tools"
)

// State is the manager's lifecycle phase.
type State int

const (
	Inactive State = iota
	EngineLoading
	EngineActive
)

// ErrNoBackend means no render strategy is usable in this environment.
var ErrNoBackend = errors.New("no compatible render backend")

// ErrSuperseded means a newer lifecycle request discarded this one.
var ErrSuperseded = errors.New("request superseded")

// Manager is the composition root: it owns the active backend plus its
// bound navigation tools, mediates backend start/stop/switch, and fans
// out highlighting-updated notifications.
type Manager struct {
	mu sync.Mutex

	doc      *dom.Document
	cache    *match.Cache
	provider layout.Provider
	tags     flow.TagSet
	detect   DetectFunc
	log      *slog.Logger

	state   State
	backend Backend
	pref    Preference

	terms []term.Term
	hues  []int

	walker    *tools.Walker
	counter   *tools.Counter
	marker    *tools.Marker
	coalescer *tools.Coalescer

	listeners []func()
	queue     []queuedStart // activation requests held while a backend loads
	gen       uint64        // latest-request-wins ordering for async work

	debounce time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// Options tunes manager behavior.
type Options struct {
	// Debounce is how long a mutation batch settles before recompute.
	Debounce time.Duration
	// Coalescer rate-limits marker refreshes; nil refreshes directly.
	Coalescer *tools.Coalescer
	// ScrollTo receives owners the walker lands on.
	ScrollTo func(dom.NodeID)
}

// NewManager wires the engine over a document. detect supplies the
// platform capabilities used to pick a backend.
func NewManager(doc *dom.Document, tags flow.TagSet, provider layout.Provider, detect DetectFunc, log *slog.Logger, opts Options) *Manager {
	if log == nil {
		log = slog.Default()
	}
	if detect == nil {
		detect = func() Capabilities {
			return Capabilities{Paint: true, ElementWrap: true, URLImage: true}
		}
	}
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = 40 * time.Millisecond
	}
	cache := match.NewCache(doc, tags, log)
	m := &Manager{
		doc:      doc,
		cache:    cache,
		provider: provider,
		tags:     tags,
		detect:   detect,
		log:      log,
		pref:     PreferAuto,
		debounce: debounce,
	}
	m.walker = tools.NewWalker(doc, cache, opts.ScrollTo, log)
	m.counter = tools.NewCounter(cache)
	m.marker = tools.NewMarker(cache, provider, opts.Coalescer)
	m.coalescer = opts.Coalescer
	return m
}

// Cache exposes the shared span cache.
func (m *Manager) Cache() *match.Cache { return m.cache }

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Backend returns the active backend, nil while inactive or loading.
func (m *Manager) Backend() Backend {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backend
}

// TermCounter returns the bound counter.
func (m *Manager) TermCounter() *tools.Counter { return m.counter }

// TermMarker returns the bound marker.
func (m *Manager) TermMarker() *tools.Marker { return m.marker }

// AddHighlightingUpdatedListener subscribes fn to fire after any cache
// or render change.
func (m *Manager) AddHighlightingUpdatedListener(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

func (m *Manager) notifyUpdated() {
	m.mu.Lock()
	listeners := append([]func(){}, m.listeners...)
	m.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

// SetEngine tears down any current backend synchronously and then
// constructs the replacement asynchronously. Activation requests that
// arrive while loading queue up and apply in order once the backend is
// ready; a newer SetEngine or EndHighlighting discards a stale load.
func (m *Manager) SetEngine(pref Preference) {
	m.mu.Lock()
	m.pref = pref
	m.teardownLocked()
	m.state = EngineLoading
	m.gen++
	gen := m.gen
	m.mu.Unlock()

	go m.construct(gen)
}

// construct selects and instantiates a backend. Selection walks the
// fallback chain so an unavailable capability degrades to the next
// strategy instead of leaving highlighting inert.
func (m *Manager) construct(gen uint64) {
	caps := m.detect()
	backend, err := m.selectBackend(m.pref, caps)

	m.mu.Lock()
	if m.gen != gen {
		// A newer request superseded this load; discard the result.
		m.mu.Unlock()
		return
	}
	queued := m.queue
	m.queue = nil
	if err != nil {
		m.state = Inactive
		m.mu.Unlock()
		m.log.Error("engine load failed", "error", err)
		for _, q := range queued {
			q.done <- err
		}
		return
	}
	m.backend = backend
	m.state = EngineActive
	m.mu.Unlock()

	m.log.Info("engine ready", "backend", backend.Name())
	for _, q := range queued {
		q.done <- m.StartHighlighting(q.terms, q.hues)
	}
}

type queuedStart struct {
	terms []term.Term
	hues  []int
	done  chan error
}

func (m *Manager) selectBackend(pref Preference, caps Capabilities) (Backend, error) {
	order := []Preference{PreferPaint, PreferElement, PreferURL}
	if pref != PreferAuto && pref != "" {
		reordered := []Preference{pref}
		for _, p := range order {
			if p != pref {
				reordered = append(reordered, p)
			}
		}
		order = reordered
	}
	for i, p := range order {
		var ok bool
		var backend Backend
		switch p {
		case PreferPaint:
			ok = caps.Paint
			backend = NewPaintBackend(m.doc, m.cache, m.tags, m.provider, m.log)
		case PreferElement:
			ok = caps.ElementWrap
			backend = NewElementBackend(m.doc, m.cache, m.tags, m.log)
		case PreferURL:
			ok = caps.URLImage
			backend = NewURLBackend(m.doc, m.cache, m.tags, m.provider, m.log)
		}
		if !ok {
			if i == 0 {
				m.log.Warn("preferred backend unavailable, falling back", "preferred", string(p))
			}
			continue
		}
		return backend, nil
	}
	return nil, ErrNoBackend
}

// StartHighlighting activates highlighting for the given terms and
// hues. While a backend is loading the request queues; when no backend
// exists yet, one is set up first.
func (m *Manager) StartHighlighting(terms []term.Term, hues []int) error {
	var backend Backend
	var deduped []term.Term
	var huesCopy []int
	attempted := false
	for {
		m.mu.Lock()
		if m.state == Inactive {
			m.mu.Unlock()
			if attempted {
				return ErrNoBackend
			}
			attempted = true
			m.SetEngine(m.pref)
			continue
		}
		if m.state == EngineLoading {
			done := make(chan error, 1)
			m.queue = append(m.queue, queuedStart{terms: terms, hues: hues, done: done})
			m.mu.Unlock()
			return <-done
		}
		backend = m.backend
		m.terms = term.Dedup(terms)
		m.hues = append([]int(nil), hues...)
		deduped, huesCopy = m.terms, m.hues
		m.mu.Unlock()
		break
	}

	if err := backend.StartHighlighting(deduped, huesCopy); err != nil {
		return err
	}
	m.startMutationConsumer()
	m.marker.RequestRefresh()
	m.notifyUpdated()
	return nil
}

// ApplyEngine re-starts highlighting with the last known term and hue
// set, used after a backend swap.
func (m *Manager) ApplyEngine() error {
	m.mu.Lock()
	terms, hues := m.terms, m.hues
	m.mu.Unlock()
	if len(terms) == 0 {
		return nil
	}
	return m.StartHighlighting(terms, hues)
}

// EndHighlighting synchronously stops the mutation feed, discards
// pending debounced work, and releases the backend's render state.
func (m *Manager) EndHighlighting() {
	m.mu.Lock()
	m.gen++ // discard any in-flight backend load
	backend := m.backend
	queued := m.queue
	m.queue = nil
	if m.state == EngineLoading {
		m.state = Inactive
	}
	m.stopMutationConsumerLocked()
	m.mu.Unlock()

	for _, q := range queued {
		q.done <- ErrSuperseded
	}

	if backend != nil {
		backend.EndHighlighting()
	} else {
		m.cache.Clear()
	}
	m.walker.Reset()
	m.notifyUpdated()
}

// StepToNextOccurrence delegates to the walker.
func (m *Manager) StepToNextOccurrence(reverse, stepNotJump bool, t *term.Term) dom.NodeID {
	return m.walker.Step(reverse, stepNotJump, t)
}

// teardownLocked releases the current backend's resources.
func (m *Manager) teardownLocked() {
	m.stopMutationConsumerLocked()
	if m.backend != nil {
		backend := m.backend
		m.backend = nil
		m.mu.Unlock()
		backend.EndHighlighting()
		m.mu.Lock()
	}
	m.state = Inactive
}

// startMutationConsumer launches the goroutine that drains mutation
// batches, debounces them, and hands them to the backend.
func (m *Manager) startMutationConsumer() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stop != nil {
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	obs := m.doc.Observe()

	go func() {
		defer close(done)
		for {
			select {
			case <-stop:
				return
			case <-obs.Ready():
			}
			// Let the batch settle before recomputing; further
			// mutations extend the same batch.
			timer := time.NewTimer(m.debounce)
			select {
			case <-stop:
				timer.Stop()
				return
			case <-timer.C:
			}
			records := obs.TakeRecords()
			if len(records) == 0 {
				continue
			}
			m.mu.Lock()
			backend := m.backend
			m.mu.Unlock()
			if backend == nil {
				continue
			}
			backend.HandleMutations(records)
			m.marker.RequestRefresh()
			m.notifyUpdated()
		}
	}()
}

func (m *Manager) stopMutationConsumerLocked() {
	if m.coalescer != nil {
		m.coalescer.Stop()
	}
	if m.stop == nil {
		return
	}
	close(m.stop)
	stopDone := m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	<-stopDone
	m.mu.Lock()
}
