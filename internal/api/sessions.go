package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ator-dev/mark-my-search/internal/config"
	"github.com/ator-dev/mark-my-search/internal/dom"
	"github.com/ator-dev/mark-my-search/internal/engine"
	"github.com/ator-dev/mark-my-search/internal/layout"
	"github.com/ator-dev/mark-my-search/internal/tools"
)

// Session is one uploaded document with its live engine.
type Session struct {
	ID        string
	Filename  string
	Doc       *dom.Document
	Provider  *layout.Monospace
	Manager   *engine.Manager
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SessionStore is a thread-safe in-memory session registry with TTL
// eviction.
type SessionStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
	ttl      time.Duration
	cfg      config.Config
	log      *slog.Logger
	stop     chan struct{}
}

// NewSessionStore builds the registry.
func NewSessionStore(cfg config.Config, log *slog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*Session),
		ttl:      cfg.SessionTTL,
		cfg:      cfg,
		log:      log,
		stop:     make(chan struct{}),
	}
}

// Create registers a new session wrapping a loaded document.
func (s *SessionStore) Create(filename string, doc *dom.Document) *Session {
	tags := s.cfg.TagSet()
	provider := layout.NewMonospace(doc, tags, s.cfg.LayoutWidth)
	coalescer := tools.NewCoalescer(s.cfg.CoalesceWindow, s.cfg.CoalesceLimit, s.cfg.CoalesceMaxDelay)
	mgr := engine.NewManager(doc, tags, provider, nil, s.log, engine.Options{
		Debounce:  s.cfg.DebounceInterval,
		Coalescer: coalescer,
	})
	mgr.SetEngine(engine.Preference(s.cfg.Backend))

	sess := &Session{
		ID:        uuid.NewString(),
		Filename:  filename,
		Doc:       doc,
		Provider:  provider,
		Manager:   mgr,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get looks a session up, nil when absent.
func (s *SessionStore) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess := s.sessions[id]; sess != nil {
		sess.UpdatedAt = time.Now()
		return sess
	}
	return nil
}

// Delete removes a session, ending its highlighting first.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	sess := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if sess != nil {
		sess.Manager.EndHighlighting()
	}
}

// Start launches TTL eviction.
func (s *SessionStore) Start() {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-s.stop:
				return
			case <-ticker.C:
				s.Cleanup()
			}
		}
	}()
}

// Stop halts eviction and tears down every session.
func (s *SessionStore) Stop() {
	close(s.stop)
	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*Session)
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Manager.EndHighlighting()
	}
}

// Cleanup evicts sessions idle past the TTL.
func (s *SessionStore) Cleanup() {
	now := time.Now()
	s.mu.Lock()
	var expired []*Session
	for id, sess := range s.sessions {
		if now.Sub(sess.UpdatedAt) > s.ttl {
			expired = append(expired, sess)
			delete(s.sessions, id)
		}
	}
	s.mu.Unlock()
	for _, sess := range expired {
		sess.Manager.EndHighlighting()
		s.log.Info("session expired", "id", sess.ID, "filename", sess.Filename)
	}
}
