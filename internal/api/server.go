package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ator-dev/mark-my-search/internal/config"
)

// Server is the HTTP surface over the highlight engine: documents are
// uploaded into sessions and driven through the engine's in-process
// API per session.
type Server struct {
	router   chi.Router
	sessions *SessionStore
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *SessionStore, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		log:      log,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(s.log))

	// Public endpoints.
	r.Get("/health", s.handleHealth)

	// Authenticated endpoints.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(s.cfg.APIKey, s.log))

		r.Post("/api/documents", s.handleUpload)
		r.Delete("/api/documents/{docID}", s.handleDelete)

		r.Post("/api/documents/{docID}/highlight", s.handleHighlight)
		r.Delete("/api/documents/{docID}/highlight", s.handleUnhighlight)

		r.Get("/api/documents/{docID}/count", s.handleCount)
		r.Post("/api/documents/{docID}/step", s.handleStep)
		r.Get("/api/documents/{docID}/boxes", s.handleBoxes)
		r.Get("/api/documents/{docID}/markers", s.handleMarkers)
		r.Get("/api/documents/{docID}/html", s.handleHTML)
		r.Patch("/api/documents/{docID}/text", s.handleSetText)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
