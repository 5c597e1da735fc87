package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	xhtml "golang.org/x/net/html"

	"github.com/ator-dev/mark-my-search/internal/loader"
	"github.com/ator-dev/mark-my-search/internal/term"
)

// termPayload is the wire shape of one term.
type termPayload struct {
	Phrase string         `json:"phrase"`
	Mode   term.MatchMode `json:"mode"`
}

func (p termPayload) term() term.Term {
	return term.New(p.Phrase, p.Mode)
}

// handleUpload parses an uploaded document into a new session.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	filename := r.URL.Query().Get("filename")
	if filename == "" {
		jsonError(w, "filename query parameter is required", http.StatusBadRequest)
		return
	}
	if !loader.IsSupportedExtension(filename) {
		jsonError(w, "unsupported file extension", http.StatusUnsupportedMediaType)
		return
	}

	l, err := loader.ForFile(filename)
	if err != nil {
		jsonError(w, err.Error(), http.StatusUnsupportedMediaType)
		return
	}
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	doc, err := l.Load(body, filename)
	if err != nil {
		jsonError(w, "parse document: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	sess := s.sessions.Create(filename, doc)
	s.log.Info("document loaded", "id", sess.ID, "filename", filename)
	jsonOK(w, map[string]string{"document_id": sess.ID})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "docID")
	if s.sessions.Get(id) == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	s.sessions.Delete(id)
	jsonOK(w, map[string]string{"deleted": id})
}

// handleHighlight starts highlighting the session's document.
func (s *Server) handleHighlight(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Terms []termPayload `json:"terms"`
		Hues  []int         `json:"hues"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Terms) == 0 {
		jsonError(w, "at least one term is required", http.StatusBadRequest)
		return
	}
	terms := make([]term.Term, 0, len(req.Terms))
	for _, p := range req.Terms {
		terms = append(terms, p.term())
	}
	hues := req.Hues
	if len(hues) == 0 {
		hues = s.cfg.Hues
	}

	if err := sess.Manager.StartHighlighting(terms, hues); err != nil {
		jsonError(w, "start highlighting: "+err.Error(), http.StatusInternalServerError)
		return
	}

	counter := sess.Manager.TermCounter()
	counts := make(map[string]int, len(terms))
	for _, t := range terms {
		counts[t.Phrase] = counter.CountFaster(t)
	}
	jsonOK(w, map[string]any{"counts": counts})
}

func (s *Server) handleUnhighlight(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Manager.EndHighlighting()
	jsonOK(w, map[string]string{"status": "ended"})
}

// handleCount answers occurrence-count and existence queries.
func (s *Server) handleCount(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	t, ok := termFromQuery(w, r)
	if !ok {
		return
	}
	counter := sess.Manager.TermCounter()
	jsonOK(w, map[string]any{
		"count_faster": counter.CountFaster(t),
		"count_better": counter.CountBetter(t),
		"exists":       counter.Exists(t),
	})
}

// handleStep advances the walker and reports where it landed.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Reverse bool         `json:"reverse"`
		Step    bool         `json:"step"`
		Term    *termPayload `json:"term"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	var t *term.Term
	if req.Term != nil {
		tt := req.Term.term()
		t = &tt
	}
	owner := sess.Manager.StepToNextOccurrence(req.Reverse, req.Step, t)
	if owner == 0 {
		jsonOK(w, map[string]any{"found": false})
		return
	}
	line, _ := sess.Provider.OwnerLine(owner)
	jsonOK(w, map[string]any{"found": true, "owner": owner, "line": line})
}

// handleBoxes reports backend-agnostic box geometry per owner.
func (s *Server) handleBoxes(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	type boxJSON struct {
		X, Y, Width, Height int
		Term                string `json:"term"`
	}
	cache := sess.Manager.Cache()
	boxes := make(map[string][]boxJSON)
	for _, owner := range cache.Owners() {
		key := strconv.FormatUint(uint64(owner), 10)
		for _, cf := range cache.SpansFor(owner) {
			if len(cf.Units) == 0 {
				continue
			}
			for _, span := range cf.Spans {
				for _, b := range sess.Provider.MatchBoxes(cf.Units[0].ID, span.FlowStart, span.FlowEnd) {
					boxes[key] = append(boxes[key], boxJSON{
						X: b.X, Y: b.Y, Width: b.Width, Height: b.Height,
						Term: span.Term.Phrase,
					})
				}
			}
		}
	}
	jsonOK(w, map[string]any{"boxes": boxes})
}

func (s *Server) handleMarkers(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Manager.TermMarker().Refresh()
	jsonOK(w, map[string]any{"indicators": sess.Manager.TermMarker().Indicators()})
}

// handleHTML serializes the live document, markers included.
func (s *Server) handleHTML(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var buf bytes.Buffer
	if err := sess.Doc.Render(&buf); err != nil {
		jsonError(w, "render: "+err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(buf.Bytes())
}

// handleSetText mutates a text node through the document API, which
// feeds the engine's incremental recompute.
func (s *Server) handleSetText(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		ElementID string `json:"element_id"`
		Text      string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	elem := sess.Doc.ElementByID(req.ElementID)
	if elem == nil {
		jsonError(w, "element not found", http.StatusNotFound)
		return
	}
	textNode := firstText(elem)
	if textNode == nil {
		jsonError(w, "element has no text child", http.StatusConflict)
		return
	}
	sess.Doc.SetText(textNode, req.Text)
	jsonOK(w, map[string]string{"status": "mutated"})
}

func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	id := chi.URLParam(r, "docID")
	sess := s.sessions.Get(id)
	if sess == nil {
		jsonError(w, "document not found", http.StatusNotFound)
		return nil
	}
	return sess
}

func termFromQuery(w http.ResponseWriter, r *http.Request) (term.Term, bool) {
	phrase := r.URL.Query().Get("phrase")
	if phrase == "" {
		jsonError(w, "phrase query parameter is required", http.StatusBadRequest)
		return term.Term{}, false
	}
	mode := term.MatchMode{
		Regex:      r.URL.Query().Get("regex") == "true",
		Case:       r.URL.Query().Get("case") == "true",
		Stem:       r.URL.Query().Get("stem") == "true",
		Whole:      r.URL.Query().Get("whole") == "true",
		Diacritics: r.URL.Query().Get("diacritics") == "true",
	}
	return term.New(phrase, mode), true
}

func firstText(n *xhtml.Node) *xhtml.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xhtml.TextNode {
			return c
		}
		if t := firstText(c); t != nil {
			return t
		}
	}
	return nil
}
