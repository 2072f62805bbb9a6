package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paperglass/docreview/internal/review"
)

func (s *Server) handleHighlightField(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Path []string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Path) == 0 {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	sess.Highlighter().HighlightField(req.Path)
	s.writeSelection(w, sess)
}

func (s *Server) handleHighlightCell(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Field  string `json:"field"`
		Row    int    `json:"row"`
		Column string `json:"column"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Field == "" || req.Column == "" {
		jsonError(w, "field and column are required", http.StatusBadRequest)
		return
	}
	sess.Highlighter().HighlightCell(req.Field, req.Row, req.Column)
	s.writeSelection(w, sess)
}

// writeSelection reports the selection after a highlight request. A mapping
// miss leaves the selection as it was; the client sees that via "selected".
func (s *Server) writeSelection(w http.ResponseWriter, sess *review.Session) {
	resp := map[string]any{
		"active_page": sess.ActivePage(),
		"selected":    false,
	}
	if sel, ok := sess.Highlighter().Selection(); ok {
		resp["selected"] = true
		resp["selection"] = sel
	}
	tokenRel, fieldPath := sess.ScrollState()
	if tokenRel >= 0 {
		resp["scroll_token"] = tokenRel
	}
	if fieldPath != nil {
		resp["scroll_field"] = fieldPath
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleEditBegin(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Editor().Begin()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditSave(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	if err := sess.Editor().Save(r.Context()); err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleEditCancel(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Editor().Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutValue(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Path  []string `json:"path"`
		Value string   `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Path) == 0 {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	if err := sess.Editor().SetValue(req.Path, req.Value); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutToken(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		jsonError(w, "invalid token index", http.StatusBadRequest)
		return
	}
	var req struct {
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid body", http.StatusBadRequest)
		return
	}
	if err := sess.Editor().SetTokenText(idx, req.Content); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAddRow(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Path []string `json:"path"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Path) == 0 {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	row, err := sess.Editor().AddRow(req.Path)
	if err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{"row": row})
}

func (s *Server) handleDeleteRow(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Path []string `json:"path"`
		Row  int      `json:"row"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Path) == 0 {
		jsonError(w, "path is required", http.StatusBadRequest)
		return
	}
	if err := sess.Editor().RemoveRow(req.Path, req.Row); err != nil {
		jsonError(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
