package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/paperglass/docreview/internal/geometry"
	"github.com/paperglass/docreview/internal/jobpoll"
	"github.com/paperglass/docreview/internal/review"
)

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	if docID == "" {
		jsonError(w, "doc id is required", http.StatusBadRequest)
		return
	}

	sess := review.NewSession(docID, s.backend, review.Config{
		PollInterval:     s.cfg.PollInterval,
		PollMaxAttempts:  s.cfg.PollMaxAttempts,
		RefetchTimeout:   s.cfg.RefetchTimeout,
		MaxNotifications: s.cfg.MaxNotifications,
	}, s.log)

	if err := sess.Load(r.Context()); err != nil {
		sess.Close()
		jsonError(w, fmt.Sprintf("failed to load document: %v", err), http.StatusBadGateway)
		return
	}
	s.sessions.Put(sess)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]any{
		"session_id": sess.ID,
		"doc_id":     sess.DocID,
		"tokens":     len(sess.Tokens(0)),
		"schema":     sess.Schema(),
		"values":     sess.Value(),
		"provenance": sess.MappingProvenance(),
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}

	resp := map[string]any{
		"session_id":  sess.ID,
		"doc_id":      sess.DocID,
		"active_page": sess.ActivePage(),
		"schema":      sess.Schema(),
		"values":      sess.Value(),
		"provenance":  sess.MappingProvenance(),
		"editing":     sess.Editor().Editing(),
	}
	if sel, ok := sess.Highlighter().Selection(); ok {
		resp["selection"] = sel
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	s.sessions.Delete(id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRunJob(kind jobpoll.Kind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := s.session(w, r)
		if sess == nil {
			return
		}
		jobID, err := sess.RunJob(r.Context(), kind)
		if err != nil {
			jsonError(w, err.Error(), http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"job_id":   jobID,
			"kind":     kind,
			"poll_url": fmt.Sprintf("/api/sessions/%s/jobs/%s", sess.ID, kind),
		})
	}
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	kind := jobpoll.Kind(chi.URLParam(r, "slot"))
	snap, ok := sess.JobSnapshot(kind)
	if !ok {
		jsonError(w, "no job on this slot", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}

func (s *Server) handleJobResume(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	kind := jobpoll.Kind(chi.URLParam(r, "slot"))
	if _, ok := sess.JobSnapshot(kind); !ok {
		jsonError(w, "no job on this slot", http.StatusNotFound)
		return
	}
	sess.ResumePolling(kind)
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleShowPage(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	var req struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Page < 1 {
		jsonError(w, "page must be a positive integer", http.StatusBadRequest)
		return
	}
	sess.ShowPage(req.Page)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"active_page": sess.ActivePage()})
}

func (s *Server) handleBoxes(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	page, err := strconv.Atoi(chi.URLParam(r, "page"))
	if err != nil || page < 1 {
		jsonError(w, "invalid page", http.StatusBadRequest)
		return
	}

	q := r.URL.Query()
	vp := geometry.Viewport{
		NaturalW:  queryFloat(q.Get("natural_w")),
		NaturalH:  queryFloat(q.Get("natural_h")),
		RenderedW: queryFloat(q.Get("rendered_w")),
		RenderedH: queryFloat(q.Get("rendered_h")),
		OffsetX:   queryFloat(q.Get("offset_x")),
		OffsetY:   queryFloat(q.Get("offset_y")),
	}
	if !vp.Valid() {
		jsonError(w, "natural_w and natural_h must be positive", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"page":  page,
		"boxes": sess.Boxes(page, vp),
	})
}

func (s *Server) handlePageImages(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	images, err := sess.PageImageURLs(r.Context())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"pages": images})
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"notifications": sess.Notifications().Active(),
	})
}

func (s *Server) handleDismissNotification(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)
	if sess == nil {
		return
	}
	sess.Notifications().Dismiss(chi.URLParam(r, "notifID"))
	w.WriteHeader(http.StatusNoContent)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func queryFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
