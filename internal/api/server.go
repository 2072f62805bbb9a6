// Package api is the HTTP surface of the review engine. Handlers are thin:
// they parse, call into the session, and encode. All state lives in
// internal/review.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/paperglass/docreview/internal/config"
	"github.com/paperglass/docreview/internal/review"
)

// Server is the HTTP API server for reviewd.
type Server struct {
	router   chi.Router
	sessions *review.Manager
	backend  review.Backend
	log      *slog.Logger
	cfg      config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(sessions *review.Manager, be review.Backend, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		sessions: sessions,
		backend:  be,
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
		r.Use(AuthMiddleware(s.cfg.ReviewAPIKey, s.log))

		r.Post("/api/documents/{docID}/session", s.handleCreateSession)

		r.Route("/api/sessions/{sessionID}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)

			r.Post("/ocr", s.handleRunJob("ocr"))
			r.Post("/extraction", s.handleRunJob("extraction"))
			r.Post("/datacheck", s.handleRunJob("datacheck"))
			r.Get("/jobs/{slot}", s.handleJobStatus)
			r.Post("/jobs/{slot}/resume", s.handleJobResume)

			r.Post("/highlight/field", s.handleHighlightField)
			r.Post("/highlight/cell", s.handleHighlightCell)

			r.Post("/edit/begin", s.handleEditBegin)
			r.Post("/edit/save", s.handleEditSave)
			r.Post("/edit/cancel", s.handleEditCancel)
			r.Put("/values", s.handlePutValue)
			r.Put("/tokens/{index}", s.handlePutToken)
			r.Post("/rows", s.handleAddRow)
			r.Delete("/rows", s.handleDeleteRow)

			r.Post("/page", s.handleShowPage)
			r.Get("/page/{page}/boxes", s.handleBoxes)
			r.Get("/pages", s.handlePageImages)

			r.Get("/notifications", s.handleNotifications)
			r.Delete("/notifications/{notifID}", s.handleDismissNotification)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

// session looks up the session for the request, writing a 404 on a miss.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *review.Session {
	id := chi.URLParam(r, "sessionID")
	sess := s.sessions.Get(id)
	if sess == nil {
		jsonError(w, "session not found", http.StatusNotFound)
	}
	return sess
}
