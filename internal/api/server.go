package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/claudex/internal/parser"
	"github.com/MikeSquared-Agency/claudex/internal/progress"
	"github.com/MikeSquared-Agency/claudex/internal/store"
)

// Indexer runs the parse-and-label pipeline for one document.
type Indexer interface {
	Start(documentID uuid.UUID, reporter progress.Reporter) (<-chan error, error)
	Running(documentID uuid.UUID) bool
}

type Option func(*Server)

// WithAPIToken requires "Authorization: Bearer <token>" on /api/v1 routes.
func WithAPIToken(token string) Option {
	return func(s *Server) { s.apiToken = token }
}

// WithEvents adds a reporter, built per document, to every index run.
func WithEvents(fn func(documentID uuid.UUID) progress.Reporter) Option {
	return func(s *Server) { s.events = fn }
}

type Server struct {
	router   *chi.Mux
	port     int
	repo     store.Repository
	indexer  Indexer
	parser   *parser.Parser
	logger   *slog.Logger
	apiToken string
	events   func(documentID uuid.UUID) progress.Reporter
	http     *http.Server
}

func NewServer(port int, repo store.Repository, ix Indexer, p *parser.Parser, logger *slog.Logger, opts ...Option) *Server {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		repo:    repo,
		indexer: ix,
		parser:  p,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	router.Get("/health", s.health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(s.apiToken))
		r.Post("/parse", s.parse)
		r.Route("/documents", func(r chi.Router) {
			r.Get("/", s.listDocuments)
			r.Post("/", s.createDocument)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getDocument)
				r.Delete("/", s.deleteDocument)
				r.Get("/index", s.streamIndex)
				r.Post("/index", s.startIndex)
			})
		})
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("API server starting", "addr", addr)
	return s.http.ListenAndServe()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
