// Package api exposes document builds over HTTP.
package api

import (
	"net/http"

	"github.com/dgallion1/swmlgen/internal/config"
	"github.com/dgallion1/swmlgen/internal/logger"
	"github.com/dgallion1/swmlgen/internal/pipeline"
	"github.com/dgallion1/swmlgen/internal/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server is the HTTP API server for swmlgen.
type Server struct {
	router       chi.Router
	orchestrator *pipeline.Orchestrator
	validator    *schema.Validator
	schema       schema.Source
	log          *logger.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *pipeline.Orchestrator, v *schema.Validator, log *logger.Logger, cfg config.Config) *Server {
	if log == nil {
		log = logger.Nop()
	}
	if v == nil {
		v = schema.NewValidator(log)
	}
	s := &Server{
		orchestrator: orch,
		validator:    v,
		log:          log,
		cfg:          cfg,
	}
	if cfg.SchemaPath != "" {
		s.schema = schema.NewFileSource(cfg.SchemaPath)
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

		r.Post("/api/render", s.handleRender)
		r.Post("/api/validate", s.handleValidate)
		r.Post("/api/import", s.handleImport)

		r.Post("/api/jobs", s.handleSubmitJob)
		r.Post("/api/jobs/batch", s.handleBatchJobs)
		r.Get("/api/jobs/{jobID}", s.handleJobStatus)
		r.Get("/api/jobs/{jobID}/output", s.handleJobOutput)

		r.Get("/api/stats", s.handleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
