package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/config"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/jobs"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/oracle"
)

// Server is the HTTP API for statement extraction.
type Server struct {
	router       chi.Router
	orchestrator *jobs.Orchestrator
	oracle       *oracle.Client
	log          *slog.Logger
	cfg          config.Config
}

// NewServer creates and configures the HTTP server.
func NewServer(orch *jobs.Orchestrator, client *oracle.Client, log *slog.Logger, cfg config.Config) *Server {
	s := &Server{
		orchestrator: orch,
		oracle:       client,
		log:          log,
		cfg:          cfg,
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

	// Authenticated endpoints. Auth engages only when a key is
	// configured; Validate() requires one outside of tests.
	r.Group(func(r chi.Router) {
		if s.cfg.APIAuthKey != "" {
			r.Use(AuthMiddleware(s.cfg.APIAuthKey, s.log))
		}
		r.Use(RateLimiter(s.cfg.RateLimitRPS, s.cfg.RateLimitBurst))

		r.Post("/api/statements", s.handleCreateStatement)
		r.Get("/api/statements/{jobID}", s.handleStatementStatus)
		r.Get("/api/statements/{jobID}/result", s.handleStatementResult)
		r.Get("/api/statements/{jobID}/export", s.handleStatementExport)
		r.Get("/api/stats/oracle", s.handleOracleStats)
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
