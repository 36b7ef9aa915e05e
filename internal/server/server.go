// Package server exposes the pipeline and interpretation history over HTTP.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/bitegraph/internal/pipeline"
	"github.com/sells-group/bitegraph/internal/store"
	"github.com/sells-group/bitegraph/internal/templates"
)

// Config tunes the HTTP layer.
type Config struct {
	// RateLimit is requests per second across all clients. Zero disables limiting.
	RateLimit float64
	Burst     int
	// CORSOrigins lists allowed origins; empty allows any origin.
	CORSOrigins []string
	// MaxBodyBytes caps pipeline payload size.
	MaxBodyBytes int64
	// TemplatesDir is reloaded by POST /v1/templates/reload. Empty reloads
	// the embedded set.
	TemplatesDir string
}

// Server routes requests to the pipeline runner and store.
type Server struct {
	router  chi.Router
	runner  *pipeline.Runner
	store   store.Store
	holder  *templates.Holder
	cfg     Config
	limiter *rate.Limiter
}

// New builds a Server. The runner's store serves the history endpoints.
func New(runner *pipeline.Runner, holder *templates.Holder, cfg Config) *Server {
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 32 << 20
	}
	s := &Server{
		router: chi.NewRouter(),
		runner: runner,
		store:  runner.Store(),
		holder: holder,
		cfg:    cfg,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)
	s.router.Use(requestLogger)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	s.router.Get("/health", s.handleHealth)

	s.router.Route("/v1", func(r chi.Router) {
		r.Use(rateLimit(s.limiter))
		r.Post("/pipeline", s.handlePipeline)
		r.Get("/interpretations/{eventID}", s.handleCurrent)
		r.Get("/interpretations/{eventID}/history", s.handleHistory)
		r.Get("/templates", s.handleTemplates)
		r.Post("/templates/reload", s.handleReload)
	})
}
