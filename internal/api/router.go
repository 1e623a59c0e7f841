package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikhilbhutani/minutesai/internal/api/handlers"
	"github.com/nikhilbhutani/minutesai/internal/api/middleware"
	"github.com/nikhilbhutani/minutesai/internal/auth"
	"github.com/nikhilbhutani/minutesai/internal/config"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Transcriptions handlers.TranscriptionService
	Templates      handlers.TemplateLister
	HealthChecks   map[string]handlers.Pinger
	Gatherer       prometheus.Gatherer
}

type Router struct {
	mux    *chi.Mux
	cfg    config.ServerConfig
	deps   Deps
	apikey *auth.APIKeyMiddleware
	rl     *middleware.RateLimiter
}

func NewRouter(cfg *config.Config, deps Deps) *Router {
	return &Router{
		mux:    chi.NewRouter(),
		cfg:    cfg.Server,
		deps:   deps,
		apikey: auth.NewAPIKeyMiddleware(cfg.Auth.APIKeys, cfg.Auth.APIKeyHeader),
		rl:     middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
	}
}

// Close stops background work started by the router.
func (rt *Router) Close() {
	rt.rl.Stop()
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(rt.cfg.CORSOrigins, rt.apikey.HeaderName()))

	// Health and metrics (no auth, no rate limit)
	health := handlers.NewHealthHandler(rt.deps.HealthChecks)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	if rt.deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(rt.deps.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.rl.Limit)
		r.Use(rt.apikey.Authenticate)

		th := handlers.NewTranscriptionHandler(rt.deps.Transcriptions, rt.cfg.MaxUploadBytes)
		r.Post("/transcribe", th.Transcribe)
		r.Route("/jobs", func(r chi.Router) {
			r.Post("/", th.SubmitJob)
			r.Get("/{id}", th.GetJob)
		})

		if rt.deps.Templates != nil {
			r.Get("/templates", handlers.NewTemplateHandler(rt.deps.Templates).List)
		}
	})

	return r
}
