package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/slidegen/internal/api/middleware"
	"github.com/phrazzld/slidegen/internal/api/shared"
)

// RouterConfig collects the handlers and middleware mounted by NewRouter.
type RouterConfig struct {
	Jobs      *JobHandler
	Signal    *SignalHandler
	Providers *ProviderHandler

	// Auth protects /api when set.
	Auth *middleware.AuthMiddleware

	// SubmitLimiter throttles job submission when set.
	SubmitLimiter *middleware.RateLimiter

	// Metrics is served at /metrics when set.
	Metrics http.Handler

	// Health reports dependency health for /health. Nil always reports ok.
	Health func(ctx context.Context) error

	Logger *slog.Logger
}

// NewRouter creates the HTTP handler with all routes and middleware.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(cfg.Logger))

	r.Route("/api", func(r chi.Router) {
		if cfg.Auth != nil {
			r.Use(cfg.Auth.Authenticate)
		}

		r.Route("/jobs", func(r chi.Router) {
			r.Get("/", cfg.Jobs.ListJobs)
			r.Group(func(r chi.Router) {
				if cfg.SubmitLimiter != nil {
					r.Use(cfg.SubmitLimiter.Limit)
				}
				r.Post("/", cfg.Jobs.CreateJob)
			})
			r.Get("/{id}", cfg.Jobs.GetJob)
			r.Post("/{id}/cancel", cfg.Jobs.CancelJob)
		})

		r.Get("/cancel", cfg.Signal.Status)
		r.Post("/cancel", cfg.Signal.Request)
		r.Delete("/cancel", cfg.Signal.Clear)

		r.Get("/providers", cfg.Providers.ListProviders)
		r.Get("/providers/ollama/models", cfg.Providers.OllamaModels)
	})

	r.Get("/health", healthHandler(cfg.Health))
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics)
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				shared.RespondWithErrorAndLog(w, r, http.StatusServiceUnavailable, "Unhealthy", err)
				return
			}
		}
		shared.RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	}
}
