package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type RouterConfig struct {
	Schedules   *ScheduleHandler
	Engineering *EngineeringHandler
	Documents   *DocumentHandler
	Jobs        *JobsHandler
	// Auth guards every /api route. A nil Auth leaves the API open, which
	// only tests should rely on.
	Auth         Authenticator
	Health       func(ctx context.Context) error
	Logger       *slog.Logger
	MaxBodyBytes int64
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	logger := defaultLogger(cfg.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(RequestLogger(logger))
	r.Use(Prometheus)
	r.Use(Recoverer(logger))
	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(req.Context()); err != nil {
				responder.loggerFor(req.Context()).WarnContext(req.Context(), "health check failed", "error", err)
				responder.writeJSON(req.Context(), w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		responder.writeJSON(req.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(MaxBytes(cfg.MaxBodyBytes))
		if cfg.Auth != nil {
			r.Use(RequireAuth(cfg.Auth, logger))
		}

		if cfg.Documents != nil {
			r.Post("/force-cancel", cfg.Documents.ForceCancel)
			r.Get("/meetings/conflicts", cfg.Documents.Conflicts)
		}

		if cfg.Schedules != nil {
			r.Post("/schedules", cfg.Schedules.Create)
			r.Route("/schedules/{id}", func(r chi.Router) {
				r.Get("/", cfg.Schedules.Get)
				r.Post("/test-meeting", cfg.Schedules.CreateTestMeeting)
				r.Get("/preview", cfg.Schedules.Preview)
				r.Get("/preview.ics", cfg.Schedules.PreviewCalendar)
			})
		}

		if cfg.Engineering != nil {
			r.Put("/sketches/{id}", cfg.Engineering.SaveSketch)
			r.Post("/sketches/{id}/assignments", cfg.Engineering.CreateAssignments)
			r.Post("/sketches/{id}/refresh-statuses", cfg.Engineering.RefreshStatuses)
			r.Put("/engineering-tasks/{id}/status", cfg.Engineering.UpdateTaskStatus)
		}

		if cfg.Jobs != nil {
			r.Post("/jobs/{name}/run", cfg.Jobs.Run)
		}
	})

	return r
}
