package httpapi

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"previz/internal/http/handlers"
	"previz/internal/middleware"
)

// RouterOptions bundles the policy knobs the router needs.
type RouterOptions struct {
	RateLimitPerMin int
}

func NewRouter(app *handlers.App, opts RouterOptions) stdhttp.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimiddleware.RealIP,
		chimiddleware.Recoverer,
		middleware.Logger(app.Logger),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/presets", app.Presets)

	r.Route("/v1/generations", func(r chi.Router) {
		limit := opts.RateLimitPerMin
		if limit <= 0 {
			limit = 30
		}
		r.With(middleware.RateLimit(limit, time.Minute)).Post("/", app.Generate)
		r.Get("/", app.ListJobs)
		r.Get("/{job_id}", app.JobStatus)
		r.Delete("/{job_id}", app.DeleteJob)
		r.Get("/{job_id}/artifacts/{pose_key}", app.TaskArtifact)
	})

	return r
}
