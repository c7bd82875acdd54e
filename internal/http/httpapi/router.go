package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"pixelbatch/internal/http/handlers"
	"pixelbatch/internal/middleware"
)

// Options wires cross-cutting concerns into the router.
type Options struct {
	Logger          zerolog.Logger
	CORSOrigins     []string
	RateLimitPerMin int
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(opts.Logger),
		middleware.CORS(opts.CORSOrigins),
	)

	if opts.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", opts.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.RateLimit(opts.RateLimitPerMin, time.Minute))

		r.Get("/health", app.Health)

		r.Route("/wildcards", func(r chi.Router) {
			r.Get("/", app.ListWildcards)
			r.Get("/active", app.GetActiveWildcards)
			r.Put("/active", app.SetActiveWildcards)
			r.Get("/export", app.ExportWildcards)
			r.Put("/{name}", app.SaveWildcard)
			r.Delete("/{name}", app.DeleteWildcard)
			r.Post("/{name}/rename", app.RenameWildcard)
		})

		r.Post("/batches", app.CreateBatch)

		r.Route("/queue", func(r chi.Router) {
			r.Get("/", app.GetQueue)
			r.Post("/", app.EnqueueJobs)
			r.Delete("/", app.ClearQueue)
			r.Post("/start", app.StartQueue)
			r.Post("/stop", app.StopQueue)
			r.Get("/{id}", app.GetQueueJob)
			r.Delete("/{id}", app.RemoveQueueJob)
		})

		r.Route("/artifacts", func(r chi.Router) {
			r.Get("/", app.ListArtifacts)
			r.Delete("/", app.ClearArtifacts)
			r.Get("/export", app.ExportArtifacts)
			r.Get("/{id}", app.GetArtifact)
		})

		r.Post("/metadata/decode", app.DecodeMetadata)

		if app.History != nil {
			r.Get("/history", app.ListHistory)
			r.Get("/history/{id}", app.GetHistoryJob)
		}
	})

	return r
}
