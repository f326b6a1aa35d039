package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	auth "github.com/mind-engage/mindengage-sequencer/internal/auth/middleware"
	"github.com/mind-engage/mindengage-sequencer/internal/rbac"
)

type RouterOptions struct {
	CORSOrigins []string
	// Metrics is served on /metrics when set.
	Metrics http.Handler
	// RequestLog turns on chi's request logger.
	RequestLog bool
	Timeout    time.Duration
}

// NewRouter mounts the public health and metrics endpoints and the JWT-protected /v1 API.
func NewRouter(d Deps, authSvc *auth.AuthService, o RouterOptions) chi.Router {
	if o.Timeout <= 0 {
		o.Timeout = 30 * time.Second
	}
	c := d.checker()

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP)
	if o.RequestLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(o.Timeout))
	if len(o.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   o.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			ExposedHeaders:   []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200) })
	if o.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", o.Metrics)
	}

	r.Route("/v1", func(pr chi.Router) {
		pr.Use(auth.JWTMiddleware(authSvc))

		pr.With(c.Require(rbac.PermSequenceRun)).
			Post("/sequence", SequenceHandler(d))
		pr.With(c.Require(rbac.PermSequencePreview)).
			Post("/sequence/preview", PreviewHandler(d))

		pr.With(c.Require(rbac.PermAnswersPermute)).
			Post("/answers/permute", PermuteAnswersHandler(d))
		pr.With(c.Require(rbac.PermAnswersGrade)).
			Post("/answers/grade", GradeHandler(d))

		pr.With(c.Require(rbac.PermExposureRecord)).
			Post("/exposures", RecordExposureHandler(d))
		pr.With(c.Require(rbac.PermExposureAnalyze)).
			Get("/exposures/rates", ExposureRatesHandler(d))
		pr.With(c.Require(rbac.PermExposureAnalyze)).
			Get("/exposures/report", ExposureReportHandler(d))
	})
	return r
}
