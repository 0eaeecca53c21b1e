// Package api provides the HTTP API for the BJJ Social export service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/bjjsocial/bjjsocial/internal/api/handler"
	"github.com/bjjsocial/bjjsocial/internal/api/middleware"
	"github.com/bjjsocial/bjjsocial/internal/api/models"
	"github.com/bjjsocial/bjjsocial/internal/api/response"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	// Version and BuildTime fill the ops handler's fields when it leaves
	// them empty.
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP requests forwarded by a proxy.
	RequireTLS bool

	// APIKeys guard /v1/ops/status and batch exports. Empty leaves them open.
	APIKeys middleware.APIKeys

	Export handler.ExportHandlerConfig
	Ops    handler.OpsHandlerConfig
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "bjjsocial-export-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))         // Structured logging
	r.Use(middleware.Recovery(cfg.Logger))       // Panic recovery
	r.Use(chimiddleware.RealIP)                  // Real IP extraction
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement behind a proxy

	cfg.Export.Logger = cfg.Logger
	if cfg.Ops.Version == "" {
		cfg.Ops.Version = cfg.Version
	}
	if cfg.Ops.BuildTime == "" {
		cfg.Ops.BuildTime = cfg.BuildTime
	}
	opsHandler := handler.NewOpsHandler(cfg.Ops)
	exportHandler := handler.NewExportHandler(cfg.Export)

	apiKey := middleware.RequireAPIKey(cfg.APIKeys)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)   // 100 req/min
	expensiveRateLimit := middleware.RateLimitByIP(middleware.ExpensiveRateLimit) // 30 req/min
	batchRateLimit := middleware.RateLimitByClient(middleware.BatchRateLimit)     // 10 req/min

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, models.NewProblem(models.ProblemTypeNotFound, "Method not allowed", http.StatusMethodNotAllowed, middleware.GetRequestID(r.Context())))
	})

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Use(middleware.ContentTypeJSON)
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(apiKey).Get("/status", opsHandler.SystemStatus)
		})

		r.Route("/exports", func(r chi.Router) {
			// Documents rendered from community data
			r.Group(func(r chi.Router) {
				r.Use(standardRateLimit)
				r.Get("/users/{userId}", exportHandler.UserProfile)
				r.Get("/users/{userId}/school-position", exportHandler.UserSchoolPosition)
				r.Get("/schools/rankings", exportHandler.SchoolRankings)
				r.Get("/schools/{school}/leaderboard", exportHandler.SchoolLeaderboard)
				r.With(expensiveRateLimit).Get("/community", exportHandler.Community)
			})

			// Documents rendered from request bodies
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireJSON)
				r.With(standardRateLimit).Post("/table", exportHandler.Table)
				r.With(standardRateLimit).Post("/custom", exportHandler.Custom)
				r.With(expensiveRateLimit).Post("/element", exportHandler.Element)
				r.With(apiKey, batchRateLimit).Post("/batch", exportHandler.Batch)
			})
		})
	})

	return r
}
