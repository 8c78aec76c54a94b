// Package api provides the HTTP API for gpstunnel.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/api/handler"
	"github.com/gpstunnel/gpstunnel/internal/api/middleware"
	"github.com/gpstunnel/gpstunnel/internal/auth"
	"github.com/gpstunnel/gpstunnel/internal/featureflags"
	"github.com/gpstunnel/gpstunnel/internal/maps"
	"github.com/gpstunnel/gpstunnel/internal/provider/resilience"
	"github.com/gpstunnel/gpstunnel/internal/tour"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// RequireTLS rejects plain HTTP requests that were not forwarded by a
	// TLS terminating proxy.
	RequireTLS bool

	// CORSOrigins lists the allowed browser origins. Empty allows none.
	CORSOrigins []string

	TourService        *tour.Service
	MapsService        *maps.Service
	FeatureFlagService *featureflags.Service
	TokenValidator     middleware.TokenValidator
	ProviderRegistry   *resilience.Registry

	// HealthChecks are pinged by /v1/ops/ready and /v1/ops/status.
	HealthChecks map[string]tour.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "gpstunnel-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing(serviceName))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware())
	}
	r.Use(middleware.Logger(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(chimiddleware.RealIP)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id", "Retry-After", "Location"},
		MaxAge:         300,
	}))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.RequireTLS(cfg.RequireTLS))
	r.Use(middleware.ContentTypeJSON)
	r.Use(middleware.RequireJSON)

	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Checks:    cfg.HealthChecks,
		Registry:  cfg.ProviderRegistry,
		Flags:     cfg.FeatureFlagService,
	})
	tourHandler := handler.NewTourHandler(cfg.TourService)
	adminHandler := handler.NewAdminHandler(cfg.TourService)
	mapsHandler := handler.NewMapsHandler(cfg.MapsService)
	featureFlagsHandler := handler.NewFeatureFlagsHandler(cfg.FeatureFlagService)

	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)
	mapsRateLimit := middleware.RateLimitByIP(middleware.MapsRateLimit)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.Get("/status", opsHandler.SystemStatus)
		})

		r.With(standardRateLimit).Get("/languages", tourHandler.ListLanguages)

		r.Route("/tour-routes", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/", tourHandler.ListRoutes)
			r.Route("/{routeId}", func(r chi.Router) {
				r.Get("/", tourHandler.GetRoute)
				r.Get("/points", tourHandler.GetRoutePoints)
				r.Get("/geojson", tourHandler.GetRouteGeoJSON)
			})
		})

		r.Route("/tour-sessions", func(r chi.Router) {
			r.With(standardRateLimit).Post("/", tourHandler.CreateSession)
			r.Route("/{sessionId}", func(r chi.Router) {
				r.With(standardRateLimit).Get("/", tourHandler.GetSession)
				r.With(standardRateLimit).Get("/current-content", tourHandler.CurrentContent)
				// Limited per session, not per IP.
				r.With(middleware.RateLimitBySession(middleware.LocationRateLimit)).
					Put("/location", tourHandler.ReportLocation)
			})
		})

		if cfg.MapsService != nil {
			r.Group(func(r chi.Router) {
				r.Use(mapsRateLimit)
				r.Post("/search/places", mapsHandler.SearchPlaces)
				r.Post("/directions/calculate", mapsHandler.CalculateDirections)
				r.Post("/geocode/address", mapsHandler.GeocodeAddress)
			})
		}

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(cfg.TokenValidator, auth.RoleAdmin))
			r.Use(middleware.RateLimitBySubject(middleware.AdminRateLimit))

			r.Post("/tour-points", adminHandler.CreateTourPoint)
			r.Post("/tour-routes", adminHandler.CreateTourRoute)

			r.Route("/feature-flags", func(r chi.Router) {
				r.Get("/", featureFlagsHandler.ListFeatureFlags)
				r.Put("/", featureFlagsHandler.UpsertFeatureFlags)
				r.Post("/invalidate", featureFlagsHandler.InvalidateCache)
			})
		})
	})

	return r
}
