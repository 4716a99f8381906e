// Package api provides the HTTP API for the AQI forecast service.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/airsense/aqiforecast/internal/api/handler"
	"github.com/airsense/aqiforecast/internal/api/middleware"
	"github.com/airsense/aqiforecast/internal/api/response"
	"github.com/airsense/aqiforecast/internal/forecast"
	"github.com/airsense/aqiforecast/internal/provider/resilience"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version     string
	BuildTime   string
	Logger      zerolog.Logger
	ServiceName string
	Metrics     *middleware.Metrics

	// Forecaster serves /v1/forecast (required).
	Forecaster handler.Forecaster

	// Bundle is reported by the ops and metadata endpoints.
	Bundle *forecast.ModelBundle

	// Registry exposes upstream provider health on /v1/ops/status.
	Registry *resilience.Registry

	// Checks are probed by /v1/ops/ready and /v1/ops/status.
	Checks []handler.DependencyCheck

	// RequireTLS rejects plain HTTP requests.
	RequireTLS bool

	// CORSOrigins lists allowed browser origins; empty allows any.
	CORSOrigins []string
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "aqiforecast-api"
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
	r.Use(middleware.CORS(cfg.CORSOrigins))      // Browser clients
	r.Use(middleware.SecurityHeaders)            // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS(cfg.RequireTLS)) // TLS enforcement
	r.Use(middleware.ContentTypeJSON)            // JSON content type

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.NotFound(w, r, "route not found")
	})
	r.MethodNotAllowed(response.MethodNotAllowed)

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(handler.OpsConfig{
		Version:   cfg.Version,
		BuildTime: cfg.BuildTime,
		Bundle:    cfg.Bundle,
		Registry:  cfg.Registry,
		Checks:    cfg.Checks,
	})
	forecastHandler := handler.NewForecastHandler(cfg.Forecaster, cfg.Logger)
	aqiHandler := handler.NewAQIHandler()
	metadataHandler := handler.NewMetadataHandler(cfg.Bundle)

	// Rate limit middleware for different endpoint categories
	forecastRateLimit := middleware.RateLimitByIP(middleware.ForecastRateLimit)       // 30 req/min
	locationRateLimit := middleware.RateLimitByLocation(middleware.LocationRateLimit) // 10 req/min per cell
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)       // 100 req/min

	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
			r.With(standardRateLimit).Get("/status", opsHandler.SystemStatus)
		})

		// Forecast may hit the upstream history API, so it is limited per
		// client and per coordinate cell.
		r.With(forecastRateLimit, locationRateLimit).Get("/forecast", forecastHandler.GetForecast)

		r.With(standardRateLimit).Get("/aqi/index", aqiHandler.GetIndex)

		r.Route("/metadata", func(r chi.Router) {
			r.Use(standardRateLimit)
			r.Get("/enums", metadataHandler.GetEnums)
		})
	})

	return r
}
