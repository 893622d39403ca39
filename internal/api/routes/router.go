package routes

import (
	"net/http"

	"github.com/zatekoja/carecompanion/internal/api/handlers"
	"github.com/zatekoja/carecompanion/internal/api/middleware"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	geolocationHandler *handlers.GeolocationHandler
	locatorHandler     *handlers.LocatorHandler
	medicationHandler  *handlers.MedicationHandler
	sseHandler         *handlers.SSEHandler
	analyticsHandler   *handlers.AnalyticsHandler

	healthHandler  *handlers.HealthHandler
	metrics        *observability.Metrics
	allowedOrigins []string
}

// NewRouter creates a new router
func NewRouter(
	geolocationHandler *handlers.GeolocationHandler,
	locatorHandler *handlers.LocatorHandler,
	medicationHandler *handlers.MedicationHandler,
	sseHandler *handlers.SSEHandler,
	analyticsHandler *handlers.AnalyticsHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                http.NewServeMux(),
		geolocationHandler: geolocationHandler,
		locatorHandler:     locatorHandler,
		medicationHandler:  medicationHandler,
		sseHandler:         sseHandler,
		analyticsHandler:   analyticsHandler,
		metrics:            metrics,
	}
}

// WithAllowedOrigins restricts CORS to origins. Unset allows any origin.
func (r *Router) WithAllowedOrigins(origins []string) *Router {
	r.allowedOrigins = origins
	return r
}

// WithHealth sets the readiness checks. Unset, readiness reports no checks.
func (r *Router) WithHealth(h *handlers.HealthHandler) *Router {
	r.healthHandler = h
	return r
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	health := r.healthHandler
	if health == nil {
		health = handlers.NewHealthHandler()
	}
	r.mux.HandleFunc("GET /health", health.Live)
	r.mux.HandleFunc("GET /health/ready", health.Ready)

	// Geocoding
	r.mux.HandleFunc("GET /api/geocode", r.geolocationHandler.Geocode)

	// Hospital locator sessions
	r.mux.HandleFunc("POST /api/locator/sessions", r.locatorHandler.CreateSession)
	r.mux.HandleFunc("GET /api/locator/sessions/{id}", r.locatorHandler.GetSession)
	r.mux.HandleFunc("DELETE /api/locator/sessions/{id}", r.locatorHandler.DeleteSession)
	r.mux.HandleFunc("POST /api/locator/sessions/{id}/location", r.locatorHandler.RequestLocation)
	r.mux.HandleFunc("POST /api/locator/sessions/{id}/search", r.locatorHandler.Search)
	r.mux.HandleFunc("PATCH /api/locator/sessions/{id}/filters", r.locatorHandler.UpdateFilters)
	r.mux.HandleFunc("POST /api/locator/sessions/{id}/tracking", r.locatorHandler.StartTracking)
	r.mux.HandleFunc("DELETE /api/locator/sessions/{id}/tracking", r.locatorHandler.StopTracking)
	r.mux.HandleFunc("POST /api/locator/sessions/{id}/positions", r.locatorHandler.PushPosition)
	if r.sseHandler != nil {
		r.mux.HandleFunc("GET /api/locator/sessions/{id}/stream", r.sseHandler.StreamLocatorEvents)
		r.mux.HandleFunc("GET /api/stream/stats", r.sseHandler.StreamStats)
	}

	// Medications
	r.mux.HandleFunc("POST /api/medications/recommend", r.medicationHandler.Recommend)
	r.mux.HandleFunc("POST /api/medications/classify", r.medicationHandler.Classify)
	r.mux.HandleFunc("POST /api/medications/sessions", r.medicationHandler.CreateSession)
	r.mux.HandleFunc("GET /api/medications/sessions/{id}", r.medicationHandler.GetSession)
	r.mux.HandleFunc("DELETE /api/medications/sessions/{id}", r.medicationHandler.DeleteSession)
	r.mux.HandleFunc("POST /api/medications/sessions/{id}/input", r.medicationHandler.Input)
	r.mux.HandleFunc("POST /api/medications/sessions/{id}/search", r.medicationHandler.Search)

	// Analytics
	r.mux.HandleFunc("GET /api/analytics/zero-result-queries", r.analyticsHandler.GetZeroResultQueries)
	r.mux.HandleFunc("GET /api/analytics/unmatched-queries", r.analyticsHandler.GetUnmatchedQueries)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS must be outermost so preflight answers skip everything else.
	handler := middleware.Routed(r.mux)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.Compression(handler)
	handler = middleware.CacheControl(handler)
	handler = middleware.CORS(r.allowedOrigins)(handler)

	return handler
}
