package handler

import (
	"net/http"

	"github.com/dandantas/pulse/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router handles HTTP routing
type Router struct {
	dataHandlers  []*DataHandler
	jobHandler    *JobHandler
	healthHandler *HealthHandler
	corsConfig    middleware.CORSConfig
}

// NewRouter creates a new router
func NewRouter(
	dataHandlers []*DataHandler,
	jobHandler *JobHandler,
	healthHandler *HealthHandler,
	corsConfig middleware.CORSConfig,
) *Router {
	return &Router{
		dataHandlers:  dataHandlers,
		jobHandler:    jobHandler,
		healthHandler: healthHandler,
		corsConfig:    corsConfig,
	}
}

// Handler returns the configured HTTP handler with middleware
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", rt.healthHandler.Health)
	mux.HandleFunc("GET /ready", rt.healthHandler.Ready)
	mux.Handle("GET /metrics", promhttp.Handler())

	for _, h := range rt.dataHandlers {
		base := "/api/v1/" + routeSegment(h.tracker.Kind())
		mux.HandleFunc("GET "+base, h.List)
		mux.HandleFunc("GET "+base+"/{key}", h.Get)
		mux.HandleFunc("GET "+base+"/{key}/history", h.History)
		mux.HandleFunc("POST "+base+"/refresh", h.Refresh)
		mux.HandleFunc("POST "+base+"/refresh/{key}", h.RefreshKey)
	}

	mux.HandleFunc("POST /api/v1/jobs/{kind}/trigger", rt.jobHandler.Trigger)
	mux.HandleFunc("GET /api/v1/jobs/{jobId}", rt.jobHandler.Get)

	// Metrics sits directly on the mux to see the matched pattern; CORS runs before routing for preflight.
	handler := middleware.Metrics(mux)
	handler = middleware.CORS(rt.corsConfig)(handler)
	handler = middleware.Recovery(handler)
	handler = middleware.Logging(handler)
	handler = middleware.CorrelationID(handler)

	return handler
}
