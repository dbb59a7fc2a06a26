package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dandantas/pulse/internal/model"
)

// Pinger reports whether a backing store is reachable
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles service health and readiness checks
type HealthHandler struct {
	sinkName  string
	sink      Pinger
	issues    map[model.DataKind][]string
	startTime time.Time
	version   string
}

// NewHealthHandler creates a new health handler.
// sink may be nil when records are not persisted or the store needs no ping.
func NewHealthHandler(sinkName string, sink Pinger, issues map[model.DataKind][]string, version string) *HealthHandler {
	return &HealthHandler{
		sinkName:  sinkName,
		sink:      sink,
		issues:    issues,
		startTime: time.Now(),
		version:   version,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status        string `json:"status"`
	Version       string `json:"version"`
	Timestamp     string `json:"timestamp"`
	Sink          string `json:"sink"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Ready      bool                        `json:"ready"`
	Sink       string                      `json:"sink"`
	SinkStatus string                      `json:"sink_status"`
	Degraded   map[model.DataKind][]string `json:"degraded,omitempty"`
}

// Health returns the service health status
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:        "healthy",
		Version:       h.version,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Sink:          h.sinkName,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
	})
}

// Ready reports readiness. Only an unreachable sink makes the service unready;
// provider configuration gaps are reported as degraded.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ready := true
	status := "ok"

	if h.sink != nil {
		if err := h.sink.Ping(r.Context()); err != nil {
			ready = false
			status = "unreachable"
		}
	}

	degraded := make(map[model.DataKind][]string)
	for kind, issues := range h.issues {
		if len(issues) > 0 {
			degraded[kind] = issues
		}
	}

	statusCode := http.StatusOK
	if !ready {
		statusCode = http.StatusServiceUnavailable
	}

	writeJSON(w, statusCode, ReadyResponse{
		Ready:      ready,
		Sink:       h.sinkName,
		SinkStatus: status,
		Degraded:   degraded,
	})
}
