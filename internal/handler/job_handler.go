package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dandantas/pulse/internal/ledger"
	"github.com/dandantas/pulse/internal/service"
	"github.com/dandantas/pulse/pkg/middleware"
	"github.com/google/uuid"
)

// JobHandler handles externally triggered jobs and job status lookups
type JobHandler struct {
	runner *service.JobRunner
	ledger *ledger.Ledger
}

// NewJobHandler creates a new job handler
func NewJobHandler(runner *service.JobRunner, l *ledger.Ledger) *JobHandler {
	return &JobHandler{
		runner: runner,
		ledger: l,
	}
}

// TriggerRequest carries the job key guarding a trigger
type TriggerRequest struct {
	JobKey string `json:"job_key"`
}

// TriggerResponse is returned for an accepted trigger
type TriggerResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Trigger handles POST /api/v1/jobs/{kind}/trigger
func (h *JobHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	kind, ok := kindFromPath(r.PathValue("kind"))
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown data kind")
		return
	}

	var req TriggerRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	key, err := uuid.Parse(req.JobKey)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid job key")
		return
	}

	jobID, err := h.runner.Trigger(r.Context(), kind, key)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrInvalidJobKey):
		slog.Warn("Rejected job trigger with invalid key",
			"kind", kind,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		writeError(w, http.StatusUnauthorized, "Invalid job key")
		return
	case errors.Is(err, service.ErrUnknownKind):
		writeError(w, http.StatusNotFound, "Unknown data kind")
		return
	default:
		slog.Error("Failed to queue triggered job",
			"kind", kind,
			"error", err,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		writeError(w, http.StatusServiceUnavailable, "Job could not be queued")
		return
	}

	writeJSON(w, http.StatusAccepted, TriggerResponse{
		JobID:  jobID,
		Status: "Started",
	})
}

// Get handles GET /api/v1/jobs/{jobId}
func (h *JobHandler) Get(w http.ResponseWriter, r *http.Request) {
	status, ok := h.ledger.Get(r.PathValue("jobId"))
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}
