package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/dandantas/pulse/internal/model"
	"github.com/dandantas/pulse/internal/service"
	"github.com/dandantas/pulse/pkg/middleware"
)

// HistoryReader serves archived records for a key, newest first
type HistoryReader interface {
	History(kind model.DataKind, key string, limit int) ([]model.DataRecord, error)
}

// DataHandler serves the read and refresh endpoints of one data kind
type DataHandler struct {
	tracker *service.Tracker
	history HistoryReader
}

// NewDataHandler creates a data handler. history may be nil.
func NewDataHandler(tracker *service.Tracker, history HistoryReader) *DataHandler {
	return &DataHandler{
		tracker: tracker,
		history: history,
	}
}

// ListResponse is the body of the collection endpoint
type ListResponse struct {
	Kind       model.DataKind    `json:"kind"`
	Count      int               `json:"count"`
	StaleAfter string            `json:"stale_after"`
	Readings   []service.Reading `json:"readings"`
}

// RefreshRequest optionally restricts a refresh to some keys
type RefreshRequest struct {
	Keys *[]string `json:"keys"`
}

// HistoryResponse is the body of the history endpoint
type HistoryResponse struct {
	Kind    model.DataKind     `json:"kind"`
	Key     string             `json:"key"`
	Records []model.DataRecord `json:"records"`
}

// List handles GET /api/v1/{kind}
func (h *DataHandler) List(w http.ResponseWriter, r *http.Request) {
	readings, err := h.tracker.GetAll(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ListResponse{
		Kind:       h.tracker.Kind(),
		Count:      len(readings),
		StaleAfter: h.tracker.StaleAfter().String(),
		Readings:   readings,
	})
}

// Get handles GET /api/v1/{kind}/{key}
func (h *DataHandler) Get(w http.ResponseWriter, r *http.Request) {
	reading, err := h.tracker.GetLatest(r.Context(), r.PathValue("key"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// Refresh handles POST /api/v1/{kind}/refresh
func (h *DataHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := decodeOptionalJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	var (
		result service.RunResult
		err    error
	)
	if req.Keys == nil {
		result, err = h.tracker.RefreshAll(r.Context())
	} else {
		result, err = h.tracker.Refresh(r.Context(), *req.Keys)
	}
	h.writeRefresh(w, r, result, err)
}

// RefreshKey handles POST /api/v1/{kind}/refresh/{key}
func (h *DataHandler) RefreshKey(w http.ResponseWriter, r *http.Request) {
	result, err := h.tracker.RefreshKey(r.Context(), r.PathValue("key"))
	h.writeRefresh(w, r, result, err)
}

// History handles GET /api/v1/{kind}/{key}/history?limit=N
func (h *DataHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeError(w, http.StatusNotFound, "History is not enabled")
		return
	}

	key, err := h.tracker.Resolve(r.PathValue("key"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	limit := parseQueryInt(r, "limit", 50)
	if limit < 1 || limit > 1000 {
		limit = 50
	}

	records, err := h.history.History(h.tracker.Kind(), key, limit)
	if err != nil {
		slog.Error("Failed to read record history",
			"kind", h.tracker.Kind(),
			"key", key,
			"error", err,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Failed to read history")
		return
	}
	if records == nil {
		records = []model.DataRecord{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Kind:    h.tracker.Kind(),
		Key:     key,
		Records: records,
	})
}

func (h *DataHandler) writeRefresh(w http.ResponseWriter, r *http.Request, result service.RunResult, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	if errors.Is(err, service.ErrNotTracked) || isCancelled(err) || result.JobID == "" {
		h.writeServiceError(w, r, err)
		return
	}

	// Provider detail stays in the job ledger.
	writeJSON(w, http.StatusBadGateway, ErrorResponse{
		Error:   http.StatusText(http.StatusBadGateway),
		Message: "Refresh failed; see job status for details",
		JobID:   result.JobID,
	})
}

func (h *DataHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNotTracked):
		writeError(w, http.StatusNotFound, "Key is not tracked")
	case errors.Is(err, service.ErrNoData):
		writeError(w, http.StatusNotFound, "Could not fetch data")
	case isCancelled(err):
		writeError(w, http.StatusServiceUnavailable, "Request cancelled")
	default:
		slog.Error("Data request failed",
			"kind", h.tracker.Kind(),
			"path", r.URL.Path,
			"error", err,
			"correlation_id", middleware.GetCorrelationID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, "Internal error")
	}
}

func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
