// Package handlers provides HTTP handlers for performance history.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/api"
	"github.com/aristath/folio/internal/modules/snapshots"
)

// Handler handles performance snapshot HTTP requests
type Handler struct {
	service *snapshots.Service
	log     zerolog.Logger
}

// NewHandler creates a new snapshot handler
func NewHandler(service *snapshots.Service, log zerolog.Logger) *Handler {
	return &Handler{
		service: service,
		log:     log.With().Str("handler", "snapshots").Logger(),
	}
}

// HandleGetPerformance returns a portfolio's performance window. The days
// query parameter bounds the window, defaulting to 30.
func (h *Handler) HandleGetPerformance(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		api.WriteValidation(w, "id", "must be a positive integer")
		return
	}

	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		days, err = strconv.Atoi(v)
		if err != nil || days < 1 || days > 365 {
			api.WriteValidation(w, "days", "must be between 1 and 365")
			return
		}
	}

	series, err := h.service.GetSeries(id, days)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, series)
}

// HandleCaptureSnapshots triggers the daily capture sweep on demand
func (h *Handler) HandleCaptureSnapshots(w http.ResponseWriter, r *http.Request) {
	captured, err := h.service.CaptureAll()
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"captured": captured,
	})
}
