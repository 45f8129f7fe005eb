package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers performance snapshot routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/portfolios/{id}/performance", h.HandleGetPerformance)
	r.Post("/snapshots/capture", h.HandleCaptureSnapshots)
}
