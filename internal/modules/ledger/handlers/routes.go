package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers transaction history routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/transactions", func(r chi.Router) {
		r.Post("/", h.HandleCreateTransaction)
		r.Get("/", h.HandleListTransactions)
		r.Get("/stats/by-type", h.HandleStatsByType)
		r.Get("/stats/by-symbol", h.HandleStatsBySymbol)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetTransaction)
			r.Put("/", h.HandleUpdateTransaction)
			r.Delete("/", h.HandleDeleteTransaction)
		})
	})
}
