package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers portfolio and item routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/portfolios", func(r chi.Router) {
		r.Post("/", h.HandleCreatePortfolio)
		r.Get("/", h.HandleListPortfolios)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetPortfolio)
			r.Put("/", h.HandleUpdatePortfolio)
			r.Delete("/", h.HandleDeletePortfolio)
			r.Get("/summary", h.HandleGetSummary)
			r.Get("/items", h.HandleListItems)
		})
	})

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.HandleCreateItem)
		r.Put("/price", h.HandleUpdatePrice)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.HandleGetItem)
			r.Put("/", h.HandleUpdateItem)
			r.Delete("/", h.HandleDeleteItem)
			r.Post("/buy", h.HandleBuyMore)
			r.Post("/sell", h.HandleSellItem)
		})
	})
}
