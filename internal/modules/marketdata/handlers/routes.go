package handlers

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes registers market data routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/market", func(r chi.Router) {
		r.Get("/quote/{symbol}", h.HandleGetQuote)
		r.Get("/top-stocks", h.HandleGetTopStocks)
		r.Post("/top-stocks/refresh", h.HandleRefreshTopStocks)
		r.Post("/sync-prices", h.HandleSyncPrices)
	})
}
