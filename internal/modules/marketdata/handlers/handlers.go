// Package handlers provides HTTP handlers for market data.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/api"
	"github.com/aristath/folio/internal/modules/marketdata"
)

// Handler handles market data HTTP requests
type Handler struct {
	service        *marketdata.Service
	topStocksLimit int
	log            zerolog.Logger
}

// NewHandler creates a new market data handler
func NewHandler(service *marketdata.Service, topStocksLimit int, log zerolog.Logger) *Handler {
	return &Handler{
		service:        service,
		topStocksLimit: topStocksLimit,
		log:            log.With().Str("handler", "marketdata").Logger(),
	}
}

// HandleGetQuote returns the quote for a symbol, cache-first
func (h *Handler) HandleGetQuote(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	if symbol == "" {
		api.WriteValidation(w, "symbol", "must not be empty")
		return
	}

	quote, err := h.service.GetQuote(r.Context(), symbol)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, quote)
}

// HandleGetTopStocks returns the stored top-stocks reference window
func (h *Handler) HandleGetTopStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.GetTopStocks()
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, stocks)
}

// HandleRefreshTopStocks replaces the reference window with a fresh fetch
func (h *Handler) HandleRefreshTopStocks(w http.ResponseWriter, r *http.Request) {
	stocks, err := h.service.RefreshTopStocks(r.Context(), h.topStocksLimit)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, stocks)
}

// HandleSyncPrices refreshes held-symbol prices on demand
func (h *Handler) HandleSyncPrices(w http.ResponseWriter, r *http.Request) {
	updated, err := h.service.SyncPrices(r.Context())
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"symbols_updated": updated,
	})
}
