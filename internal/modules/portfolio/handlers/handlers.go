// Package handlers provides HTTP handlers for portfolio and position management.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/api"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// Handler handles portfolio and item HTTP requests
type Handler struct {
	portfolios *portfolio.PortfolioRepository
	items      *portfolio.ItemRepository
	ledger     *ledger.Service
	log        zerolog.Logger
}

// NewHandler creates a new portfolio handler
func NewHandler(
	portfolios *portfolio.PortfolioRepository,
	items *portfolio.ItemRepository,
	ledgerService *ledger.Service,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		portfolios: portfolios,
		items:      items,
		ledger:     ledgerService,
		log:        log.With().Str("handler", "portfolio").Logger(),
	}
}

type portfolioRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleCreatePortfolio creates an empty portfolio
func (h *Handler) HandleCreatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	p := &portfolio.Portfolio{Name: req.Name, Description: req.Description}
	if err := p.Validate(); err != nil {
		api.WriteError(w, err, h.log)
		return
	}

	created, err := h.portfolios.Create(p)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, created)
}

// HandleListPortfolios returns all portfolios
func (h *Handler) HandleListPortfolios(w http.ResponseWriter, r *http.Request) {
	portfolios, err := h.portfolios.GetAll()
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, portfolios)
}

// HandleGetPortfolio returns one portfolio
func (h *Handler) HandleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.portfolios.GetByID(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if p == nil {
		api.WriteError(w, domain.NewPortfolioNotFound(id), h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, p)
}

// HandleUpdatePortfolio renames a portfolio or changes its description
func (h *Handler) HandleUpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req portfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	// An omitted name keeps the current one, so a description-only edit
	// is valid; only a supplied name has to pass validation.
	if req.Name != "" {
		p := &portfolio.Portfolio{Name: req.Name}
		if err := p.Validate(); err != nil {
			api.WriteError(w, err, h.log)
			return
		}
	}

	updated, err := h.portfolios.Update(id, req.Name, req.Description)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if updated == nil {
		api.WriteError(w, domain.NewPortfolioNotFound(id), h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, updated)
}

// HandleDeletePortfolio deletes an empty portfolio. A portfolio still holding
// items must be emptied first.
func (h *Handler) HandleDeletePortfolio(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	count, err := h.portfolios.CountItems(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if count > 0 {
		api.WriteError(w, domain.NewValidationError("portfolio",
			"cannot delete a portfolio that still holds items"), h.log)
		return
	}

	deleted, err := h.portfolios.Delete(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if !deleted {
		api.WriteError(w, domain.NewPortfolioNotFound(id), h.log)
		return
	}
	api.WriteMessage(w, http.StatusOK, "portfolio deleted")
}

// HandleGetSummary returns a portfolio with its aggregates, allocation
// breakdowns by type and sector, and the positions with derived values
func (h *Handler) HandleGetSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.portfolios.GetByID(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if p == nil {
		api.WriteError(w, domain.NewPortfolioNotFound(id), h.log)
		return
	}

	items, err := h.items.GetByPortfolio(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}

	views := make([]portfolio.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.View())
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"portfolio":            p,
		"summary":              portfolio.ComputeSummary(items),
		"allocation_by_type":   portfolio.ComputeAllocation(items, portfolio.ByType),
		"allocation_by_sector": portfolio.ComputeAllocation(items, portfolio.BySector),
		"items":                views,
	})
}

// HandleListItems returns a portfolio's positions with derived values
func (h *Handler) HandleListItems(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	p, err := h.portfolios.GetByID(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if p == nil {
		api.WriteError(w, domain.NewPortfolioNotFound(id), h.log)
		return
	}

	items, err := h.items.GetByPortfolio(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}

	views := make([]portfolio.ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, item.View())
	}
	api.WriteSuccess(w, http.StatusOK, views)
}

type createItemRequest struct {
	PortfolioID   int64              `json:"portfolio_id"`
	Symbol        string             `json:"symbol"`
	Name          string             `json:"name"`
	Type          portfolio.ItemType `json:"type"`
	Quantity      float64            `json:"quantity"`
	PurchasePrice float64            `json:"purchase_price"`
	CurrentPrice  *float64           `json:"current_price"`
	PurchaseDate  string             `json:"purchase_date"`
	Sector        string             `json:"sector"`
	Currency      string             `json:"currency"`
}

// HandleCreateItem opens a position. Adding a symbol the portfolio already
// holds merges into the existing position instead of creating a second row.
func (h *Handler) HandleCreateItem(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	created, err := h.ledger.CreateItem(req.PortfolioID, portfolio.Item{
		Symbol:        req.Symbol,
		Name:          req.Name,
		Type:          req.Type,
		Quantity:      req.Quantity,
		PurchasePrice: req.PurchasePrice,
		CurrentPrice:  req.CurrentPrice,
		PurchaseDate:  req.PurchaseDate,
		Sector:        req.Sector,
		Currency:      req.Currency,
	})
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, created.View())
}

// HandleGetItem returns one position with derived values
func (h *Handler) HandleGetItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	item, err := h.items.GetByID(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if item == nil {
		api.WriteError(w, domain.NewItemNotFound(id), h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, item.View())
}

// HandleUpdateItem applies a partial edit to a position
func (h *Handler) HandleUpdateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var update portfolio.ItemUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	updated, err := h.ledger.UpdateItem(id, update)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, updated.View())
}

// HandleDeleteItem removes a position without recording a sale
func (h *Handler) HandleDeleteItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	deleted, err := h.ledger.DeleteItem(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if !deleted {
		api.WriteError(w, domain.NewItemNotFound(id), h.log)
		return
	}
	api.WriteMessage(w, http.StatusOK, "item deleted")
}

type buyRequest struct {
	Quantity     float64  `json:"quantity"`
	Price        float64  `json:"price"`
	Date         string   `json:"date"`
	CurrentPrice *float64 `json:"current_price"`
}

// HandleBuyMore adds to an existing position at weighted-average cost
func (h *Handler) HandleBuyMore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	updated, err := h.ledger.BuyMore(id, req.Quantity, req.Price, req.Date, req.CurrentPrice)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, updated.View())
}

type sellRequest struct {
	Quantity       float64 `json:"quantity"`
	Price          float64 `json:"price"`
	Date           string  `json:"date"`
	EntirePosition bool    `json:"entire_position"`
}

// HandleSellItem reduces or closes a position
func (h *Handler) HandleSellItem(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r, "id")
	if !ok {
		return
	}

	var req sellRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}
	if req.Date == "" {
		req.Date = time.Now().Format("2006-01-02")
	}

	result, err := h.ledger.Sell(id, req.Quantity, req.Price, req.Date, req.EntirePosition)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, result)
}

type priceUpdateRequest struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
}

// HandleUpdatePrice sets the current price of a symbol across all portfolios
func (h *Handler) HandleUpdatePrice(w http.ResponseWriter, r *http.Request) {
	var req priceUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	count, err := h.ledger.UpdatePriceForSymbol(req.Symbol, req.Price)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"symbol":        portfolio.NormalizeSymbol(req.Symbol),
		"price":         req.Price,
		"items_updated": count,
	})
}

// pathID parses a numeric path parameter, rejecting the request when malformed
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id < 1 {
		api.WriteValidation(w, name, "must be a positive integer")
		return 0, false
	}
	return id, true
}
