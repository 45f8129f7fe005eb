// Package handlers provides HTTP handlers for the transaction history.
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/api"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/ledger"
)

// Handler handles transaction HTTP requests
type Handler struct {
	service      *ledger.Service
	transactions *ledger.TransactionRepository
	log          zerolog.Logger
}

// NewHandler creates a new transaction handler
func NewHandler(service *ledger.Service, transactions *ledger.TransactionRepository, log zerolog.Logger) *Handler {
	return &Handler{
		service:      service,
		transactions: transactions,
		log:          log.With().Str("handler", "transactions").Logger(),
	}
}

// HandleCreateTransaction records a manual history entry (dividends, fees,
// deposits, corrections). Buys and sells normally come from the item
// endpoints, which keep positions in sync.
func (h *Handler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var t ledger.Transaction
	if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	t.Normalize()
	if err := t.Validate(); err != nil {
		api.WriteError(w, err, h.log)
		return
	}

	created, err := h.service.RecordTransaction(t)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusCreated, created)
}

// HandleListTransactions returns a filtered, paginated history page
func (h *Handler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, ok := h.parseFilter(w, r)
	if !ok {
		return
	}

	transactions, total, err := h.transactions.List(filter)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	api.WriteSuccess(w, http.StatusOK, map[string]interface{}{
		"transactions": transactions,
		"pagination": map[string]interface{}{
			"page":        page,
			"limit":       limit,
			"total":       total,
			"total_pages": (total + limit - 1) / limit,
			"has_next":    page*limit < total,
			"has_prev":    page > 1,
		},
	})
}

// HandleGetTransaction returns one history entry
func (h *Handler) HandleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	t, err := h.transactions.GetByID(id)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	if t == nil {
		api.WriteError(w, domain.NewTransactionNotFound(id), h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, t)
}

// HandleUpdateTransaction applies a manual correction to a history entry
func (h *Handler) HandleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	var update ledger.TransactionUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		api.WriteValidation(w, "body", "invalid JSON")
		return
	}

	amended, err := h.service.AmendTransaction(id, update)
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, amended)
}

// HandleDeleteTransaction removes a history entry
func (h *Handler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.service.RemoveTransaction(id); err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteMessage(w, http.StatusOK, "transaction deleted")
}

// HandleStatsByType returns per-type aggregates for a portfolio
func (h *Handler) HandleStatsByType(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := strconv.ParseInt(r.URL.Query().Get("portfolio_id"), 10, 64)
	if err != nil || portfolioID < 1 {
		api.WriteValidation(w, "portfolio_id", "must be a positive integer")
		return
	}

	stats, err := h.transactions.StatsByType(portfolioID,
		r.URL.Query().Get("date_from"), r.URL.Query().Get("date_to"))
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, stats)
}

// HandleStatsBySymbol returns per-symbol buy/sell aggregates for a portfolio
func (h *Handler) HandleStatsBySymbol(w http.ResponseWriter, r *http.Request) {
	portfolioID, err := strconv.ParseInt(r.URL.Query().Get("portfolio_id"), 10, 64)
	if err != nil || portfolioID < 1 {
		api.WriteValidation(w, "portfolio_id", "must be a positive integer")
		return
	}

	stats, err := h.transactions.StatsBySymbol(portfolioID, r.URL.Query().Get("symbol"))
	if err != nil {
		api.WriteError(w, err, h.log)
		return
	}
	api.WriteSuccess(w, http.StatusOK, stats)
}

// parseFilter builds a ListFilter from query parameters
func (h *Handler) parseFilter(w http.ResponseWriter, r *http.Request) (ledger.ListFilter, bool) {
	q := r.URL.Query()
	var filter ledger.ListFilter

	if v := q.Get("portfolio_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 1 {
			api.WriteValidation(w, "portfolio_id", "must be a positive integer")
			return filter, false
		}
		filter.PortfolioID = id
	}
	if v := q.Get("type"); v != "" {
		t := ledger.TransactionType(v)
		if !t.IsValid() {
			api.WriteValidation(w, "type", "unknown transaction type")
			return filter, false
		}
		filter.Type = t
	}
	if v := q.Get("status"); v != "" {
		s := ledger.TransactionStatus(v)
		if !s.IsValid() {
			api.WriteValidation(w, "status", "unknown transaction status")
			return filter, false
		}
		filter.Status = s
	}
	filter.Symbol = q.Get("symbol")
	filter.DateFrom = q.Get("date_from")
	filter.DateTo = q.Get("date_to")

	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			api.WriteValidation(w, "page", "must be a positive integer")
			return filter, false
		}
		filter.Page = page
	}
	if v := q.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 100 {
			api.WriteValidation(w, "limit", "must be between 1 and 100")
			return filter, false
		}
		filter.Limit = limit
	}

	return filter, true
}

// pathID parses the numeric id path parameter
func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		api.WriteValidation(w, "id", "must be a positive integer")
		return 0, false
	}
	return id, true
}
