package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/modules/ledger"
	"github.com/aristath/folio/internal/modules/portfolio"
)

var testDBCounter int

type testEnv struct {
	server       *httptest.Server
	db           *database.DB
	transactions *ledger.TransactionRepository
	portfolioID  int64
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()

	testDBCounter++
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:ledgerhandlers%d?mode=memory&cache=shared", testDBCounter),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.Migrate())

	nop := zerolog.Nop()
	portfolios := portfolio.NewPortfolioRepository(db.Conn(), nop)
	items := portfolio.NewItemRepository(db.Conn(), nop)
	transactions := ledger.NewTransactionRepository(db.Conn(), nop)
	service := ledger.NewService(db.Conn(), portfolios, items, transactions, nop)

	p, err := portfolios.Create(&portfolio.Portfolio{Name: "History"})
	require.NoError(t, err)

	r := chi.NewRouter()
	NewHandler(service, transactions, nop).RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)

	return testEnv{server: server, db: db, transactions: transactions, portfolioID: p.ID}
}

type listPayload struct {
	Transactions []json.RawMessage `json:"transactions"`
	Pagination   struct {
		Page       int  `json:"page"`
		Limit      int  `json:"limit"`
		Total      int  `json:"total"`
		TotalPages int  `json:"total_pages"`
		HasNext    bool `json:"has_next"`
		HasPrev    bool `json:"has_prev"`
	} `json:"pagination"`
}

func getList(t *testing.T, env testEnv, query string) listPayload {
	t.Helper()

	resp, err := http.Get(env.server.URL + "/transactions" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)

	var payload listPayload
	require.NoError(t, json.Unmarshal(body.Data, &payload))
	return payload
}

func TestListTransactionsPagination(t *testing.T) {
	env := newTestEnv(t)

	for i := 0; i < 5; i++ {
		_, err := env.transactions.Create(env.db.Conn(), ledger.Transaction{
			PortfolioID:     env.portfolioID,
			Type:            ledger.TypeBuy,
			Symbol:          "AAPL",
			Quantity:        1,
			PricePerUnit:    100,
			TransactionDate: fmt.Sprintf("2024-01-%02d", i+1),
		})
		require.NoError(t, err)
	}

	t.Run("first page", func(t *testing.T) {
		payload := getList(t, env, "?page=1&limit=2")

		assert.Len(t, payload.Transactions, 2)
		assert.Equal(t, 5, payload.Pagination.Total)
		assert.Equal(t, 3, payload.Pagination.TotalPages)
		assert.True(t, payload.Pagination.HasNext)
		assert.False(t, payload.Pagination.HasPrev)
	})

	t.Run("middle page", func(t *testing.T) {
		payload := getList(t, env, "?page=2&limit=2")

		assert.Len(t, payload.Transactions, 2)
		assert.True(t, payload.Pagination.HasNext)
		assert.True(t, payload.Pagination.HasPrev)
	})

	t.Run("last page", func(t *testing.T) {
		payload := getList(t, env, "?page=3&limit=2")

		assert.Len(t, payload.Transactions, 1)
		assert.False(t, payload.Pagination.HasNext)
		assert.True(t, payload.Pagination.HasPrev)
	})

	t.Run("defaults fit everything on one page", func(t *testing.T) {
		payload := getList(t, env, "")

		assert.Len(t, payload.Transactions, 5)
		assert.Equal(t, 1, payload.Pagination.Page)
		assert.Equal(t, 20, payload.Pagination.Limit)
		assert.False(t, payload.Pagination.HasNext)
		assert.False(t, payload.Pagination.HasPrev)
	})
}
