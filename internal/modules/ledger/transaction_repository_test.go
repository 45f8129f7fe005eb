package ledger

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

// seedTransactions inserts a small history for one portfolio:
// three AAPL buys across January, one AAPL sell in February, one MSFT
// dividend, and one pending deposit.
func seedTransactions(t *testing.T, env *testEnv, portfolioID int64) {
	t.Helper()

	entries := []Transaction{
		{Type: TypeBuy, Symbol: "AAPL", Quantity: 10, PricePerUnit: 100, TransactionDate: "2024-01-05"},
		{Type: TypeBuy, Symbol: "AAPL", Quantity: 5, PricePerUnit: 110, TransactionDate: "2024-01-15"},
		{Type: TypeBuy, Symbol: "AAPL", Quantity: 5, PricePerUnit: 120, TransactionDate: "2024-01-25", Fees: 2.5},
		{Type: TypeSell, Symbol: "AAPL", Quantity: 8, PricePerUnit: 130, TransactionDate: "2024-02-10", Fees: 1.5},
		{Type: TypeDividend, Symbol: "MSFT", Quantity: 4, PricePerUnit: 0.75, TransactionDate: "2024-02-15"},
		{Type: TypeDeposit, Symbol: "CASH", Quantity: 1, PricePerUnit: 500, TransactionDate: "2024-03-01", Status: StatusPending},
	}
	for _, entry := range entries {
		entry.PortfolioID = portfolioID
		_, err := env.transactions.Create(env.db.Conn(), entry)
		require.NoError(t, err)
	}
}

func TestTransactionCreate(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")

	t.Run("applies write-path defaults", func(t *testing.T) {
		created, err := env.transactions.Create(env.db.Conn(), Transaction{
			PortfolioID:     p.ID,
			Type:            TypeBuy,
			Symbol:          " aapl ",
			Quantity:        10,
			PricePerUnit:    100,
			TransactionDate: "2024-01-05",
		})
		require.NoError(t, err)

		assert.Equal(t, "AAPL", created.Symbol)
		assert.Equal(t, "AAPL", created.AssetName)
		assert.Equal(t, StatusCompleted, created.Status)
		assert.Equal(t, 1000.0, created.TotalAmount)
		assert.NotEmpty(t, created.ReferenceNumber)
		assert.NotZero(t, created.ID)
	})

	t.Run("keeps a caller-provided reference number", func(t *testing.T) {
		created, err := env.transactions.Create(env.db.Conn(), Transaction{
			PortfolioID:     p.ID,
			Type:            TypeBuy,
			Symbol:          "MSFT",
			Quantity:        1,
			PricePerUnit:    300,
			TransactionDate: "2024-01-05",
			ReferenceNumber: "BROKER-42",
		})
		require.NoError(t, err)
		assert.Equal(t, "BROKER-42", created.ReferenceNumber)
	})

	t.Run("rejects invalid entries", func(t *testing.T) {
		_, err := env.transactions.Create(env.db.Conn(), Transaction{
			PortfolioID:     p.ID,
			Type:            "gift",
			Symbol:          "",
			Quantity:        0,
			TransactionDate: "not-a-date",
		})
		require.Error(t, err)
		assert.Equal(t, domain.CodeValidation, domain.CodeOf(err))
	})
}

func TestTransactionList(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")
	other := env.createPortfolio(t, "Other")
	seedTransactions(t, env, p.ID)

	// One row in the other portfolio must never leak into p's listings
	_, err := env.transactions.Create(env.db.Conn(), Transaction{
		PortfolioID: other.ID, Type: TypeBuy, Symbol: "AAPL",
		Quantity: 1, PricePerUnit: 1, TransactionDate: "2024-01-01",
	})
	require.NoError(t, err)

	t.Run("newest first with total count", func(t *testing.T) {
		transactions, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID})
		require.NoError(t, err)

		assert.Equal(t, 6, total)
		require.Len(t, transactions, 6)
		assert.Equal(t, "2024-03-01", transactions[0].TransactionDate)
		assert.Equal(t, "2024-01-05", transactions[5].TransactionDate)
	})

	t.Run("pagination", func(t *testing.T) {
		page1, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Page: 1, Limit: 4})
		require.NoError(t, err)
		assert.Equal(t, 6, total)
		assert.Len(t, page1, 4)

		page2, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Page: 2, Limit: 4})
		require.NoError(t, err)
		assert.Equal(t, 6, total)
		assert.Len(t, page2, 2)

		// Pages never overlap
		assert.NotEqual(t, page1[3].ID, page2[0].ID)

		empty, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Page: 3, Limit: 4})
		require.NoError(t, err)
		assert.Equal(t, 6, total)
		assert.Empty(t, empty)
	})

	t.Run("filter by type", func(t *testing.T) {
		buys, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Type: TypeBuy})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		for _, tx := range buys {
			assert.Equal(t, TypeBuy, tx.Type)
		}
	})

	t.Run("filter by symbol is case-insensitive", func(t *testing.T) {
		_, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Symbol: "aapl"})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
	})

	t.Run("filter by status", func(t *testing.T) {
		pending, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Status: StatusPending})
		require.NoError(t, err)
		require.Equal(t, 1, total)
		assert.Equal(t, TypeDeposit, pending[0].Type)
	})

	t.Run("inclusive date window", func(t *testing.T) {
		_, total, err := env.transactions.List(ListFilter{
			PortfolioID: p.ID,
			DateFrom:    "2024-01-15",
			DateTo:      "2024-02-10",
		})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
	})

	t.Run("combined filters", func(t *testing.T) {
		_, total, err := env.transactions.List(ListFilter{
			PortfolioID: p.ID,
			Type:        TypeBuy,
			Symbol:      "AAPL",
			DateTo:      "2024-01-15",
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
	})

	t.Run("no match yields empty page and zero total", func(t *testing.T) {
		transactions, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID, Symbol: "TSLA"})
		require.NoError(t, err)
		assert.Zero(t, total)
		assert.Empty(t, transactions)
	})
}

func TestStatsByType(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")
	seedTransactions(t, env, p.ID)

	stats, err := env.transactions.StatsByType(p.ID, "", "")
	require.NoError(t, err)
	require.Len(t, stats, 4)

	byType := make(map[TransactionType]TypeStat, len(stats))
	for _, s := range stats {
		byType[s.Type] = s
	}

	buys := byType[TypeBuy]
	assert.Equal(t, 3, buys.Count)
	// 1000 + 550 + 600
	assert.Equal(t, 2150.0, buys.TotalAmount)
	assert.Equal(t, 2.5, buys.TotalFees)
	assert.InDelta(t, 2150.0/3, buys.AvgAmount, 1e-9)

	sells := byType[TypeSell]
	assert.Equal(t, 1, sells.Count)
	assert.Equal(t, 1040.0, sells.TotalAmount)
	assert.Equal(t, 1.5, sells.TotalFees)

	t.Run("date window restricts the groups", func(t *testing.T) {
		stats, err := env.transactions.StatsByType(p.ID, "2024-02-01", "2024-02-29")
		require.NoError(t, err)
		require.Len(t, stats, 2)
		for _, s := range stats {
			assert.Contains(t, []TransactionType{TypeSell, TypeDividend}, s.Type)
		}
	})

	t.Run("empty portfolio yields no groups", func(t *testing.T) {
		empty := env.createPortfolio(t, "Empty")
		stats, err := env.transactions.StatsByType(empty.ID, "", "")
		require.NoError(t, err)
		assert.Empty(t, stats)
	})
}

func TestStatsBySymbol(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")
	seedTransactions(t, env, p.ID)

	t.Run("all symbols, ordered", func(t *testing.T) {
		stats, err := env.transactions.StatsBySymbol(p.ID, "")
		require.NoError(t, err)
		require.Len(t, stats, 3)
		assert.Equal(t, "AAPL", stats[0].Symbol)
		assert.Equal(t, "CASH", stats[1].Symbol)
		assert.Equal(t, "MSFT", stats[2].Symbol)
	})

	t.Run("buy and sell sides separated", func(t *testing.T) {
		stats, err := env.transactions.StatsBySymbol(p.ID, "aapl")
		require.NoError(t, err)
		require.Len(t, stats, 1)

		s := stats[0]
		assert.Equal(t, 20.0, s.TotalBought)
		assert.Equal(t, 8.0, s.TotalSold)
		assert.Equal(t, 2150.0, s.TotalInvested)
		assert.Equal(t, 1040.0, s.TotalReceived)
		assert.Equal(t, 4.0, s.TotalFees)
	})

	t.Run("dividends contribute no bought or sold quantity", func(t *testing.T) {
		stats, err := env.transactions.StatsBySymbol(p.ID, "MSFT")
		require.NoError(t, err)
		require.Len(t, stats, 1)
		assert.Zero(t, stats[0].TotalBought)
		assert.Zero(t, stats[0].TotalSold)
	})
}

func TestTransactionUpdateAndDelete(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")

	created, err := env.transactions.Create(env.db.Conn(), Transaction{
		PortfolioID:     p.ID,
		Type:            TypeFee,
		Symbol:          "AAPL",
		Quantity:        1,
		PricePerUnit:    7.5,
		TransactionDate: "2024-04-01",
	})
	require.NoError(t, err)

	t.Run("update persists merged fields", func(t *testing.T) {
		amended := *created
		amended.Fees = 2.0
		amended.Description = "brokerage quarterly fee"

		ok, err := env.transactions.Update(amended)
		require.NoError(t, err)
		assert.True(t, ok)

		stored, err := env.transactions.GetByID(created.ID)
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, 2.0, stored.Fees)
		assert.Equal(t, "brokerage quarterly fee", stored.Description)
	})

	t.Run("update of a missing row reports false", func(t *testing.T) {
		missing := *created
		missing.ID = 9999
		ok, err := env.transactions.Update(missing)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		ok, err := env.transactions.Delete(created.ID)
		require.NoError(t, err)
		assert.True(t, ok)

		gone, err := env.transactions.GetByID(created.ID)
		require.NoError(t, err)
		assert.Nil(t, gone)

		ok, err = env.transactions.Delete(created.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestCountForItem(t *testing.T) {
	env := newTestEnv(t)
	p := env.createPortfolio(t, "History")
	item, err := env.service.CreateItem(p.ID, newItemFields("AAPL", 10, 100))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := env.service.BuyMore(item.ID, 1, 100, fmt.Sprintf("2024-06-0%d", i+2), nil)
		require.NoError(t, err)
	}

	count, err := env.transactions.CountForItem(item.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	t.Run("closing the position releases the references", func(t *testing.T) {
		_, err := env.service.Sell(item.ID, 0, 150, "2024-06-10", true)
		require.NoError(t, err)

		count, err := env.transactions.CountForItem(item.ID)
		require.NoError(t, err)
		assert.Zero(t, count)

		// The rows themselves survive: 3 buys plus the closing sell
		_, total, err := env.transactions.List(ListFilter{PortfolioID: p.ID})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
	})
}
