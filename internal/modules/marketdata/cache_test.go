package marketdata

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
)

var testDBCounter int

func newCacheDB(t *testing.T) *database.DB {
	t.Helper()

	testDBCounter++
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:cachetest%d?mode=memory&cache=shared", testDBCounter),
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

func testQuote(symbol string, price float64) Quote {
	return Quote{
		Symbol:        symbol,
		Price:         price,
		ChangePercent: 1.25,
		Currency:      "USD",
		FetchedAt:     time.Now().Truncate(time.Second),
	}
}

func TestCachePutGet(t *testing.T) {
	db := newCacheDB(t)
	cache := NewCache(db.Conn(), time.Minute, zerolog.Nop())

	cache.Put(testQuote("AAPL", 150))

	got, ok := cache.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 150.0, got.Price)
	assert.Equal(t, 1.25, got.ChangePercent)

	t.Run("symbols are normalized on both paths", func(t *testing.T) {
		cache.Put(testQuote(" msft ", 300))

		got, ok := cache.Get("msft")
		require.True(t, ok)
		assert.Equal(t, "MSFT", got.Symbol)
	})

	t.Run("miss on unknown symbol", func(t *testing.T) {
		_, ok := cache.Get("TSLA")
		assert.False(t, ok)
	})

	t.Run("a second put overwrites", func(t *testing.T) {
		cache.Put(testQuote("AAPL", 155))

		got, ok := cache.Get("AAPL")
		require.True(t, ok)
		assert.Equal(t, 155.0, got.Price)
	})
}

func TestCacheExpiry(t *testing.T) {
	db := newCacheDB(t)
	// A negative TTL makes every entry already expired on write
	cache := NewCache(db.Conn(), -time.Second, zerolog.Nop())

	cache.Put(testQuote("AAPL", 150))

	_, ok := cache.Get("AAPL")
	assert.False(t, ok)

	t.Run("the expired row is evicted from the store", func(t *testing.T) {
		var count int
		err := db.Conn().QueryRow(`SELECT COUNT(*) FROM quote_cache WHERE symbol = 'AAPL'`).Scan(&count)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestCacheSurvivesRestart(t *testing.T) {
	db := newCacheDB(t)

	warm := NewCache(db.Conn(), time.Minute, zerolog.Nop())
	warm.Put(testQuote("AAPL", 150))

	// A fresh instance over the same database simulates a process restart
	cold := NewCache(db.Conn(), time.Minute, zerolog.Nop())

	got, ok := cold.Get("AAPL")
	require.True(t, ok)
	assert.Equal(t, "AAPL", got.Symbol)
	assert.Equal(t, 150.0, got.Price)
	assert.Equal(t, "USD", got.Currency)

	t.Run("fetched_at survives the round trip", func(t *testing.T) {
		original := testQuote("MSFT", 300)
		warm.Put(original)

		got, ok := cold.Get("MSFT")
		require.True(t, ok)
		assert.Equal(t, original.FetchedAt.Unix(), got.FetchedAt.Unix())
	})
}

func TestTopStocksRepository(t *testing.T) {
	db := newCacheDB(t)
	repo := NewTopStocksRepository(db.Conn(), zerolog.Nop())

	now := time.Now()
	first := []TopStock{
		{Rank: 1, Symbol: "NVDA", Name: "NVIDIA Corporation", Price: 500, ChangePercent: 2.1, FetchedAt: now},
		{Rank: 2, Symbol: "TSLA", Name: "Tesla, Inc.", Price: 250, ChangePercent: -1.3, FetchedAt: now},
	}
	require.NoError(t, repo.ReplaceAll(first))

	stocks, err := repo.GetAll()
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, 1, stocks[0].Rank)
	assert.Equal(t, "NVDA", stocks[0].Symbol)
	assert.Equal(t, "TSLA", stocks[1].Symbol)

	t.Run("replace swaps the whole list", func(t *testing.T) {
		second := []TopStock{
			{Rank: 1, Symbol: "AAPL", Name: "Apple Inc.", Price: 180, ChangePercent: 0.4, FetchedAt: now},
		}
		require.NoError(t, repo.ReplaceAll(second))

		stocks, err := repo.GetAll()
		require.NoError(t, err)
		require.Len(t, stocks, 1)
		assert.Equal(t, "AAPL", stocks[0].Symbol)
	})

	t.Run("empty store yields an empty list", func(t *testing.T) {
		require.NoError(t, repo.ReplaceAll(nil))

		stocks, err := repo.GetAll()
		require.NoError(t, err)
		assert.Empty(t, stocks)
	})
}
