package snapshots

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

var testDBCounter int

func newTestDB(t *testing.T) *database.DB {
	t.Helper()

	testDBCounter++
	db, err := database.New(database.Config{
		Path:    fmt.Sprintf("file:snapshottest%d?mode=memory&cache=shared", testDBCounter),
		Profile: database.ProfileLedger,
		Name:    "portfolio",
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, db.Migrate())
	return db
}

type testEnv struct {
	db         *database.DB
	portfolios *portfolio.PortfolioRepository
	items      *portfolio.ItemRepository
	repo       *Repository
	service    *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	log := zerolog.Nop()

	env := &testEnv{
		db:         db,
		portfolios: portfolio.NewPortfolioRepository(db.Conn(), log),
		items:      portfolio.NewItemRepository(db.Conn(), log),
		repo:       NewRepository(db.Conn(), log),
	}
	env.service = NewService(db.Conn(), env.repo, env.portfolios, log)
	return env
}

// createHolding sets up a portfolio holding one position currently worth
// quantity x price.
func (e *testEnv) createHolding(t *testing.T, name string, quantity, price float64) *portfolio.Portfolio {
	t.Helper()

	p, err := e.portfolios.Create(&portfolio.Portfolio{Name: name})
	require.NoError(t, err)

	_, err = e.items.Insert(e.db.Conn(), portfolio.Item{
		PortfolioID:   p.ID,
		Symbol:        "AAPL",
		Name:          "Apple Inc.",
		Type:          portfolio.TypeStock,
		Quantity:      quantity,
		PurchasePrice: price,
		PurchaseDate:  "2024-01-01",
		CurrentPrice:  &price,
	})
	require.NoError(t, err)
	return p
}

func (e *testEnv) setPrice(t *testing.T, price float64) {
	t.Helper()
	_, err := e.items.UpdatePriceBySymbol(e.db.Conn(), "AAPL", price)
	require.NoError(t, err)
}

func TestCaptureFor(t *testing.T) {
	t.Run("first capture has no daily change", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		snap, err := env.service.CaptureFor(p.ID, "2024-06-01")
		require.NoError(t, err)

		assert.Equal(t, 1000.0, snap.TotalValue)
		assert.Equal(t, 0.0, snap.DailyChange)
		assert.Equal(t, 0.0, snap.DailyChangePercent)
	})

	t.Run("change measured against the previous snapshot", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		_, err := env.service.CaptureFor(p.ID, "2024-06-01")
		require.NoError(t, err)

		env.setPrice(t, 110)
		snap, err := env.service.CaptureFor(p.ID, "2024-06-02")
		require.NoError(t, err)

		assert.Equal(t, 1100.0, snap.TotalValue)
		assert.Equal(t, 100.0, snap.DailyChange)
		assert.InDelta(t, 10.0, snap.DailyChangePercent, 1e-9)
	})

	t.Run("gaps compare against the most recent earlier day", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		_, err := env.service.CaptureFor(p.ID, "2024-06-01")
		require.NoError(t, err)

		env.setPrice(t, 120)
		snap, err := env.service.CaptureFor(p.ID, "2024-06-08")
		require.NoError(t, err)

		assert.Equal(t, 200.0, snap.DailyChange)
	})

	t.Run("re-capturing a day overwrites it", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		_, err := env.service.CaptureFor(p.ID, "2024-06-01")
		require.NoError(t, err)

		env.setPrice(t, 150)
		snap, err := env.service.CaptureFor(p.ID, "2024-06-01")
		require.NoError(t, err)
		assert.Equal(t, 1500.0, snap.TotalValue)

		series, err := env.service.GetSeries(p.ID, 30)
		require.NoError(t, err)
		require.Len(t, series.Snapshots, 1)
		assert.Equal(t, 1500.0, series.Snapshots[0].TotalValue)
	})

	t.Run("missing portfolio", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.CaptureFor(42, "2024-06-01")
		require.Error(t, err)
		assert.Equal(t, domain.CodePortfolioNotFound, domain.CodeOf(err))
	})
}

func TestCaptureAll(t *testing.T) {
	env := newTestEnv(t)
	p1 := env.createHolding(t, "Growth", 10, 100)
	p2 := env.createHolding(t, "Retirement", 5, 200)

	captured, err := env.service.CaptureAll()
	require.NoError(t, err)
	assert.Equal(t, 2, captured)

	today := time.Now().Format("2006-01-02")
	for _, p := range []*portfolio.Portfolio{p1, p2} {
		snap, err := env.repo.GetByDate(p.ID, today)
		require.NoError(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, 1000.0, snap.TotalValue)
	}
}

func TestGetSeries(t *testing.T) {
	t.Run("statistics over the daily changes", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		for i, change := range []float64{1, 2, 3} {
			_, err := env.repo.Upsert(Snapshot{
				PortfolioID:        p.ID,
				Date:               fmt.Sprintf("2024-06-0%d", i+1),
				TotalValue:         1000 + float64(i)*10,
				DailyChangePercent: change,
			})
			require.NoError(t, err)
		}

		series, err := env.service.GetSeries(p.ID, 30)
		require.NoError(t, err)

		require.Len(t, series.Snapshots, 3)
		assert.Equal(t, "2024-06-01", series.Snapshots[0].Date)
		assert.Equal(t, "2024-06-03", series.Snapshots[2].Date)
		assert.InDelta(t, 2.0, series.MeanDailyChangePercent, 1e-9)
		assert.InDelta(t, 1.0, series.VolatilityPercent, 1e-9)
		assert.Nil(t, series.Smoothed)
	})

	t.Run("smoothed series appears with seven points", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		for i := 0; i < 8; i++ {
			_, err := env.repo.Upsert(Snapshot{
				PortfolioID: p.ID,
				Date:        fmt.Sprintf("2024-06-%02d", i+1),
				TotalValue:  1000 + float64(i)*100,
			})
			require.NoError(t, err)
		}

		series, err := env.service.GetSeries(p.ID, 30)
		require.NoError(t, err)

		require.Len(t, series.Smoothed, 8)
		// The first full window averages 1000..1600
		assert.InDelta(t, 1300.0, series.Smoothed[6], 1e-9)
		assert.InDelta(t, 1400.0, series.Smoothed[7], 1e-9)
	})

	t.Run("window limits to the most recent days", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		for i := 0; i < 10; i++ {
			_, err := env.repo.Upsert(Snapshot{
				PortfolioID: p.ID,
				Date:        fmt.Sprintf("2024-06-%02d", i+1),
				TotalValue:  1000,
			})
			require.NoError(t, err)
		}

		series, err := env.service.GetSeries(p.ID, 5)
		require.NoError(t, err)

		require.Len(t, series.Snapshots, 5)
		assert.Equal(t, "2024-06-06", series.Snapshots[0].Date)
		assert.Equal(t, "2024-06-10", series.Snapshots[4].Date)
	})

	t.Run("no history yields an empty series", func(t *testing.T) {
		env := newTestEnv(t)
		p := env.createHolding(t, "Growth", 10, 100)

		series, err := env.service.GetSeries(p.ID, 30)
		require.NoError(t, err)
		assert.Empty(t, series.Snapshots)
		assert.Equal(t, 0.0, series.MeanDailyChangePercent)
		assert.Equal(t, 0.0, series.VolatilityPercent)
	})

	t.Run("missing portfolio", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.service.GetSeries(42, 30)
		require.Error(t, err)
		assert.Equal(t, domain.CodePortfolioNotFound, domain.CodeOf(err))
	})
}

func TestGetLatestBefore(t *testing.T) {
	env := newTestEnv(t)
	p := env.createHolding(t, "Growth", 10, 100)

	for _, date := range []string{"2024-06-01", "2024-06-05", "2024-06-10"} {
		_, err := env.repo.Upsert(Snapshot{PortfolioID: p.ID, Date: date, TotalValue: 1000})
		require.NoError(t, err)
	}

	snap, err := env.repo.GetLatestBefore(p.ID, "2024-06-08")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2024-06-05", snap.Date)

	t.Run("strictly before excludes the same day", func(t *testing.T) {
		snap, err := env.repo.GetLatestBefore(p.ID, "2024-06-01")
		require.NoError(t, err)
		assert.Nil(t, snap)
	})
}
