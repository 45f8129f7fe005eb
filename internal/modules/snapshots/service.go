package snapshots

import (
	"database/sql"
	"math"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// smoothingWindow is the SMA period applied to the value series
const smoothingWindow = 7

// PortfolioSource provides the portfolios and valuations the capture job needs
type PortfolioSource interface {
	GetAll() ([]portfolio.Portfolio, error)
	Get(q database.DBTX, id int64) (*portfolio.Portfolio, error)
	RecomputeTotalValue(q database.DBTX, portfolioID int64) (float64, error)
}

var _ PortfolioSource = (*portfolio.PortfolioRepository)(nil)

// Service captures daily valuations and serves the performance series
type Service struct {
	db         *sql.DB
	repo       *Repository
	portfolios PortfolioSource
	log        zerolog.Logger
}

// NewService creates a new snapshot service
func NewService(db *sql.DB, repo *Repository, portfolios PortfolioSource, log zerolog.Logger) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		portfolios: portfolios,
		log:        log.With().Str("service", "snapshots").Logger(),
	}
}

// CaptureAll snapshots every portfolio for today. Called by the daily job
// and the manual trigger; re-running a day overwrites that day's rows.
func (s *Service) CaptureAll() (int, error) {
	portfolios, err := s.portfolios.GetAll()
	if err != nil {
		return 0, err
	}

	date := time.Now().Format("2006-01-02")
	captured := 0
	for _, p := range portfolios {
		if _, err := s.CaptureFor(p.ID, date); err != nil {
			// One bad portfolio must not stop the sweep
			s.log.Error().Err(err).Int64("portfolio_id", p.ID).Msg("Snapshot capture failed")
			continue
		}
		captured++
	}

	s.log.Info().Int("captured", captured).Str("date", date).Msg("Snapshot sweep complete")
	return captured, nil
}

// CaptureFor snapshots one portfolio for the given date. The valuation is
// recomputed from the items table first so the snapshot never records a
// stale cached total. Daily change is measured against the most recent
// earlier snapshot.
func (s *Service) CaptureFor(portfolioID int64, date string) (*Snapshot, error) {
	p, err := s.portfolios.Get(s.db, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewPortfolioNotFound(portfolioID)
	}

	total, err := s.portfolios.RecomputeTotalValue(s.db, portfolioID)
	if err != nil {
		return nil, err
	}

	snapshot := Snapshot{
		PortfolioID: portfolioID,
		Date:        date,
		TotalValue:  total,
	}

	previous, err := s.repo.GetLatestBefore(portfolioID, date)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		snapshot.DailyChange = total - previous.TotalValue
		if previous.TotalValue != 0 {
			snapshot.DailyChangePercent = snapshot.DailyChange / previous.TotalValue * 100
		}
	}

	return s.repo.Upsert(snapshot)
}

// GetSeries returns the performance window for a portfolio: up to `days`
// snapshots ascending, a smoothed value series when the window is long
// enough, and summary statistics over the daily changes.
func (s *Service) GetSeries(portfolioID int64, days int) (*Series, error) {
	p, err := s.portfolios.Get(s.db, portfolioID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, domain.NewPortfolioNotFound(portfolioID)
	}

	points, err := s.repo.GetRecent(portfolioID, days)
	if err != nil {
		return nil, err
	}

	series := &Series{Snapshots: points}
	if len(points) == 0 {
		return series, nil
	}

	changes := make([]float64, len(points))
	values := make([]float64, len(points))
	for i, snap := range points {
		changes[i] = snap.DailyChangePercent
		values[i] = snap.TotalValue
	}

	series.MeanDailyChangePercent = stat.Mean(changes, nil)
	if len(changes) > 1 {
		series.VolatilityPercent = stat.StdDev(changes, nil)
	}
	if math.IsNaN(series.MeanDailyChangePercent) {
		series.MeanDailyChangePercent = 0
	}
	if math.IsNaN(series.VolatilityPercent) {
		series.VolatilityPercent = 0
	}

	if len(values) >= smoothingWindow {
		series.Smoothed = talib.Sma(values, smoothingWindow)
	}

	return series, nil
}
