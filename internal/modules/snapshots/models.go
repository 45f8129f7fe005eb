// Package snapshots stores and serves the daily portfolio value time series.
package snapshots

import "time"

// Snapshot is one dated portfolio valuation. At most one row exists per
// (portfolio, date); re-capturing a day overwrites it.
type Snapshot struct {
	ID                 int64     `json:"id"`
	PortfolioID        int64     `json:"portfolio_id"`
	Date               string    `json:"date"` // YYYY-MM-DD
	TotalValue         float64   `json:"total_value"`
	DailyChange        float64   `json:"daily_change"`
	DailyChangePercent float64   `json:"daily_change_percent"`
	CreatedAt          time.Time `json:"created_at"`
}

// Series is the performance payload for charting: snapshots in ascending
// date order plus derived statistics over the window.
type Series struct {
	Snapshots []Snapshot `json:"snapshots"`
	// Smoothed is a 7-day simple moving average of total value, aligned with
	// Snapshots; present only when the window has at least 7 points.
	Smoothed []float64 `json:"smoothed,omitempty"`
	// MeanDailyChangePercent and VolatilityPercent summarize the window's
	// daily_change_percent values.
	MeanDailyChangePercent float64 `json:"mean_daily_change_percent"`
	VolatilityPercent      float64 `json:"volatility_percent"`
}
