package snapshots

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const snapshotColumns = `id, portfolio_id, date, total_value, daily_change, daily_change_percent, created_at`

// Repository handles snapshot persistence in portfolio.db
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRepository creates a new snapshot repository
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repository", "snapshots").Logger(),
	}
}

// Upsert writes a snapshot, overwriting any existing row for the same
// portfolio and date
func (r *Repository) Upsert(s Snapshot) (*Snapshot, error) {
	now := time.Now()
	_, err := r.db.Exec(`
		INSERT INTO performance_snapshots
		(portfolio_id, date, total_value, daily_change, daily_change_percent, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(portfolio_id, date) DO UPDATE SET
			total_value = excluded.total_value,
			daily_change = excluded.daily_change,
			daily_change_percent = excluded.daily_change_percent
	`, s.PortfolioID, s.Date, s.TotalValue, s.DailyChange, s.DailyChangePercent, now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to upsert snapshot for portfolio %d on %s: %w", s.PortfolioID, s.Date, err)
	}

	return r.GetByDate(s.PortfolioID, s.Date)
}

// GetByDate fetches one snapshot. Returns (nil, nil) when absent.
func (r *Repository) GetByDate(portfolioID int64, date string) (*Snapshot, error) {
	row := r.db.QueryRow(
		`SELECT `+snapshotColumns+` FROM performance_snapshots WHERE portfolio_id = ? AND date = ?`,
		portfolioID, date,
	)
	return scanSnapshot(row)
}

// GetLatestBefore returns the most recent snapshot strictly before the date.
// Returns (nil, nil) when the portfolio has no earlier history.
func (r *Repository) GetLatestBefore(portfolioID int64, date string) (*Snapshot, error) {
	row := r.db.QueryRow(`
		SELECT `+snapshotColumns+`
		FROM performance_snapshots
		WHERE portfolio_id = ? AND date < ?
		ORDER BY date DESC
		LIMIT 1
	`, portfolioID, date)
	return scanSnapshot(row)
}

// GetRecent returns up to `days` most recent snapshots in ascending date
// order, ready for charting.
func (r *Repository) GetRecent(portfolioID int64, days int) ([]Snapshot, error) {
	if days < 1 {
		days = 30
	}

	// Fetch newest-first for the LIMIT, then reverse to ascending
	rows, err := r.db.Query(`
		SELECT `+snapshotColumns+`
		FROM performance_snapshots
		WHERE portfolio_id = ?
		ORDER BY date DESC
		LIMIT ?
	`, portfolioID, days)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var snapshots []Snapshot
	for rows.Next() {
		s, err := scanSnapshotFromRows(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(snapshots)-1; i < j; i, j = i+1, j-1 {
		snapshots[i], snapshots[j] = snapshots[j], snapshots[i]
	}
	return snapshots, nil
}

// scanSnapshot scans a snapshot from a single-row query
func scanSnapshot(row *sql.Row) (*Snapshot, error) {
	var s Snapshot
	var createdAt int64

	err := row.Scan(&s.ID, &s.PortfolioID, &s.Date, &s.TotalValue,
		&s.DailyChange, &s.DailyChangePercent, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0)
	return &s, nil
}

// scanSnapshotFromRows scans a snapshot from a multi-row result set
func scanSnapshotFromRows(rows *sql.Rows) (*Snapshot, error) {
	var s Snapshot
	var createdAt int64

	err := rows.Scan(&s.ID, &s.PortfolioID, &s.Date, &s.TotalValue,
		&s.DailyChange, &s.DailyChangePercent, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
	}

	s.CreatedAt = time.Unix(createdAt, 0)
	return &s, nil
}
