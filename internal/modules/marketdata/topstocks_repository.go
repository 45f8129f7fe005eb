package marketdata

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

// TopStocksRepository persists the rolling top-stocks window in cache.db
type TopStocksRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTopStocksRepository creates a new top-stocks repository
func NewTopStocksRepository(db *sql.DB, log zerolog.Logger) *TopStocksRepository {
	return &TopStocksRepository{
		db:  db,
		log: log.With().Str("repository", "top_stocks").Logger(),
	}
}

// ReplaceAll swaps the whole window in one transaction so readers never see
// a partially refreshed list
func (r *TopStocksRepository) ReplaceAll(stocks []TopStock) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM top_stocks`); err != nil {
			return fmt.Errorf("failed to clear top stocks: %w", err)
		}

		for _, s := range stocks {
			_, err := tx.Exec(`
				INSERT INTO top_stocks (rank, symbol, name, price, change_percent, market_cap, fetched_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, s.Rank, s.Symbol, s.Name, s.Price, s.ChangePercent, s.MarketCap, s.FetchedAt.Unix())
			if err != nil {
				return fmt.Errorf("failed to insert top stock %s: %w", s.Symbol, err)
			}
		}
		return nil
	})
}

// GetAll returns the current window ordered by rank
func (r *TopStocksRepository) GetAll() ([]TopStock, error) {
	rows, err := r.db.Query(`
		SELECT rank, symbol, name, price, change_percent, market_cap, fetched_at
		FROM top_stocks
		ORDER BY rank ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query top stocks: %w", err)
	}
	defer rows.Close()

	var stocks []TopStock
	for rows.Next() {
		var s TopStock
		var fetchedAt int64
		if err := rows.Scan(&s.Rank, &s.Symbol, &s.Name, &s.Price,
			&s.ChangePercent, &s.MarketCap, &fetchedAt); err != nil {
			return nil, fmt.Errorf("failed to scan top stock: %w", err)
		}
		s.FetchedAt = time.Unix(fetchedAt, 0)
		stocks = append(stocks, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return stocks, nil
}
