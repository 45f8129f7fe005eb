package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

// DBTX aliases the shared interface satisfied by *sql.DB and *sql.Tx.
// Repository methods the ledger service calls inside a unit of work take it
// explicitly so the same query code runs standalone or under a transaction.
type DBTX = database.DBTX

// portfolioColumns avoids SELECT * so schema changes fail loudly
const portfolioColumns = `id, name, description, total_value, created_at, updated_at`

// PortfolioRepository handles portfolio persistence in portfolio.db
type PortfolioRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewPortfolioRepository creates a new portfolio repository
func NewPortfolioRepository(db *sql.DB, log zerolog.Logger) *PortfolioRepository {
	return &PortfolioRepository{
		db:  db,
		log: log.With().Str("repository", "portfolios").Logger(),
	}
}

// Create inserts a new portfolio and returns it with its assigned id
func (r *PortfolioRepository) Create(p *Portfolio) (*Portfolio, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	now := time.Now()
	result, err := r.db.Exec(`
		INSERT INTO portfolios (name, description, total_value, created_at, updated_at)
		VALUES (?, ?, 0, ?, ?)
	`, p.Name, nullString(p.Description), now.Unix(), now.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to create portfolio: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get portfolio id: %w", err)
	}

	created := *p
	created.ID = id
	created.TotalValue = 0
	created.CreatedAt = now
	created.UpdatedAt = now

	r.log.Debug().Int64("id", id).Str("name", p.Name).Msg("Portfolio created")
	return &created, nil
}

// Get fetches a portfolio by id. Returns (nil, nil) when not found.
func (r *PortfolioRepository) Get(q DBTX, id int64) (*Portfolio, error) {
	row := q.QueryRow(`SELECT `+portfolioColumns+` FROM portfolios WHERE id = ?`, id)
	return scanPortfolio(row)
}

// GetByID fetches a portfolio outside any transaction
func (r *PortfolioRepository) GetByID(id int64) (*Portfolio, error) {
	return r.Get(r.db, id)
}

// GetAll returns every portfolio ordered by creation time
func (r *PortfolioRepository) GetAll() ([]Portfolio, error) {
	rows, err := r.db.Query(`SELECT ` + portfolioColumns + ` FROM portfolios ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios: %w", err)
	}
	defer rows.Close()

	var portfolios []Portfolio
	for rows.Next() {
		p, err := scanPortfolioFromRows(rows)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, *p)
	}
	return portfolios, rows.Err()
}

// Update changes name/description. Returns (nil, nil) when the portfolio
// does not exist.
func (r *PortfolioRepository) Update(id int64, name, description string) (*Portfolio, error) {
	existing, err := r.GetByID(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if name == "" {
		name = existing.Name
	}
	p := Portfolio{Name: name}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	_, err = r.db.Exec(`
		UPDATE portfolios SET name = ?, description = ?, updated_at = ? WHERE id = ?
	`, name, nullString(description), time.Now().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update portfolio %d: %w", id, err)
	}

	return r.GetByID(id)
}

// Delete removes a portfolio. Foreign keys cascade to items, transactions,
// and snapshots. Returns false when nothing was deleted.
func (r *PortfolioRepository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM portfolios WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete portfolio %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected > 0 {
		r.log.Info().Int64("id", id).Msg("Portfolio deleted")
	}
	return affected > 0, nil
}

// CountItems returns how many items a portfolio currently owns
func (r *PortfolioRepository) CountItems(id int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM portfolio_items WHERE portfolio_id = ?`, id).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count items for portfolio %d: %w", id, err)
	}
	return count, nil
}

// RecomputeTotalValue rewrites the denormalized total from the items table
// and returns the new value. The computation happens in SQL so the cache can
// never drift from what a direct SUM over items would produce. Safe to call
// repeatedly: with no intervening item mutation the result is identical.
func (r *PortfolioRepository) RecomputeTotalValue(q DBTX, portfolioID int64) (float64, error) {
	_, err := q.Exec(`
		UPDATE portfolios
		SET total_value = (
			SELECT COALESCE(SUM(quantity * COALESCE(current_price, purchase_price)), 0)
			FROM portfolio_items
			WHERE portfolio_id = ?
		),
		updated_at = ?
		WHERE id = ?
	`, portfolioID, time.Now().Unix(), portfolioID)
	if err != nil {
		return 0, fmt.Errorf("failed to recompute total for portfolio %d: %w", portfolioID, err)
	}

	var total float64
	if err := q.QueryRow(`SELECT total_value FROM portfolios WHERE id = ?`, portfolioID).Scan(&total); err != nil {
		return 0, fmt.Errorf("failed to read recomputed total for portfolio %d: %w", portfolioID, err)
	}
	return total, nil
}

// scanPortfolio scans a portfolio from a single-row query
func scanPortfolio(row *sql.Row) (*Portfolio, error) {
	var p Portfolio
	var description sql.NullString
	var createdAt, updatedAt int64

	err := row.Scan(&p.ID, &p.Name, &description, &p.TotalValue, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan portfolio: %w", err)
	}

	p.Description = description.String
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// scanPortfolioFromRows scans a portfolio from a multi-row result set
func scanPortfolioFromRows(rows *sql.Rows) (*Portfolio, error) {
	var p Portfolio
	var description sql.NullString
	var createdAt, updatedAt int64

	if err := rows.Scan(&p.ID, &p.Name, &description, &p.TotalValue, &createdAt, &updatedAt); err != nil {
		return nil, fmt.Errorf("failed to scan portfolio row: %w", err)
	}

	p.Description = description.String
	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// nullString converts an empty string to NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullFloat64 converts a nil pointer to NULL
func nullFloat64(f *float64) interface{} {
	if f == nil {
		return nil
	}
	return *f
}
