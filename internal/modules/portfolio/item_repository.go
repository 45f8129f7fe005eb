package portfolio

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

const itemColumns = `id, portfolio_id, symbol, name, type, quantity, purchase_price,
	current_price, purchase_date, sector, currency, created_at, updated_at`

// ItemRepository handles position persistence in portfolio.db.
// Mutations used by the ledger service take a DBTX so they can run inside
// the service's unit of work.
type ItemRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewItemRepository creates a new item repository
func NewItemRepository(db *sql.DB, log zerolog.Logger) *ItemRepository {
	return &ItemRepository{
		db:  db,
		log: log.With().Str("repository", "items").Logger(),
	}
}

// Insert writes a new item. Symbol is normalized to uppercase here so every
// write path shares the same rule.
func (r *ItemRepository) Insert(q DBTX, item Item) (*Item, error) {
	item.Symbol = NormalizeSymbol(item.Symbol)
	if item.Currency == "" {
		item.Currency = "USD"
	}

	now := time.Now()
	result, err := q.Exec(`
		INSERT INTO portfolio_items
		(portfolio_id, symbol, name, type, quantity, purchase_price, current_price,
		 purchase_date, sector, currency, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		item.PortfolioID,
		item.Symbol,
		item.Name,
		string(item.Type),
		item.Quantity,
		item.PurchasePrice,
		nullFloat64(item.CurrentPrice),
		item.PurchaseDate,
		nullString(item.Sector),
		item.Currency,
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item %s: %w", item.Symbol, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get item id: %w", err)
	}

	item.ID = id
	item.CreatedAt = now
	item.UpdatedAt = now
	return &item, nil
}

// Get fetches an item by id. Returns (nil, nil) when not found.
func (r *ItemRepository) Get(q DBTX, id int64) (*Item, error) {
	row := q.QueryRow(`SELECT `+itemColumns+` FROM portfolio_items WHERE id = ?`, id)
	return scanItem(row)
}

// GetByID fetches an item outside any transaction
func (r *ItemRepository) GetByID(id int64) (*Item, error) {
	return r.Get(r.db, id)
}

// GetBySymbol fetches the open position for a symbol within a portfolio.
// Returns (nil, nil) when no position exists.
func (r *ItemRepository) GetBySymbol(q DBTX, portfolioID int64, symbol string) (*Item, error) {
	row := q.QueryRow(
		`SELECT `+itemColumns+` FROM portfolio_items WHERE portfolio_id = ? AND symbol = ?`,
		portfolioID, NormalizeSymbol(symbol),
	)
	return scanItem(row)
}

// GetByPortfolio returns all items of a portfolio ordered by symbol
func (r *ItemRepository) GetByPortfolio(portfolioID int64) ([]Item, error) {
	return r.getByPortfolio(r.db, portfolioID)
}

func (r *ItemRepository) getByPortfolio(q DBTX, portfolioID int64) ([]Item, error) {
	rows, err := q.Query(
		`SELECT `+itemColumns+` FROM portfolio_items WHERE portfolio_id = ? ORDER BY symbol ASC`,
		portfolioID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query items for portfolio %d: %w", portfolioID, err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItemFromRows(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

// Update persists a merged item (quantity, prices, metadata). The caller is
// responsible for having produced the merged state via ItemUpdate.Merge or
// the position engine.
func (r *ItemRepository) Update(q DBTX, item Item) error {
	item.Symbol = NormalizeSymbol(item.Symbol)

	result, err := q.Exec(`
		UPDATE portfolio_items
		SET symbol = ?, name = ?, type = ?, quantity = ?, purchase_price = ?,
		    current_price = ?, purchase_date = ?, sector = ?, currency = ?, updated_at = ?
		WHERE id = ?
	`,
		item.Symbol,
		item.Name,
		string(item.Type),
		item.Quantity,
		item.PurchasePrice,
		nullFloat64(item.CurrentPrice),
		item.PurchaseDate,
		nullString(item.Sector),
		item.Currency,
		time.Now().Unix(),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update item %d: %w", item.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %d not found for update", item.ID)
	}
	return nil
}

// Delete removes an item row. Transactions referencing it keep their data;
// the foreign key releases portfolio_item_id to NULL. Returns false when the
// item does not exist.
func (r *ItemRepository) Delete(q DBTX, id int64) (bool, error) {
	result, err := q.Exec(`DELETE FROM portfolio_items WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete item %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// PortfoliosHoldingSymbol returns the distinct portfolios with an open
// position in the symbol
func (r *ItemRepository) PortfoliosHoldingSymbol(q DBTX, symbol string) ([]int64, error) {
	rows, err := q.Query(
		`SELECT DISTINCT portfolio_id FROM portfolio_items WHERE symbol = ?`,
		NormalizeSymbol(symbol),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query portfolios holding %s: %w", symbol, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan portfolio id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePriceBySymbol sets current_price on every position matching the
// symbol across all portfolios and returns the number of rows touched
func (r *ItemRepository) UpdatePriceBySymbol(q DBTX, symbol string, price float64) (int64, error) {
	result, err := q.Exec(
		`UPDATE portfolio_items SET current_price = ?, updated_at = ? WHERE symbol = ?`,
		price, time.Now().Unix(), NormalizeSymbol(symbol),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to update price for %s: %w", symbol, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected, nil
}

// DistinctSymbols returns every symbol currently held in any portfolio.
// Used by the price sync job to know what to quote.
func (r *ItemRepository) DistinctSymbols() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT symbol FROM portfolio_items ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query held symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// scanItem scans an item from a single-row query
func scanItem(row *sql.Row) (*Item, error) {
	var item Item
	var currentPrice sql.NullFloat64
	var sector sql.NullString
	var itemType string
	var createdAt, updatedAt int64

	err := row.Scan(
		&item.ID, &item.PortfolioID, &item.Symbol, &item.Name, &itemType,
		&item.Quantity, &item.PurchasePrice, &currentPrice, &item.PurchaseDate,
		&sector, &item.Currency, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item: %w", err)
	}

	item.Type = ItemType(itemType)
	if currentPrice.Valid {
		v := currentPrice.Float64
		item.CurrentPrice = &v
	}
	item.Sector = sector.String
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	return &item, nil
}

// scanItemFromRows scans an item from a multi-row result set
func scanItemFromRows(rows *sql.Rows) (*Item, error) {
	var item Item
	var currentPrice sql.NullFloat64
	var sector sql.NullString
	var itemType string
	var createdAt, updatedAt int64

	err := rows.Scan(
		&item.ID, &item.PortfolioID, &item.Symbol, &item.Name, &itemType,
		&item.Quantity, &item.PurchasePrice, &currentPrice, &item.PurchaseDate,
		&sector, &item.Currency, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan item row: %w", err)
	}

	item.Type = ItemType(itemType)
	if currentPrice.Valid {
		v := currentPrice.Float64
		item.CurrentPrice = &v
	}
	item.Sector = sector.String
	item.CreatedAt = time.Unix(createdAt, 0)
	item.UpdatedAt = time.Unix(updatedAt, 0)
	return &item, nil
}
