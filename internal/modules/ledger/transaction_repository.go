package ledger

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
)

const transactionColumns = `id, portfolio_id, portfolio_item_id, transaction_type, symbol,
	asset_name, quantity, price_per_unit, total_amount, fees, transaction_date,
	description, reference_number, status, created_at, updated_at`

// TransactionRepository handles the append-only transaction history in
// portfolio.db
type TransactionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *sql.DB, log zerolog.Logger) *TransactionRepository {
	return &TransactionRepository{
		db:  db,
		log: log.With().Str("repository", "transactions").Logger(),
	}
}

// Create validates, normalizes, and inserts a ledger entry. A reference
// number is assigned when the caller did not provide one.
func (r *TransactionRepository) Create(q database.DBTX, t Transaction) (*Transaction, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return nil, err
	}
	if t.ReferenceNumber == "" {
		t.ReferenceNumber = uuid.New().String()
	}

	now := time.Now()
	var itemID interface{}
	if t.PortfolioItemID != nil {
		itemID = *t.PortfolioItemID
	}

	result, err := q.Exec(`
		INSERT INTO transactions
		(portfolio_id, portfolio_item_id, transaction_type, symbol, asset_name,
		 quantity, price_per_unit, total_amount, fees, transaction_date,
		 description, reference_number, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.PortfolioID,
		itemID,
		string(t.Type),
		t.Symbol,
		t.AssetName,
		t.Quantity,
		t.PricePerUnit,
		t.TotalAmount,
		t.Fees,
		t.TransactionDate,
		emptyToNull(t.Description),
		t.ReferenceNumber,
		string(t.Status),
		now.Unix(),
		now.Unix(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction id: %w", err)
	}

	t.ID = id
	t.CreatedAt = now
	t.UpdatedAt = now
	return &t, nil
}

// Get fetches a transaction by id. Returns (nil, nil) when not found.
func (r *TransactionRepository) Get(q database.DBTX, id int64) (*Transaction, error) {
	row := q.QueryRow(`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id)
	return scanTransaction(row)
}

// GetByID fetches a transaction outside any transaction scope
func (r *TransactionRepository) GetByID(id int64) (*Transaction, error) {
	return r.Get(r.db, id)
}

// Update persists a merged transaction produced by TransactionUpdate.Merge.
// Returns false when the row does not exist.
func (r *TransactionRepository) Update(t Transaction) (bool, error) {
	t.Normalize()
	if err := t.Validate(); err != nil {
		return false, err
	}

	result, err := r.db.Exec(`
		UPDATE transactions
		SET transaction_type = ?, quantity = ?, price_per_unit = ?, total_amount = ?,
		    fees = ?, transaction_date = ?, description = ?, status = ?, updated_at = ?
		WHERE id = ?
	`,
		string(t.Type), t.Quantity, t.PricePerUnit, t.TotalAmount,
		t.Fees, t.TransactionDate, emptyToNull(t.Description), string(t.Status),
		time.Now().Unix(), t.ID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction %d: %w", t.ID, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a manually-created entry. Returns false when absent.
// The ledger service never calls this as a side effect of item operations;
// history written by buys and sells stays put.
func (r *TransactionRepository) Delete(id int64) (bool, error) {
	result, err := r.db.Exec(`DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete transaction %d: %w", id, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return affected > 0, nil
}

// CountForItem returns how many entries reference an item, including rows
// whose reference was released to NULL when counting by symbol is not enough
func (r *TransactionRepository) CountForItem(itemID int64) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM transactions WHERE portfolio_item_id = ?`, itemID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions for item %d: %w", itemID, err)
	}
	return count, nil
}

// ListFilter selects transactions. Zero values mean "no constraint".
type ListFilter struct {
	PortfolioID int64
	Type        TransactionType
	Symbol      string
	Status      TransactionStatus
	DateFrom    string // YYYY-MM-DD inclusive
	DateTo      string // YYYY-MM-DD inclusive
	Page        int    // 1-based, defaults to 1
	Limit       int    // defaults to 20
}

// List returns a page of matching transactions (newest first) plus the total
// match count for pagination.
func (r *TransactionRepository) List(filter ListFilter) ([]Transaction, int, error) {
	where, args := buildFilter(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM transactions` + where
	if err := r.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 20
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions` + where +
		` ORDER BY transaction_date DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, (page-1)*limit)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		t, err := scanTransactionFromRows(rows)
		if err != nil {
			return nil, 0, err
		}
		transactions = append(transactions, *t)
	}
	return transactions, total, rows.Err()
}

// buildFilter assembles the WHERE clause shared by List and the count query
func buildFilter(filter ListFilter) (string, []interface{}) {
	clauses := []string{"1=1"}
	var args []interface{}

	if filter.PortfolioID > 0 {
		clauses = append(clauses, "portfolio_id = ?")
		args = append(args, filter.PortfolioID)
	}
	if filter.Type != "" {
		clauses = append(clauses, "transaction_type = ?")
		args = append(args, string(filter.Type))
	}
	if filter.Symbol != "" {
		clauses = append(clauses, "symbol = ?")
		args = append(args, strings.ToUpper(strings.TrimSpace(filter.Symbol)))
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.DateFrom != "" {
		clauses = append(clauses, "transaction_date >= ?")
		args = append(args, filter.DateFrom)
	}
	if filter.DateTo != "" {
		clauses = append(clauses, "transaction_date <= ?")
		args = append(args, filter.DateTo)
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

// TypeStat aggregates transactions of one type
type TypeStat struct {
	Type        TransactionType `json:"transaction_type"`
	Count       int             `json:"count"`
	TotalAmount float64         `json:"total_amount"`
	TotalFees   float64         `json:"total_fees"`
	AvgAmount   float64         `json:"avg_amount"`
}

// StatsByType groups a portfolio's transactions by type within an optional
// date window
func (r *TransactionRepository) StatsByType(portfolioID int64, dateFrom, dateTo string) ([]TypeStat, error) {
	query := `
		SELECT transaction_type, COUNT(*), COALESCE(SUM(total_amount), 0),
		       COALESCE(SUM(fees), 0), COALESCE(AVG(total_amount), 0)
		FROM transactions
		WHERE portfolio_id = ?`
	args := []interface{}{portfolioID}

	if dateFrom != "" {
		query += ` AND transaction_date >= ?`
		args = append(args, dateFrom)
	}
	if dateTo != "" {
		query += ` AND transaction_date <= ?`
		args = append(args, dateTo)
	}
	query += ` GROUP BY transaction_type ORDER BY transaction_type ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query type stats: %w", err)
	}
	defer rows.Close()

	var stats []TypeStat
	for rows.Next() {
		var s TypeStat
		var txType string
		if err := rows.Scan(&txType, &s.Count, &s.TotalAmount, &s.TotalFees, &s.AvgAmount); err != nil {
			return nil, fmt.Errorf("failed to scan type stat: %w", err)
		}
		s.Type = TransactionType(txType)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// SymbolStat aggregates a portfolio's activity in one symbol. Bought/sold
// totals only sum buy and sell rows respectively; other types contribute
// fees only.
type SymbolStat struct {
	Symbol        string  `json:"symbol"`
	TotalBought   float64 `json:"total_bought"`
	TotalSold     float64 `json:"total_sold"`
	TotalInvested float64 `json:"total_invested"`
	TotalReceived float64 `json:"total_received"`
	TotalFees     float64 `json:"total_fees"`
}

// StatsBySymbol groups transactions by symbol, optionally restricted to one
func (r *TransactionRepository) StatsBySymbol(portfolioID int64, symbol string) ([]SymbolStat, error) {
	query := `
		SELECT symbol,
		       COALESCE(SUM(CASE WHEN transaction_type = 'buy' THEN quantity ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN transaction_type = 'sell' THEN quantity ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN transaction_type = 'buy' THEN total_amount ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN transaction_type = 'sell' THEN total_amount ELSE 0 END), 0),
		       COALESCE(SUM(fees), 0)
		FROM transactions
		WHERE portfolio_id = ?`
	args := []interface{}{portfolioID}

	if symbol != "" {
		query += ` AND symbol = ?`
		args = append(args, strings.ToUpper(strings.TrimSpace(symbol)))
	}
	query += ` GROUP BY symbol ORDER BY symbol ASC`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol stats: %w", err)
	}
	defer rows.Close()

	var stats []SymbolStat
	for rows.Next() {
		var s SymbolStat
		if err := rows.Scan(&s.Symbol, &s.TotalBought, &s.TotalSold,
			&s.TotalInvested, &s.TotalReceived, &s.TotalFees); err != nil {
			return nil, fmt.Errorf("failed to scan symbol stat: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// scanTransaction scans a transaction from a single-row query
func scanTransaction(row *sql.Row) (*Transaction, error) {
	var t Transaction
	var itemID sql.NullInt64
	var description, reference sql.NullString
	var txType, status string
	var createdAt, updatedAt int64

	err := row.Scan(
		&t.ID, &t.PortfolioID, &itemID, &txType, &t.Symbol, &t.AssetName,
		&t.Quantity, &t.PricePerUnit, &t.TotalAmount, &t.Fees, &t.TransactionDate,
		&description, &reference, &status, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	applyScanned(&t, itemID, description, reference, txType, status, createdAt, updatedAt)
	return &t, nil
}

// scanTransactionFromRows scans a transaction from a multi-row result set
func scanTransactionFromRows(rows *sql.Rows) (*Transaction, error) {
	var t Transaction
	var itemID sql.NullInt64
	var description, reference sql.NullString
	var txType, status string
	var createdAt, updatedAt int64

	err := rows.Scan(
		&t.ID, &t.PortfolioID, &itemID, &txType, &t.Symbol, &t.AssetName,
		&t.Quantity, &t.PricePerUnit, &t.TotalAmount, &t.Fees, &t.TransactionDate,
		&description, &reference, &status, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction row: %w", err)
	}

	applyScanned(&t, itemID, description, reference, txType, status, createdAt, updatedAt)
	return &t, nil
}

func applyScanned(t *Transaction, itemID sql.NullInt64, description, reference sql.NullString,
	txType, status string, createdAt, updatedAt int64) {
	if itemID.Valid {
		v := itemID.Int64
		t.PortfolioItemID = &v
	}
	t.Type = TransactionType(txType)
	t.Status = TransactionStatus(status)
	t.Description = description.String
	t.ReferenceNumber = reference.String
	t.CreatedAt = time.Unix(createdAt, 0)
	t.UpdatedAt = time.Unix(updatedAt, 0)
}

// emptyToNull converts an empty string to NULL
func emptyToNull(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
