// Package ledger owns the append-only transaction history and the service
// that keeps items, transactions, and portfolio totals mutually consistent.
package ledger

import (
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
)

// TransactionType classifies a ledger entry
type TransactionType string

const (
	TypeBuy        TransactionType = "buy"
	TypeSell       TransactionType = "sell"
	TypeDividend   TransactionType = "dividend"
	TypeSplit      TransactionType = "split"
	TypeTransfer   TransactionType = "transfer"
	TypeFee        TransactionType = "fee"
	TypeDeposit    TransactionType = "deposit"
	TypeWithdrawal TransactionType = "withdrawal"
)

// ValidTransactionTypes lists every accepted transaction type
var ValidTransactionTypes = []TransactionType{
	TypeBuy, TypeSell, TypeDividend, TypeSplit,
	TypeTransfer, TypeFee, TypeDeposit, TypeWithdrawal,
}

// IsValid reports whether the type is one of the known values
func (t TransactionType) IsValid() bool {
	for _, v := range ValidTransactionTypes {
		if t == v {
			return true
		}
	}
	return false
}

// TransactionStatus tracks settlement state
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// IsValid reports whether the status is one of the known values
func (s TransactionStatus) IsValid() bool {
	return s == StatusPending || s == StatusCompleted || s == StatusCancelled
}

// Transaction is one immutable ledger entry. Once written it is the
// permanent record of an economic event: deleting the item it refers to
// releases PortfolioItemID to nil but never removes the row.
type Transaction struct {
	ID              int64             `json:"id"`
	PortfolioID     int64             `json:"portfolio_id"`
	PortfolioItemID *int64            `json:"portfolio_item_id,omitempty"`
	Type            TransactionType   `json:"transaction_type"`
	Symbol          string            `json:"symbol"`
	AssetName       string            `json:"asset_name"`
	Quantity        float64           `json:"quantity"`
	PricePerUnit    float64           `json:"price_per_unit"`
	TotalAmount     float64           `json:"total_amount"`
	Fees            float64           `json:"fees"`
	TransactionDate string            `json:"transaction_date"` // YYYY-MM-DD
	Description     string            `json:"description,omitempty"`
	ReferenceNumber string            `json:"reference_number,omitempty"`
	Status          TransactionStatus `json:"status"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// Normalize applies the write-path defaults: uppercased symbol, asset name
// falling back to the symbol, completed status, total derived from
// quantity x price when absent.
func (t *Transaction) Normalize() {
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	if strings.TrimSpace(t.AssetName) == "" {
		t.AssetName = t.Symbol
	}
	if t.Status == "" {
		t.Status = StatusCompleted
	}
	if t.TotalAmount == 0 && t.Quantity > 0 && t.PricePerUnit > 0 {
		t.TotalAmount = t.Quantity * t.PricePerUnit
	}
}

// Validate checks the entry before any store access
func (t *Transaction) Validate() error {
	ve := &domain.ValidationError{}

	if t.PortfolioID <= 0 {
		ve.Add("portfolio_id", "must be set")
	}
	if !t.Type.IsValid() {
		ve.Add("transaction_type", "must be one of buy, sell, dividend, split, transfer, fee, deposit, withdrawal")
	}
	if strings.TrimSpace(t.Symbol) == "" {
		ve.Add("symbol", "must not be empty")
	}
	if t.Quantity <= 0 {
		ve.Add("quantity", "must be positive")
	}
	if t.PricePerUnit < 0 {
		ve.Add("price_per_unit", "must not be negative")
	}
	if t.Fees < 0 {
		ve.Add("fees", "must not be negative")
	}
	if t.TransactionDate == "" {
		ve.Add("transaction_date", "must not be empty")
	} else if _, err := time.Parse("2006-01-02", t.TransactionDate); err != nil {
		ve.Add("transaction_date", "must be a YYYY-MM-DD date")
	}
	if !t.Status.IsValid() {
		ve.Add("status", "must be one of pending, completed, cancelled")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// TransactionUpdate is the partial-update type for manual corrections.
// Nil fields keep the existing value. Item references and the portfolio
// owner are not editable after the fact.
type TransactionUpdate struct {
	Type            *TransactionType   `json:"transaction_type,omitempty"`
	Quantity        *float64           `json:"quantity,omitempty"`
	PricePerUnit    *float64           `json:"price_per_unit,omitempty"`
	TotalAmount     *float64           `json:"total_amount,omitempty"`
	Fees            *float64           `json:"fees,omitempty"`
	TransactionDate *string            `json:"transaction_date,omitempty"`
	Description     *string            `json:"description,omitempty"`
	Status          *TransactionStatus `json:"status,omitempty"`
}

// Merge applies the update to a copy of the existing transaction
func (u TransactionUpdate) Merge(existing Transaction) Transaction {
	merged := existing

	if u.Type != nil && *u.Type != "" {
		merged.Type = *u.Type
	}
	if u.Quantity != nil && *u.Quantity > 0 {
		merged.Quantity = *u.Quantity
	}
	if u.PricePerUnit != nil && *u.PricePerUnit >= 0 {
		merged.PricePerUnit = *u.PricePerUnit
	}
	if u.TotalAmount != nil {
		merged.TotalAmount = *u.TotalAmount
	}
	if u.Fees != nil && *u.Fees >= 0 {
		merged.Fees = *u.Fees
	}
	if u.TransactionDate != nil && *u.TransactionDate != "" {
		merged.TransactionDate = *u.TransactionDate
	}
	if u.Description != nil {
		merged.Description = *u.Description
	}
	if u.Status != nil && *u.Status != "" {
		merged.Status = *u.Status
	}

	return merged
}
