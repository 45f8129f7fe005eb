// Package portfolio holds the portfolio and position models plus the pure
// position engine (weighted-average cost, buy/sell transitions, allocation
// and summary aggregation).
package portfolio

import (
	"strings"
	"time"

	"github.com/aristath/folio/internal/domain"
)

// ItemType classifies a position
type ItemType string

const (
	TypeStock      ItemType = "stock"
	TypeBond       ItemType = "bond"
	TypeCash       ItemType = "cash"
	TypeCrypto     ItemType = "crypto"
	TypeETF        ItemType = "etf"
	TypeMutualFund ItemType = "mutual_fund"
	TypeOther      ItemType = "other"
)

// ValidItemTypes lists every accepted item type
var ValidItemTypes = []ItemType{
	TypeStock, TypeBond, TypeCash, TypeCrypto, TypeETF, TypeMutualFund, TypeOther,
}

// IsValid reports whether the type is one of the known values
func (t ItemType) IsValid() bool {
	for _, v := range ValidItemTypes {
		if t == v {
			return true
		}
	}
	return false
}

// Portfolio represents a collection of positions.
// TotalValue is a denormalized cache: it must equal the sum over items of
// quantity x (current_price ?? purchase_price) and is recomputed after every
// item mutation, never trusted as source of truth.
type Portfolio struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TotalValue  float64   `json:"total_value"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Validate checks portfolio fields before any store access
func (p *Portfolio) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return domain.NewValidationError("name", "must not be empty")
	}
	return nil
}

// Item represents one open position: exactly one row per symbol per
// portfolio. PurchasePrice is the weighted-average cost basis, not the most
// recent purchase price.
type Item struct {
	ID            int64     `json:"id"`
	PortfolioID   int64     `json:"portfolio_id"`
	Symbol        string    `json:"symbol"`
	Name          string    `json:"name"`
	Type          ItemType  `json:"type"`
	Quantity      float64   `json:"quantity"`
	PurchasePrice float64   `json:"purchase_price"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	PurchaseDate  string    `json:"purchase_date"` // YYYY-MM-DD
	Sector        string    `json:"sector,omitempty"`
	Currency      string    `json:"currency"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// EffectivePrice returns current_price when known, falling back to the
// average cost basis.
func (i *Item) EffectivePrice() float64 {
	if i.CurrentPrice != nil {
		return *i.CurrentPrice
	}
	return i.PurchasePrice
}

// CurrentValue is quantity x effective price
func (i *Item) CurrentValue() float64 {
	return i.Quantity * i.EffectivePrice()
}

// PurchaseValue is quantity x average cost basis
func (i *Item) PurchaseValue() float64 {
	return i.Quantity * i.PurchasePrice
}

// GainLossAmount is the unrealized gain/loss in currency units
func (i *Item) GainLossAmount() float64 {
	return i.Quantity * (i.EffectivePrice() - i.PurchasePrice)
}

// GainLossPercent is the unrealized gain/loss relative to cost basis
func (i *Item) GainLossPercent() float64 {
	if i.PurchasePrice == 0 {
		return 0
	}
	return (i.EffectivePrice() - i.PurchasePrice) / i.PurchasePrice * 100
}

// ItemView is an Item plus its derived read-time values, the shape handlers
// return to clients. Derived values are never stored.
type ItemView struct {
	Item
	CurrentValue    float64 `json:"current_value"`
	PurchaseValue   float64 `json:"purchase_value"`
	GainLossAmount  float64 `json:"gain_loss_amount"`
	GainLossPercent float64 `json:"gain_loss_percent"`
}

// View computes the derived fields for an item
func (i Item) View() ItemView {
	return ItemView{
		Item:            i,
		CurrentValue:    round(i.CurrentValue(), 2),
		PurchaseValue:   round(i.PurchaseValue(), 2),
		GainLossAmount:  round(i.GainLossAmount(), 2),
		GainLossPercent: round(i.GainLossPercent(), 2),
	}
}

// NormalizeSymbol uppercases and trims a symbol. Applied on every write path
// so lookups by symbol are case-insensitive by construction.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// Validate checks item fields before any store access.
// Collects every field failure rather than stopping at the first.
func (i *Item) Validate() error {
	ve := &domain.ValidationError{}

	symbol := NormalizeSymbol(i.Symbol)
	if symbol == "" {
		ve.Add("symbol", "must not be empty")
	} else if len(symbol) > 20 {
		ve.Add("symbol", "must be at most 20 characters")
	}
	if strings.TrimSpace(i.Name) == "" {
		ve.Add("name", "must not be empty")
	}
	if !i.Type.IsValid() {
		ve.Add("type", "must be one of stock, bond, cash, crypto, etf, mutual_fund, other")
	}
	if i.Quantity <= 0 {
		ve.Add("quantity", "must be positive")
	}
	if i.PurchasePrice <= 0 {
		ve.Add("purchase_price", "must be positive")
	}
	if i.CurrentPrice != nil && *i.CurrentPrice < 0 {
		ve.Add("current_price", "must not be negative")
	}
	if i.PurchaseDate == "" {
		ve.Add("purchase_date", "must not be empty")
	} else if d, err := time.Parse("2006-01-02", i.PurchaseDate); err != nil {
		ve.Add("purchase_date", "must be a YYYY-MM-DD date")
	} else if d.After(time.Now()) {
		ve.Add("purchase_date", "must not be in the future")
	}
	if i.Currency != "" && len(i.Currency) != 3 {
		ve.Add("currency", "must be a 3-letter code")
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ItemUpdate is the explicit partial-update type for items. Nil fields keep
// the existing value. The merge rule is asymmetric on purpose: most fields
// apply only when provided, while CurrentPrice and Sector apply whenever
// present even if zero/empty, so a price can be reset and a sector cleared.
type ItemUpdate struct {
	Name          *string   `json:"name,omitempty"`
	Type          *ItemType `json:"type,omitempty"`
	Quantity      *float64  `json:"quantity,omitempty"`
	PurchasePrice *float64  `json:"purchase_price,omitempty"`
	CurrentPrice  *float64  `json:"current_price,omitempty"`
	PurchaseDate  *string   `json:"purchase_date,omitempty"`
	Sector        *string   `json:"sector,omitempty"`
	Currency      *string   `json:"currency,omitempty"`
}

// Merge applies the update to a copy of the existing item and returns it.
func (u ItemUpdate) Merge(existing Item) Item {
	merged := existing

	if u.Name != nil && strings.TrimSpace(*u.Name) != "" {
		merged.Name = *u.Name
	}
	if u.Type != nil && *u.Type != "" {
		merged.Type = *u.Type
	}
	if u.Quantity != nil && *u.Quantity > 0 {
		merged.Quantity = *u.Quantity
	}
	if u.PurchasePrice != nil && *u.PurchasePrice > 0 {
		merged.PurchasePrice = *u.PurchasePrice
	}
	if u.PurchaseDate != nil && *u.PurchaseDate != "" {
		merged.PurchaseDate = *u.PurchaseDate
	}
	if u.Currency != nil && *u.Currency != "" {
		merged.Currency = *u.Currency
	}

	// Incoming-if-provided fields: zero and empty are meaningful values here.
	if u.CurrentPrice != nil {
		v := *u.CurrentPrice
		merged.CurrentPrice = &v
	}
	if u.Sector != nil {
		merged.Sector = *u.Sector
	}

	return merged
}
