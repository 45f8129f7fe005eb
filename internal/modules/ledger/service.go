package ledger

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/domain"
	"github.com/aristath/folio/internal/modules/portfolio"
)

// PortfolioRepositoryInterface defines the portfolio operations the service
// needs inside its units of work
type PortfolioRepositoryInterface interface {
	// Get fetches a portfolio, (nil, nil) when absent
	Get(q database.DBTX, id int64) (*portfolio.Portfolio, error)
	// RecomputeTotalValue rewrites the denormalized total from items
	RecomputeTotalValue(q database.DBTX, portfolioID int64) (float64, error)
}

// ItemRepositoryInterface defines the position operations the service needs
type ItemRepositoryInterface interface {
	Get(q database.DBTX, id int64) (*portfolio.Item, error)
	GetBySymbol(q database.DBTX, portfolioID int64, symbol string) (*portfolio.Item, error)
	Insert(q database.DBTX, item portfolio.Item) (*portfolio.Item, error)
	Update(q database.DBTX, item portfolio.Item) error
	Delete(q database.DBTX, id int64) (bool, error)
	PortfoliosHoldingSymbol(q database.DBTX, symbol string) ([]int64, error)
	UpdatePriceBySymbol(q database.DBTX, symbol string, price float64) (int64, error)
}

// TransactionRepositoryInterface defines the history operations the service needs
type TransactionRepositoryInterface interface {
	Create(q database.DBTX, t Transaction) (*Transaction, error)
	Get(q database.DBTX, id int64) (*Transaction, error)
	Update(t Transaction) (bool, error)
	Delete(id int64) (bool, error)
}

// Compile-time interface checks
var (
	_ PortfolioRepositoryInterface   = (*portfolio.PortfolioRepository)(nil)
	_ ItemRepositoryInterface        = (*portfolio.ItemRepository)(nil)
	_ TransactionRepositoryInterface = (*TransactionRepository)(nil)
)

// Service is the only component permitted to mutate portfolios, items, and
// transactions together.
//
// Responsibilities:
// - Cross-entity consistency: every item mutation appends its matching
//   transaction and recomputes the owning portfolio's total in the same
//   SQLite transaction (database.WithTransaction), so a mid-sequence failure
//   rolls the whole unit back.
// - Position transitions via the pure engine (portfolio.ApplyBuy/ApplySell).
// - Referential checks on manual history corrections.
//
// Concurrency: SQLite's single-writer model plus the transaction wrapping
// each read-modify-write serializes concurrent mutations on the same item;
// no version column or application-level lock is used.
type Service struct {
	db           *sql.DB
	portfolios   PortfolioRepositoryInterface
	items        ItemRepositoryInterface
	transactions TransactionRepositoryInterface
	log          zerolog.Logger
}

// NewService creates a new ledger service
func NewService(
	db *sql.DB,
	portfolios PortfolioRepositoryInterface,
	items ItemRepositoryInterface,
	transactions TransactionRepositoryInterface,
	log zerolog.Logger,
) *Service {
	return &Service{
		db:           db,
		portfolios:   portfolios,
		items:        items,
		transactions: transactions,
		log:          log.With().Str("service", "ledger").Logger(),
	}
}

// CreateItem opens a position in a portfolio. Writes the item, an initial
// buy transaction recording the item's starting quantity/price, and the
// recomputed portfolio total as one unit. On an existing symbol the position
// is merged in place via the buy rule; a parallel row is never created.
func (s *Service) CreateItem(portfolioID int64, fields portfolio.Item) (*portfolio.Item, error) {
	fields.PortfolioID = portfolioID
	fields.Symbol = portfolio.NormalizeSymbol(fields.Symbol)
	if err := fields.Validate(); err != nil {
		return nil, err
	}

	var created *portfolio.Item
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		owner, err := s.portfolios.Get(tx, portfolioID)
		if err != nil {
			return err
		}
		if owner == nil {
			return domain.NewPortfolioNotFound(portfolioID)
		}

		existing, err := s.items.GetBySymbol(tx, portfolioID, fields.Symbol)
		if err != nil {
			return err
		}

		if existing != nil {
			created, err = s.mergeBuy(tx, *existing, fields.Quantity, fields.PurchasePrice,
				fields.PurchaseDate, fields.CurrentPrice)
			if err != nil {
				return err
			}
		} else {
			// current_price defaults to the purchase price until a quote arrives
			if fields.CurrentPrice == nil {
				v := fields.PurchasePrice
				fields.CurrentPrice = &v
			}
			created, err = s.items.Insert(tx, fields)
			if err != nil {
				return err
			}
		}

		itemID := created.ID
		_, err = s.transactions.Create(tx, Transaction{
			PortfolioID:     portfolioID,
			PortfolioItemID: &itemID,
			Type:            TypeBuy,
			Symbol:          created.Symbol,
			AssetName:       created.Name,
			Quantity:        fields.Quantity,
			PricePerUnit:    fields.PurchasePrice,
			TotalAmount:     fields.Quantity * fields.PurchasePrice,
			TransactionDate: fields.PurchaseDate,
			Description:     fmt.Sprintf("Bought %s (%s)", created.Name, created.Symbol),
		})
		if err != nil {
			return err
		}

		_, err = s.portfolios.RecomputeTotalValue(tx, portfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("portfolio_id", portfolioID).
		Str("symbol", created.Symbol).
		Float64("quantity", created.Quantity).
		Msg("Position opened")
	return created, nil
}

// BuyMore adds to an existing position: weighted-average cost on the item, a
// raw-quantity buy transaction, and a recomputed portfolio total, atomically.
func (s *Service) BuyMore(itemID int64, addQuantity, addPrice float64, date string, newCurrentPrice *float64) (*portfolio.Item, error) {
	var updated *portfolio.Item
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		item, err := s.items.Get(tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewItemNotFound(itemID)
		}

		updated, err = s.mergeBuy(tx, *item, addQuantity, addPrice, date, newCurrentPrice)
		if err != nil {
			return err
		}

		ref := updated.ID
		_, err = s.transactions.Create(tx, Transaction{
			PortfolioID:     updated.PortfolioID,
			PortfolioItemID: &ref,
			Type:            TypeBuy,
			Symbol:          updated.Symbol,
			AssetName:       updated.Name,
			Quantity:        addQuantity,
			PricePerUnit:    addPrice,
			TotalAmount:     addQuantity * addPrice,
			TransactionDate: date,
			Description:     fmt.Sprintf("Bought %s (%s)", updated.Name, updated.Symbol),
		})
		if err != nil {
			return err
		}

		_, err = s.portfolios.RecomputeTotalValue(tx, updated.PortfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("item_id", itemID).
		Float64("quantity", addQuantity).
		Float64("price", addPrice).
		Msg("Position increased")
	return updated, nil
}

// mergeBuy applies the weighted-average buy to an item and persists it.
// The transaction side effect belongs to the caller, which knows the raw
// quantities to record.
func (s *Service) mergeBuy(tx *sql.Tx, item portfolio.Item, addQuantity, addPrice float64,
	date string, newCurrentPrice *float64) (*portfolio.Item, error) {

	result, err := portfolio.ApplyBuy(item, addQuantity, addPrice)
	if err != nil {
		return nil, err
	}

	item.Quantity = result.NewQuantity
	item.PurchasePrice = result.NewAveragePrice
	// Purchase date advances to the most recent buy (ISO dates compare lexically)
	if date > item.PurchaseDate {
		item.PurchaseDate = date
	}
	if newCurrentPrice != nil {
		v := *newCurrentPrice
		item.CurrentPrice = &v
	}

	if err := s.items.Update(tx, item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SellResult reports what a sell did to the position
type SellResult struct {
	Outcome           portfolio.SellOutcome `json:"outcome"`
	RemainingQuantity float64               `json:"remaining_quantity"`
	Transaction       *Transaction          `json:"transaction"`
}

// Sell reduces or closes a position. The engine rejects oversells before any
// write, so a failed sell leaves the store untouched. Closing deletes the
// item and records a sell transaction over the full original quantity;
// reducing keeps the average cost and updates current_price to the sale
// price. Either way the portfolio total is recomputed in the same unit.
func (s *Service) Sell(itemID int64, sellQuantity, sellPrice float64, date string, entirePosition bool) (*SellResult, error) {
	var result SellResult
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		item, err := s.items.Get(tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewItemNotFound(itemID)
		}

		outcome, err := portfolio.ApplySell(*item, sellQuantity, sellPrice, entirePosition)
		if err != nil {
			return err
		}
		result.Outcome = outcome.Outcome
		result.RemainingQuantity = outcome.RemainingQuantity

		// Record the history entry while the item still exists so the
		// reference is captured; a close then releases it via SET NULL.
		entry := Transaction{
			PortfolioID:     item.PortfolioID,
			PortfolioItemID: &item.ID,
			Type:            TypeSell,
			Symbol:          item.Symbol,
			AssetName:       item.Name,
			PricePerUnit:    sellPrice,
			TransactionDate: date,
			Description:     fmt.Sprintf("Sold %s (%s)", item.Name, item.Symbol),
		}

		if outcome.Outcome == portfolio.SellClosed {
			// The closing entry records the full position, not the request
			entry.Quantity = outcome.OriginalQuantity
			entry.TotalAmount = outcome.OriginalQuantity * sellPrice
		} else {
			entry.Quantity = sellQuantity
			entry.TotalAmount = sellQuantity * sellPrice
		}

		created, err := s.transactions.Create(tx, entry)
		if err != nil {
			return err
		}
		result.Transaction = created

		if outcome.Outcome == portfolio.SellClosed {
			if _, err := s.items.Delete(tx, item.ID); err != nil {
				return err
			}
			// The stored row now carries a released item reference
			result.Transaction.PortfolioItemID = nil
		} else {
			item.Quantity = outcome.RemainingQuantity
			price := sellPrice
			item.CurrentPrice = &price
			if err := s.items.Update(tx, *item); err != nil {
				return err
			}
		}

		_, err = s.portfolios.RecomputeTotalValue(tx, item.PortfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().
		Int64("item_id", itemID).
		Str("outcome", string(result.Outcome)).
		Float64("price", sellPrice).
		Msg("Position sold")
	return &result, nil
}

// DeleteItem removes a position without recording a sale. Idempotent:
// returns false when the item does not exist. History referencing the item
// keeps every field; only the item reference is released.
func (s *Service) DeleteItem(itemID int64) (bool, error) {
	deleted := false
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		item, err := s.items.Get(tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}

		if deleted, err = s.items.Delete(tx, itemID); err != nil {
			return err
		}
		_, err = s.portfolios.RecomputeTotalValue(tx, item.PortfolioID)
		return err
	})
	if err != nil {
		return false, err
	}

	if deleted {
		s.log.Info().Int64("item_id", itemID).Msg("Item deleted")
	}
	return deleted, nil
}

// UpdateItem applies a partial edit to a position and recomputes the owning
// portfolio's total in the same unit. Edits are corrections; they do not
// append history entries.
func (s *Service) UpdateItem(itemID int64, update portfolio.ItemUpdate) (*portfolio.Item, error) {
	var merged portfolio.Item
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		item, err := s.items.Get(tx, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return domain.NewItemNotFound(itemID)
		}

		merged = update.Merge(*item)
		if err := merged.Validate(); err != nil {
			return err
		}

		if err := s.items.Update(tx, merged); err != nil {
			return err
		}
		_, err = s.portfolios.RecomputeTotalValue(tx, merged.PortfolioID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &merged, nil
}

// UpdatePriceForSymbol sets current_price on every position holding the
// symbol across all portfolios and recomputes each affected portfolio's
// total once. Returns the number of positions updated.
func (s *Service) UpdatePriceForSymbol(symbol string, price float64) (int64, error) {
	symbol = portfolio.NormalizeSymbol(symbol)
	if symbol == "" {
		return 0, domain.NewValidationError("symbol", "must not be empty")
	}
	if price <= 0 {
		return 0, domain.NewValidationError("price", "must be positive")
	}

	var count int64
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		affected, err := s.items.PortfoliosHoldingSymbol(tx, symbol)
		if err != nil {
			return err
		}

		count, err = s.items.UpdatePriceBySymbol(tx, symbol, price)
		if err != nil {
			return err
		}

		for _, portfolioID := range affected {
			if _, err := s.portfolios.RecomputeTotalValue(tx, portfolioID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.log.Debug().Str("symbol", symbol).Float64("price", price).Int64("items", count).
		Msg("Price updated")
	return count, nil
}

// RecordTransaction inserts a manual history entry (dividends, fees,
// transfers, corrections). It never touches item quantity or price. An item
// reference must name an item inside the same portfolio.
func (s *Service) RecordTransaction(t Transaction) (*Transaction, error) {
	var created *Transaction
	err := database.WithTransaction(s.db, func(tx *sql.Tx) error {
		owner, err := s.portfolios.Get(tx, t.PortfolioID)
		if err != nil {
			return err
		}
		if owner == nil {
			return domain.NewPortfolioNotFound(t.PortfolioID)
		}

		if t.PortfolioItemID != nil {
			item, err := s.items.Get(tx, *t.PortfolioItemID)
			if err != nil {
				return err
			}
			if item == nil || item.PortfolioID != t.PortfolioID {
				return domain.NewPortfolioItemMismatch(*t.PortfolioItemID, t.PortfolioID)
			}
		}

		created, err = s.transactions.Create(tx, t)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// AmendTransaction applies a manual correction to a history entry
func (s *Service) AmendTransaction(id int64, update TransactionUpdate) (*Transaction, error) {
	existing, err := s.transactions.Get(s.db, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, domain.NewTransactionNotFound(id)
	}

	merged := update.Merge(*existing)
	merged.ID = id
	ok, err := s.transactions.Update(merged)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.NewTransactionNotFound(id)
	}
	return s.transactions.Get(s.db, id)
}

// RemoveTransaction deletes a manually-created history entry
func (s *Service) RemoveTransaction(id int64) error {
	ok, err := s.transactions.Delete(id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NewTransactionNotFound(id)
	}
	return nil
}
