package portfolio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio/internal/domain"
)

func validItem() Item {
	return Item{
		PortfolioID:   1,
		Symbol:        "AAPL",
		Name:          "Apple Inc.",
		Type:          TypeStock,
		Quantity:      10,
		PurchasePrice: 150,
		PurchaseDate:  "2024-06-01",
		Currency:      "USD",
	}
}

func TestItemValidate(t *testing.T) {
	t.Run("valid item passes", func(t *testing.T) {
		item := validItem()
		assert.NoError(t, item.Validate())
	})

	t.Run("collects every field failure", func(t *testing.T) {
		item := Item{
			Symbol:        "",
			Name:          "",
			Type:          "house",
			Quantity:      -1,
			PurchasePrice: 0,
			PurchaseDate:  "June 1st",
		}

		err := item.Validate()
		require.Error(t, err)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "symbol")
		assert.Contains(t, ve.Fields, "name")
		assert.Contains(t, ve.Fields, "type")
		assert.Contains(t, ve.Fields, "quantity")
		assert.Contains(t, ve.Fields, "purchase_price")
		assert.Contains(t, ve.Fields, "purchase_date")
	})

	t.Run("rejects future purchase date", func(t *testing.T) {
		item := validItem()
		item.PurchaseDate = time.Now().AddDate(0, 0, 2).Format("2006-01-02")

		err := item.Validate()
		require.Error(t, err)

		var ve *domain.ValidationError
		require.ErrorAs(t, err, &ve)
		assert.Contains(t, ve.Fields, "purchase_date")
	})

	t.Run("rejects malformed currency", func(t *testing.T) {
		item := validItem()
		item.Currency = "DOLLARS"
		require.Error(t, item.Validate())
	})

	t.Run("rejects negative current price", func(t *testing.T) {
		item := validItem()
		item.CurrentPrice = floatPtr(-1)
		require.Error(t, item.Validate())
	})
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "AAPL", NormalizeSymbol("  aapl "))
	assert.Equal(t, "BRK.B", NormalizeSymbol("brk.b"))
	assert.Equal(t, "", NormalizeSymbol("   "))
}

func TestItemDerivedValues(t *testing.T) {
	item := validItem()
	item.CurrentPrice = floatPtr(180)

	assert.Equal(t, 180.0, item.EffectivePrice())
	assert.Equal(t, 1800.0, item.CurrentValue())
	assert.Equal(t, 1500.0, item.PurchaseValue())
	assert.Equal(t, 300.0, item.GainLossAmount())
	assert.Equal(t, 20.0, item.GainLossPercent())

	t.Run("falls back to cost basis without a quote", func(t *testing.T) {
		item := validItem()
		assert.Equal(t, 150.0, item.EffectivePrice())
		assert.Equal(t, 0.0, item.GainLossAmount())
	})
}

func TestItemUpdateMerge(t *testing.T) {
	existing := validItem()
	existing.CurrentPrice = floatPtr(180)
	existing.Sector = "Technology"

	t.Run("nil fields keep existing values", func(t *testing.T) {
		merged := ItemUpdate{}.Merge(existing)
		assert.Equal(t, existing, merged)
	})

	t.Run("provided fields apply", func(t *testing.T) {
		name := "Apple"
		qty := 20.0
		merged := ItemUpdate{Name: &name, Quantity: &qty}.Merge(existing)

		assert.Equal(t, "Apple", merged.Name)
		assert.Equal(t, 20.0, merged.Quantity)
		assert.Equal(t, existing.PurchasePrice, merged.PurchasePrice)
	})

	t.Run("zero quantity does not apply", func(t *testing.T) {
		qty := 0.0
		merged := ItemUpdate{Quantity: &qty}.Merge(existing)
		assert.Equal(t, existing.Quantity, merged.Quantity)
	})

	t.Run("zero current price resets the quote", func(t *testing.T) {
		price := 0.0
		merged := ItemUpdate{CurrentPrice: &price}.Merge(existing)
		require.NotNil(t, merged.CurrentPrice)
		assert.Equal(t, 0.0, *merged.CurrentPrice)
	})

	t.Run("empty sector clears the sector", func(t *testing.T) {
		sector := ""
		merged := ItemUpdate{Sector: &sector}.Merge(existing)
		assert.Equal(t, "", merged.Sector)
	})
}
