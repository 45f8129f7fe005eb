package portfolio

import (
	"math"
	"sort"

	"github.com/aristath/folio/internal/domain"
)

// The position engine is pure computation over an Item and a proposed change.
// It never touches storage; the ledger service persists its results and
// records the matching transactions.

// SellOutcome distinguishes a position close from a reduction
type SellOutcome string

const (
	// SellClosed - the entire position was sold; the item row is to be deleted
	SellClosed SellOutcome = "closed"
	// SellReduced - part of the position remains
	SellReduced SellOutcome = "reduced"
)

// BuyResult holds the new position state after a buy
type BuyResult struct {
	NewQuantity     float64
	NewAveragePrice float64
}

// ApplyBuy merges an additional purchase into a position using cost-basis
// weighted averaging:
//
//	newAvg = (heldQty*heldAvg + addQty*addPrice) / (heldQty + addQty)
//
// The result is always between min(heldAvg, addPrice) and max of the two.
// The caller records the raw addQuantity/addPrice on the buy transaction,
// never the blended values.
func ApplyBuy(item Item, addQuantity, addPrice float64) (BuyResult, error) {
	ve := &domain.ValidationError{}
	if addQuantity <= 0 {
		ve.Add("quantity", "must be positive")
	}
	if addPrice <= 0 {
		ve.Add("price", "must be positive")
	}
	if ve.HasErrors() {
		return BuyResult{}, ve
	}

	newQuantity := item.Quantity + addQuantity
	newAverage := (item.Quantity*item.PurchasePrice + addQuantity*addPrice) / newQuantity

	return BuyResult{
		NewQuantity:     newQuantity,
		NewAveragePrice: newAverage,
	}, nil
}

// SellResult holds the outcome of a sell transition
type SellResult struct {
	Outcome SellOutcome
	// OriginalQuantity is the quantity held before the sell. For a close, the
	// recorded transaction uses this full quantity, not the requested one.
	OriginalQuantity  float64
	RemainingQuantity float64
}

// ApplySell decides between closing and reducing a position.
//
// Fails with InsufficientQuantityError when sellQuantity exceeds the held
// quantity - checked here, before any write, so a rejected sell leaves zero
// store mutations behind. Selling exactly the held quantity, or passing
// entirePosition, closes the position. A reduction leaves the average cost
// untouched: selling does not change the cost basis of the remaining shares.
func ApplySell(item Item, sellQuantity, sellPrice float64, entirePosition bool) (SellResult, error) {
	ve := &domain.ValidationError{}
	if sellQuantity <= 0 && !entirePosition {
		ve.Add("quantity", "must be positive")
	}
	if sellPrice <= 0 {
		ve.Add("price", "must be positive")
	}
	if ve.HasErrors() {
		return SellResult{}, ve
	}

	if !entirePosition && sellQuantity > item.Quantity {
		return SellResult{}, &domain.InsufficientQuantityError{
			Symbol:    item.Symbol,
			Requested: sellQuantity,
			Held:      item.Quantity,
		}
	}

	if entirePosition || sellQuantity >= item.Quantity {
		return SellResult{
			Outcome:          SellClosed,
			OriginalQuantity: item.Quantity,
		}, nil
	}

	return SellResult{
		Outcome:           SellReduced,
		OriginalQuantity:  item.Quantity,
		RemainingQuantity: item.Quantity - sellQuantity,
	}, nil
}

// AllocationGroup is one bucket of an allocation breakdown
type AllocationGroup struct {
	Key        string  `json:"key"`
	Count      int     `json:"count"`
	TotalValue float64 `json:"total_value"`
	Percentage float64 `json:"percentage"`
}

// ByType groups items by their type
func ByType(item Item) string {
	return string(item.Type)
}

// BySector groups items by sector, bucketing unset sectors as "Unknown"
func BySector(item Item) string {
	if item.Sector == "" {
		return "Unknown"
	}
	return item.Sector
}

// ComputeAllocation groups items by keyFn and computes each group's share of
// the portfolio's total current value. Groups are ordered by total value
// descending, ties stable by first appearance. When the grand total is zero
// every percentage is zero rather than NaN.
func ComputeAllocation(items []Item, keyFn func(Item) string) []AllocationGroup {
	groups := make(map[string]*AllocationGroup)
	order := make([]string, 0)
	grandTotal := 0.0

	for _, item := range items {
		key := keyFn(item)
		g, ok := groups[key]
		if !ok {
			g = &AllocationGroup{Key: key}
			groups[key] = g
			order = append(order, key)
		}
		value := item.CurrentValue()
		g.Count++
		g.TotalValue += value
		grandTotal += value
	}

	result := make([]AllocationGroup, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if grandTotal > 0 {
			g.Percentage = round(g.TotalValue/grandTotal*100, 2)
		}
		g.TotalValue = round(g.TotalValue, 2)
		result = append(result, *g)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].TotalValue > result[j].TotalValue
	})

	return result
}

// Summary aggregates a portfolio's items
type Summary struct {
	TotalItems             int     `json:"total_items"`
	TotalInvestment        float64 `json:"total_investment"`
	TotalCurrentValue      float64 `json:"total_current_value"`
	TotalGainLoss          float64 `json:"total_gain_loss"`
	OverallGainLossPercent float64 `json:"overall_gain_loss_percent"`
}

// ComputeSummary totals investment, current value, and gain/loss across
// items. The overall percentage is zero when total investment is zero.
func ComputeSummary(items []Item) Summary {
	s := Summary{TotalItems: len(items)}

	for _, item := range items {
		s.TotalInvestment += item.PurchaseValue()
		s.TotalCurrentValue += item.CurrentValue()
		s.TotalGainLoss += item.GainLossAmount()
	}

	if s.TotalInvestment > 0 {
		s.OverallGainLossPercent = round(s.TotalGainLoss/s.TotalInvestment*100, 2)
	}

	s.TotalInvestment = round(s.TotalInvestment, 2)
	s.TotalCurrentValue = round(s.TotalCurrentValue, 2)
	s.TotalGainLoss = round(s.TotalGainLoss, 2)

	return s
}

// round rounds a value to the given number of decimal places
func round(val float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(val*p) / p
}
