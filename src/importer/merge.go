package importer

import (
	"github.com/shopspring/decimal"

	"github.com/username/wealthfolio/backend/src/schema"
)

// MergePart is one lot entering a merge: a quantity and its per-unit cost.
type MergePart struct {
	Quantity  decimal.Decimal
	UnitPrice decimal.Decimal
}

// Merge folds any number of lots sharing a merge key into a single
// quantity/unit-price pair. It is invoked identically whether merging within
// one batch, across batches, or between a batch and an existing holding.
//
// For quantity-carrying kinds the result preserves total cost:
//
//	quantity  = Σ qty_i
//	unitPrice = Σ (qty_i × price_i) / Σ qty_i   (0 when Σ qty_i is 0)
//
// Balance kinds have no quantity concept; the lots are monetary balances, so
// prices sum directly and quantity stays locked at 1.
func Merge(kind schema.Kind, parts []MergePart) MergePart {
	if kind == schema.KindBalance {
		total := decimal.Zero
		for _, p := range parts {
			total = total.Add(p.UnitPrice)
		}
		return MergePart{Quantity: decimal.NewFromInt(1), UnitPrice: total}
	}

	totalQty := decimal.Zero
	totalCost := decimal.Zero
	for _, p := range parts {
		totalQty = totalQty.Add(p.Quantity)
		totalCost = totalCost.Add(p.Quantity.Mul(p.UnitPrice))
	}
	if totalQty.IsZero() {
		return MergePart{Quantity: decimal.Zero, UnitPrice: decimal.Zero}
	}
	return MergePart{Quantity: totalQty, UnitPrice: totalCost.Div(totalQty)}
}

// kindOf returns the normalization kind for an asset class, defaulting to
// quantity-based when the class is unknown.
func kindOf(assetClass string) schema.Kind {
	if c, ok := schema.Lookup(assetClass); ok {
		return c.Kind
	}
	return schema.KindQuantity
}
