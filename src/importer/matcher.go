package importer

import (
	"sort"

	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
)

// Match cross-references incoming rows against a snapshot of the existing
// ledger. Rows whose normalized merge key matches an existing holding are
// folded into one Conflict per holding, with a computed merge preview;
// everything else passes through unmatched.
//
// Matching is exact on the normalized key only, never fuzzy. Rows still
// flagged Unresolved participate on their free-text name key: a prior
// import of the same unresolved instrument left a holding under exactly
// that name, and re-importing it must surface a conflict the user can act
// on rather than a create doomed to collide in the ledger.
func Match(rows []models.ImportRow, existing []models.ExistingHolding) ([]models.Conflict, []models.ImportRow) {
	byKey := make(map[string]models.ExistingHolding, len(existing))
	for _, h := range existing {
		key := schema.GroupKey(h.AssetClass, h.MergeKey)
		if _, dup := byKey[key]; dup {
			continue // earliest holding wins, mirroring the ledger's creation order
		}
		byKey[key] = h
	}

	type agg struct {
		conflict models.Conflict
		incoming []MergePart
	}
	aggs := make(map[string]*agg)
	var order []string
	var unmatched []models.ImportRow

	for _, row := range rows {
		key := schema.GroupKey(row.AssetClass, row.MergeKey)
		hold, ok := byKey[key]
		if !ok {
			unmatched = append(unmatched, row)
			continue
		}
		a, started := aggs[key]
		if !started {
			a = &agg{conflict: models.Conflict{
				ID:         key,
				Existing:   hold,
				SourceFile: row.SourceFile,
			}}
			aggs[key] = a
			order = append(order, key)
		}
		a.incoming = append(a.incoming, MergePart{Quantity: row.Quantity, UnitPrice: row.UnitPrice})
		a.conflict.SourceRowIndices = append(a.conflict.SourceRowIndices, row.SourceRowIndices...)
	}

	conflicts := make([]models.Conflict, 0, len(order))
	for _, key := range order {
		a := aggs[key]
		kind := kindOf(a.conflict.Existing.AssetClass)

		in := Merge(kind, a.incoming)
		a.conflict.IncomingQuantity = in.Quantity
		a.conflict.IncomingPrice = in.UnitPrice

		all := append([]MergePart{{Quantity: a.conflict.Existing.Quantity, UnitPrice: a.conflict.Existing.UnitPrice}}, a.incoming...)
		merged := Merge(kind, all)
		a.conflict.MergedQuantity = merged.Quantity
		a.conflict.MergedPrice = merged.UnitPrice

		sort.Ints(a.conflict.SourceRowIndices)
		conflicts = append(conflicts, a.conflict)
	}
	return conflicts, unmatched
}
