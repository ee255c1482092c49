package importer

import (
	"sort"

	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
)

// Collapse folds rows sharing a merge key into one row each. It operates
// across ALL rows of an import session, not per file: two statements
// spanning different periods may both report the same instrument, and
// without this stage the duplicate matcher would see each fragment as a
// separate create and miscount quantity.
//
// Groups of size one pass through unchanged. Larger groups are replaced by a
// single synthetic row: quantity and unit price recomputed by Merge,
// source row indices unioned, display name and currency taken from the
// first row of the group.
func Collapse(rows []models.ImportRow) []models.ImportRow {
	if len(rows) < 2 {
		return rows
	}

	type group struct {
		first int // index of first appearance, keeps output order stable
		rows  []models.ImportRow
	}
	groups := make(map[string]*group)
	order := make([]string, 0, len(rows))
	for i, row := range rows {
		key := schema.GroupKey(row.AssetClass, row.MergeKey)
		g, ok := groups[key]
		if !ok {
			g = &group{first: i}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	out := make([]models.ImportRow, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g.rows) == 1 {
			out = append(out, g.rows[0])
			continue
		}
		out = append(out, foldGroup(g.rows))
	}
	return out
}

// foldGroup merges a multi-row group into one synthetic row.
func foldGroup(rows []models.ImportRow) models.ImportRow {
	parts := make([]MergePart, len(rows))
	indices := make([]int, 0, len(rows))
	unresolved := true
	for i, r := range rows {
		parts[i] = MergePart{Quantity: r.Quantity, UnitPrice: r.UnitPrice}
		indices = append(indices, r.SourceRowIndices...)
		if !r.Unresolved {
			unresolved = false
		}
	}
	sort.Ints(indices)

	merged := Merge(kindOf(rows[0].AssetClass), parts)

	folded := rows[0]
	folded.Quantity = merged.Quantity
	folded.UnitPrice = merged.UnitPrice
	folded.SourceRowIndices = indices
	folded.Unresolved = unresolved
	return folded
}
