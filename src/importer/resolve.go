package importer

import (
	"fmt"

	"github.com/username/wealthfolio/backend/src/models"
)

// Resolve turns the matched state of a session into the final mutation list.
//
// Every unmatched row becomes a Create carrying its own quantity and price.
// Every conflict is resolved by its action from the actions map, defaulting
// to merge:
//
//	merge:   existing + incoming, weighted-average arithmetic
//	replace: incoming only; the existing values are discarded
//	skip:    no mutation, the existing holding is untouched
//
// Resolve is pure and idempotent: the same inputs produce the same list.
func Resolve(unmatched []models.ImportRow, conflicts []models.Conflict, actions map[string]models.ResolutionAction) ([]models.Mutation, error) {
	for id, a := range actions {
		if !models.ValidConflictAction(a) {
			return nil, fmt.Errorf("%w: %q for conflict %q", ErrInvalidAction, a, id)
		}
	}

	mutations := make([]models.Mutation, 0, len(unmatched)+len(conflicts))

	for _, row := range unmatched {
		mutations = append(mutations, models.Mutation{
			Action:           models.ActionCreate,
			AssetClass:       row.AssetClass,
			MergeKey:         row.MergeKey,
			DisplayName:      row.DisplayName,
			Currency:         row.Currency,
			FinalQuantity:    row.Quantity,
			FinalUnitPrice:   row.UnitPrice,
			ISIN:             row.ISIN,
			Exchange:         row.Exchange,
			Institution:      row.Institution,
			InterestRate:     row.InterestRate,
			MaturityDate:     row.MaturityDate,
			BuyDate:          row.BuyDate,
			SourceRowIndices: row.SourceRowIndices,
		})
	}

	for _, c := range conflicts {
		action := models.ActionMerge
		if a, ok := actions[c.ID]; ok {
			action = a
		}
		switch action {
		case models.ActionSkip:
			continue
		case models.ActionMerge:
			mutations = append(mutations, models.Mutation{
				Action:           models.ActionMerge,
				HoldingID:        c.Existing.ID,
				AssetClass:       c.Existing.AssetClass,
				MergeKey:         c.Existing.MergeKey,
				DisplayName:      c.Existing.DisplayName,
				Currency:         c.Existing.Currency,
				FinalQuantity:    c.MergedQuantity,
				FinalUnitPrice:   c.MergedPrice,
				SourceRowIndices: c.SourceRowIndices,
			})
		case models.ActionReplace:
			mutations = append(mutations, models.Mutation{
				Action:           models.ActionReplace,
				HoldingID:        c.Existing.ID,
				AssetClass:       c.Existing.AssetClass,
				MergeKey:         c.Existing.MergeKey,
				DisplayName:      c.Existing.DisplayName,
				Currency:         c.Existing.Currency,
				FinalQuantity:    c.IncomingQuantity,
				FinalUnitPrice:   c.IncomingPrice,
				SourceRowIndices: c.SourceRowIndices,
			})
		}
	}
	return mutations, nil
}

// ApplyToAll overwrites every conflict's current action with one chosen
// action. It only relabels: conflicts are neither added nor removed.
func ApplyToAll(actions map[string]models.ResolutionAction, conflicts []models.Conflict, chosen models.ResolutionAction) map[string]models.ResolutionAction {
	if actions == nil {
		actions = make(map[string]models.ResolutionAction, len(conflicts))
	}
	for _, c := range conflicts {
		actions[c.ID] = chosen
	}
	return actions
}
