package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/wealthfolio/backend/src/models"
)

func sampleConflict(t *testing.T) models.Conflict {
	t.Helper()
	existing := holding("EQUITY_IN", "RELIANCE", "10", "100")
	conflicts, _ := Match(
		[]models.ImportRow{importRow("EQUITY_IN", "RELIANCE", "10", "200", "a.csv", 2)},
		[]models.ExistingHolding{existing},
	)
	require.Len(t, conflicts, 1)
	return conflicts[0]
}

func TestResolveDefaultsToMerge(t *testing.T) {
	c := sampleConflict(t)
	mutations, err := Resolve(nil, []models.Conflict{c}, nil)
	require.NoError(t, err)
	require.Len(t, mutations, 1)

	m := mutations[0]
	assert.Equal(t, models.ActionMerge, m.Action)
	assert.Equal(t, c.Existing.ID, m.HoldingID)
	assertDecimal(t, "20", m.FinalQuantity)
	assertDecimal(t, "150", m.FinalUnitPrice)
}

func TestResolveReplaceUsesIncoming(t *testing.T) {
	c := sampleConflict(t)
	mutations, err := Resolve(nil, []models.Conflict{c}, map[string]models.ResolutionAction{c.ID: models.ActionReplace})
	require.NoError(t, err)
	require.Len(t, mutations, 1)
	assert.Equal(t, models.ActionReplace, mutations[0].Action)
	assertDecimal(t, "10", mutations[0].FinalQuantity)
	assertDecimal(t, "200", mutations[0].FinalUnitPrice)
}

func TestResolveSkipEmitsNothing(t *testing.T) {
	c := sampleConflict(t)
	mutations, err := Resolve(nil, []models.Conflict{c}, map[string]models.ResolutionAction{c.ID: models.ActionSkip})
	require.NoError(t, err)
	assert.Empty(t, mutations)
}

func TestResolveUnmatchedBecomeCreates(t *testing.T) {
	row := importRow("EQUITY_IN", "TCS", "5", "3500", "a.csv", 1)
	mutations, err := Resolve([]models.ImportRow{row}, nil, nil)
	require.NoError(t, err)
	require.Len(t, mutations, 1)

	m := mutations[0]
	assert.Equal(t, models.ActionCreate, m.Action)
	assert.Equal(t, "TCS", m.MergeKey)
	assertDecimal(t, "5", m.FinalQuantity)
	assertDecimal(t, "3500", m.FinalUnitPrice)
	assert.Equal(t, []int{1}, m.SourceRowIndices)
}

func TestResolveRejectsInvalidAction(t *testing.T) {
	c := sampleConflict(t)
	_, err := Resolve(nil, []models.Conflict{c}, map[string]models.ResolutionAction{c.ID: models.ActionCreate})
	require.ErrorIs(t, err, ErrInvalidAction, "create is reserved for unmatched rows")

	_, err = Resolve(nil, []models.Conflict{c}, map[string]models.ResolutionAction{c.ID: "destroy"})
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestResolveIdempotent(t *testing.T) {
	c := sampleConflict(t)
	actions := map[string]models.ResolutionAction{c.ID: models.ActionMerge}
	first, err := Resolve(nil, []models.Conflict{c}, actions)
	require.NoError(t, err)
	second, err := Resolve(nil, []models.Conflict{c}, actions)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestApplyToAll(t *testing.T) {
	a := sampleConflict(t)
	b := sampleConflict(t)
	b.ID = "EQUITY_IN::TCS"

	actions := map[string]models.ResolutionAction{a.ID: models.ActionMerge}
	out := ApplyToAll(actions, []models.Conflict{a, b}, models.ActionSkip)
	assert.Equal(t, models.ActionSkip, out[a.ID])
	assert.Equal(t, models.ActionSkip, out[b.ID])
	assert.Len(t, out, 2, "relabel only, no conflicts added or removed")

	out = ApplyToAll(nil, []models.Conflict{a}, models.ActionReplace)
	assert.Equal(t, models.ActionReplace, out[a.ID])
}
