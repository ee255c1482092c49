package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/wealthfolio/backend/src/models"
)

func importRow(class, key string, qty, price string, file string, idx int) models.ImportRow {
	return models.ImportRow{
		AssetClass:       class,
		MergeKey:         key,
		DisplayName:      key,
		Quantity:         dec(qty),
		UnitPrice:        dec(price),
		Currency:         "INR",
		SourceFile:       file,
		SourceRowIndices: []int{idx},
	}
}

func TestCollapsePassThrough(t *testing.T) {
	rows := []models.ImportRow{importRow("EQUITY_IN", "TCS", "5", "3500", "a.csv", 0)}
	out := Collapse(rows)
	require.Len(t, out, 1)
	assert.Equal(t, rows[0], out[0])
}

func TestCollapseMergesDuplicateKeys(t *testing.T) {
	rows := []models.ImportRow{
		importRow("EQUITY_IN", "RELIANCE", "10", "100", "jan.csv", 0),
		importRow("EQUITY_IN", "TCS", "5", "3500", "jan.csv", 1),
		importRow("EQUITY_IN", "RELIANCE", "10", "200", "feb.csv", 0),
	}
	out := Collapse(rows)
	require.Len(t, out, 2)

	// First appearance order is preserved.
	assert.Equal(t, "RELIANCE", out[0].MergeKey)
	assert.Equal(t, "TCS", out[1].MergeKey)

	assertDecimal(t, "20", out[0].Quantity)
	assertDecimal(t, "150", out[0].UnitPrice)
	assert.Equal(t, []int{0, 0}, out[0].SourceRowIndices, "row indices from both files are unioned")
	assert.Equal(t, "jan.csv", out[0].SourceFile, "folded row keeps the first row's source")
}

func TestCollapseCaseInsensitive(t *testing.T) {
	rows := []models.ImportRow{
		importRow("EQUITY_IN", "Reliance", "10", "100", "a.csv", 0),
		importRow("EQUITY_IN", "RELIANCE ", "10", "200", "b.csv", 0),
	}
	out := Collapse(rows)
	require.Len(t, out, 1, "casing and whitespace differences collapse together")
	assertDecimal(t, "20", out[0].Quantity)
	assertDecimal(t, "150", out[0].UnitPrice)
}

func TestCollapseKeepsClassesApart(t *testing.T) {
	rows := []models.ImportRow{
		importRow("EQUITY_IN", "GOLDBEES", "10", "50", "a.csv", 0),
		importRow("GOLD_ETF", "GOLDBEES", "10", "50", "a.csv", 1),
	}
	out := Collapse(rows)
	assert.Len(t, out, 2, "same key under different classes is not a duplicate")
}

func TestCollapseBalanceClassSums(t *testing.T) {
	rows := []models.ImportRow{
		importRow("PPF", "PPF Account", "1", "50000", "a.csv", 0),
		importRow("PPF", "ppf account", "1", "25000", "b.csv", 0),
	}
	out := Collapse(rows)
	require.Len(t, out, 1)
	assertDecimal(t, "1", out[0].Quantity)
	assertDecimal(t, "75000", out[0].UnitPrice)
}

func TestCollapseUnresolvedFlag(t *testing.T) {
	a := importRow("MUTUAL_FUND", "HDFC Top 100", "10", "100", "a.csv", 0)
	a.Unresolved = true
	b := importRow("MUTUAL_FUND", "HDFC TOP 100", "10", "100", "b.csv", 0)
	b.Unresolved = true
	c := importRow("MUTUAL_FUND", "HDFC Top 100", "10", "100", "c.csv", 0)

	out := Collapse([]models.ImportRow{a, b})
	require.Len(t, out, 1)
	assert.True(t, out[0].Unresolved, "all members unresolved keeps the group unresolved")

	out = Collapse([]models.ImportRow{a, c})
	require.Len(t, out, 1)
	assert.False(t, out[0].Unresolved, "one resolved member resolves the group")
}
