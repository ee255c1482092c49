package parsers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/wealthfolio/backend/src/schema"
)

func TestResolveAutoDetectZerodha(t *testing.T) {
	headers := []string{"Instrument", "Qty.", "Avg. cost", "LTP", "Cur. val", "P&L"}
	mr, err := Resolve(headers, "")
	require.NoError(t, err)
	require.NotNil(t, mr.Mapping)
	assert.Equal(t, "zerodha", mr.Broker)
	assert.Equal(t, "EQUITY_IN", mr.AssetClass)
	assert.Equal(t, 0, mr.Mapping[schema.FieldSymbol])
	assert.Equal(t, 1, mr.Mapping[schema.FieldQuantity])
	assert.Equal(t, 2, mr.Mapping[schema.FieldUnitPrice])
	_, hasLTP := mr.Mapping[schema.Field("ltp")]
	assert.False(t, hasLTP, "derived columns never map")
}

func TestResolveAutoDetectUpstox(t *testing.T) {
	headers := []string{"Symbol", "Company Name", "Quantity", "Average Price", "ISIN"}
	mr, err := Resolve(headers, "")
	require.NoError(t, err)
	require.NotNil(t, mr.Mapping)
	assert.Equal(t, "upstox", mr.Broker)
	// A profile that folds symbol and name onto one column must not beat
	// the one that found them in separate columns.
	assert.Equal(t, 0, mr.Mapping[schema.FieldSymbol])
	assert.Equal(t, 1, mr.Mapping[schema.FieldName])
	assert.Equal(t, 4, mr.Mapping[schema.FieldISIN])
}

func TestResolveDeclaredBroker(t *testing.T) {
	headers := []string{"Scheme Name", "Units", "Amount Invested", "ISIN"}
	mr, err := Resolve(headers, "cas")
	require.NoError(t, err)
	require.NotNil(t, mr.Mapping)
	assert.Equal(t, "cas", mr.Broker)
	assert.Equal(t, "MUTUAL_FUND", mr.AssetClass)
	assert.Equal(t, 2, mr.Mapping[schema.FieldAmount])
}

func TestResolveUnknownDeclaredBroker(t *testing.T) {
	_, err := Resolve([]string{"Symbol", "Quantity"}, "etrade")
	require.ErrorIs(t, err, ErrUnknownBroker)
}

func TestResolveUnknownHeadersSignalMappingRequired(t *testing.T) {
	mr, err := Resolve([]string{"ColA", "ColB", "ColC"}, "")
	require.NoError(t, err, "an unrecognized format never throws")
	assert.Nil(t, mr.Mapping)
	assert.Equal(t, []string{"ColA", "ColB", "ColC"}, mr.Headers)
}

func TestResolveDeclaredBrokerBelowThreshold(t *testing.T) {
	// Declared broker whose profile cannot find a quantity/price column.
	mr, err := Resolve([]string{"Instrument"}, "zerodha")
	require.NoError(t, err)
	assert.Nil(t, mr.Mapping, "below-threshold resolution degrades to mapping-required")
}

func TestResolveExplicit(t *testing.T) {
	class, ok := schema.Lookup("EQUITY_IN")
	require.True(t, ok)
	headers := []string{"Scrip", "Units Held", "Cost Per Unit"}

	mr, err := ResolveExplicit(headers, map[string]string{
		"Scrip":         "symbol",
		"Units Held":    "quantity",
		"Cost Per Unit": "avg_buy_price",
	}, class)
	require.NoError(t, err)
	assert.Equal(t, schema.Mapping{
		schema.FieldSymbol:    0,
		schema.FieldQuantity:  1,
		schema.FieldUnitPrice: 2,
	}, mr.Mapping)
}

func TestResolveExplicitValidation(t *testing.T) {
	class, _ := schema.Lookup("EQUITY_IN")
	headers := []string{"Scrip", "Units Held", "Cost Per Unit"}

	tests := []struct {
		name     string
		explicit map[string]string
	}{
		{"header not in file", map[string]string{"Nope": "symbol", "Units Held": "quantity", "Cost Per Unit": "avg_buy_price"}},
		{"unknown field", map[string]string{"Scrip": "wingspan", "Units Held": "quantity", "Cost Per Unit": "avg_buy_price"}},
		{"merge key unmapped", map[string]string{"Units Held": "quantity", "Cost Per Unit": "avg_buy_price"}},
		{"quantity unmapped", map[string]string{"Scrip": "symbol", "Cost Per Unit": "avg_buy_price"}},
		{"no price or amount", map[string]string{"Scrip": "symbol", "Units Held": "quantity"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveExplicit(headers, tt.explicit, class)
			require.ErrorIs(t, err, ErrMappingIncomplete)
		})
	}
}

func TestResolveExplicitNameFallbackForKey(t *testing.T) {
	// Symbol-keyed class with only a name column: allowed, the rows fall
	// back to name keys and resolve later.
	class, _ := schema.Lookup("EQUITY_IN")
	headers := []string{"Security", "Units", "Cost"}
	_, err := ResolveExplicit(headers, map[string]string{
		"Security": "name",
		"Units":    "quantity",
		"Cost":     "avg_buy_price",
	}, class)
	require.NoError(t, err)
}

func TestProfilesLoaded(t *testing.T) {
	ps := Profiles()
	require.NotEmpty(t, ps)
	brokers := make(map[string]bool)
	for _, p := range ps {
		brokers[p.Broker] = true
	}
	for _, want := range []string{"zerodha", "upstox", "groww", "cas", "generic"} {
		assert.True(t, brokers[want], "profile %s missing", want)
	}
}
