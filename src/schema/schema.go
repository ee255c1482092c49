// Package schema is the static registry of asset classes: which fields each
// class requires, how its unit price is normalized, and which field acts as
// the merge key.
package schema

import "strings"

// Field names the normalizer can address. These are the targets of a
// header→field mapping; they deliberately match the ledger column names.
type Field string

const (
	FieldSymbol       Field = "symbol"
	FieldName         Field = "name"
	FieldQuantity     Field = "quantity"
	FieldUnitPrice    Field = "avg_buy_price"
	FieldAmount       Field = "amount_invested"
	FieldCurrency     Field = "currency"
	FieldExchange     Field = "exchange"
	FieldISIN         Field = "isin"
	FieldInstitution  Field = "institution"
	FieldInterestRate Field = "interest_rate"
	FieldMaturityDate Field = "maturity_date"
	FieldBuyDate      Field = "buy_date"
)

// Mapping binds schema fields to column indices of a batch's header row.
// It is produced by the format resolver and consumed by the normalizer.
type Mapping map[Field]int

// Kind selects the unit-price normalization strategy for a class.
type Kind int

const (
	// KindQuantity: source rows carry quantity and a per-unit price.
	KindQuantity Kind = iota
	// KindAmount: source rows carry quantity (units) and a total invested
	// amount; unit price is derived as amount/quantity. A missing or zero
	// quantity locks quantity at 1 and keeps the amount as the price.
	KindAmount
	// KindBalance: the instrument has no quantity concept (deposits,
	// provident funds, real estate). Quantity is locked at 1 and the
	// "price" is the monetary balance.
	KindBalance
)

func (k Kind) String() string {
	switch k {
	case KindQuantity:
		return "quantity"
	case KindAmount:
		return "amount"
	case KindBalance:
		return "balance"
	}
	return "unknown"
}

// MarshalJSON renders the kind by name so API clients see "quantity", not 0.
func (k Kind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Class describes one asset class.
type Class struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Category string `json:"category"`
	Kind     Kind   `json:"kind"`
	// KeyField is the field whose value identifies "the same holding":
	// symbol for traded classes, name for everything else.
	KeyField Field   `json:"key_field"`
	Required []Field `json:"required"`
	Optional []Field `json:"optional"`
}

// QuantityBased reports whether rows of this class must resolve quantity
// and price fields for an explicit mapping to be considered complete.
func (c Class) QuantityBased() bool { return c.Kind != KindBalance }

var registry = []Class{
	{Code: "EQUITY_IN", Name: "Indian Equity", Category: "Equity", Kind: KindQuantity, KeyField: FieldSymbol,
		Required: []Field{FieldSymbol, FieldName, FieldQuantity, FieldUnitPrice},
		Optional: []Field{FieldExchange, FieldBuyDate, FieldISIN}},
	{Code: "EQUITY_US", Name: "US Equity", Category: "Equity", Kind: KindQuantity, KeyField: FieldSymbol,
		Required: []Field{FieldSymbol, FieldName, FieldQuantity, FieldUnitPrice},
		Optional: []Field{FieldBuyDate, FieldExchange, FieldCurrency}},
	{Code: "MUTUAL_FUND", Name: "Mutual Fund", Category: "Funds", Kind: KindAmount, KeyField: FieldSymbol,
		Required: []Field{FieldName, FieldQuantity, FieldAmount},
		Optional: []Field{FieldSymbol, FieldISIN, FieldInstitution}},
	{Code: "CRYPTO", Name: "Cryptocurrency", Category: "Crypto", Kind: KindQuantity, KeyField: FieldSymbol,
		Required: []Field{FieldSymbol, FieldName, FieldQuantity, FieldUnitPrice},
		Optional: []Field{FieldExchange}},
	{Code: "GOLD_PHYSICAL", Name: "Physical Gold", Category: "Gold", Kind: KindQuantity, KeyField: FieldName,
		Required: []Field{FieldName, FieldQuantity, FieldUnitPrice},
		Optional: []Field{FieldBuyDate}},
	{Code: "GOLD_SGB", Name: "Sovereign Gold Bond", Category: "Gold", Kind: KindQuantity, KeyField: FieldName,
		Required: []Field{FieldName, FieldQuantity, FieldUnitPrice, FieldMaturityDate, FieldInterestRate},
		Optional: []Field{FieldBuyDate, FieldInstitution}},
	{Code: "GOLD_ETF", Name: "Gold ETF", Category: "Gold", Kind: KindQuantity, KeyField: FieldSymbol,
		Required: []Field{FieldSymbol, FieldName, FieldQuantity, FieldUnitPrice},
		Optional: []Field{FieldExchange}},
	{Code: "GOLD_DIGITAL", Name: "Digital Gold", Category: "Gold", Kind: KindAmount, KeyField: FieldName,
		Required: []Field{FieldName, FieldQuantity, FieldAmount},
		Optional: []Field{FieldInstitution}},
	{Code: "FIXED_DEPOSIT", Name: "Fixed Deposit", Category: "Fixed Income", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount, FieldInterestRate, FieldMaturityDate, FieldInstitution},
		Optional: []Field{FieldBuyDate}},
	{Code: "PPF", Name: "Public Provident Fund", Category: "Fixed Income", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount, FieldInstitution},
		Optional: []Field{FieldInterestRate, FieldMaturityDate}},
	{Code: "EPF", Name: "Employee Provident Fund", Category: "Fixed Income", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount},
		Optional: []Field{FieldInstitution, FieldInterestRate}},
	{Code: "NPS", Name: "National Pension System", Category: "Fixed Income", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount},
		Optional: []Field{FieldInstitution}},
	{Code: "REAL_ESTATE", Name: "Real Estate", Category: "Real Estate", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount},
		Optional: []Field{FieldBuyDate, FieldInstitution}},
	{Code: "BOND", Name: "Bond", Category: "Fixed Income", Kind: KindQuantity, KeyField: FieldName,
		Required: []Field{FieldName, FieldQuantity, FieldUnitPrice, FieldInterestRate, FieldMaturityDate},
		Optional: []Field{FieldSymbol, FieldISIN, FieldInstitution}},
	{Code: "OTHER", Name: "Other", Category: "Other", Kind: KindBalance, KeyField: FieldName,
		Required: []Field{FieldName, FieldAmount},
		Optional: []Field{FieldQuantity, FieldInstitution}},
}

var byCode = func() map[string]Class {
	m := make(map[string]Class, len(registry))
	for _, c := range registry {
		m[c.Code] = c
	}
	return m
}()

// Lookup returns the class for a code.
func Lookup(code string) (Class, bool) {
	c, ok := byCode[strings.ToUpper(strings.TrimSpace(code))]
	return c, ok
}

// All returns every registered class in declaration order.
func All() []Class {
	out := make([]Class, len(registry))
	copy(out, registry)
	return out
}

// NormalizeKey canonicalizes a merge-key value for grouping: trimmed,
// upper-cased, inner whitespace collapsed. Every grouping boundary
// (collapser and matcher) must go through this one function so that casing
// differences between files cannot bypass deduplication.
func NormalizeKey(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// GroupKey builds the map key used when bucketing rows by identity.
func GroupKey(assetClass, mergeKey string) string {
	return strings.ToUpper(strings.TrimSpace(assetClass)) + "::" + NormalizeKey(mergeKey)
}
