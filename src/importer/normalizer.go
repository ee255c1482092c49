package importer

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
)

// numericJunk is stripped before parsing a numeric cell: thousands
// separators, currency markers and percent signs as they appear in broker
// exports ("₹1,234.50", "Rs. 500", "7.1%").
var numericJunk = strings.NewReplacer(
	",", "", "₹", "", "$", "", "€", "", "£", "", "%", "",
	"Rs.", "", "Rs", "", "INR", "", "USD", "", " ", "",
)

// ParseNumeric permissively parses a broker-export numeric cell.
func ParseNumeric(raw string) (decimal.Decimal, error) {
	cleaned := numericJunk.Replace(strings.TrimSpace(raw))
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("empty numeric value")
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a number")
	}
	return d, nil
}

// NormalizeRow coerces one raw row into an ImportRow using the resolved
// header mapping. The second return value carries the rejection when the row
// is invalid; dropped==true means the row was a summary/footer line and is
// skipped silently.
func NormalizeRow(raw models.RawRow, mapping schema.Mapping, class schema.Class) (models.ImportRow, *models.RejectedRow, bool) {
	cell := func(f schema.Field) string {
		idx, ok := mapping[f]
		if !ok || idx < 0 || idx >= len(raw.Cells) {
			return ""
		}
		return strings.TrimSpace(raw.Cells[idx])
	}
	row, reason, dropped := normalize(cell, class)
	if dropped {
		return models.ImportRow{}, nil, true
	}
	if reason != "" {
		return models.ImportRow{}, &models.RejectedRow{
			SourceFile: raw.SourceFile,
			RowIndex:   raw.RowIndex,
			Reason:     reason,
		}, false
	}
	row.SourceFile = raw.SourceFile
	row.SourceRowIndices = []int{raw.RowIndex}
	return row, nil, false
}

// NormalizeManual runs the same coercion over an already field-addressed row
// (manual entry), bypassing header mapping.
func NormalizeManual(fields map[schema.Field]string, class schema.Class, sourceFile string, rowIndex int) (models.ImportRow, *models.RejectedRow, bool) {
	cell := func(f schema.Field) string { return strings.TrimSpace(fields[f]) }
	row, reason, dropped := normalize(cell, class)
	if dropped {
		return models.ImportRow{}, nil, true
	}
	if reason != "" {
		return models.ImportRow{}, &models.RejectedRow{SourceFile: sourceFile, RowIndex: rowIndex, Reason: reason}, false
	}
	row.SourceFile = sourceFile
	row.SourceRowIndices = []int{rowIndex}
	return row, nil, false
}

// normalize is the shared core. It returns a non-empty reason string for an
// invalid row, or dropped==true for a silent footer/summary skip.
func normalize(cell func(schema.Field) string, class schema.Class) (models.ImportRow, string, bool) {
	// Broker exports routinely end with blank or totals lines: no
	// identity, and every numeric cell blank or zero. Those are not data
	// and not worth reporting.
	if isFooterRow(cell, class) {
		return models.ImportRow{}, "", true
	}

	row := models.ImportRow{AssetClass: class.Code}

	for _, f := range class.Required {
		if cell(f) != "" {
			continue
		}
		// Amount-based classes treat a blank quantity as "no unit
		// concept": the row degrades to quantity 1 below.
		if f == schema.FieldQuantity && class.Kind == schema.KindAmount {
			continue
		}
		return models.ImportRow{}, fmt.Sprintf("missing required field %q", f), false
	}

	var qty, price decimal.Decimal
	switch class.Kind {
	case schema.KindQuantity:
		var reason string
		if qty, reason = requireNumeric(cell, schema.FieldQuantity); reason != "" {
			return models.ImportRow{}, reason, false
		}
		var priceReason string
		if price, priceReason = requireNumeric(cell, schema.FieldUnitPrice); priceReason != "" {
			return models.ImportRow{}, priceReason, false
		}
	case schema.KindAmount:
		amount, reason := requireNumeric(cell, schema.FieldAmount)
		if reason != "" {
			return models.ImportRow{}, reason, false
		}
		if rawQty := cell(schema.FieldQuantity); rawQty != "" {
			var qtyReason string
			if qty, qtyReason = requireNumeric(cell, schema.FieldQuantity); qtyReason != "" {
				return models.ImportRow{}, qtyReason, false
			}
		}
		if qty.IsPositive() {
			// The only place a total amount may be divided down to a
			// per-unit cost.
			price = amount.Div(qty)
		} else {
			qty = decimal.NewFromInt(1)
			price = amount
		}
	case schema.KindBalance:
		amount, reason := requireNumeric(cell, schema.FieldAmount)
		if reason != "" {
			return models.ImportRow{}, reason, false
		}
		qty = decimal.NewFromInt(1)
		price = amount
	}

	if qty.IsNegative() {
		return models.ImportRow{}, fmt.Sprintf("invalid numeric value %q for %q: negative quantity", cell(schema.FieldQuantity), schema.FieldQuantity), false
	}

	row.Quantity = qty
	row.UnitPrice = price
	row.DisplayName = cell(schema.FieldName)
	if row.DisplayName == "" {
		row.DisplayName = cell(schema.FieldSymbol)
	}
	row.Currency = cell(schema.FieldCurrency)
	if row.Currency == "" {
		row.Currency = "INR"
	}
	row.ISIN = strings.ToUpper(cell(schema.FieldISIN))
	row.Exchange = cell(schema.FieldExchange)
	row.Institution = cell(schema.FieldInstitution)
	row.MaturityDate = cell(schema.FieldMaturityDate)
	row.BuyDate = cell(schema.FieldBuyDate)
	if raw := cell(schema.FieldInterestRate); raw != "" {
		rate, err := ParseNumeric(raw)
		if err != nil {
			return models.ImportRow{}, fmt.Sprintf("invalid numeric value %q for %q", raw, schema.FieldInterestRate), false
		}
		row.InterestRate = &rate
	}

	// Merge key: the class key field, falling back to the display name for
	// symbol-keyed rows whose symbol is not known yet. Such rows carry the
	// Unresolved flag until the security resolver supplies a canonical id.
	key := cell(class.KeyField)
	if key == "" && class.KeyField == schema.FieldSymbol {
		key = row.DisplayName
		row.Unresolved = true
	}
	if key == "" {
		return models.ImportRow{}, fmt.Sprintf("missing required field %q", class.KeyField), false
	}
	row.MergeKey = key
	return row, "", false
}

// requireNumeric parses a required numeric field with the permissive parser
// and phrases the failure the way the review screen reports it.
func requireNumeric(cell func(schema.Field) string, f schema.Field) (decimal.Decimal, string) {
	raw := cell(f)
	d, err := ParseNumeric(raw)
	if err != nil {
		return decimal.Zero, fmt.Sprintf("invalid numeric value %q for %q", raw, f)
	}
	return d, ""
}

// isFooterRow reports whether every identity cell is blank and every numeric
// cell is blank or zero.
func isFooterRow(cell func(schema.Field) string, class schema.Class) bool {
	if cell(schema.FieldSymbol) != "" || cell(schema.FieldName) != "" {
		return false
	}
	for _, f := range []schema.Field{schema.FieldQuantity, schema.FieldUnitPrice, schema.FieldAmount} {
		raw := cell(f)
		if raw == "" {
			continue
		}
		d, err := ParseNumeric(raw)
		if err != nil || !d.IsZero() {
			return false
		}
	}
	return true
}
