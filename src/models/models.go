package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawRow is one data row of an uploaded file, untyped. Cells are positional
// and line up with the header row of the same file.
type RawRow struct {
	Cells      []string `json:"cells"`
	SourceFile string   `json:"source_file"`
	RowIndex   int      `json:"row_index"` // 0-based, counted from the first data row
}

// RawBatch is everything the parsers extract from a single uploaded file.
type RawBatch struct {
	SourceFile string   `json:"source_file"`
	Headers    []string `json:"headers"`
	Rows       []RawRow `json:"rows"`
}

// ImportRow is the normalized unit of work flowing through the engine.
//
// UnitPrice is always a per-unit cost. When the source expressed a total
// invested amount, the normalizer is the only place that divides it down,
// and only when quantity > 0.
type ImportRow struct {
	AssetClass  string          `json:"asset_class"`
	MergeKey    string          `json:"merge_key"` // symbol for traded classes, name otherwise
	DisplayName string          `json:"display_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`

	// Per-asset-class extras.
	ISIN         string           `json:"isin,omitempty"`
	Exchange     string           `json:"exchange,omitempty"`
	Institution  string           `json:"institution,omitempty"`
	InterestRate *decimal.Decimal `json:"interest_rate,omitempty"`
	MaturityDate string           `json:"maturity_date,omitempty"` // ISO date, uninterpreted by the engine
	BuyDate      string           `json:"buy_date,omitempty"`

	// Unresolved marks a row of a symbol-keyed class that is still keyed by
	// its free-text name because no canonical identifier is known yet. Such
	// rows match existing holdings on that name key like any other row, so a
	// re-import of the same unresolved instrument surfaces a conflict instead
	// of a duplicate create.
	Unresolved bool `json:"unresolved,omitempty"`

	SourceFile       string `json:"source_file"`
	SourceRowIndices []int  `json:"source_row_indices"`
}

// ExistingHolding is the read projection of a ledger row. The engine never
// mutates one; it emits Mutations instead.
type ExistingHolding struct {
	ID          uuid.UUID       `json:"id"`
	AssetClass  string          `json:"asset_class"`
	MergeKey    string          `json:"merge_key"`
	DisplayName string          `json:"display_name"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Currency    string          `json:"currency"`

	ISIN         string `json:"isin,omitempty"`
	Exchange     string `json:"exchange,omitempty"`
	Institution  string `json:"institution,omitempty"`
	InterestRate string `json:"interest_rate,omitempty"`
	MaturityDate string `json:"maturity_date,omitempty"`
	BuyDate      string `json:"buy_date,omitempty"`
}

// Conflict is one incoming merge key that matched an existing holding. All
// incoming rows for that key are aggregated here, not one conflict per row.
type Conflict struct {
	ID               string          `json:"id"` // normalized "<class>::<key>", stable within a session
	Existing         ExistingHolding `json:"existing"`
	SourceFile       string          `json:"source_file"`
	SourceRowIndices []int           `json:"source_row_indices"`
	IncomingQuantity decimal.Decimal `json:"incoming_quantity"`
	IncomingPrice    decimal.Decimal `json:"incoming_unit_price"`
	MergedQuantity   decimal.Decimal `json:"merged_quantity"`
	MergedPrice      decimal.Decimal `json:"merged_unit_price"`
}

// ResolutionAction decides what a conflict (or unmatched row) becomes.
type ResolutionAction string

const (
	ActionCreate  ResolutionAction = "create"
	ActionMerge   ResolutionAction = "merge"
	ActionSkip    ResolutionAction = "skip"
	ActionReplace ResolutionAction = "replace"
)

// ValidConflictAction reports whether a is something the caller may assign
// to a conflict. Create is reserved for unmatched rows.
func ValidConflictAction(a ResolutionAction) bool {
	return a == ActionMerge || a == ActionSkip || a == ActionReplace
}

// Mutation is the engine's output unit, applied by the ledger collaborator.
// The per-class extras ride along only on creates; merge and replace leave
// the existing holding's descriptive fields untouched.
type Mutation struct {
	Action           ResolutionAction `json:"action"`
	HoldingID        uuid.UUID        `json:"holding_id,omitempty"` // zero for create
	AssetClass       string           `json:"asset_class"`
	MergeKey         string           `json:"merge_key"`
	DisplayName      string           `json:"display_name"`
	Currency         string           `json:"currency"`
	FinalQuantity    decimal.Decimal  `json:"final_quantity"`
	FinalUnitPrice   decimal.Decimal  `json:"final_unit_price"`
	ISIN             string           `json:"isin,omitempty"`
	Exchange         string           `json:"exchange,omitempty"`
	Institution      string           `json:"institution,omitempty"`
	InterestRate     *decimal.Decimal `json:"interest_rate,omitempty"`
	MaturityDate     string           `json:"maturity_date,omitempty"`
	BuyDate          string           `json:"buy_date,omitempty"`
	SourceRowIndices []int            `json:"source_row_indices"`
}

// RejectedRow accounts for every input row the engine did not turn into a
// mutation: failed normalization, unresolved securities, and so on.
type RejectedRow struct {
	SourceFile string `json:"source_file"`
	RowIndex   int    `json:"row_index"`
	Reason     string `json:"reason"`
}

// FileResult is the outcome of parsing and normalizing one uploaded file.
// A file that failed outright carries Err and no rows; row-level problems
// land in Rejected without failing the file.
type FileResult struct {
	SourceFile      string        `json:"source_file"`
	Broker          string        `json:"broker,omitempty"`
	MappingRequired bool          `json:"mapping_required,omitempty"`
	Headers         []string      `json:"headers,omitempty"` // populated when MappingRequired
	Rows            []ImportRow   `json:"rows"`
	Rejected        []RejectedRow `json:"rejected"`
	Err             string        `json:"error,omitempty"`
}

// SessionResult is the terminal artifact of a reconciliation session:
// everything a caller needs to render the review screen and commit.
type SessionResult struct {
	Mutations []Mutation    `json:"mutations"`
	Rejected  []RejectedRow `json:"rejected_rows"`
	Conflicts []Conflict    `json:"conflicts"`
	Unmatched []ImportRow   `json:"unmatched"`
}
