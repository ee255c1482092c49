package services

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"github.com/username/wealthfolio/backend/src/importer"
	"github.com/username/wealthfolio/backend/src/models"
)

var (
	// ErrResolverTimeout means an external security-master lookup did not
	// answer in time. Rows affected stay unresolved and create-eligible.
	ErrResolverTimeout = errors.New("security resolver timed out")
	// ErrResolverNoMatch means the lookup answered but found nothing usable.
	ErrResolverNoMatch = errors.New("security resolver found no match")
	// ErrSessionNotFound means the preview session expired or never existed.
	ErrSessionNotFound = errors.New("import session not found")
	// ErrCommitFailed wraps a ledger write failure; the transaction was
	// rolled back and the ledger is unchanged.
	ErrCommitFailed = errors.New("commit failed")
)

// Resolution is the canonical identity an external lookup produced for a
// free-text security name or an ISIN.
type Resolution struct {
	CanonicalID string `json:"canonical_id"` // ISIN when known, else exchange ticker
	MatchedName string `json:"matched_name"`
	ISIN        string `json:"isin,omitempty"`
	Ticker      string `json:"ticker,omitempty"`
}

// SecurityResolver upgrades free-text identifiers to canonical ones.
type SecurityResolver interface {
	ResolveName(ctx context.Context, name string) (Resolution, error)
	ResolveISIN(ctx context.Context, isin string) (Resolution, error)
}

// DuplicateGroup is a set of ledger holdings that normalize to the same
// merge key, with the weighted-average preview of collapsing them.
type DuplicateGroup struct {
	GroupKey       string                   `json:"group_key"`
	Holdings       []models.ExistingHolding `json:"holdings"`
	MergedQuantity decimal.Decimal          `json:"merged_quantity"`
	MergedPrice    decimal.Decimal          `json:"merged_unit_price"`
}

// CommitSummary counts what a ledger write actually did.
type CommitSummary struct {
	Created  int `json:"created"`
	Merged   int `json:"merged"`
	Replaced int `json:"replaced"`
}

// LedgerService is the persistence boundary for holdings.
type LedgerService interface {
	ListHoldings(ctx context.Context) ([]models.ExistingHolding, error)
	// ApplyMutations writes every mutation in one database transaction,
	// recording an audit transaction row per write. All-or-nothing.
	ApplyMutations(ctx context.Context, mutations []models.Mutation, source string) (CommitSummary, error)
	DuplicateGroups(ctx context.Context) ([]DuplicateGroup, error)
}

// PreviewResult is what the upload step returns: everything needed to render
// the review screen, keyed by a session that Commit consumes later.
type PreviewResult struct {
	SessionID string              `json:"session_id"`
	Files     []models.FileResult `json:"files"`
	Conflicts []models.Conflict   `json:"conflicts"`
	Unmatched []models.ImportRow  `json:"unmatched"`
	Rejected  []models.RejectedRow `json:"rejected_rows"`
}

// CommitResult is the terminal outcome of an import session.
type CommitResult struct {
	Summary   CommitSummary        `json:"summary"`
	Skipped   int                  `json:"skipped"`
	Mutations []models.Mutation    `json:"mutations"`
	Rejected  []models.RejectedRow `json:"rejected_rows"`
}

// ImportService orchestrates the two-step import wizard.
type ImportService interface {
	Preview(ctx context.Context, inputs []importer.FileInput) (*PreviewResult, error)
	Manual(ctx context.Context, classCode string, fields map[string]string) (*PreviewResult, error)
	Commit(ctx context.Context, sessionID string, actions map[string]models.ResolutionAction, applyAll *models.ResolutionAction) (*CommitResult, error)
}
