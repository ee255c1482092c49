// backend/src/services/ledger_service.go
package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/username/wealthfolio/backend/src/importer"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
)

type ledgerServiceImpl struct {
	db *sql.DB
}

// NewLedgerService creates the SQLite-backed holdings store.
func NewLedgerService(db *sql.DB) LedgerService {
	return &ledgerServiceImpl{db: db}
}

func (s *ledgerServiceImpl) ListHoldings(ctx context.Context) ([]models.ExistingHolding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, asset_class, merge_key, display_name, quantity, unit_price, currency,
		       COALESCE(isin, ''), COALESCE(exchange, ''), COALESCE(institution, ''),
		       COALESCE(interest_rate, ''), COALESCE(maturity_date, ''), COALESCE(buy_date, '')
		FROM holdings
		ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("querying holdings: %w", err)
	}
	defer rows.Close()

	var holdings []models.ExistingHolding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, err
		}
		holdings = append(holdings, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating holdings: %w", err)
	}
	return holdings, nil
}

// ApplyMutations writes the whole batch in one database transaction. Any
// failure rolls everything back; the ledger never ends up half-imported.
func (s *ledgerServiceImpl) ApplyMutations(ctx context.Context, mutations []models.Mutation, source string) (CommitSummary, error) {
	var summary CommitSummary
	if len(mutations) == 0 {
		return summary, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return summary, fmt.Errorf("%w: beginning transaction: %v", ErrCommitFailed, err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	for _, m := range mutations {
		switch m.Action {
		case models.ActionCreate:
			id := uuid.New()
			interestRate := ""
			if m.InterestRate != nil {
				interestRate = m.InterestRate.String()
			}
			_, err = tx.ExecContext(ctx, `
				INSERT INTO holdings (id, asset_class, merge_key, display_name, quantity, unit_price, currency,
					isin, exchange, institution, interest_rate, maturity_date, buy_date, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				id.String(), m.AssetClass, m.MergeKey, m.DisplayName,
				m.FinalQuantity.String(), m.FinalUnitPrice.String(), m.Currency,
				m.ISIN, m.Exchange, m.Institution, interestRate, m.MaturityDate, m.BuyDate, now, now)
			if err != nil {
				return CommitSummary{}, fmt.Errorf("%w: inserting holding %q: %v", ErrCommitFailed, m.MergeKey, err)
			}
			if err := s.recordTransaction(ctx, tx, id.String(), m, source, now); err != nil {
				return CommitSummary{}, err
			}
			summary.Created++

		case models.ActionMerge, models.ActionReplace:
			res, err := tx.ExecContext(ctx, `
				UPDATE holdings SET quantity = ?, unit_price = ?, updated_at = ? WHERE id = ?`,
				m.FinalQuantity.String(), m.FinalUnitPrice.String(), now, m.HoldingID.String())
			if err != nil {
				return CommitSummary{}, fmt.Errorf("%w: updating holding %s: %v", ErrCommitFailed, m.HoldingID, err)
			}
			affected, err := res.RowsAffected()
			if err != nil {
				return CommitSummary{}, fmt.Errorf("%w: checking update of holding %s: %v", ErrCommitFailed, m.HoldingID, err)
			}
			if affected == 0 {
				return CommitSummary{}, fmt.Errorf("%w: holding %s no longer exists", ErrCommitFailed, m.HoldingID)
			}
			if err := s.recordTransaction(ctx, tx, m.HoldingID.String(), m, source, now); err != nil {
				return CommitSummary{}, err
			}
			if m.Action == models.ActionMerge {
				summary.Merged++
			} else {
				summary.Replaced++
			}

		case models.ActionSkip:
			// Skips never reach the ledger; the engine filters them out.

		default:
			return CommitSummary{}, fmt.Errorf("%w: unknown mutation action %q", ErrCommitFailed, m.Action)
		}
	}

	if err := tx.Commit(); err != nil {
		return CommitSummary{}, fmt.Errorf("%w: committing transaction: %v", ErrCommitFailed, err)
	}
	logger.L.Info("ledger mutations applied",
		"created", summary.Created, "merged", summary.Merged, "replaced", summary.Replaced, "source", source)
	return summary, nil
}

func (s *ledgerServiceImpl) recordTransaction(ctx context.Context, tx *sql.Tx, holdingID string, m models.Mutation, source, now string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (holding_id, action, quantity, unit_price, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		holdingID, string(m.Action), m.FinalQuantity.String(), m.FinalUnitPrice.String(), source, now)
	if err != nil {
		return fmt.Errorf("%w: recording transaction for holding %s: %v", ErrCommitFailed, holdingID, err)
	}
	return nil
}

// DuplicateGroups finds ledger holdings whose keys normalize to the same
// merge key, with a weighted-average preview of what merging them yields.
// These accumulate when imports predate key normalization or manual entries
// disagree on spelling.
func (s *ledgerServiceImpl) DuplicateGroups(ctx context.Context) ([]DuplicateGroup, error) {
	holdings, err := s.ListHoldings(ctx)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string][]models.ExistingHolding)
	for _, h := range holdings {
		key := schema.GroupKey(h.AssetClass, h.MergeKey)
		byKey[key] = append(byKey[key], h)
	}

	var groups []DuplicateGroup
	for key, members := range byKey {
		if len(members) < 2 {
			continue
		}
		parts := make([]importer.MergePart, len(members))
		for i, h := range members {
			parts[i] = importer.MergePart{Quantity: h.Quantity, UnitPrice: h.UnitPrice}
		}
		kind := schema.KindQuantity
		if class, ok := schema.Lookup(members[0].AssetClass); ok {
			kind = class.Kind
		}
		merged := importer.Merge(kind, parts)
		groups = append(groups, DuplicateGroup{
			GroupKey:       key,
			Holdings:       members,
			MergedQuantity: merged.Quantity,
			MergedPrice:    merged.UnitPrice,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].GroupKey < groups[j].GroupKey })
	return groups, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanHolding(r rowScanner) (models.ExistingHolding, error) {
	var h models.ExistingHolding
	var id, quantity, unitPrice string
	if err := r.Scan(&id, &h.AssetClass, &h.MergeKey, &h.DisplayName, &quantity, &unitPrice, &h.Currency,
		&h.ISIN, &h.Exchange, &h.Institution, &h.InterestRate, &h.MaturityDate, &h.BuyDate); err != nil {
		return h, fmt.Errorf("scanning holding: %w", err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return h, fmt.Errorf("holding has malformed id %q: %w", id, err)
	}
	h.ID = parsed
	if h.Quantity, err = decimal.NewFromString(quantity); err != nil {
		return h, fmt.Errorf("holding %s has malformed quantity %q: %w", id, quantity, err)
	}
	if h.UnitPrice, err = decimal.NewFromString(unitPrice); err != nil {
		return h, fmt.Errorf("holding %s has malformed unit price %q: %w", id, unitPrice, err)
	}
	return h, nil
}
