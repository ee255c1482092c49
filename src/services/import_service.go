// backend/src/services/import_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/username/wealthfolio/backend/src/importer"
	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/schema"
)

// previewSession is everything Commit needs to finish what Preview started.
// The ledger snapshot is taken at preview time so the conflict previews the
// user reviewed are the ones the commit resolves against.
type previewSession struct {
	Unmatched []models.ImportRow
	Conflicts []models.Conflict
	Rejected  []models.RejectedRow
	Source    string
}

type importServiceImpl struct {
	ledger      LedgerService
	resolver    SecurityResolver
	sessions    *cache.Cache
	maxParallel int
}

// NewImportService wires the import wizard orchestrator. Preview sessions
// live in sessionCache until committed or expired.
func NewImportService(ledger LedgerService, resolver SecurityResolver, sessionTTL time.Duration, maxParallel int) ImportService {
	if sessionTTL <= 0 {
		sessionTTL = 30 * time.Minute
	}
	return &importServiceImpl{
		ledger:      ledger,
		resolver:    resolver,
		sessions:    cache.New(sessionTTL, 2*sessionTTL),
		maxParallel: maxParallel,
	}
}

func (s *importServiceImpl) Preview(ctx context.Context, inputs []importer.FileInput) (*PreviewResult, error) {
	startTime := time.Now()
	fileResults := importer.ParseFiles(ctx, inputs, s.maxParallel)

	var rows []models.ImportRow
	var rejected []models.RejectedRow
	for _, fr := range fileResults {
		rows = append(rows, fr.Rows...)
		rejected = append(rejected, fr.Rejected...)
	}
	if len(rows) == 0 {
		return &PreviewResult{Files: fileResults, Rejected: rejected},
			fmt.Errorf("%w: %d rows rejected", importer.ErrEmptyBatch, len(rejected))
	}

	rows = s.resolveSecurityKeys(ctx, rows)
	collapsed := importer.Collapse(rows)

	existing, err := s.ledger.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting ledger: %w", err)
	}
	conflicts, unmatched := importer.Match(collapsed, existing)

	source := ""
	if len(inputs) > 0 {
		source = inputs[0].Name
	}
	sessionID := uuid.NewString()
	s.sessions.Set(sessionID, &previewSession{
		Unmatched: unmatched,
		Conflicts: conflicts,
		Rejected:  rejected,
		Source:    source,
	}, cache.DefaultExpiration)

	logger.FromContext(ctx).Info("import preview built",
		"sessionID", sessionID, "files", len(inputs), "rows", len(rows),
		"conflicts", len(conflicts), "unmatched", len(unmatched),
		"durationMs", time.Since(startTime).Milliseconds())
	return &PreviewResult{
		SessionID: sessionID,
		Files:     fileResults,
		Conflicts: conflicts,
		Unmatched: unmatched,
		Rejected:  rejected,
	}, nil
}

// Manual runs a single hand-entered holding through the same pipeline as an
// upload, so manual entries get identical duplicate detection and conflict
// handling.
func (s *importServiceImpl) Manual(ctx context.Context, classCode string, fields map[string]string) (*PreviewResult, error) {
	class, ok := schema.Lookup(classCode)
	if !ok {
		return nil, fmt.Errorf("%w: %q", importer.ErrUnknownAssetClass, classCode)
	}

	typed := make(map[schema.Field]string, len(fields))
	for k, v := range fields {
		typed[schema.Field(k)] = v
	}
	row, rej, dropped := importer.NormalizeManual(typed, class, "manual", 0)
	if dropped {
		return nil, fmt.Errorf("%w: entry is empty", importer.ErrEmptyBatch)
	}
	if rej != nil {
		return nil, errors.New(rej.Reason)
	}

	rows := s.resolveSecurityKeys(ctx, []models.ImportRow{row})
	collapsed := importer.Collapse(rows)

	existing, err := s.ledger.ListHoldings(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshotting ledger: %w", err)
	}
	conflicts, unmatched := importer.Match(collapsed, existing)

	sessionID := uuid.NewString()
	s.sessions.Set(sessionID, &previewSession{
		Unmatched: unmatched,
		Conflicts: conflicts,
		Source:    "manual",
	}, cache.DefaultExpiration)

	return &PreviewResult{
		SessionID: sessionID,
		Conflicts: conflicts,
		Unmatched: unmatched,
	}, nil
}

func (s *importServiceImpl) Commit(ctx context.Context, sessionID string, actions map[string]models.ResolutionAction, applyAll *models.ResolutionAction) (*CommitResult, error) {
	cached, found := s.sessions.Get(sessionID)
	if !found {
		return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, sessionID)
	}
	session := cached.(*previewSession)

	if applyAll != nil {
		actions = importer.ApplyToAll(actions, session.Conflicts, *applyAll)
	}

	result, err := importer.BuildResult(session.Unmatched, session.Conflicts, actions, session.Rejected)
	if err != nil {
		return nil, err
	}

	summary, err := s.ledger.ApplyMutations(ctx, result.Mutations, session.Source)
	if err != nil {
		return nil, err
	}
	// The session is spent only after the ledger write succeeded, so a
	// failed commit can be retried with corrected actions.
	s.sessions.Delete(sessionID)

	skipped := 0
	for _, c := range session.Conflicts {
		if actions[c.ID] == models.ActionSkip {
			skipped++
		}
	}
	logger.FromContext(ctx).Info("import committed",
		"sessionID", sessionID, "created", summary.Created, "merged", summary.Merged,
		"replaced", summary.Replaced, "skipped", skipped)
	return &CommitResult{
		Summary:   summary,
		Skipped:   skipped,
		Mutations: result.Mutations,
		Rejected:  result.Rejected,
	}, nil
}

// resolveSecurityKeys upgrades rows still keyed by free-text name to their
// canonical identifier, so two files spelling the same fund differently
// collapse together once resolved. Lookup failures are not fatal: the row
// stays unresolved, skips the matcher, and remains create-eligible.
func (s *importServiceImpl) resolveSecurityKeys(ctx context.Context, rows []models.ImportRow) []models.ImportRow {
	if s.resolver == nil {
		return rows
	}
	log := logger.FromContext(ctx)
	for i := range rows {
		if !rows[i].Unresolved {
			continue
		}
		res, err := s.resolver.ResolveName(ctx, rows[i].DisplayName)
		if err != nil {
			log.Warn("security resolution failed, row stays keyed by name",
				"name", rows[i].DisplayName, "error", err)
			continue
		}
		rows[i].MergeKey = res.CanonicalID
		if rows[i].ISIN == "" {
			rows[i].ISIN = res.ISIN
		}
		rows[i].Unresolved = false
	}
	return rows
}
