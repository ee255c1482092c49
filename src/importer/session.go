package importer

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/username/wealthfolio/backend/src/logger"
	"github.com/username/wealthfolio/backend/src/models"
	"github.com/username/wealthfolio/backend/src/parsers"
	"github.com/username/wealthfolio/backend/src/schema"
)

// FileInput is one uploaded file plus its per-file import options.
type FileInput struct {
	Name       string
	Reader     io.Reader
	Broker     string            // declared broker, empty for auto-detect
	AssetClass string            // overrides the profile's class; required with Mapping
	Mapping    map[string]string // explicit header→field mapping, overrides detection
}

// ParseFiles runs the format-resolver + normalizer pass for every file
// concurrently. Files share no mutable state, so this stage is
// embarrassingly parallel; one file's failure never aborts the others, it
// just marks that file's result. The returned slice is in input order.
func ParseFiles(ctx context.Context, inputs []FileInput, maxParallel int) []models.FileResult {
	if maxParallel <= 0 {
		maxParallel = 4
	}
	results := make([]models.FileResult, len(inputs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, in := range inputs {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				results[i] = models.FileResult{SourceFile: in.Name, Err: ctx.Err().Error()}
				return nil
			default:
			}
			results[i] = parseOne(ctx, in)
			return nil
		})
	}
	g.Wait()
	return results
}

func parseOne(ctx context.Context, in FileInput) models.FileResult {
	res := models.FileResult{SourceFile: in.Name}

	parser, err := parsers.GetParser(in.Name)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	batch, err := parser.Parse(in.Reader, in.Name)
	if err != nil {
		logger.FromContext(ctx).Warn("file parse failed", "file", in.Name, "error", err)
		res.Err = err.Error()
		return res
	}

	mr, class, err := resolveMapping(batch.Headers, in)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	if mr.Mapping == nil {
		// Not an error: the caller is being asked for a manual mapping.
		res.MappingRequired = true
		res.Headers = batch.Headers
		return res
	}
	res.Broker = mr.Broker

	for _, raw := range batch.Rows {
		row, rejected, dropped := NormalizeRow(raw, mr.Mapping, class)
		if dropped {
			continue
		}
		if rejected != nil {
			res.Rejected = append(res.Rejected, *rejected)
			continue
		}
		res.Rows = append(res.Rows, row)
	}
	logger.FromContext(ctx).Info("file normalized",
		"file", in.Name, "broker", mr.Broker, "rows", len(res.Rows), "rejected", len(res.Rejected))
	return res
}

func resolveMapping(headers []string, in FileInput) (parsers.MappingResult, schema.Class, error) {
	if len(in.Mapping) > 0 {
		if in.AssetClass == "" {
			// An explicit mapping says nothing about what kind of holding
			// the rows are; guessing a class would validate the mapping
			// against the wrong structural rules.
			return parsers.MappingResult{}, schema.Class{}, fmt.Errorf("%w: asset class not declared with explicit mapping", parsers.ErrMappingIncomplete)
		}
		class, ok := schema.Lookup(in.AssetClass)
		if !ok {
			return parsers.MappingResult{}, schema.Class{}, fmt.Errorf("%w: %q", ErrUnknownAssetClass, in.AssetClass)
		}
		mr, err := parsers.ResolveExplicit(headers, in.Mapping, class)
		return mr, class, err
	}

	mr, err := parsers.Resolve(headers, in.Broker)
	if err != nil {
		return parsers.MappingResult{}, schema.Class{}, err
	}
	classCode := mr.AssetClass
	if in.AssetClass != "" {
		classCode = in.AssetClass
	}
	if mr.Mapping == nil {
		return mr, schema.Class{}, nil
	}
	class, ok := schema.Lookup(classCode)
	if !ok {
		return parsers.MappingResult{}, schema.Class{}, fmt.Errorf("%w: %q", ErrUnknownAssetClass, classCode)
	}
	return mr, class, nil
}

// BuildResult applies the conflict actions and assembles the terminal
// session artifact. Skipped conflicts are accounted as rejected rows so
// that mutations plus rejections always add up to the session's valid row
// set; nothing leaves the engine untracked.
func BuildResult(unmatched []models.ImportRow, conflicts []models.Conflict, actions map[string]models.ResolutionAction, rejected []models.RejectedRow) (*models.SessionResult, error) {
	mutations, err := Resolve(unmatched, conflicts, actions)
	if err != nil {
		return nil, err
	}
	out := &models.SessionResult{
		Mutations: mutations,
		Rejected:  append([]models.RejectedRow(nil), rejected...),
		Conflicts: conflicts,
		Unmatched: unmatched,
	}
	for _, c := range conflicts {
		if actions[c.ID] != models.ActionSkip {
			continue
		}
		idx := 0
		if len(c.SourceRowIndices) > 0 {
			idx = c.SourceRowIndices[0]
		}
		out.Rejected = append(out.Rejected, models.RejectedRow{
			SourceFile: c.SourceFile,
			RowIndex:   idx,
			Reason:     "skipped: existing holding kept",
		})
	}
	return out, nil
}

// RunSession is the single-shot composition of the whole engine: concurrent
// per-file parse/normalize, then the strictly sequential collapse → match →
// resolve stages, which need the complete, stable global row set.
func RunSession(ctx context.Context, inputs []FileInput, existing []models.ExistingHolding, actions map[string]models.ResolutionAction, maxParallel int) (*models.SessionResult, []models.FileResult, error) {
	fileResults := ParseFiles(ctx, inputs, maxParallel)

	var rows []models.ImportRow
	var rejected []models.RejectedRow
	for _, fr := range fileResults {
		rows = append(rows, fr.Rows...)
		rejected = append(rejected, fr.Rejected...)
	}
	if len(rows) == 0 {
		return nil, fileResults, fmt.Errorf("%w: %d rows rejected", ErrEmptyBatch, len(rejected))
	}

	collapsed := Collapse(rows)
	conflicts, unmatched := Match(collapsed, existing)
	result, err := BuildResult(unmatched, conflicts, actions, rejected)
	if err != nil {
		return nil, fileResults, err
	}
	return result, fileResults, nil
}
