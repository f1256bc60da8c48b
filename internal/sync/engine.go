// Package sync reconciles facts parsed from research markdown against the
// companies database through a confidence-scored proposal workflow.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/config"
	"github.com/sells-group/fusion-intel/internal/markdown"
	"github.com/sells-group/fusion-intel/internal/model"
	"github.com/sells-group/fusion-intel/internal/store"
)

// changedBy identifies the reconciler in audit entries it produces.
const changedBy = "sync-engine"

// Engine runs the markdown-to-database reconciliation pipeline.
type Engine struct {
	store     store.Store
	matcher   *Matcher
	validator Validator
	cfg       config.SyncConfig
	log       *zap.Logger
}

// NewEngine wires the reconciler. The matcher's oracle and the validator
// are the only model-backed collaborators; everything else is
// deterministic.
func NewEngine(st store.Store, matcher *Matcher, validator Validator, cfg config.SyncConfig, log *zap.Logger) *Engine {
	return &Engine{store: st, matcher: matcher, validator: validator, cfg: cfg, log: log}
}

// SyncFile parses a research document and reconciles every company block
// it contains against the database.
func (e *Engine) SyncFile(ctx context.Context, path string, dryRun bool) (*model.SyncResult, error) {
	parsed, err := markdown.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return e.SyncCompanies(ctx, parsed.Companies, dryRun)
}

// SyncCompanies reconciles already-parsed company records. In dry-run
// mode the full comparison and confidence pipeline executes but nothing
// is written; the result carries the counts that a real run would have
// produced.
func (e *Engine) SyncCompanies(ctx context.Context, parsed []model.Company, dryRun bool) (*model.SyncResult, error) {
	if err := e.cfg.Validate(); err != nil {
		return nil, err
	}

	res := &model.SyncResult{RunID: uuid.NewString(), DryRun: dryRun}

	existing, err := e.store.ListCompanies(ctx, 0)
	if err != nil {
		return nil, err
	}

	batchSize := e.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 10
	}

	for start := 0; start < len(parsed); start += batchSize {
		end := min(start+batchSize, len(parsed))
		e.log.Debug("processing batch",
			zap.String("run_id", res.RunID),
			zap.Int("from", start), zap.Int("to", end))

		for i := start; i < end; i++ {
			p := parsed[i]
			res.CompaniesProcessed++

			match := e.matcher.Find(ctx, existing, p.Name)
			if match == nil {
				if !dryRun {
					c := p
					if err := e.store.InsertCompany(ctx, &c, model.SourceMarkdownSync, changedBy); err != nil {
						res.AddError(fmt.Sprintf("insert %s: %v", p.Name, err))
						continue
					}
					existing = append(existing, c)
				}
				res.CompaniesAdded++
				e.log.Info("new company added", zap.String("name", p.Name))
				continue
			}

			e.reconcile(ctx, match, &p, dryRun, res)
		}
	}

	e.log.Info("sync complete",
		zap.String("run_id", res.RunID),
		zap.Bool("dry_run", dryRun),
		zap.Int("companies_processed", res.CompaniesProcessed),
		zap.Int("companies_added", res.CompaniesAdded),
		zap.Int("fields_updated", res.FieldsUpdated),
		zap.Int("proposals_created", res.ProposalsCreated),
		zap.Int("proposals_auto_applied", res.ProposalsAutoApplied),
		zap.Int("conflicts_found", res.ConflictsFound),
		zap.Int("errors", len(res.Errors)))
	return res, nil
}

// reconcile compares every syncable field of one matched company and
// routes each significant change by confidence. All field comparisons for
// a company complete before the caller moves to the next one.
func (e *Engine) reconcile(ctx context.Context, existing *model.Company, parsed *model.Company, dryRun bool, res *model.SyncResult) {
	for _, fs := range model.ComparableFields {
		newVal, hasNew := model.FieldValue(parsed, fs.Name)
		if !hasNew {
			// The document says nothing about this field.
			continue
		}
		oldVal, hasOld := model.FieldValue(existing, fs.Name)

		change := model.FieldChange{
			EntityID:   existing.ID,
			EntityName: existing.Name,
			FieldName:  fs.Name,
			OldValue:   oldVal,
			NewValue:   newVal,
			HasOld:     hasOld,
			HasNew:     true,
			ChangeType: model.ChangeTypeUpdate,
			Source:     string(model.SourceMarkdownSync),
		}
		if !hasOld {
			change.ChangeType = model.ChangeTypeAdd
		}

		tolerance := 0.0
		if fs.Tolerance != nil {
			tolerance = *fs.Tolerance
		}
		if !change.IsSignificant(tolerance) {
			continue
		}

		verdict, err := e.validator.ValidateChange(ctx, existing.Name, fs.Name, oldVal, newVal)
		if err != nil {
			e.log.Warn("confidence oracle failed, using fallback",
				zap.String("company", existing.Name),
				zap.String("field", fs.Name),
				zap.Error(err))
			verdict = fallbackVerdict
		}
		change.Validated = true
		change.Confidence = verdict.Confidence

		if !verdict.Valid {
			res.ConflictsFound++
			e.log.Debug("change rejected by oracle",
				zap.String("company", existing.Name),
				zap.String("field", fs.Name))
			continue
		}

		switch {
		case verdict.Confidence >= e.cfg.AutoApplyThreshold:
			if !dryRun {
				if err := e.store.ApplyFieldChange(ctx, change, model.SourceMarkdownSync, changedBy); err != nil {
					res.AddError(fmt.Sprintf("apply %s.%s: %v", existing.Name, fs.Name, err))
					continue
				}
				if err := model.SetFieldValue(existing, fs.Name, newVal); err != nil {
					res.AddError(fmt.Sprintf("materialize %s.%s: %v", existing.Name, fs.Name, err))
				}
			}
			change.Applied = true
			res.FieldsUpdated++
			res.ProposalsAutoApplied++
			e.log.Info("field auto-applied",
				zap.String("company", existing.Name),
				zap.String("field", fs.Name),
				zap.Float64("confidence", verdict.Confidence))

		case verdict.Confidence >= e.cfg.RequireReviewThreshold:
			if !dryRun {
				prop := &model.UpdateProposal{
					EntityType:      model.EntityCompany,
					EntityID:        existing.ID,
					FieldName:       fs.Name,
					OldValue:        oldVal,
					NewValue:        newVal,
					ConfidenceScore: verdict.Confidence,
					Sources:         proposalSources(parsed),
				}
				if _, err := e.store.CreateProposal(ctx, prop); err != nil {
					res.AddError(fmt.Sprintf("propose %s.%s: %v", existing.Name, fs.Name, err))
					continue
				}
			}
			res.ProposalsCreated++

		default:
			res.ConflictsFound++
			e.log.Debug("change discarded",
				zap.String("company", existing.Name),
				zap.String("field", fs.Name),
				zap.Float64("confidence", verdict.Confidence))
		}
	}
}

// proposalSources attaches the parsed record's source URL, classified by
// domain, when one is present.
func proposalSources(parsed *model.Company) []model.DataSource {
	if parsed.SourceURL == "" {
		return nil
	}
	return []model.DataSource{{
		URL:         parsed.SourceURL,
		Reliability: model.ClassifyURL(parsed.SourceURL),
		FetchedAt:   time.Now().UTC(),
	}}
}

// ApproveProposal applies a pending proposal's change and finalizes it.
// Returns false when the proposal is missing or already terminal.
func (e *Engine) ApproveProposal(ctx context.Context, id int64, reviewedBy string) (bool, error) {
	return e.store.ApproveProposal(ctx, id, reviewedBy)
}

// RejectProposal finalizes a pending proposal without applying it.
func (e *Engine) RejectProposal(ctx context.Context, id int64, reviewedBy, notes string) (bool, error) {
	return e.store.RejectProposal(ctx, id, reviewedBy, notes)
}
