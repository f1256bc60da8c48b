// Package audit records every accepted field mutation into the
// append-only audit log and answers history queries over it.
package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/model"
	"github.com/sells-group/fusion-intel/internal/store"
)

// Trail is the write and query surface for the audit log.
type Trail struct {
	store store.Store
	log   *zap.Logger
}

// NewTrail builds a Trail over the given store.
func NewTrail(st store.Store, log *zap.Logger) *Trail {
	return &Trail{store: st, log: log}
}

// LogChange appends one entry for an accepted field mutation. proposalID
// may be nil for mutations that did not pass through review.
func (t *Trail) LogChange(ctx context.Context, entityType model.EntityType, entityID int64, fieldName, oldValue, newValue string, source model.ChangeSource, changedBy string, proposalID *int64) error {
	entry := &model.AuditEntry{
		EntityType:   entityType,
		EntityID:     entityID,
		FieldName:    fieldName,
		OldValue:     oldValue,
		NewValue:     newValue,
		ChangeSource: source,
		ChangedBy:    changedBy,
		ProposalID:   proposalID,
	}
	id, err := t.store.AppendAudit(ctx, entry)
	if err != nil {
		return err
	}
	t.log.Debug("audit entry recorded",
		zap.Int64("audit_id", id),
		zap.String("entity_type", string(entityType)),
		zap.Int64("entity_id", entityID),
		zap.String("field", fieldName),
		zap.String("source", string(source)))
	return nil
}

// LogCreation appends a whole-entity entry for a newly created record.
func (t *Trail) LogCreation(ctx context.Context, entityType model.EntityType, entityID int64, name string, source model.ChangeSource, changedBy string) error {
	return t.LogChange(ctx, entityType, entityID, model.WholeEntityField, "", "created:"+name, source, changedBy, nil)
}

// History returns entries for one entity, newest first.
func (t *Trail) History(ctx context.Context, entityType model.EntityType, entityID int64, limit int) ([]model.AuditEntry, error) {
	return t.store.ListAudit(ctx, store.AuditFilter{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
	})
}

// Recent returns the latest entries across all entities.
func (t *Trail) Recent(ctx context.Context, limit int) ([]model.AuditEntry, error) {
	return t.store.ListAudit(ctx, store.AuditFilter{Limit: limit})
}
