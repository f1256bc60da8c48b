// Package store persists companies, update proposals and the audit log.
// Two backends exist: Postgres (pgx) and SQLite (modernc), selected by
// configuration.
package store

import (
	"context"
	"time"

	"github.com/sells-group/fusion-intel/internal/model"
)

// AuditFilter narrows an audit log query.
type AuditFilter struct {
	EntityType model.EntityType `json:"entity_type,omitempty"`
	EntityID   int64            `json:"entity_id,omitempty"`
	Limit      int              `json:"limit,omitempty"`
}

// Store is the persistence interface for the sync engine, the review
// flow and the audit trail. Mutating a tracked field without its audit
// entry is not expressible through this interface: the field-change and
// approval methods write both atomically.
type Store interface {
	// Companies
	ListCompanies(ctx context.Context, limit int) ([]model.Company, error) // limit <= 0 returns all rows
	GetCompanyByName(ctx context.Context, name string) (*model.Company, error)
	InsertCompany(ctx context.Context, c *model.Company, source model.ChangeSource, changedBy string) error
	ListStaleCompanies(ctx context.Context, olderThan time.Time, limit int) ([]model.Company, error)
	ReplacePartners(ctx context.Context, companyID int64, partners []model.Partner) error
	ListPartners(ctx context.Context, companyID int64) ([]model.Partner, error)

	// Field changes: field update + audit entry in one transaction.
	ApplyFieldChange(ctx context.Context, change model.FieldChange, source model.ChangeSource, changedBy string) error

	// Proposals
	CreateProposal(ctx context.Context, p *model.UpdateProposal) (int64, error)
	GetProposal(ctx context.Context, id int64) (*model.UpdateProposal, error)
	ListPendingProposals(ctx context.Context, limit int) ([]model.UpdateProposal, error)
	// ApproveProposal applies a pending proposal's value, marks it
	// approved and writes the audit entry in one transaction. Returns
	// false without mutation when the proposal is absent or not pending.
	ApproveProposal(ctx context.Context, id int64, reviewedBy string) (bool, error)
	// RejectProposal marks a pending proposal rejected. Same contract
	// for non-pending proposals as ApproveProposal.
	RejectProposal(ctx context.Context, id int64, reviewedBy, notes string) (bool, error)

	// Audit: append-only, queryable newest-first.
	AppendAudit(ctx context.Context, e *model.AuditEntry) (int64, error)
	ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
