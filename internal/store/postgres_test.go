package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fusion-intel/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func proposalRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "entity_type", "entity_id", "field_name", "old_value", "new_value",
		"confidence_score", "sources", "search_query", "status", "extracted_at",
		"reviewed_by", "reviewed_at", "notes",
	})
}

func TestPostgresStore_GetCompanyByName_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM companies WHERE name = \$1`).
		WithArgs("Unknown Fusion Co").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetCompanyByName(context.Background(), "Unknown Fusion Co")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListCompanies_ZeroLimitUnbounded(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// limit <= 0 must reach the database as NULL (no limit), not a cap.
	mock.ExpectQuery(`SELECT .+ FROM companies ORDER BY name LIMIT \$1`).
		WithArgs(nil).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err := s.ListCompanies(context.Background(), 0)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProposal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT .+ FROM update_proposals WHERE id = \$1`).
		WithArgs(int64(42)).
		WillReturnError(pgx.ErrNoRows)

	p, err := s.GetProposal(context.Background(), 42)
	require.NoError(t, err)
	assert.Nil(t, p)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyFieldChange_RejectsUnknownField(t *testing.T) {
	s, _ := newMockPostgresStore(t)

	change := model.FieldChange{
		EntityID:  3,
		FieldName: "shadow_column",
		NewValue:  "x",
	}
	err := s.ApplyFieldChange(context.Background(), change, model.SourceManual, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not writable")
}

func TestPostgresStore_ApplyFieldChange_WritesAudit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE companies SET trl = \$1, last_updated = now\(\) WHERE id = \$2`).
		WithArgs("7", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("company", int64(3), "trl", "5", "7", "markdown_sync", "sync-engine").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	change := model.FieldChange{
		EntityID:  3,
		FieldName: "trl",
		OldValue:  "5",
		NewValue:  "7",
	}
	err := s.ApplyFieldChange(context.Background(), change, model.SourceMarkdownSync, "sync-engine")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyFieldChange_MissingCompany(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE companies SET team_size = \$1`).
		WithArgs("120", int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectRollback()

	change := model.FieldChange{EntityID: 99, FieldName: "team_size", NewValue: "120"}
	err := s.ApplyFieldChange(context.Background(), change, model.SourceManual, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApproveProposal_NotPendingIsNoOp(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM update_proposals WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(proposalRows().AddRow(
			int64(7), model.EntityCompany, int64(3), "trl", "5", "7",
			0.8, []byte(`[]`), "", model.ProposalStatusRejected, time.Now(),
			"earlier-reviewer", (*time.Time)(nil), "",
		))
	mock.ExpectRollback()

	applied, err := s.ApproveProposal(context.Background(), 7, "reviewer")
	require.NoError(t, err)
	assert.False(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApproveProposal_AppliesAndAudits(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM update_proposals WHERE id = \$1 FOR UPDATE`).
		WithArgs(int64(7)).
		WillReturnRows(proposalRows().AddRow(
			int64(7), model.EntityCompany, int64(3), "trl", "5", "7",
			0.8, []byte(`[]`), "", model.ProposalStatusPending, time.Now(),
			"", (*time.Time)(nil), "",
		))
	mock.ExpectExec(`UPDATE companies SET trl = \$1, last_updated = now\(\) WHERE id = \$2`).
		WithArgs("7", int64(3)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE update_proposals SET status = \$1`).
		WithArgs("approved", "reviewer", int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("company", int64(3), "trl", "5", "7", "markdown_sync", "reviewer", int64(7)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	applied, err := s.ApproveProposal(context.Background(), 7, "reviewer")
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RejectProposal_OnlyPending(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE update_proposals SET status = \$1`).
		WithArgs("rejected", "reviewer", "stale data", int64(7), "pending").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	rejected, err := s.RejectProposal(context.Background(), 7, "reviewer", "stale data")
	require.NoError(t, err)
	assert.False(t, rejected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
