package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fusion-intel/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedCompany(t *testing.T, st *SQLiteStore, name string) *model.Company {
	t.Helper()
	c := &model.Company{
		Name:            name,
		CompanyType:     "startup",
		Country:         "Germany",
		City:            "Munich",
		TRL:             5,
		TeamSize:        80,
		TotalFundingUSD: 185_000_000,
		ConfidenceScore: 0.85,
	}
	require.NoError(t, st.InsertCompany(context.Background(), c, model.SourceImport, "seed"))
	return c
}

// --- Companies ---

func TestSQLite_InsertCompany_And_GetByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Proxima Fusion")
	assert.NotZero(t, c.ID)

	fetched, err := st.GetCompanyByName(ctx, "Proxima Fusion")
	require.NoError(t, err)
	require.NotNil(t, fetched)
	assert.Equal(t, c.ID, fetched.ID)
	assert.Equal(t, "Munich", fetched.City)
	assert.Equal(t, 5, fetched.TRL)
}

func TestSQLite_GetCompanyByName_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	c, err := st.GetCompanyByName(context.Background(), "No Such Co")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestSQLite_InsertCompany_WritesWholeEntityAudit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Marvel Fusion")

	entries, err := st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: c.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.WholeEntityField, entries[0].FieldName)
	assert.Equal(t, "created:Marvel Fusion", entries[0].NewValue)
	assert.Equal(t, model.SourceImport, entries[0].ChangeSource)
}

func TestSQLite_ListCompanies_OrderedByName(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedCompany(t, st, "Zap Energy")
	seedCompany(t, st, "Commonwealth Fusion Systems")

	companies, err := st.ListCompanies(ctx, 10)
	require.NoError(t, err)
	require.Len(t, companies, 2)
	assert.Equal(t, "Commonwealth Fusion Systems", companies[0].Name)
	assert.Equal(t, "Zap Energy", companies[1].Name)
}

func TestSQLite_ListCompanies_ZeroLimitReturnsAll(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seedCompany(t, st, "Zap Energy")
	seedCompany(t, st, "Commonwealth Fusion Systems")
	seedCompany(t, st, "Proxima Fusion")

	// The sync engine lists with limit 0 and must see every company,
	// not a capped page.
	companies, err := st.ListCompanies(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, companies, 3)

	companies, err = st.ListCompanies(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, companies, 2)
}

func TestSQLite_ListStaleCompanies(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Tokamak Energy")

	// Cutoff in the future catches the fresh row.
	stale, err := st.ListStaleCompanies(ctx, time.Now().UTC().Add(time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, c.Name, stale[0].Name)

	// Cutoff far in the past catches nothing.
	stale, err = st.ListStaleCompanies(ctx, time.Now().UTC().Add(-24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, stale)
}

// --- Field changes ---

func TestSQLite_ApplyFieldChange_UpdatesAndAudits(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Proxima Fusion")

	change := model.FieldChange{
		EntityID:  c.ID,
		FieldName: "trl",
		OldValue:  "5",
		NewValue:  "7",
	}
	require.NoError(t, st.ApplyFieldChange(ctx, change, model.SourceMarkdownSync, "sync-engine"))

	fetched, err := st.GetCompanyByName(ctx, "Proxima Fusion")
	require.NoError(t, err)
	assert.Equal(t, 7, fetched.TRL)

	entries, err := st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: c.ID})
	require.NoError(t, err)
	require.Len(t, entries, 2) // creation + field change
	assert.Equal(t, "trl", entries[0].FieldName)
	assert.Equal(t, "5", entries[0].OldValue)
	assert.Equal(t, "7", entries[0].NewValue)
	assert.Equal(t, "sync-engine", entries[0].ChangedBy)
}

func TestSQLite_ApplyFieldChange_RejectsUnknownField(t *testing.T) {
	st := newTestSQLiteStore(t)
	c := seedCompany(t, st, "Helion Energy")

	change := model.FieldChange{EntityID: c.ID, FieldName: "drop_table", NewValue: "x"}
	err := st.ApplyFieldChange(context.Background(), change, model.SourceManual, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not writable")
}

func TestSQLite_ApplyFieldChange_MissingCompany(t *testing.T) {
	st := newTestSQLiteStore(t)

	change := model.FieldChange{EntityID: 12345, FieldName: "team_size", NewValue: "90"}
	err := st.ApplyFieldChange(context.Background(), change, model.SourceManual, "tester")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

// --- Proposals ---

func TestSQLite_ProposalLifecycle_Approve(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Proxima Fusion")

	p := &model.UpdateProposal{
		EntityType:      model.EntityCompany,
		EntityID:        c.ID,
		FieldName:       "total_funding_usd",
		OldValue:        "185000000",
		NewValue:        "200000000",
		ConfidenceScore: 0.82,
		Sources: []model.DataSource{
			{URL: "https://proxima-fusion.com/news", Reliability: model.ReliabilityCompanyOfficial},
		},
	}
	id, err := st.CreateProposal(ctx, p)
	require.NoError(t, err)
	assert.NotZero(t, id)

	pending, err := st.ListPendingProposals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.ProposalStatusPending, pending[0].Status)
	require.Len(t, pending[0].Sources, 1)
	assert.Equal(t, model.ReliabilityCompanyOfficial, pending[0].Sources[0].Reliability)

	applied, err := st.ApproveProposal(ctx, id, "reviewer")
	require.NoError(t, err)
	assert.True(t, applied)

	fetched, err := st.GetCompanyByName(ctx, "Proxima Fusion")
	require.NoError(t, err)
	assert.Equal(t, float64(200000000), fetched.TotalFundingUSD)

	got, err := st.GetProposal(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ProposalStatusApproved, got.Status)
	assert.Equal(t, "reviewer", got.ReviewedBy)
	require.NotNil(t, got.ReviewedAt)

	// Approval is linked into the audit trail.
	entries, err := st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: c.ID})
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	require.NotNil(t, entries[0].ProposalID)
	assert.Equal(t, id, *entries[0].ProposalID)
}

func TestSQLite_ApproveProposal_TerminalIsNoOp(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Zap Energy")
	p := &model.UpdateProposal{
		EntityType: model.EntityCompany,
		EntityID:   c.ID,
		FieldName:  "trl",
		NewValue:   "6",
	}
	id, err := st.CreateProposal(ctx, p)
	require.NoError(t, err)

	applied, err := st.ApproveProposal(ctx, id, "first")
	require.NoError(t, err)
	assert.True(t, applied)

	// Second approval of a terminal proposal must not re-apply.
	applied, err = st.ApproveProposal(ctx, id, "second")
	require.NoError(t, err)
	assert.False(t, applied)

	got, err := st.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", got.ReviewedBy)
}

func TestSQLite_RejectProposal_OnlyPending(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "First Light Fusion")
	p := &model.UpdateProposal{
		EntityType: model.EntityCompany,
		EntityID:   c.ID,
		FieldName:  "team_size",
		OldValue:   "80",
		NewValue:   "95",
	}
	id, err := st.CreateProposal(ctx, p)
	require.NoError(t, err)

	rejected, err := st.RejectProposal(ctx, id, "reviewer", "unsourced")
	require.NoError(t, err)
	assert.True(t, rejected)

	got, err := st.GetProposal(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, model.ProposalStatusRejected, got.Status)
	assert.Equal(t, "unsourced", got.Notes)

	// Rejecting again is a no-op; the field was never touched.
	rejected, err = st.RejectProposal(ctx, id, "reviewer", "again")
	require.NoError(t, err)
	assert.False(t, rejected)

	fetched, err := st.GetCompanyByName(ctx, "First Light Fusion")
	require.NoError(t, err)
	assert.Equal(t, 80, fetched.TeamSize)
}

func TestSQLite_GetProposal_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	p, err := st.GetProposal(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, p)
}

// --- Partners ---

func TestSQLite_ReplacePartners(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "Gauss Fusion")

	err := st.ReplacePartners(ctx, c.ID, []model.Partner{
		{Name: "Max Planck IPP", Kind: model.PartnerKindPartnership, PartnerType: model.PartnerTypeResearch},
		{Name: "Siemens Energy", Kind: model.PartnerKindInvestor, PartnerType: model.PartnerTypeIndustrial},
	})
	require.NoError(t, err)

	partners, err := st.ListPartners(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, partners, 2)
	assert.Equal(t, "Max Planck IPP", partners[0].Name)
	assert.Equal(t, model.PartnerTypeResearch, partners[0].PartnerType)

	// Replacement clears previous rows.
	err = st.ReplacePartners(ctx, c.ID, []model.Partner{
		{Name: "EUROfusion", Kind: model.PartnerKindPartnership, PartnerType: model.PartnerTypeGovernment},
	})
	require.NoError(t, err)

	partners, err = st.ListPartners(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, partners, 1)
	assert.Equal(t, "EUROfusion", partners[0].Name)
}

// --- Audit ---

func TestSQLite_ListAudit_NewestFirst(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedCompany(t, st, "TAE Technologies")

	for _, v := range []string{"6", "7"} {
		_, err := st.AppendAudit(ctx, &model.AuditEntry{
			EntityType:   model.EntityCompany,
			EntityID:     c.ID,
			FieldName:    "trl",
			NewValue:     v,
			ChangeSource: model.SourceUserEdit,
			ChangedBy:    "tester",
		})
		require.NoError(t, err)
	}

	entries, err := st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: c.ID})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "7", entries[0].NewValue)
	assert.Equal(t, "6", entries[1].NewValue)
	assert.Equal(t, model.WholeEntityField, entries[2].FieldName)
}

func TestSQLite_ListAudit_FilterAndLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := seedCompany(t, st, "Company A")
	b := seedCompany(t, st, "Company B")

	entries, err := st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: a.ID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, a.ID, entries[0].EntityID)

	entries, err = st.ListAudit(ctx, AuditFilter{EntityType: model.EntityCompany, EntityID: b.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}
