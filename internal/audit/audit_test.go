package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/model"
	"github.com/sells-group/fusion-intel/internal/store"
)

func newTestTrail(t *testing.T) (*Trail, store.Store) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return NewTrail(st, zap.NewNop()), st
}

func TestTrail_LogChangeAndHistory(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()

	require.NoError(t, trail.LogChange(ctx, model.EntityCompany, 1, "trl", "4", "5", model.SourceMarkdownSync, "sync-engine", nil))
	require.NoError(t, trail.LogChange(ctx, model.EntityCompany, 1, "team_size", "60", "80", model.SourceManual, "analyst", nil))
	require.NoError(t, trail.LogChange(ctx, model.EntityCompany, 2, "trl", "6", "7", model.SourceMarkdownSync, "sync-engine", nil))

	entries, err := trail.History(ctx, model.EntityCompany, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, "team_size", entries[0].FieldName)
	assert.Equal(t, "trl", entries[1].FieldName)
	assert.Equal(t, model.SourceManual, entries[0].ChangeSource)
	assert.False(t, entries[0].ChangedAt.IsZero())
}

func TestTrail_LogChangeWithProposal(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()

	proposalID := int64(42)
	require.NoError(t, trail.LogChange(ctx, model.EntityCompany, 1, "total_funding_usd", "100000000", "185000000", model.SourceMarkdownSync, "reviewer", &proposalID))

	entries, err := trail.History(ctx, model.EntityCompany, 1, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].ProposalID)
	assert.Equal(t, int64(42), *entries[0].ProposalID)
}

func TestTrail_LogCreation(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()

	require.NoError(t, trail.LogCreation(ctx, model.EntityCompany, 7, "Marvel Fusion", model.SourceImport, "importer"))

	entries, err := trail.History(ctx, model.EntityCompany, 7, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.WholeEntityField, entries[0].FieldName)
	assert.Equal(t, "created:Marvel Fusion", entries[0].NewValue)
	assert.Empty(t, entries[0].OldValue)
	assert.Nil(t, entries[0].ProposalID)
}

func TestTrail_Recent(t *testing.T) {
	trail, _ := newTestTrail(t)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, trail.LogChange(ctx, model.EntityCompany, i, "trl", "3", "4", model.SourceMarkdownSync, "sync-engine", nil))
	}

	entries, err := trail.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(5), entries[0].EntityID)
	assert.Equal(t, int64(3), entries[2].EntityID)
}
