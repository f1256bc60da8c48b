package sync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fusion-intel/internal/model"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Proxima Fusion", "proxima fusion"},
		{"Commonwealth Fusion Systems GmbH", "commonwealth fusion systems"},
		{"Marvel Fusion GmbH", "marvel fusion"},
		{"TAE Technologies, Inc.", "tae technologies"},
		{"Tokamak Energy Ltd", "tokamak energy"},
		{"Gauss Fusion AG", "gauss fusion"},
		{"  Zap   Energy  ", "zap energy"},
		{"Pröxima Füsion", "proxima fusion"},
		{"Focused Energy Inc. GmbH", "focused energy"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeName(tt.in), "input %q", tt.in)
	}
}

func TestNamesMatch(t *testing.T) {
	assert.True(t, NamesMatch("Commonwealth Fusion Systems", "Commonwealth Fusion Systems GmbH"))
	assert.True(t, NamesMatch("Proxima Fusion GmbH", "Proxima Fusion"))
	assert.True(t, NamesMatch("Marvel Fusion", "Marvel Fusion (München)"))
	assert.True(t, NamesMatch("Zap Energy", "Zap Energy"))
	assert.False(t, NamesMatch("Proxima Fusion", "Marvel Fusion"))
	assert.False(t, NamesMatch("", "Marvel Fusion"))
}

func TestMatcher_ExactBeatsFuzzy(t *testing.T) {
	companies := []model.Company{
		{ID: 1, Name: "Fusion Energy"},
		{ID: 2, Name: "Fusion Energy GmbH"},
	}
	m := NewMatcher(nil)

	got := m.Find(context.Background(), companies, "Fusion Energy GmbH")
	require.NotNil(t, got)
	assert.Equal(t, int64(2), got.ID)
}

func TestMatcher_FuzzyFallback(t *testing.T) {
	companies := []model.Company{{ID: 1, Name: "Commonwealth Fusion Systems"}}
	m := NewMatcher(nil)

	got := m.Find(context.Background(), companies, "Commonwealth Fusion Systems GmbH")
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)
}

func TestMatcher_NoMatch(t *testing.T) {
	companies := []model.Company{{ID: 1, Name: "Proxima Fusion"}}
	m := NewMatcher(nil)

	assert.Nil(t, m.Find(context.Background(), companies, "Helion Energy"))
}

type stubNameOracle struct{ same bool }

func (o stubNameOracle) SameCompany(_ context.Context, _, _ string) (bool, error) {
	return o.same, nil
}

func TestMatcher_OracleOnlyAfterHeuristicsMiss(t *testing.T) {
	companies := []model.Company{{ID: 1, Name: "CFS"}}

	m := NewMatcher(stubNameOracle{same: true})
	got := m.Find(context.Background(), companies, "Commonwealth Fusion Systems")
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.ID)

	m = NewMatcher(stubNameOracle{same: false})
	assert.Nil(t, m.Find(context.Background(), companies, "Commonwealth Fusion Systems"))
}
