package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSignificant_NumericTolerance(t *testing.T) {
	tests := []struct {
		name      string
		oldVal    string
		newVal    string
		tolerance float64
		want      bool
	}{
		{"below tolerance", "100000000", "105000000", 0.10, false},
		{"exactly at tolerance stays insignificant", "100000000", "110000000", 0.10, false},
		{"just over tolerance", "100000000", "111000000", 0.10, true},
		{"decrease over tolerance", "100000000", "80000000", 0.10, true},
		{"zero tolerance catches any move", "4", "5", 0.0, true},
		{"identical numbers", "42", "42", 0.10, false},
		{"old value zero compares exact", "0", "5", 0.10, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &FieldChange{
				OldValue: tt.oldVal,
				NewValue: tt.newVal,
				HasOld:   true,
				HasNew:   true,
			}
			assert.Equal(t, tt.want, fc.IsSignificant(tt.tolerance))
		})
	}
}

func TestIsSignificant_PresenceChangeAlwaysCounts(t *testing.T) {
	added := &FieldChange{NewValue: "tokamak", HasNew: true}
	assert.True(t, added.IsSignificant(0.10))

	removed := &FieldChange{OldValue: "tokamak", HasOld: true}
	assert.True(t, removed.IsSignificant(0.10))
}

func TestIsSignificant_TextComparesExactly(t *testing.T) {
	fc := &FieldChange{
		OldValue: "stellarator",
		NewValue: "laser_icf",
		HasOld:   true,
		HasNew:   true,
	}
	assert.True(t, fc.IsSignificant(0.10))

	fc.NewValue = "stellarator"
	assert.False(t, fc.IsSignificant(0.10))
}
