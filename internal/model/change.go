package model

import "strconv"

// ChangeType distinguishes field mutations by direction.
type ChangeType string

const (
	ChangeTypeAdd    ChangeType = "add"
	ChangeTypeUpdate ChangeType = "update"
	ChangeTypeDelete ChangeType = "delete"
)

// FieldChange is one proposed mutation of one field on one entity,
// produced by the reconciler before routing.
type FieldChange struct {
	EntityID   int64      `json:"entity_id"`
	EntityName string     `json:"entity_name"`
	FieldName  string     `json:"field_name"`
	OldValue   string     `json:"old_value,omitempty"`
	NewValue   string     `json:"new_value,omitempty"`
	HasOld     bool       `json:"has_old"`
	HasNew     bool       `json:"has_new"`
	ChangeType ChangeType `json:"change_type"`
	Confidence float64    `json:"confidence"`
	Source     string     `json:"source"`
	Validated  bool       `json:"validated"`
	Applied    bool       `json:"applied"`
}

// IsSignificant reports whether the change clears the field's tolerance.
// Appearance or disappearance of a value is always significant. Numeric
// values compare by relative move against the old value; the boundary is
// strict, a move of exactly the tolerance does not count. Values that do
// not parse as numbers are compared textually.
func (fc *FieldChange) IsSignificant(tolerance float64) bool {
	if fc.HasOld != fc.HasNew {
		return true
	}
	if fc.OldValue == fc.NewValue {
		return false
	}

	oldNum, oldErr := strconv.ParseFloat(fc.OldValue, 64)
	newNum, newErr := strconv.ParseFloat(fc.NewValue, 64)
	if oldErr != nil || newErr != nil {
		// Text values: any difference is significant.
		return true
	}
	if oldNum > 0 {
		diffPct := (newNum - oldNum) / oldNum
		if diffPct < 0 {
			diffPct = -diffPct
		}
		return diffPct > tolerance
	}
	return oldNum != newNum
}
