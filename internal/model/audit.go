package model

import "time"

// ChangeSource identifies the code path that produced a mutation.
type ChangeSource string

const (
	SourceManual       ChangeSource = "manual"
	SourceMarkdownSync ChangeSource = "markdown_sync"
	SourceAutoUpdate   ChangeSource = "auto_update"
	SourceImport       ChangeSource = "import"
	SourceUserEdit     ChangeSource = "user_edit"
)

// WholeEntityField is the field name used on audit entries that record
// entity-level events (creation, deletion) rather than a single field.
const WholeEntityField = "*"

// AuditEntry is one immutable row in the append-only audit log. Every
// accepted mutation of a tracked field produces exactly one entry.
type AuditEntry struct {
	ID           int64        `json:"id"`
	EntityType   EntityType   `json:"entity_type"`
	EntityID     int64        `json:"entity_id"`
	FieldName    string       `json:"field_name"`
	OldValue     string       `json:"old_value,omitempty"`
	NewValue     string       `json:"new_value,omitempty"`
	ChangeSource ChangeSource `json:"change_source"`
	ChangedBy    string       `json:"changed_by"`
	ChangedAt    time.Time    `json:"changed_at"`
	ProposalID   *int64       `json:"proposal_id,omitempty"`
}
