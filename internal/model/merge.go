package model

// DiffType classifies a section's relationship between two document
// revisions.
type DiffType string

const (
	DiffNew       DiffType = "new"
	DiffModified  DiffType = "modified"
	DiffUnchanged DiffType = "unchanged"
	DiffDeleted   DiffType = "deleted"
)

// SectionDiff is the per-section output of the diff engine. For a new
// section HasOriginal is false; for a base-only section HasUpdate is
// false. Modified implies both sides present with differing content.
type SectionDiff struct {
	SectionName     string   `json:"section_name"`
	OriginalContent string   `json:"original_content,omitempty"`
	UpdateContent   string   `json:"update_content,omitempty"`
	HasOriginal     bool     `json:"has_original"`
	HasUpdate       bool     `json:"has_update"`
	DiffType        DiffType `json:"diff_type"`
}

// MergeResult reports one merge run. Partial success is representable:
// counters may be nonzero while Errors is non-empty.
type MergeResult struct {
	Success          bool     `json:"success"`
	OriginalPath     string   `json:"original_path,omitempty"`
	BackupPath       string   `json:"backup_path,omitempty"`
	MergedPath       string   `json:"merged_path,omitempty"`
	SectionsMerged   int      `json:"sections_merged"`
	CompaniesAdded   int      `json:"companies_added"`
	CompaniesUpdated int      `json:"companies_updated"`
	Errors           []string `json:"errors,omitempty"`
}

// AddError appends an error message to the result.
func (r *MergeResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}

// SyncResult reports one reconciliation run against the database.
type SyncResult struct {
	RunID                string   `json:"run_id"`
	CompaniesProcessed   int      `json:"companies_processed"`
	CompaniesAdded       int      `json:"companies_added"`
	FieldsUpdated        int      `json:"fields_updated"`
	ProposalsCreated     int      `json:"proposals_created"`
	ProposalsAutoApplied int      `json:"proposals_auto_applied"`
	ConflictsFound       int      `json:"conflicts_found"`
	DryRun               bool     `json:"dry_run"`
	Errors               []string `json:"errors,omitempty"`
}

// AddError appends an error message to the result.
func (r *SyncResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
