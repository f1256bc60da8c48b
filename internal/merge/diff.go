// Package merge implements the section diff engine, the semantic merge
// oracle adapter, and the document merger that ties them together.
package merge

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/sells-group/fusion-intel/internal/model"
)

// ContentHash hashes section content after collapsing all whitespace
// runs to single spaces, so reflow-only edits compare equal. SHA-256
// keeps collision probability negligible, so hash equality is treated as
// content equality.
func ContentHash(content string) string {
	normalized := strings.Join(strings.Fields(content), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// CompareSections classifies every section in the union of both
// documents. A section only in the update is new; a section only in the
// base is kept unchanged (updates never implicitly delete); matching
// hashes are unchanged; differing hashes are modified. Output is sorted
// by section name for deterministic runs.
func CompareSections(base, update map[string]string) []model.SectionDiff {
	names := make([]string, 0, len(base)+len(update))
	seen := make(map[string]bool, len(base)+len(update))
	for name := range base {
		names = append(names, name)
		seen[name] = true
	}
	for name := range update {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	diffs := make([]model.SectionDiff, 0, len(names))
	for _, name := range names {
		baseContent, inBase := base[name]
		updateContent, inUpdate := update[name]

		d := model.SectionDiff{SectionName: name}
		switch {
		case !inBase:
			d.UpdateContent = updateContent
			d.HasUpdate = true
			d.DiffType = model.DiffNew
		case !inUpdate:
			d.OriginalContent = baseContent
			d.HasOriginal = true
			d.DiffType = model.DiffUnchanged
		case ContentHash(baseContent) == ContentHash(updateContent):
			d.OriginalContent = baseContent
			d.HasOriginal = true
			d.DiffType = model.DiffUnchanged
		default:
			d.OriginalContent = baseContent
			d.UpdateContent = updateContent
			d.HasOriginal = true
			d.HasUpdate = true
			d.DiffType = model.DiffModified
		}
		diffs = append(diffs, d)
	}
	return diffs
}
