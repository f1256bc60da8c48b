package merge

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fusion-intel/internal/config"
	"github.com/sells-group/fusion-intel/internal/markdown"
	"github.com/sells-group/fusion-intel/internal/model"
)

// Merger merges an update revision of a research document into its base
// revision. A run is a full read-modify-write of the base file; callers
// must not run two merges against the same base concurrently.
type Merger struct {
	adapter       *Adapter
	researchDir   string
	backupSuffix  string
	backupEnabled bool
	now           func() time.Time
}

// NewMerger creates a Merger rooted at researchDir.
func NewMerger(adapter *Adapter, researchDir string, cfg config.MergeConfig) *Merger {
	return &Merger{
		adapter:       adapter,
		researchDir:   researchDir,
		backupSuffix:  cfg.BackupSuffix,
		backupEnabled: cfg.BackupEnabled,
		now:           time.Now,
	}
}

// MergeFiles merges updateFile into baseFile, writing the result to
// outputFile (or over baseFile when outputFile is empty). The base file
// is backed up before any mutation; on failure the backup is restored.
// Structural warnings are collected on the result, not fatal.
func (m *Merger) MergeFiles(ctx context.Context, baseFile, updateFile, outputFile string) *model.MergeResult {
	result := &model.MergeResult{}
	basePath := filepath.Join(m.researchDir, baseFile)
	updatePath := filepath.Join(m.researchDir, updateFile)
	outputPath := basePath
	if outputFile != "" {
		outputPath = filepath.Join(m.researchDir, outputFile)
	}
	result.OriginalPath = basePath

	if _, err := os.Stat(basePath); err != nil {
		result.AddError(fmt.Sprintf("base file not found: %s", basePath))
		return result
	}
	if _, err := os.Stat(updatePath); err != nil {
		result.AddError(fmt.Sprintf("update file not found: %s", updatePath))
		return result
	}

	if m.backupEnabled {
		backupPath, err := m.CreateBackup(basePath)
		if err != nil {
			result.AddError(fmt.Sprintf("create backup: %v", err))
			return result
		}
		result.BackupPath = backupPath
	}

	if err := m.mergeInto(ctx, basePath, updatePath, outputPath, result); err != nil {
		result.AddError(fmt.Sprintf("merge failed: %v", err))
		if result.BackupPath != "" {
			if rerr := m.RestoreBackup(result.BackupPath, basePath); rerr != nil {
				result.AddError(fmt.Sprintf("restore backup: %v", rerr))
			}
		}
		return result
	}

	result.MergedPath = outputPath
	result.Success = true
	return result
}

func (m *Merger) mergeInto(ctx context.Context, basePath, updatePath, outputPath string, result *model.MergeResult) error {
	baseContent, err := os.ReadFile(basePath)
	if err != nil {
		return eris.Wrapf(err, "merge: read %s", basePath)
	}
	updateContent, err := os.ReadFile(updatePath)
	if err != nil {
		return eris.Wrapf(err, "merge: read %s", updatePath)
	}

	baseDoc := markdown.Split(string(baseContent))
	updateDoc := markdown.Split(string(updateContent))

	for _, name := range baseDoc.DuplicateNames() {
		result.AddError(fmt.Sprintf("duplicate section in base: %s", name))
	}
	for _, name := range updateDoc.DuplicateNames() {
		result.AddError(fmt.Sprintf("duplicate section in update: %s", name))
	}

	diffs := CompareSections(baseDoc.Bodies(), updateDoc.Bodies())

	merged := make(map[string]string, len(diffs))
	for _, diff := range diffs {
		switch diff.DiffType {
		case model.DiffUnchanged:
			merged[diff.SectionName] = diff.OriginalContent
		case model.DiffNew:
			merged[diff.SectionName] = diff.UpdateContent
			result.SectionsMerged++
		case model.DiffModified:
			merged[diff.SectionName] = m.mergeSection(ctx, diff.SectionName, diff.OriginalContent, diff.UpdateContent)
			result.SectionsMerged++

			added, updated := countCompanyChanges(diff.OriginalContent, diff.UpdateContent)
			result.CompaniesAdded += added
			result.CompaniesUpdated += updated
		}
	}

	out := reassemble(baseDoc, updateDoc, merged)

	for _, warn := range ValidateStructure(out) {
		result.AddError("structure validation: " + warn)
	}

	if err := writeFileAtomic(outputPath, []byte(out)); err != nil {
		return eris.Wrapf(err, "merge: write %s", outputPath)
	}

	zap.L().Info("merge complete",
		zap.String("output", outputPath),
		zap.Int("sections_merged", result.SectionsMerged),
		zap.Int("companies_added", result.CompaniesAdded),
		zap.Int("companies_updated", result.CompaniesUpdated),
	)
	return nil
}

// mergeSection applies the chunk policy: small sections go to the
// oracle whole; large sections with company structure are merged
// block-by-block, with genuinely new companies inserted verbatim.
func (m *Merger) mergeSection(ctx context.Context, name, base, update string) string {
	if m.adapter.FitsWholeSection(base, update) {
		return m.adapter.MergeSection(ctx, name, base, update)
	}

	baseBlocks, _ := markdown.CompanyBlocks(base)
	updateBlocks, updateOrder := markdown.CompanyBlocks(update)
	if len(baseBlocks) == 0 && len(updateBlocks) == 0 {
		return m.adapter.MergeSection(ctx, name, base, update)
	}

	merged := base
	for _, companyName := range updateOrder {
		updateBlock := updateBlocks[companyName]
		if baseBlock, ok := baseBlocks[companyName]; ok {
			mergedBlock := m.adapter.MergeCompany(ctx, companyName, baseBlock.Content, updateBlock.Content)
			merged = strings.Replace(merged, baseBlock.Content, mergedBlock, 1)
		} else {
			merged = insertNewCompany(merged, updateBlock.Content)
		}
	}
	return merged
}

var nextSectionRe = regexp.MustCompile(`\n##\s`)

// insertNewCompany appends a new company block before the next top-level
// heading, or at section end.
func insertNewCompany(sectionContent, block string) string {
	if loc := nextSectionRe.FindStringIndex(sectionContent); loc != nil {
		return sectionContent[:loc[0]] + "\n\n" + strings.TrimSpace(block) + "\n" + sectionContent[loc[0]:]
	}
	return strings.TrimRight(sectionContent, " \t\n") + "\n\n" + strings.TrimSpace(block) + "\n"
}

// reassemble rebuilds the document: preamble, then every base section in
// original order with merged content substituted, then sections that
// exist only in the update, appended in update order. Split is a pure
// line partition, so joining preamble, headers, and bodies back with
// newlines reproduces untouched input byte-for-byte; injecting extra
// separators here would inflate the document on every re-merge.
func reassemble(baseDoc, updateDoc *markdown.Document, merged map[string]string) string {
	var parts []string
	if baseDoc.Preamble != "" {
		parts = append(parts, baseDoc.Preamble)
	}

	for _, name := range baseDoc.Order {
		section := baseDoc.Sections[name]
		body, ok := merged[name]
		if !ok {
			body = section.Body
		}
		parts = append(parts, section.Header, body)
	}

	for _, name := range updateDoc.Order {
		if _, inBase := baseDoc.Sections[name]; inBase {
			continue
		}
		header := updateDoc.Sections[name].Header
		parts = append(parts, header, merged[name])
	}

	return strings.Join(parts, "\n")
}

func countCompanyChanges(base, update string) (added, updated int) {
	baseBlocks, _ := markdown.CompanyBlocks(base)
	_, updateOrder := markdown.CompanyBlocks(update)

	for _, name := range updateOrder {
		if _, ok := baseBlocks[name]; ok {
			updated++
		} else {
			added++
		}
	}
	return added, updated
}

var sectionHeaderRe = regexp.MustCompile(`(?m)^##\s+(.+)$`)

// ValidateStructure checks the reassembled document for structural
// defects. Violations are warnings, not failures.
func ValidateStructure(content string) []string {
	var errs []string

	sections := sectionHeaderRe.FindAllStringSubmatch(content, -1)
	if len(sections) == 0 {
		errs = append(errs, "no ## sections found")
	}

	seen := make(map[string]bool, len(sections))
	for _, s := range sections {
		name := strings.TrimSpace(s[1])
		if seen[name] {
			errs = append(errs, "duplicate section: "+name)
		}
		seen[name] = true
	}

	if strings.Count(content, "```")%2 != 0 {
		errs = append(errs, "unclosed code block (``` count is odd)")
	}

	return errs
}

// CreateBackup copies the file to a timestamped sibling and returns the
// backup path. This is the merge's single rollback point.
func (m *Merger) CreateBackup(path string) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(filepath.Base(path), ext)
	stamp := m.now().Format("20060102_150405")
	backupPath := filepath.Join(filepath.Dir(path), stem+"_"+stamp+m.backupSuffix+ext)

	if err := copyFile(path, backupPath); err != nil {
		return "", eris.Wrapf(err, "merge: backup %s", path)
	}
	return backupPath, nil
}

// RestoreBackup copies a backup over the original path.
func (m *Merger) RestoreBackup(backupPath, originalPath string) error {
	if _, err := os.Stat(backupPath); err != nil {
		return eris.Wrapf(err, "merge: backup missing %s", backupPath)
	}
	return eris.Wrap(copyFile(backupPath, originalPath), "merge: restore")
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// writeFileAtomic writes via a temp file and rename so readers never see
// a half-written document.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".merge-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
