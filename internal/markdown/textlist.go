package markdown

import (
	"regexp"
	"strings"

	"github.com/sells-group/fusion-intel/internal/model"
)

var (
	listSplitRe = regexp.MustCompile(`[,;]`)
	citationRe  = regexp.MustCompile(`\[\d+\]$`)
	parenNoteRe = regexp.MustCompile(`\s*\([^)]+\)\s*$`)
)

// ParseTextList splits free relationship text ("key investors", "key
// partnerships") into discrete names. Trailing bracketed citations and
// parenthetical notes are stripped; tokens of length 1 or less are
// dropped. Order is preserved and duplicates are kept.
func ParseTextList(text string) []string {
	if text == "" {
		return nil
	}

	var out []string
	for _, item := range listSplitRe.Split(text, -1) {
		item = strings.TrimSpace(item)
		item = strings.TrimSpace(citationRe.ReplaceAllString(item, ""))
		item = strings.TrimSpace(parenNoteRe.ReplaceAllString(item, ""))
		if len(item) > 1 {
			out = append(out, item)
		}
	}
	return out
}

var academicKeywords = []string{
	"university", "universität", "college", "institute", "institut",
	"lab", "laboratory", "research", "national", "department of energy",
	"doe", "cnrs", "max planck", "fraunhofer", "lmu", "mit",
	"princeton", "oxford", "cambridge", "stanford", "berkeley", "caltech",
}

var governmentKeywords = []string{
	"government", "ministry", "department", "agency", "commission",
	"u.s.", "us ", "european", "federal", "state of",
	"dod", "arpa", "darpa",
}

// ClassifyPartner buckets a partner name by keyword heuristics. Academic
// terms are checked before government terms; everything else is
// industrial.
func ClassifyPartner(name string) model.PartnerType {
	lower := strings.ToLower(name)

	for _, kw := range academicKeywords {
		if strings.Contains(lower, kw) {
			return model.PartnerTypeResearch
		}
	}
	for _, kw := range governmentKeywords {
		if strings.Contains(lower, kw) {
			return model.PartnerTypeGovernment
		}
	}
	return model.PartnerTypeIndustrial
}
