package sync

import (
	"context"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/fusion-intel/internal/model"
)

// legalSuffixes are stripped from the end of names before comparison so
// that "Commonwealth Fusion Systems GmbH" matches "Commonwealth Fusion
// Systems".
var legalSuffixes = []string{"gmbh", "inc.", "inc", "ltd.", "ltd", "ag", "corp.", "corp", "llc"}

// foldDiacritics removes combining marks after NFD decomposition, so
// "Pröxima" and "Proxima" normalize identically.
var foldDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, folds diacritics, collapses whitespace, and
// strips trailing legal-form suffixes.
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldDiacritics, name)
	if err != nil {
		folded = name
	}
	s := strings.ToLower(folded)
	s = strings.Join(strings.Fields(s), " ")

	for stripped := true; stripped; {
		stripped = false
		for _, suf := range legalSuffixes {
			if strings.HasSuffix(s, " "+suf) {
				s = strings.TrimSuffix(s, " "+suf)
				s = strings.TrimSuffix(strings.TrimSpace(s), ",")
				s = strings.TrimSpace(s)
				stripped = true
			}
		}
	}
	return s
}

// NamesMatch reports whether two company names refer to the same company
// under the heuristic matcher: normalized equality or substring
// containment in either direction.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	return strings.Contains(na, nb) || strings.Contains(nb, na)
}

// NameOracle resolves ambiguous name pairs with a model call. It is an
// optional extension point; the default sync flow runs without one.
type NameOracle interface {
	SameCompany(ctx context.Context, a, b string) (bool, error)
}

// Matcher finds the database row a parsed company name refers to.
type Matcher struct {
	oracle NameOracle
}

// NewMatcher builds a Matcher. oracle may be nil, in which case only the
// heuristic path runs.
func NewMatcher(oracle NameOracle) *Matcher {
	return &Matcher{oracle: oracle}
}

// Find returns the matching company, or nil when the name matches no
// known row. Exact name equality is tried before fuzzy matching, and the
// oracle, when present, only runs after both heuristics miss.
func (m *Matcher) Find(ctx context.Context, companies []model.Company, name string) *model.Company {
	for i := range companies {
		if companies[i].Name == name {
			return &companies[i]
		}
	}
	for i := range companies {
		if NamesMatch(companies[i].Name, name) {
			return &companies[i]
		}
	}
	if m.oracle != nil {
		for i := range companies {
			same, err := m.oracle.SameCompany(ctx, companies[i].Name, name)
			if err == nil && same {
				return &companies[i]
			}
		}
	}
	return nil
}
