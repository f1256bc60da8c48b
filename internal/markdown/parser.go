package markdown

import (
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fusion-intel/internal/model"
)

// ParsedDocument holds the typed facts recovered from a research
// document, plus the raw section bodies for callers that need them.
type ParsedDocument struct {
	Companies   []model.Company
	RawSections map[string]string
}

// techMappings maps content keywords to canonical technology approaches.
var techMappings = []struct{ keyword, approach string }{
	{"tokamak", "tokamak"},
	{"stellarator", "stellarator"},
	{"laser", "laser_icf"},
	{"icf", "laser_icf"},
	{"inertial", "laser_icf"},
	{"frc", "frc"},
	{"field-reversed", "frc"},
	{"magnetized target", "magnetized_target"},
	{"z-pinch", "z_pinch"},
	{"mirror", "mirror"},
}

// countryMappings resolves location strings to countries. Keys are
// matched case-insensitively as substrings.
var countryMappings = []struct{ keyword, country string }{
	{"deutschland", "Germany"},
	{"germany", "Germany"},
	{"münchen", "Germany"},
	{"munich", "Germany"},
	{"darmstadt", "Germany"},
	{"garching", "Germany"},
	{"hanau", "Germany"},
	{"usa", "USA"},
	{"uk", "UK"},
	{"japan", "Japan"},
	{"frankreich", "France"},
	{"france", "France"},
	{"china", "China"},
}

// ParseFile reads and parses a research document from disk.
func ParseFile(path string) (*ParsedDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "markdown: read %s", path)
	}
	return Parse(string(data)), nil
}

// Parse extracts typed company records from a research document. Every
// `#### Name (Location)` block across all sections yields one record;
// facts the heuristics cannot recover stay at their zero value.
func Parse(content string) *ParsedDocument {
	doc := Split(content)
	parsed := &ParsedDocument{RawSections: doc.Bodies()}

	blocks, order := CompanyBlocks(content)
	for _, name := range order {
		b := blocks[name]
		parsed.Companies = append(parsed.Companies, parseCompanyBlock(b))
	}
	return parsed
}

func parseCompanyBlock(b CompanyBlock) model.Company {
	lower := strings.ToLower(b.Content)

	c := model.Company{
		Name:            b.Name,
		Country:         "Unknown",
		CompanyType:     model.CompanyTypeStartup,
		ConfidenceScore: 0.85,
	}

	locLower := strings.ToLower(b.Location)
	for _, m := range countryMappings {
		if strings.Contains(locLower, m.keyword) {
			c.Country = m.country
			c.City = b.Location
			if i := strings.Index(b.Location, "/"); i >= 0 {
				c.City = strings.TrimSpace(b.Location[:i])
			}
			break
		}
	}

	switch {
	case strings.Contains(lower, "konzern") || strings.Contains(lower, "corporation"):
		c.CompanyType = model.CompanyTypeKonzern
	case strings.Contains(lower, "kmu") || strings.Contains(lower, "mittelstand"):
		c.CompanyType = model.CompanyTypeKMU
	case strings.Contains(lower, "forschung") || strings.Contains(lower, "research") || strings.Contains(lower, "institut"):
		c.CompanyType = model.CompanyTypeResearch
	}

	for _, m := range techMappings {
		if strings.Contains(lower, m.keyword) {
			c.TechnologyApproach = m.approach
			break
		}
	}

	c.TotalFundingUSD = extractFunding(b.Content)
	c.TRL = extractTRL(b.Content)
	c.TeamSize = extractTeamSize(b.Content)
	c.FoundedYear = extractFoundedYear(b.Content)
	c.KeyInvestors = extractInvestors(b.Content)
	c.Description = extractDescription(b.Content)

	return c
}

// fundingPatterns match amounts like "EUR 130M", "USD 2.86 Mrd.",
// "Finanzierung: EUR 45 Mio.". Each pattern carries the magnitude its
// unit implies.
var fundingPatterns = []struct {
	re         *regexp.Regexp
	multiplier float64
}{
	{regexp.MustCompile(`(?i)(?:USD|EUR)\s*([\d.,+]+)\s*(?:Mrd\.?|Billion|B\b)`), 1e9},
	{regexp.MustCompile(`(?i)(?:USD|EUR)\s*([\d.,+]+)\s*(?:M\b|Million|Mio\.?)`), 1e6},
	{regexp.MustCompile(`(?i)Gesamt\s*(?:USD|EUR)\s*([\d.,+]+)\s*(?:M\b|Mio\.?)`), 1e6},
	{regexp.MustCompile(`(?i)Finanzierung[:\s]+(?:USD|EUR)\s*([\d.,+]+)\s*(?:M\b|Mio\.?)`), 1e6},
}

func extractFunding(content string) float64 {
	var max float64
	for _, p := range fundingPatterns {
		for _, m := range p.re.FindAllStringSubmatch(content, -1) {
			raw := strings.ReplaceAll(m[1], ",", ".")
			raw = strings.ReplaceAll(raw, "+", "")
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				continue
			}
			if v*p.multiplier > max {
				max = v * p.multiplier
			}
		}
	}
	return max
}

var trlRe = regexp.MustCompile(`(?i)TRL\s*(\d)`)

func extractTRL(content string) int {
	m := trlRe.FindStringSubmatch(content)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

var teamSizePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\+?\s*(?:Mitarbeiter|employees|Team)`),
	regexp.MustCompile(`(?i)Team[:\s]+(\d+)`),
}

func extractTeamSize(content string) int {
	for _, re := range teamSizePatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				return n
			}
		}
	}
	return 0
}

var foundedYearPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)gegründet\s*~?(\d{4})`),
	regexp.MustCompile(`(?i)founded\s*~?(\d{4})`),
	regexp.MustCompile(`(?i)Spin-out\s*\((\d{4})\)`),
	regexp.MustCompile(`\((\d{4})\)`),
}

func extractFoundedYear(content string) int {
	for _, re := range foundedYearPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			year, err := strconv.Atoi(m[1])
			if err == nil && year >= 1990 && year <= 2030 {
				return year
			}
		}
	}
	return 0
}

var investorsPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Investoren[:\s]+(.+)`),
	regexp.MustCompile(`(?i)Investors[:\s]+(.+)`),
}

func extractInvestors(content string) string {
	for _, re := range investorsPatterns {
		if m := re.FindStringSubmatch(content); m != nil {
			s := strings.TrimSpace(m[1])
			if len(s) > 500 {
				s = s[:500]
			}
			return s
		}
	}
	return ""
}

var profilRe = regexp.MustCompile(`(?s)\*\*Profil:\*\*\s*(.+?)(?:\n\n|\n-|\n\*\*)`)

func extractDescription(content string) string {
	if m := profilRe.FindStringSubmatch(content); m != nil {
		return clip(strings.TrimSpace(m[1]), 1000)
	}

	// Fallback: first substantial paragraph.
	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if len(para) > 50 && !strings.HasPrefix(para, "-") && !strings.HasPrefix(para, "*") && !strings.HasPrefix(para, "#") {
			return clip(para, 1000)
		}
	}
	return ""
}

func clip(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
