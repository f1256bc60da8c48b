package model

import (
	"net/url"
	"strings"
	"time"
)

// ProposalStatus is the lifecycle state of an update proposal. Proposals
// are created pending and move to exactly one terminal state; terminal
// states never transition again.
type ProposalStatus string

const (
	ProposalStatusPending     ProposalStatus = "pending"
	ProposalStatusApproved    ProposalStatus = "approved"
	ProposalStatusRejected    ProposalStatus = "rejected"
	ProposalStatusAutoApplied ProposalStatus = "auto_applied"
)

// Terminal reports whether the status permits no further transitions.
func (s ProposalStatus) Terminal() bool {
	return s == ProposalStatusApproved || s == ProposalStatusRejected || s == ProposalStatusAutoApplied
}

// SourceReliability is a fixed tier for how trustworthy a data source is.
type SourceReliability string

const (
	ReliabilityCompanyOfficial     SourceReliability = "company_official"
	ReliabilityFinancialDatabase   SourceReliability = "financial_database"
	ReliabilityMajorNews           SourceReliability = "major_news"
	ReliabilityIndustryPublication SourceReliability = "industry_publication"
	ReliabilityGeneralNews         SourceReliability = "general_news"
	ReliabilitySocialMedia         SourceReliability = "social_media"
	ReliabilityUnverified          SourceReliability = "unverified"
)

// reliabilityScores maps each tier to its numeric confidence weight.
var reliabilityScores = map[SourceReliability]float64{
	ReliabilityCompanyOfficial:     0.95,
	ReliabilityFinancialDatabase:   0.90,
	ReliabilityMajorNews:           0.85,
	ReliabilityIndustryPublication: 0.80,
	ReliabilityGeneralNews:         0.70,
	ReliabilitySocialMedia:         0.50,
	ReliabilityUnverified:          0.30,
}

// Score returns the tier's numeric weight. Unknown tiers score as unverified.
func (r SourceReliability) Score() float64 {
	if s, ok := reliabilityScores[r]; ok {
		return s
	}
	return reliabilityScores[ReliabilityUnverified]
}

// domainTiers is the ordered domain-suffix lookup used to classify URLs.
// Earlier entries win; unmatched domains fall through to unverified.
var domainTiers = []struct {
	tier    SourceReliability
	domains []string
}{
	{ReliabilityCompanyOfficial, []string{
		"proxima-fusion.com", "cfs.energy", "helionenergy.com",
		"tae.com", "generalfusion.com", "focused-energy.world",
		"marvelfusion.com", "gauss-fusion.com", "typeoneenergy.com",
		"firstlightfusion.com", "tokamak.energy", "zap.energy",
	}},
	{ReliabilityFinancialDatabase, []string{
		"crunchbase.com", "pitchbook.com", "bloomberg.com",
		"dealroom.co", "cbinsights.com",
	}},
	{ReliabilityMajorNews, []string{
		"reuters.com", "techcrunch.com", "ft.com", "wsj.com",
		"nytimes.com", "theguardian.com", "bbc.com", "bbc.co.uk",
		"cnbc.com", "businessinsider.com", "forbes.com",
	}},
	{ReliabilityIndustryPublication, []string{
		"fusionindustryassociation.org", "world-nuclear-news.org",
		"iter.org", "energy.gov", "nature.com", "science.org",
		"nucnet.org", "ans.org", "iaea.org",
	}},
	{ReliabilityGeneralNews, []string{
		"news.google.com", "yahoo.com", "msn.com", "bing.com",
	}},
	{ReliabilitySocialMedia, []string{
		"linkedin.com", "twitter.com", "x.com", "medium.com",
	}},
}

// ClassifyURL maps a source URL to a reliability tier by host suffix.
func ClassifyURL(rawURL string) SourceReliability {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Host
	}
	host = strings.ToLower(strings.TrimPrefix(host, "www."))

	for _, t := range domainTiers {
		for _, d := range t.domains {
			if host == d || strings.HasSuffix(host, "."+d) {
				return t.tier
			}
		}
	}
	return ReliabilityUnverified
}

// DataSource records where a proposed value came from.
type DataSource struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Reliability SourceReliability `json:"reliability"`
	Snippet     string            `json:"snippet,omitempty"`
	FetchedAt   time.Time         `json:"fetched_at"`
}

// UpdateProposal is a durable, reviewable candidate field update.
type UpdateProposal struct {
	ID              int64          `json:"id"`
	EntityType      EntityType     `json:"entity_type"`
	EntityID        int64          `json:"entity_id"`
	FieldName       string         `json:"field_name"`
	OldValue        string         `json:"old_value,omitempty"`
	NewValue        string         `json:"new_value,omitempty"`
	ConfidenceScore float64        `json:"confidence_score"`
	Sources         []DataSource   `json:"sources,omitempty"`
	SearchQuery     string         `json:"search_query,omitempty"`
	Status          ProposalStatus `json:"status"`
	ExtractedAt     time.Time      `json:"extracted_at"`
	ReviewedBy      string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time     `json:"reviewed_at,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}
