package model

import "time"

// CompanyType classifies a company by organizational form.
type CompanyType string

const (
	CompanyTypeStartup  CompanyType = "startup"
	CompanyTypeKonzern  CompanyType = "konzern"
	CompanyTypeKMU      CompanyType = "kmu"
	CompanyTypeResearch CompanyType = "forschung"
)

// Company is a row in the companies table, the entity of record the
// reconciler syncs markdown facts against.
type Company struct {
	ID                 int64       `json:"id"`
	Name               string      `json:"name"`
	CompanyType        CompanyType `json:"company_type,omitempty"`
	Country            string      `json:"country,omitempty"`
	City               string      `json:"city,omitempty"`
	FoundedYear        int         `json:"founded_year,omitempty"`
	Website            string      `json:"website,omitempty"`
	TeamSize           int         `json:"team_size,omitempty"`
	Description        string      `json:"description,omitempty"`
	TechnologyApproach string      `json:"technology_approach,omitempty"`
	TRL                int         `json:"trl,omitempty"`
	TotalFundingUSD    float64     `json:"total_funding_usd,omitempty"`
	KeyInvestors       string      `json:"key_investors,omitempty"`
	KeyPartnerships    string      `json:"key_partnerships,omitempty"`
	ConfidenceScore    float64     `json:"confidence_score,omitempty"`
	SourceURL          string      `json:"source_url,omitempty"`
	CreatedAt          time.Time   `json:"created_at"`
	LastUpdated        time.Time   `json:"last_updated"`
}

// StalenessDays returns the record's age in whole days, or -1 when the
// record has never been updated.
func (c *Company) StalenessDays(now time.Time) int {
	if c.LastUpdated.IsZero() {
		return -1
	}
	return int(now.Sub(c.LastUpdated).Hours() / 24)
}

// Partner is a single normalized relationship extracted from a company's
// free-text investor or partnership fields.
type Partner struct {
	ID          int64       `json:"id"`
	CompanyID   int64       `json:"company_id"`
	Name        string      `json:"name"`
	Kind        PartnerKind `json:"kind"`
	PartnerType PartnerType `json:"partner_type"`
}

// PartnerKind says which source field the partner came from.
type PartnerKind string

const (
	PartnerKindInvestor    PartnerKind = "investor"
	PartnerKindPartnership PartnerKind = "partnership"
)

// PartnerType is the heuristic category of a partner organization.
type PartnerType string

const (
	PartnerTypeResearch   PartnerType = "research_partner"
	PartnerTypeGovernment PartnerType = "government"
	PartnerTypeIndustrial PartnerType = "industrial_partner"
)
