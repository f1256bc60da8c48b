package model

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldType describes how a comparable field's values are interpreted.
type FieldType string

const (
	FieldTypeCurrency FieldType = "currency"
	FieldTypeInteger  FieldType = "integer"
	FieldTypeText     FieldType = "text"
)

// FieldSpec declares one syncable company field: its database column and
// the relative tolerance below which a numeric change is noise. A nil
// tolerance marks a categorical field where any textual difference counts.
type FieldSpec struct {
	Name      string
	Column    string
	Type      FieldType
	Tolerance *float64
}

func tol(v float64) *float64 { return &v }

// ComparableFields is the fixed table of fields the reconciler diffs
// between parsed markdown and the database, in processing order.
var ComparableFields = []FieldSpec{
	{Name: "total_funding_usd", Column: "total_funding_usd", Type: FieldTypeCurrency, Tolerance: tol(0.10)},
	{Name: "team_size", Column: "team_size", Type: FieldTypeInteger, Tolerance: tol(0.15)},
	{Name: "trl", Column: "trl", Type: FieldTypeInteger, Tolerance: tol(0.0)},
	{Name: "technology_approach", Column: "technology_approach", Type: FieldTypeText},
	{Name: "key_investors", Column: "key_investors", Type: FieldTypeText},
	{Name: "key_partnerships", Column: "key_partnerships", Type: FieldTypeText},
	{Name: "description", Column: "description", Type: FieldTypeText},
	{Name: "founded_year", Column: "founded_year", Type: FieldTypeInteger, Tolerance: tol(0.0)},
	{Name: "city", Column: "city", Type: FieldTypeText},
	{Name: "country", Column: "country", Type: FieldTypeText},
}

// FieldSpecByName returns the spec for a comparable field, or nil.
func FieldSpecByName(name string) *FieldSpec {
	for i := range ComparableFields {
		if ComparableFields[i].Name == name {
			return &ComparableFields[i]
		}
	}
	return nil
}

// FieldValue returns the string form of a comparable field on a company
// and whether the field carries a value at all. Numeric zero and empty
// text both read as absent, matching the sparse markdown extraction.
func FieldValue(c *Company, field string) (string, bool) {
	switch field {
	case "total_funding_usd":
		if c.TotalFundingUSD == 0 {
			return "", false
		}
		return strconv.FormatFloat(c.TotalFundingUSD, 'f', -1, 64), true
	case "team_size":
		if c.TeamSize == 0 {
			return "", false
		}
		return strconv.Itoa(c.TeamSize), true
	case "trl":
		if c.TRL == 0 {
			return "", false
		}
		return strconv.Itoa(c.TRL), true
	case "founded_year":
		if c.FoundedYear == 0 {
			return "", false
		}
		return strconv.Itoa(c.FoundedYear), true
	case "technology_approach":
		return textValue(c.TechnologyApproach)
	case "key_investors":
		return textValue(c.KeyInvestors)
	case "key_partnerships":
		return textValue(c.KeyPartnerships)
	case "description":
		return textValue(c.Description)
	case "city":
		return textValue(c.City)
	case "country":
		return textValue(c.Country)
	}
	return "", false
}

// SetFieldValue writes a string value back onto the typed company struct.
// Used when materializing approved changes onto in-memory records.
func SetFieldValue(c *Company, field, value string) error {
	switch field {
	case "total_funding_usd":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("field %s: parse %q: %w", field, value, err)
		}
		c.TotalFundingUSD = f
	case "team_size":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %s: parse %q: %w", field, value, err)
		}
		c.TeamSize = n
	case "trl":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %s: parse %q: %w", field, value, err)
		}
		c.TRL = n
	case "founded_year":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("field %s: parse %q: %w", field, value, err)
		}
		c.FoundedYear = n
	case "technology_approach":
		c.TechnologyApproach = value
	case "key_investors":
		c.KeyInvestors = value
	case "key_partnerships":
		c.KeyPartnerships = value
	case "description":
		c.Description = value
	case "city":
		c.City = value
	case "country":
		c.Country = value
	default:
		return fmt.Errorf("field %s: not a comparable field", field)
	}
	return nil
}

func textValue(s string) (string, bool) {
	s = strings.TrimSpace(s)
	return s, s != ""
}
