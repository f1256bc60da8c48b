package model

// EntityType names a kind of syncable entity.
type EntityType string

const (
	EntityCompany     EntityType = "company"
	EntityFunding     EntityType = "funding"
	EntityTechnology  EntityType = "technology"
	EntityMarket      EntityType = "market"
	EntityPartnership EntityType = "partnership"
)

// EntityInfo describes how one entity kind maps onto storage: its table,
// the tag written into audit entries, and the set of columns that may be
// written through the field-change path.
type EntityInfo struct {
	Type     EntityType
	Table    string
	AuditTag string
	columns  map[string]string // field name -> column name
}

// Column resolves a field name to its column, or "" if the field is not
// writable on this entity. Callers must treat "" as a hard rejection:
// field names reach the store from parsed documents and are never safe to
// interpolate unchecked.
func (e *EntityInfo) Column(field string) string {
	return e.columns[field]
}

// EntityRegistry indexes entity metadata by type. All services consult
// this one table instead of switching on entity-type strings.
type EntityRegistry struct {
	byType map[EntityType]*EntityInfo
}

// Lookup returns the info for an entity type, or nil if unregistered.
func (r *EntityRegistry) Lookup(t EntityType) *EntityInfo {
	return r.byType[t]
}

// Entities is the registry of every syncable entity kind.
var Entities = func() *EntityRegistry {
	companyCols := make(map[string]string, len(ComparableFields))
	for _, f := range ComparableFields {
		companyCols[f.Name] = f.Column
	}

	infos := []*EntityInfo{
		{Type: EntityCompany, Table: "companies", AuditTag: "company", columns: companyCols},
		{Type: EntityFunding, Table: "funding_rounds", AuditTag: "funding", columns: map[string]string{
			"amount_usd":    "amount_usd",
			"lead_investor": "lead_investor",
		}},
		{Type: EntityTechnology, Table: "technologies", AuditTag: "technology", columns: map[string]string{
			"trl":               "trl",
			"development_stage": "development_stage",
		}},
		{Type: EntityMarket, Table: "markets", AuditTag: "market", columns: map[string]string{
			"market_size_2024_usd": "market_size_2024_usd",
			"cagr_percent":         "cagr_percent",
		}},
		{Type: EntityPartnership, Table: "company_partners", AuditTag: "partnership", columns: map[string]string{}},
	}

	r := &EntityRegistry{byType: make(map[EntityType]*EntityInfo, len(infos))}
	for _, info := range infos {
		r.byType[info.Type] = info
	}
	return r
}()
