package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/fusion-intel/internal/db"
	"github.com/sells-group/fusion-intel/internal/model"
)

// PostgresStore implements Store over a pgx connection pool.
type PostgresStore struct {
	pool db.Pool
}

// NewPostgres wraps an existing pool.
func NewPostgres(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                  BIGSERIAL PRIMARY KEY,
	name                TEXT NOT NULL UNIQUE,
	company_type        TEXT NOT NULL DEFAULT 'startup',
	country             TEXT NOT NULL DEFAULT '',
	city                TEXT NOT NULL DEFAULT '',
	founded_year        INTEGER NOT NULL DEFAULT 0,
	website             TEXT NOT NULL DEFAULT '',
	team_size           INTEGER NOT NULL DEFAULT 0,
	description         TEXT NOT NULL DEFAULT '',
	technology_approach TEXT NOT NULL DEFAULT '',
	trl                 INTEGER NOT NULL DEFAULT 0,
	total_funding_usd   DOUBLE PRECISION NOT NULL DEFAULT 0,
	key_investors       TEXT NOT NULL DEFAULT '',
	key_partnerships    TEXT NOT NULL DEFAULT '',
	confidence_score    DOUBLE PRECISION NOT NULL DEFAULT 0,
	source_url          TEXT NOT NULL DEFAULT '',
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_updated        TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS update_proposals (
	id               BIGSERIAL PRIMARY KEY,
	entity_type      TEXT NOT NULL,
	entity_id        BIGINT NOT NULL,
	field_name       TEXT NOT NULL,
	old_value        TEXT NOT NULL DEFAULT '',
	new_value        TEXT NOT NULL DEFAULT '',
	confidence_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	sources          JSONB,
	search_query     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	extracted_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	reviewed_by      TEXT NOT NULL DEFAULT '',
	reviewed_at      TIMESTAMPTZ,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            BIGSERIAL PRIMARY KEY,
	entity_type   TEXT NOT NULL,
	entity_id     BIGINT NOT NULL,
	field_name    TEXT NOT NULL,
	old_value     TEXT NOT NULL DEFAULT '',
	new_value     TEXT NOT NULL DEFAULT '',
	change_source TEXT NOT NULL,
	changed_by    TEXT NOT NULL,
	changed_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	proposal_id   BIGINT
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id            BIGSERIAL PRIMARY KEY,
	company_id    BIGINT NOT NULL REFERENCES companies(id),
	round_type    TEXT NOT NULL DEFAULT '',
	amount_usd    DOUBLE PRECISION NOT NULL DEFAULT 0,
	lead_investor TEXT NOT NULL DEFAULT '',
	announced_at  TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS technologies (
	id                BIGSERIAL PRIMARY KEY,
	company_id        BIGINT NOT NULL REFERENCES companies(id),
	approach          TEXT NOT NULL DEFAULT '',
	trl               INTEGER NOT NULL DEFAULT 0,
	development_stage TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS markets (
	id                   BIGSERIAL PRIMARY KEY,
	name                 TEXT NOT NULL UNIQUE,
	market_size_2024_usd DOUBLE PRECISION NOT NULL DEFAULT 0,
	cagr_percent         DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS company_partners (
	id           BIGSERIAL PRIMARY KEY,
	company_id   BIGINT NOT NULL REFERENCES companies(id),
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	partner_type TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_name ON companies(name);
CREATE INDEX IF NOT EXISTS idx_companies_last_updated ON companies(last_updated);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON update_proposals(status);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_partners_company ON company_partners(company_id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

const companyColumns = `id, name, company_type, country, city, founded_year, website, team_size,
	description, technology_approach, trl, total_funding_usd, key_investors, key_partnerships,
	confidence_score, source_url, created_at, last_updated`

func scanCompany(row pgx.Row) (*model.Company, error) {
	var c model.Company
	err := row.Scan(
		&c.ID, &c.Name, &c.CompanyType, &c.Country, &c.City, &c.FoundedYear, &c.Website, &c.TeamSize,
		&c.Description, &c.TechnologyApproach, &c.TRL, &c.TotalFundingUSD, &c.KeyInvestors, &c.KeyPartnerships,
		&c.ConfidenceScore, &c.SourceURL, &c.CreatedAt, &c.LastUpdated,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// limitArg maps limit <= 0 to NULL, which Postgres reads as no limit.
func limitArg(limit int) any {
	if limit <= 0 {
		return nil
	}
	return limit
}

// ListCompanies returns companies ordered by name. A limit <= 0 returns
// every row; the sync engine relies on the full set to decide whether a
// parsed company is new.
func (s *PostgresStore) ListCompanies(ctx context.Context, limit int) ([]model.Company, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY name LIMIT $1`, limitArg(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list companies iterate")
}

func (s *PostgresStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	c, err := scanCompany(s.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = $1`, name))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get company %s", name)
	}
	return c, nil
}

func (s *PostgresStore) InsertCompany(ctx context.Context, c *model.Company, source model.ChangeSource, changedBy string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin insert company")
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO companies (
			name, company_type, country, city, founded_year, website, team_size,
			description, technology_approach, trl, total_funding_usd,
			key_investors, key_partnerships, confidence_score, source_url
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING id, created_at, last_updated`,
		c.Name, c.CompanyType, c.Country, c.City, c.FoundedYear, c.Website, c.TeamSize,
		c.Description, c.TechnologyApproach, c.TRL, c.TotalFundingUSD,
		c.KeyInvestors, c.KeyPartnerships, c.ConfidenceScore, c.SourceURL,
	).Scan(&c.ID, &c.CreatedAt, &c.LastUpdated)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert company %s", c.Name)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(model.EntityCompany), c.ID, model.WholeEntityField,
		"", "created:"+c.Name, string(source), changedBy,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: audit insert company %s", c.Name)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit insert company")
}

func (s *PostgresStore) ListStaleCompanies(ctx context.Context, olderThan time.Time, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE last_updated < $1 ORDER BY last_updated ASC LIMIT $2`,
		olderThan, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list stale companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan stale company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list stale companies iterate")
}

func (s *PostgresStore) ReplacePartners(ctx context.Context, companyID int64, partners []model.Partner) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace partners")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM company_partners WHERE company_id = $1`, companyID); err != nil {
		return eris.Wrapf(err, "postgres: clear partners for company %d", companyID)
	}
	for _, p := range partners {
		if _, err := tx.Exec(ctx,
			`INSERT INTO company_partners (company_id, name, kind, partner_type) VALUES ($1, $2, $3, $4)`,
			companyID, p.Name, string(p.Kind), string(p.PartnerType),
		); err != nil {
			return eris.Wrapf(err, "postgres: insert partner %s", p.Name)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace partners")
}

func (s *PostgresStore) ListPartners(ctx context.Context, companyID int64) ([]model.Partner, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, company_id, name, kind, partner_type FROM company_partners WHERE company_id = $1 ORDER BY id`,
		companyID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list partners")
	}
	defer rows.Close()

	var out []model.Partner
	for rows.Next() {
		var p model.Partner
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Kind, &p.PartnerType); err != nil {
			return nil, eris.Wrap(err, "postgres: scan partner")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list partners iterate")
}

func (s *PostgresStore) ApplyFieldChange(ctx context.Context, change model.FieldChange, source model.ChangeSource, changedBy string) error {
	info := model.Entities.Lookup(model.EntityCompany)
	col := info.Column(change.FieldName)
	if col == "" {
		return eris.Errorf("postgres: field %s not writable on %s", change.FieldName, info.Type)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin apply change")
	}
	defer tx.Rollback(ctx)

	// col comes from the entity registry whitelist, never from input.
	tag, err := tx.Exec(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = $1, last_updated = now() WHERE id = $2`, info.Table, col),
		change.NewValue, change.EntityID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: apply %s.%s", info.Table, col)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("company not found: %d", change.EntityID)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		string(model.EntityCompany), change.EntityID, change.FieldName,
		change.OldValue, change.NewValue, string(source), changedBy,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: audit field change %s", change.FieldName)
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit apply change")
}

func (s *PostgresStore) CreateProposal(ctx context.Context, p *model.UpdateProposal) (int64, error) {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: marshal proposal sources")
	}
	if p.Status == "" {
		p.Status = model.ProposalStatusPending
	}
	if p.ExtractedAt.IsZero() {
		p.ExtractedAt = time.Now().UTC()
	}

	err = s.pool.QueryRow(ctx, `
		INSERT INTO update_proposals (
			entity_type, entity_id, field_name, old_value, new_value,
			confidence_score, sources, search_query, status, extracted_at, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id`,
		string(p.EntityType), p.EntityID, p.FieldName, p.OldValue, p.NewValue,
		p.ConfidenceScore, sourcesJSON, p.SearchQuery, string(p.Status), p.ExtractedAt, p.Notes,
	).Scan(&p.ID)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: create proposal")
	}
	return p.ID, nil
}

const proposalColumns = `id, entity_type, entity_id, field_name, old_value, new_value,
	confidence_score, sources, search_query, status, extracted_at, reviewed_by, reviewed_at, notes`

func scanProposal(row pgx.Row) (*model.UpdateProposal, error) {
	var p model.UpdateProposal
	var sourcesJSON []byte
	err := row.Scan(
		&p.ID, &p.EntityType, &p.EntityID, &p.FieldName, &p.OldValue, &p.NewValue,
		&p.ConfidenceScore, &sourcesJSON, &p.SearchQuery, &p.Status, &p.ExtractedAt,
		&p.ReviewedBy, &p.ReviewedAt, &p.Notes,
	)
	if err != nil {
		return nil, err
	}
	if len(sourcesJSON) > 0 {
		if err := json.Unmarshal(sourcesJSON, &p.Sources); err != nil {
			return nil, err
		}
	}
	return &p, nil
}

func (s *PostgresStore) GetProposal(ctx context.Context, id int64) (*model.UpdateProposal, error) {
	p, err := scanProposal(s.pool.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get proposal %d", id)
	}
	return p, nil
}

func (s *PostgresStore) ListPendingProposals(ctx context.Context, limit int) ([]model.UpdateProposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals
		 WHERE status = 'pending' ORDER BY confidence_score DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending proposals")
	}
	defer rows.Close()

	var out []model.UpdateProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list pending proposals iterate")
}

func (s *PostgresStore) ApproveProposal(ctx context.Context, id int64, reviewedBy string) (bool, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return false, eris.Wrap(err, "postgres: begin approve")
	}
	defer tx.Rollback(ctx)

	p, err := scanProposal(tx.QueryRow(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, eris.Wrapf(err, "postgres: load proposal %d", id)
	}
	if p.Status != model.ProposalStatusPending {
		return false, nil
	}

	info := model.Entities.Lookup(p.EntityType)
	if info == nil {
		return false, eris.Errorf("postgres: unknown entity type %s", p.EntityType)
	}
	col := info.Column(p.FieldName)
	if col == "" {
		return false, eris.Errorf("postgres: field %s not writable on %s", p.FieldName, p.EntityType)
	}

	update := fmt.Sprintf(`UPDATE %s SET %s = $1 WHERE id = $2`, info.Table, col)
	if p.EntityType == model.EntityCompany {
		update = fmt.Sprintf(`UPDATE %s SET %s = $1, last_updated = now() WHERE id = $2`, info.Table, col)
	}
	if _, err := tx.Exec(ctx, update, p.NewValue, p.EntityID); err != nil {
		return false, eris.Wrapf(err, "postgres: approve apply %s.%s", info.Table, col)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE update_proposals SET status = $1, reviewed_by = $2, reviewed_at = now() WHERE id = $3`,
		string(model.ProposalStatusApproved), reviewedBy, id,
	); err != nil {
		return false, eris.Wrapf(err, "postgres: mark approved %d", id)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, proposal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		string(p.EntityType), p.EntityID, p.FieldName, p.OldValue, p.NewValue,
		string(model.SourceMarkdownSync), reviewedBy, id,
	); err != nil {
		return false, eris.Wrapf(err, "postgres: audit approve %d", id)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, eris.Wrap(err, "postgres: commit approve")
	}
	return true, nil
}

func (s *PostgresStore) RejectProposal(ctx context.Context, id int64, reviewedBy, notes string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE update_proposals SET status = $1, reviewed_by = $2, reviewed_at = now(), notes = $3
		 WHERE id = $4 AND status = $5`,
		string(model.ProposalStatusRejected), reviewedBy, notes, id, string(model.ProposalStatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: reject proposal %d", id)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) AppendAudit(ctx context.Context, e *model.AuditEntry) (int64, error) {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, proposal_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, changed_at`,
		string(e.EntityType), e.EntityID, e.FieldName, e.OldValue, e.NewValue,
		string(e.ChangeSource), e.ChangedBy, e.ProposalID,
	).Scan(&e.ID, &e.ChangedAt)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: append audit")
	}
	return e.ID, nil
}

func (s *PostgresStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, entity_type, entity_id, field_name, old_value, new_value,
		change_source, changed_by, changed_at, proposal_id FROM audit_log WHERE true`
	args := []any{}
	argIdx := 1

	if filter.EntityType != "" {
		query += fmt.Sprintf(` AND entity_type = $%d`, argIdx)
		args = append(args, string(filter.EntityType))
		argIdx++
	}
	if filter.EntityID != 0 {
		query += fmt.Sprintf(` AND entity_id = $%d`, argIdx)
		args = append(args, filter.EntityID)
		argIdx++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` ORDER BY changed_at DESC, id DESC LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list audit")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FieldName, &e.OldValue, &e.NewValue,
			&e.ChangeSource, &e.ChangedBy, &e.ChangedAt, &e.ProposalID); err != nil {
			return nil, eris.Wrap(err, "postgres: scan audit entry")
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list audit iterate")
}
