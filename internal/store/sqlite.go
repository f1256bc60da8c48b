package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/fusion-intel/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS companies (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
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
	total_funding_usd   REAL NOT NULL DEFAULT 0,
	key_investors       TEXT NOT NULL DEFAULT '',
	key_partnerships    TEXT NOT NULL DEFAULT '',
	confidence_score    REAL NOT NULL DEFAULT 0,
	source_url          TEXT NOT NULL DEFAULT '',
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	last_updated        DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS update_proposals (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type      TEXT NOT NULL,
	entity_id        INTEGER NOT NULL,
	field_name       TEXT NOT NULL,
	old_value        TEXT NOT NULL DEFAULT '',
	new_value        TEXT NOT NULL DEFAULT '',
	confidence_score REAL NOT NULL DEFAULT 0,
	sources          TEXT,
	search_query     TEXT NOT NULL DEFAULT '',
	status           TEXT NOT NULL DEFAULT 'pending',
	extracted_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	reviewed_by      TEXT NOT NULL DEFAULT '',
	reviewed_at      DATETIME,
	notes            TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS audit_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	entity_type   TEXT NOT NULL,
	entity_id     INTEGER NOT NULL,
	field_name    TEXT NOT NULL,
	old_value     TEXT NOT NULL DEFAULT '',
	new_value     TEXT NOT NULL DEFAULT '',
	change_source TEXT NOT NULL,
	changed_by    TEXT NOT NULL,
	changed_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	proposal_id   INTEGER
);

CREATE TABLE IF NOT EXISTS funding_rounds (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id    INTEGER NOT NULL REFERENCES companies(id),
	round_type    TEXT NOT NULL DEFAULT '',
	amount_usd    REAL NOT NULL DEFAULT 0,
	lead_investor TEXT NOT NULL DEFAULT '',
	announced_at  DATETIME
);

CREATE TABLE IF NOT EXISTS technologies (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id        INTEGER NOT NULL REFERENCES companies(id),
	approach          TEXT NOT NULL DEFAULT '',
	trl               INTEGER NOT NULL DEFAULT 0,
	development_stage TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS markets (
	id                   INTEGER PRIMARY KEY AUTOINCREMENT,
	name                 TEXT NOT NULL UNIQUE,
	market_size_2024_usd REAL NOT NULL DEFAULT 0,
	cagr_percent         REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS company_partners (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id   INTEGER NOT NULL REFERENCES companies(id),
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	partner_type TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_companies_last_updated ON companies(last_updated);
CREATE INDEX IF NOT EXISTS idx_proposals_status ON update_proposals(status);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_type, entity_id);
CREATE INDEX IF NOT EXISTS idx_partners_company ON company_partners(company_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCompanyRow(row scannable) (*model.Company, error) {
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

// ListCompanies returns companies ordered by name. A limit <= 0 returns
// every row; the sync engine relies on the full set to decide whether a
// parsed company is new.
func (s *SQLiteStore) ListCompanies(ctx context.Context, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = -1 // SQLite treats a negative LIMIT as unbounded.
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies ORDER BY name LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompanyRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list companies iterate")
}

func (s *SQLiteStore) GetCompanyByName(ctx context.Context, name string) (*model.Company, error) {
	c, err := scanCompanyRow(s.db.QueryRowContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = ?`, name))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get company %s", name)
	}
	return c, nil
}

func (s *SQLiteStore) InsertCompany(ctx context.Context, c *model.Company, source model.ChangeSource, changedBy string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert company")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO companies (
			name, company_type, country, city, founded_year, website, team_size,
			description, technology_approach, trl, total_funding_usd,
			key_investors, key_partnerships, confidence_score, source_url,
			created_at, last_updated
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Name, c.CompanyType, c.Country, c.City, c.FoundedYear, c.Website, c.TeamSize,
		c.Description, c.TechnologyApproach, c.TRL, c.TotalFundingUSD,
		c.KeyInvestors, c.KeyPartnerships, c.ConfidenceScore, c.SourceURL,
		now, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert company %s", c.Name)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	c.CreatedAt = now
	c.LastUpdated = now

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(model.EntityCompany), c.ID, model.WholeEntityField,
		"", "created:"+c.Name, string(source), changedBy, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: audit insert company %s", c.Name)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit insert company")
}

func (s *SQLiteStore) ListStaleCompanies(ctx context.Context, olderThan time.Time, limit int) ([]model.Company, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE last_updated < ? ORDER BY last_updated ASC LIMIT ?`,
		olderThan, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list stale companies")
	}
	defer rows.Close()

	var out []model.Company
	for rows.Next() {
		c, err := scanCompanyRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan stale company")
		}
		out = append(out, *c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list stale companies iterate")
}

func (s *SQLiteStore) ReplacePartners(ctx context.Context, companyID int64, partners []model.Partner) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace partners")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM company_partners WHERE company_id = ?`, companyID); err != nil {
		return eris.Wrapf(err, "sqlite: clear partners for company %d", companyID)
	}
	for _, p := range partners {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO company_partners (company_id, name, kind, partner_type) VALUES (?, ?, ?, ?)`,
			companyID, p.Name, string(p.Kind), string(p.PartnerType),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert partner %s", p.Name)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace partners")
}

func (s *SQLiteStore) ListPartners(ctx context.Context, companyID int64) ([]model.Partner, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, company_id, name, kind, partner_type FROM company_partners WHERE company_id = ? ORDER BY id`,
		companyID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list partners")
	}
	defer rows.Close()

	var out []model.Partner
	for rows.Next() {
		var p model.Partner
		if err := rows.Scan(&p.ID, &p.CompanyID, &p.Name, &p.Kind, &p.PartnerType); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan partner")
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list partners iterate")
}

func (s *SQLiteStore) ApplyFieldChange(ctx context.Context, change model.FieldChange, source model.ChangeSource, changedBy string) error {
	info := model.Entities.Lookup(model.EntityCompany)
	col := info.Column(change.FieldName)
	if col == "" {
		return eris.Errorf("sqlite: field %s not writable on %s", change.FieldName, info.Type)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin apply change")
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET %s = ?, last_updated = ? WHERE id = ?`, info.Table, col),
		change.NewValue, now, change.EntityID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: apply %s.%s", info.Table, col)
	}
	if err := checkRowsAffected(res, "company", change.EntityID); err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, changed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(model.EntityCompany), change.EntityID, change.FieldName,
		change.OldValue, change.NewValue, string(source), changedBy, now,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: audit field change %s", change.FieldName)
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit apply change")
}

func (s *SQLiteStore) CreateProposal(ctx context.Context, p *model.UpdateProposal) (int64, error) {
	sourcesJSON, err := json.Marshal(p.Sources)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: marshal proposal sources")
	}
	if p.Status == "" {
		p.Status = model.ProposalStatusPending
	}
	if p.ExtractedAt.IsZero() {
		p.ExtractedAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO update_proposals (
			entity_type, entity_id, field_name, old_value, new_value,
			confidence_score, sources, search_query, status, extracted_at, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.EntityType), p.EntityID, p.FieldName, p.OldValue, p.NewValue,
		p.ConfidenceScore, string(sourcesJSON), p.SearchQuery, string(p.Status), p.ExtractedAt, p.Notes,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: create proposal")
	}
	p.ID, err = res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return p.ID, nil
}

func scanProposalRow(row scannable) (*model.UpdateProposal, error) {
	var p model.UpdateProposal
	var sourcesJSON sql.NullString
	var reviewedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.EntityType, &p.EntityID, &p.FieldName, &p.OldValue, &p.NewValue,
		&p.ConfidenceScore, &sourcesJSON, &p.SearchQuery, &p.Status, &p.ExtractedAt,
		&p.ReviewedBy, &reviewedAt, &p.Notes,
	)
	if err != nil {
		return nil, err
	}
	if sourcesJSON.Valid && sourcesJSON.String != "" && sourcesJSON.String != "null" {
		if err := json.Unmarshal([]byte(sourcesJSON.String), &p.Sources); err != nil {
			return nil, err
		}
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		p.ReviewedAt = &t
	}
	return &p, nil
}

func (s *SQLiteStore) GetProposal(ctx context.Context, id int64) (*model.UpdateProposal, error) {
	p, err := scanProposalRow(s.db.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get proposal %d", id)
	}
	return p, nil
}

func (s *SQLiteStore) ListPendingProposals(ctx context.Context, limit int) ([]model.UpdateProposal, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals
		 WHERE status = 'pending' ORDER BY confidence_score DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending proposals")
	}
	defer rows.Close()

	var out []model.UpdateProposal
	for rows.Next() {
		p, err := scanProposalRow(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		out = append(out, *p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list pending proposals iterate")
}

func (s *SQLiteStore) ApproveProposal(ctx context.Context, id int64, reviewedBy string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: begin approve")
	}
	defer tx.Rollback()

	p, err := scanProposalRow(tx.QueryRowContext(ctx,
		`SELECT `+proposalColumns+` FROM update_proposals WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: load proposal %d", id)
	}
	if p.Status != model.ProposalStatusPending {
		return false, nil
	}

	info := model.Entities.Lookup(p.EntityType)
	if info == nil {
		return false, eris.Errorf("sqlite: unknown entity type %s", p.EntityType)
	}
	col := info.Column(p.FieldName)
	if col == "" {
		return false, eris.Errorf("sqlite: field %s not writable on %s", p.FieldName, p.EntityType)
	}

	now := time.Now().UTC()
	if p.EntityType == model.EntityCompany {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = ?, last_updated = ? WHERE id = ?`, info.Table, col),
			p.NewValue, now, p.EntityID)
	} else {
		_, err = tx.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET %s = ? WHERE id = ?`, info.Table, col),
			p.NewValue, p.EntityID)
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: approve apply %s.%s", info.Table, col)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE update_proposals SET status = ?, reviewed_by = ?, reviewed_at = ? WHERE id = ?`,
		string(model.ProposalStatusApproved), reviewedBy, now, id,
	); err != nil {
		return false, eris.Wrapf(err, "sqlite: mark approved %d", id)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, changed_at, proposal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(p.EntityType), p.EntityID, p.FieldName, p.OldValue, p.NewValue,
		string(model.SourceMarkdownSync), reviewedBy, now, id,
	); err != nil {
		return false, eris.Wrapf(err, "sqlite: audit approve %d", id)
	}

	if err := tx.Commit(); err != nil {
		return false, eris.Wrap(err, "sqlite: commit approve")
	}
	return true, nil
}

func (s *SQLiteStore) RejectProposal(ctx context.Context, id int64, reviewedBy, notes string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE update_proposals SET status = ?, reviewed_by = ?, reviewed_at = ?, notes = ?
		 WHERE id = ? AND status = ?`,
		string(model.ProposalStatusRejected), reviewedBy, time.Now().UTC(), notes,
		id, string(model.ProposalStatusPending),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: reject proposal %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) AppendAudit(ctx context.Context, e *model.AuditEntry) (int64, error) {
	if e.ChangedAt.IsZero() {
		e.ChangedAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (entity_type, entity_id, field_name, old_value, new_value, change_source, changed_by, changed_at, proposal_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(e.EntityType), e.EntityID, e.FieldName, e.OldValue, e.NewValue,
		string(e.ChangeSource), e.ChangedBy, e.ChangedAt, e.ProposalID,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: append audit")
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: last insert id")
	}
	return e.ID, nil
}

func (s *SQLiteStore) ListAudit(ctx context.Context, filter AuditFilter) ([]model.AuditEntry, error) {
	query := `SELECT id, entity_type, entity_id, field_name, old_value, new_value,
		change_source, changed_by, changed_at, proposal_id FROM audit_log WHERE 1=1`
	var args []any

	if filter.EntityType != "" {
		query += ` AND entity_type = ?`
		args = append(args, string(filter.EntityType))
	}
	if filter.EntityID != 0 {
		query += ` AND entity_id = ?`
		args = append(args, filter.EntityID)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` ORDER BY changed_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list audit")
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		var proposalID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.FieldName, &e.OldValue, &e.NewValue,
			&e.ChangeSource, &e.ChangedBy, &e.ChangedAt, &proposalID); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan audit entry")
		}
		if proposalID.Valid {
			id := proposalID.Int64
			e.ProposalID = &id
		}
		out = append(out, e)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list audit iterate")
}

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}
