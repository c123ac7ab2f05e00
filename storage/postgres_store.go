package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"lead-harvester/models"
)

// PostgresStore persists leads to PostgreSQL. Every call checks a
// connection out of the database/sql pool for that operation only.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresStore.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(time.Minute)

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	ps := &PostgresStore{db: db}
	if err := ps.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}
	return ps, nil
}

func (ps *PostgresStore) migrate(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS leads (
			id                    BIGSERIAL PRIMARY KEY,
			fingerprint           CHAR(64)     UNIQUE NOT NULL,
			title                 TEXT         NOT NULL DEFAULT '',
			price                 TEXT         NOT NULL DEFAULT '',
			location              TEXT         NOT NULL DEFAULT '',
			contact               TEXT         NOT NULL DEFAULT '',
			listing_url           TEXT         NOT NULL DEFAULT '',
			description           TEXT         NOT NULL DEFAULT '',
			viable                BOOLEAN      NOT NULL DEFAULT FALSE,
			viability_reason      TEXT         NOT NULL DEFAULT '',
			viability_rating      SMALLINT     NOT NULL DEFAULT 0,
			qualification_factors TEXT[]       NOT NULL DEFAULT '{}',
			status                VARCHAR(16)  NOT NULL DEFAULT 'New',
			priority_score        SMALLINT     NOT NULL DEFAULT 0,
			created_at            TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS agent_logs (
			id          BIGSERIAL PRIMARY KEY,
			fingerprint CHAR(64)    NOT NULL,
			agency_name TEXT        NOT NULL DEFAULT '',
			title       TEXT        NOT NULL DEFAULT '',
			price       TEXT        NOT NULL DEFAULT '',
			location    TEXT        NOT NULL DEFAULT '',
			url         TEXT        NOT NULL DEFAULT '',
			contact     TEXT        NOT NULL DEFAULT '',
			reason      TEXT        NOT NULL DEFAULT '',
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS seen_hashes (
			hash       CHAR(64)    PRIMARY KEY,
			source     VARCHAR(32) NOT NULL DEFAULT '',
			first_seen TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_leads_priority     ON leads(priority_score DESC, viability_rating DESC);
		CREATE INDEX IF NOT EXISTS idx_leads_status       ON leads(status);
		CREATE INDEX IF NOT EXISTS idx_agent_fingerprint  ON agent_logs(fingerprint);
	`)
	return err
}

func (ps *PostgresStore) UpsertLead(ctx context.Context, l *models.Lead) (int64, error) {
	status := l.Status
	if status == "" {
		status = models.StatusNew
	}
	factors := l.QualificationFactors
	if factors == nil {
		factors = []string{}
	}
	var id int64
	err := ps.db.QueryRowContext(ctx, `
		INSERT INTO leads (fingerprint, title, price, location, contact, listing_url, description,
			viable, viability_reason, viability_rating, qualification_factors, status, priority_score)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (fingerprint) DO UPDATE SET fingerprint = EXCLUDED.fingerprint
		RETURNING id
	`, l.Fingerprint, l.Title, l.Price, l.Location, l.Contact, l.ListingURL, l.Description,
		l.Viable, l.ViabilityReason, l.ViabilityRating, pq.Array(factors), string(status), l.PriorityScore,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("postgres: upsert lead: %w", err)
	}
	return id, nil
}

func (ps *PostgresStore) HasSeenFingerprint(ctx context.Context, hash string) (bool, error) {
	var seen bool
	err := ps.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM seen_hashes WHERE hash = $1)
		    OR EXISTS (SELECT 1 FROM leads WHERE fingerprint = $1)
		    OR EXISTS (SELECT 1 FROM agent_logs WHERE fingerprint = $1)
	`, hash).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("postgres: seen lookup: %w", err)
	}
	return seen, nil
}

func (ps *PostgresStore) RecordFingerprint(ctx context.Context, hash string, source models.SourceKind) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO seen_hashes (hash, source) VALUES ($1, $2)
		ON CONFLICT (hash) DO NOTHING
	`, hash, string(source))
	if err != nil {
		return fmt.Errorf("postgres: record fingerprint: %w", err)
	}
	return nil
}

func (ps *PostgresStore) RecordAgentListing(ctx context.Context, a *models.AgentListing) error {
	_, err := ps.db.ExecContext(ctx, `
		INSERT INTO agent_logs (fingerprint, agency_name, title, price, location, url, contact, reason)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, a.Fingerprint, a.AgencyName, a.Title, a.Price, a.Location, a.URL, a.Contact, a.Reason)
	if err != nil {
		return fmt.Errorf("postgres: record agent listing: %w", err)
	}
	return nil
}

func (ps *PostgresStore) ListLeadsByPriorityDesc(ctx context.Context, limit int) ([]*models.Lead, error) {
	var lim sql.NullInt64
	if limit > 0 {
		lim = sql.NullInt64{Int64: int64(limit), Valid: true}
	}
	rows, err := ps.db.QueryContext(ctx, `
		SELECT id, fingerprint, title, price, location, contact, listing_url, description,
			viable, viability_reason, viability_rating, qualification_factors, status,
			priority_score, created_at
		FROM leads
		ORDER BY priority_score DESC, viability_rating DESC, id ASC
		LIMIT $1
	`, lim)
	if err != nil {
		return nil, fmt.Errorf("postgres: list leads: %w", err)
	}
	defer rows.Close()

	var leads []*models.Lead
	for rows.Next() {
		l := &models.Lead{}
		var status string
		if err := rows.Scan(
			&l.ID, &l.Fingerprint, &l.Title, &l.Price, &l.Location, &l.Contact, &l.ListingURL,
			&l.Description, &l.Viable, &l.ViabilityReason, &l.ViabilityRating,
			pq.Array(&l.QualificationFactors), &status, &l.PriorityScore, &l.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan lead: %w", err)
		}
		l.Status = models.LeadStatus(status)
		leads = append(leads, l)
	}
	return leads, rows.Err()
}

func (ps *PostgresStore) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	res, err := ps.db.ExecContext(ctx, `UPDATE leads SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: update status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: id %d", ErrLeadNotFound, id)
	}
	return nil
}

func (ps *PostgresStore) Reset(ctx context.Context) error {
	_, err := ps.db.ExecContext(ctx, `TRUNCATE leads, agent_logs, seen_hashes RESTART IDENTITY`)
	if err != nil {
		return fmt.Errorf("postgres: reset: %w", err)
	}
	return nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.db.PingContext(ctx)
}

func (ps *PostgresStore) Close() error {
	return ps.db.Close()
}
