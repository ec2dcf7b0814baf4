package leadstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// SQLiteSchema is the DDL for the tenders table in SQLite. Dates are stored
// as RFC 3339 text and network flags as a JSON object in text.
const SQLiteSchema = `
CREATE TABLE IF NOT EXISTS tenders (
	id                     TEXT PRIMARY KEY,
	title                  TEXT,
	description            TEXT,
	customer               TEXT,
	customer_inn           TEXT,
	link                   TEXT,
	platform               TEXT,
	region                 TEXT,
	fuel_type              TEXT,
	price                  REAL,
	published_at           TEXT,
	contract_duration_days INTEGER,
	prepayment             INTEGER,
	prepayment_percentage  REAL,
	payment_deferral_days  INTEGER,
	is_sme                 INTEGER,
	required_networks      TEXT NOT NULL DEFAULT '{}',
	probability            REAL,
	recommendation         TEXT,
	processed              INTEGER NOT NULL DEFAULT 0,
	updated_at             TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tenders_processed ON tenders(processed);
`

// dateLayouts are accepted for published_at, most specific first.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05", "2006-01-02", "02.01.2006"}

// SQLiteStore is a [Store] backed by a SQLite database file.
type SQLiteStore struct {
	db *sql.DB
}

// Compile-time interface checks.
var (
	_ Store    = (*SQLiteStore)(nil)
	_ Migrator = (*SQLiteStore)(nil)
	_ Writer   = (*SQLiteStore)(nil)
)

// OpenSQLite opens the database at path. Use ":memory:" for a throwaway
// database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("leadstore: open sqlite %q: %w", path, err)
	}
	// One connection keeps ":memory:" databases shared and serialises writes.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates the tenders table.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, SQLiteSchema); err != nil {
		return fmt.Errorf("leadstore: migrate: %w", err)
	}
	return nil
}

// Ping checks the database.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("leadstore: ping: %w", err)
	}
	return nil
}

// Load returns all records ordered by ID. Unparseable dates are treated as
// missing.
func (s *SQLiteStore) Load(ctx context.Context, processedOnly bool) ([]lead.Record, error) {
	query := `SELECT ` + columns + ` FROM tenders`
	if processedOnly {
		query += ` WHERE processed <> 0`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("leadstore: load: %w", err)
	}
	defer rows.Close()

	var records []lead.Record
	for rows.Next() {
		var (
			r         lead.Record
			published sql.NullString
			networks  sql.NullString
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description,
			&r.Customer, &r.CustomerINN, &r.Link,
			&r.Platform, &r.Region, &r.FuelType,
			&r.Price, &published, &r.ContractDurationDays, &r.Prepayment,
			&r.PrepaymentPercentage, &r.PaymentDeferralDays, &r.SME,
			&networks, &r.Probability, &r.Recommendation, &r.Processed,
		); err != nil {
			return nil, fmt.Errorf("leadstore: load scan: %w", err)
		}
		r.PublishedAt = parseDate(published.String)
		if r.RequiredNetworks, err = decodeNetworks([]byte(networks.String)); err != nil {
			return nil, fmt.Errorf("leadstore: load %q: %w", r.ID, err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leadstore: load: %w", err)
	}
	return records, nil
}

// Regions returns the distinct regions.
func (s *SQLiteStore) Regions(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "region")
}

// FuelTypes returns the distinct fuel types.
func (s *SQLiteStore) FuelTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "fuel_type")
}

func (s *SQLiteStore) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM tenders WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s`, column)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("leadstore: distinct %s: %w", column, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("leadstore: distinct %s scan: %w", column, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leadstore: distinct %s: %w", column, err)
	}
	return out, nil
}

// Save upserts records by ID in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, records ...lead.Record) error {
	const query = `
		INSERT INTO tenders (
			id, title, description, customer, customer_inn, link, platform,
			region, fuel_type, price, published_at, contract_duration_days,
			prepayment, prepayment_percentage, payment_deferral_days, is_sme,
			required_networks, probability, recommendation, processed, updated_at
		) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			customer = excluded.customer,
			customer_inn = excluded.customer_inn,
			link = excluded.link,
			platform = excluded.platform,
			region = excluded.region,
			fuel_type = excluded.fuel_type,
			price = excluded.price,
			published_at = excluded.published_at,
			contract_duration_days = excluded.contract_duration_days,
			prepayment = excluded.prepayment,
			prepayment_percentage = excluded.prepayment_percentage,
			payment_deferral_days = excluded.payment_deferral_days,
			is_sme = excluded.is_sme,
			required_networks = excluded.required_networks,
			probability = excluded.probability,
			recommendation = excluded.recommendation,
			processed = excluded.processed,
			updated_at = excluded.updated_at`

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("leadstore: save: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("leadstore: save: record without id")
		}
		networks, err := encodeNetworks(r.RequiredNetworks)
		if err != nil {
			return err
		}
		var published *string
		if r.PublishedAt != nil {
			v := r.PublishedAt.UTC().Format(time.RFC3339)
			published = &v
		}
		if _, err := tx.ExecContext(ctx, query,
			r.ID, r.Title, r.Description, r.Customer, r.CustomerINN, r.Link, r.Platform,
			r.Region, r.FuelType, r.Price, published, r.ContractDurationDays,
			r.Prepayment, r.PrepaymentPercentage, r.PaymentDeferralDays, r.SME,
			string(networks), r.Probability, r.Recommendation, r.Processed, now,
		); err != nil {
			return fmt.Errorf("leadstore: save %q: %w", r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("leadstore: save commit: %w", err)
	}
	return nil
}

func parseDate(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
