package leadstore

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/MrWong99/leadscout/pkg/lead"
)

// PostgresSchema is the SQL DDL for the tenders table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const PostgresSchema = `
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
    price                  DOUBLE PRECISION,
    published_at           TIMESTAMPTZ,
    contract_duration_days INTEGER,
    prepayment             BOOLEAN,
    prepayment_percentage  DOUBLE PRECISION,
    payment_deferral_days  INTEGER,
    is_sme                 BOOLEAN,
    required_networks      JSONB NOT NULL DEFAULT '{}',
    probability            DOUBLE PRECISION,
    recommendation         TEXT,
    processed              BOOLEAN NOT NULL DEFAULT false,
    updated_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tenders_processed ON tenders(processed);
CREATE INDEX IF NOT EXISTS idx_tenders_region ON tenders(region);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

// PostgresStore is a [Store] backed by a PostgreSQL database. Network flags
// are stored as a JSONB object.
type PostgresStore struct {
	db DB
}

// Compile-time interface checks.
var (
	_ Store    = (*PostgresStore)(nil)
	_ Migrator = (*PostgresStore)(nil)
	_ Writer   = (*PostgresStore)(nil)
)

// NewPostgresStore creates a [PostgresStore] on the given connection or
// pool. Call [PostgresStore.Migrate] to ensure the schema exists.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres connects a pool to dsn and verifies it with a ping. The
// caller closes the returned pool.
func OpenPostgres(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("leadstore: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("leadstore: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("leadstore: ping: %w", err)
	}
	return pool, nil
}

// Migrate executes [PostgresSchema].
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("leadstore: migrate: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("leadstore: ping: %w", err)
	}
	return nil
}

// Load returns all records ordered by ID.
func (s *PostgresStore) Load(ctx context.Context, processedOnly bool) ([]lead.Record, error) {
	query := `SELECT ` + columns + ` FROM tenders`
	if processedOnly {
		query += ` WHERE processed`
	}
	query += ` ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("leadstore: load: %w", err)
	}
	defer rows.Close()

	var records []lead.Record
	for rows.Next() {
		var (
			r        lead.Record
			networks []byte
		)
		if err := rows.Scan(
			&r.ID, &r.Title, &r.Description,
			&r.Customer, &r.CustomerINN, &r.Link,
			&r.Platform, &r.Region, &r.FuelType,
			&r.Price, &r.PublishedAt, &r.ContractDurationDays, &r.Prepayment,
			&r.PrepaymentPercentage, &r.PaymentDeferralDays, &r.SME,
			&networks, &r.Probability, &r.Recommendation, &r.Processed,
		); err != nil {
			return nil, fmt.Errorf("leadstore: load scan: %w", err)
		}
		if r.RequiredNetworks, err = decodeNetworks(networks); err != nil {
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
func (s *PostgresStore) Regions(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "region")
}

// FuelTypes returns the distinct fuel types.
func (s *PostgresStore) FuelTypes(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "fuel_type")
}

// distinct lists the values of a fixed column; column is never user input.
func (s *PostgresStore) distinct(ctx context.Context, column string) ([]string, error) {
	query := fmt.Sprintf(`SELECT DISTINCT %[1]s FROM tenders WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s`, column)
	rows, err := s.db.Query(ctx, query)
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

// Save upserts records by ID.
func (s *PostgresStore) Save(ctx context.Context, records ...lead.Record) error {
	const query = `
		INSERT INTO tenders (
			id, title, description, customer, customer_inn, link, platform,
			region, fuel_type, price, published_at, contract_duration_days,
			prepayment, prepayment_percentage, payment_deferral_days, is_sme,
			required_networks, probability, recommendation, processed
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			customer = EXCLUDED.customer,
			customer_inn = EXCLUDED.customer_inn,
			link = EXCLUDED.link,
			platform = EXCLUDED.platform,
			region = EXCLUDED.region,
			fuel_type = EXCLUDED.fuel_type,
			price = EXCLUDED.price,
			published_at = EXCLUDED.published_at,
			contract_duration_days = EXCLUDED.contract_duration_days,
			prepayment = EXCLUDED.prepayment,
			prepayment_percentage = EXCLUDED.prepayment_percentage,
			payment_deferral_days = EXCLUDED.payment_deferral_days,
			is_sme = EXCLUDED.is_sme,
			required_networks = EXCLUDED.required_networks,
			probability = EXCLUDED.probability,
			recommendation = EXCLUDED.recommendation,
			processed = EXCLUDED.processed,
			updated_at = now()`

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("leadstore: save: record without id")
		}
		networks, err := encodeNetworks(r.RequiredNetworks)
		if err != nil {
			return err
		}
		var published *time.Time
		if r.PublishedAt != nil {
			t := r.PublishedAt.UTC()
			published = &t
		}
		if _, err := s.db.Exec(ctx, query,
			r.ID, r.Title, r.Description, r.Customer, r.CustomerINN, r.Link, r.Platform,
			r.Region, r.FuelType, r.Price, published, r.ContractDurationDays,
			r.Prepayment, r.PrepaymentPercentage, r.PaymentDeferralDays, r.SME,
			networks, r.Probability, r.Recommendation, r.Processed,
		); err != nil {
			return fmt.Errorf("leadstore: save %q: %w", r.ID, err)
		}
	}
	return nil
}
