package issueregistry

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultPostgresTable = "licensekit_issued"

// validIdentifier matches safe PostgreSQL identifiers (letters, digits, underscores).
var validIdentifier = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresOption configures a PostgresRegistry.
type PostgresOption func(*PostgresRegistry)

// WithTableName sets the PostgreSQL table name. Default: "licensekit_issued".
func WithTableName(name string) PostgresOption {
	return func(r *PostgresRegistry) {
		r.tableName = name
	}
}

// PostgresRegistry implements Registry using PostgreSQL.
type PostgresRegistry struct {
	pool      *pgxpool.Pool
	tableName string
}

// NewPostgresRegistry creates a new PostgreSQL-backed issuance registry.
// It auto-creates the table and indexes on initialization.
func NewPostgresRegistry(ctx context.Context, pool *pgxpool.Pool, opts ...PostgresOption) (*PostgresRegistry, error) {
	r := &PostgresRegistry{
		pool:      pool,
		tableName: defaultPostgresTable,
	}
	for _, opt := range opts {
		opt(r)
	}
	if !validIdentifier.MatchString(r.tableName) {
		return nil, fmt.Errorf("invalid table name %q: must match [a-zA-Z_][a-zA-Z0-9_]*", r.tableName)
	}
	if err := r.ensureTable(ctx); err != nil {
		return nil, fmt.Errorf("create table: %w", err)
	}
	return r, nil
}

func (r *PostgresRegistry) ensureTable(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			license_id   TEXT PRIMARY KEY,
			product_id   TEXT NOT NULL,
			product      TEXT NOT NULL DEFAULT '',
			customer     TEXT NOT NULL DEFAULT '',
			email        TEXT NOT NULL DEFAULT '',
			type         TEXT NOT NULL DEFAULT '',
			quantity     INTEGER NOT NULL DEFAULT 1,
			expires_at   TIMESTAMPTZ NOT NULL,
			license_path TEXT NOT NULL DEFAULT '',
			issued_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_%s_product_id_issued
			ON %s (product_id, issued_at);
	`, r.tableName, r.tableName, r.tableName)
	_, err := r.pool.Exec(ctx, query)
	return err
}

func (r *PostgresRegistry) Record(ctx context.Context, lic IssuedLicense) (*IssuedLicense, error) {
	now := time.Now()
	query := fmt.Sprintf(`
		INSERT INTO %s (license_id, product_id, product, customer, email, type, quantity, expires_at, license_path, issued_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (license_id) DO UPDATE SET
			product_id = EXCLUDED.product_id,
			product = EXCLUDED.product,
			customer = EXCLUDED.customer,
			email = EXCLUDED.email,
			type = EXCLUDED.type,
			quantity = EXCLUDED.quantity,
			expires_at = EXCLUDED.expires_at,
			license_path = EXCLUDED.license_path,
			issued_at = EXCLUDED.issued_at
		RETURNING issued_at
	`, r.tableName)

	err := r.pool.QueryRow(ctx, query,
		lic.LicenseID, lic.ProductID, lic.Product, lic.Customer, lic.Email,
		lic.Type, lic.Quantity, lic.ExpiresAt, lic.LicensePath, now,
	).Scan(&lic.IssuedAt)
	if err != nil {
		return nil, fmt.Errorf("record issuance: %w", err)
	}
	return &lic, nil
}

func (r *PostgresRegistry) Get(ctx context.Context, licenseID string) (*IssuedLicense, error) {
	query := fmt.Sprintf(`
		SELECT license_id, product_id, product, customer, email, type, quantity, expires_at, license_path, issued_at
		FROM %s WHERE license_id = $1
	`, r.tableName)

	var lic IssuedLicense
	err := r.pool.QueryRow(ctx, query, licenseID).Scan(
		&lic.LicenseID, &lic.ProductID, &lic.Product, &lic.Customer, &lic.Email,
		&lic.Type, &lic.Quantity, &lic.ExpiresAt, &lic.LicensePath, &lic.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get issuance: %w", err)
	}
	return &lic, nil
}

func (r *PostgresRegistry) List(ctx context.Context, productID string) ([]IssuedLicense, error) {
	query := fmt.Sprintf(`
		SELECT license_id, product_id, product, customer, email, type, quantity, expires_at, license_path, issued_at
		FROM %s WHERE product_id = $1 ORDER BY issued_at
	`, r.tableName)

	rows, err := r.pool.Query(ctx, query, productID)
	if err != nil {
		return nil, fmt.Errorf("list issuances: %w", err)
	}
	defer rows.Close()

	var lics []IssuedLicense
	for rows.Next() {
		var lic IssuedLicense
		if err := rows.Scan(&lic.LicenseID, &lic.ProductID, &lic.Product, &lic.Customer,
			&lic.Email, &lic.Type, &lic.Quantity, &lic.ExpiresAt, &lic.LicensePath, &lic.IssuedAt); err != nil {
			return nil, fmt.Errorf("scan issuance: %w", err)
		}
		lics = append(lics, lic)
	}
	return lics, rows.Err()
}

func (r *PostgresRegistry) Count(ctx context.Context, productID string) (int, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE product_id = $1`, r.tableName)
	var count int
	err := r.pool.QueryRow(ctx, query, productID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count issuances: %w", err)
	}
	return count, nil
}

func (r *PostgresRegistry) Prune(ctx context.Context, productID string, issuedBefore time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE product_id = $1 AND issued_at < $2`, r.tableName)
	tag, err := r.pool.Exec(ctx, query, productID, issuedBefore)
	if err != nil {
		return 0, fmt.Errorf("prune issuances: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *PostgresRegistry) Close(_ context.Context) error {
	return nil // user manages the pgxpool.Pool lifecycle
}
