package ingest

// schema.go ensures the destination table shape exists before any COPY
// targets it. The shape is part of the external contract: downstream
// consumers query against the unique name, the JSONB properties (via the
// GIN index), and the geometry column.

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier runs SQL against the destination. Satisfied by *pgxpool.Pool,
// *pgxpool.Conn, *pgx.Conn, and pgx.Tx.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EnsureTable idempotently creates the destination table and its properties
// index. It is safe to call concurrently from multiple jobs targeting the
// same table: a losing racer's "already exists" failure is swallowed
// because absence-then-presence is the expected outcome. Any other failure
// is a *SchemaError and must abort before inserts begin.
func EnsureTable(ctx context.Context, q Querier, table string) error {
	if _, err := q.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS postgis"); err != nil && !isAlreadyExists(err) {
		return &SchemaError{Table: table, Err: fmt.Errorf("create postgis extension: %w", err)}
	}

	ident := pgx.Identifier{table}.Sanitize()
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR(512) NOT NULL UNIQUE,
		properties JSONB NOT NULL,
		geometry GEOMETRY,
		created_at TIMESTAMPTZ DEFAULT NOW()
	)`, ident)
	if _, err := q.Exec(ctx, ddl); err != nil && !isAlreadyExists(err) {
		return &SchemaError{Table: table, Err: err}
	}

	idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING GIN (properties)",
		pgx.Identifier{table + "_properties_idx"}.Sanitize(), ident)
	if _, err := q.Exec(ctx, idx); err != nil && !isAlreadyExists(err) {
		return &SchemaError{Table: table, Err: fmt.Errorf("create properties index: %w", err)}
	}

	return nil
}

// tableRowCount reports the current number of rows in table.
func tableRowCount(ctx context.Context, q Querier, table string) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s", pgx.Identifier{table}.Sanitize())
	if err := q.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows in %s: %w", table, err)
	}
	return count, nil
}

// isAlreadyExists reports whether err is a duplicate-object failure from a
// create-if-absent race. IF NOT EXISTS covers the common case, but two
// concurrent CREATEs can still collide inside the catalogs; those surface
// as duplicate_table, duplicate_object, or a unique violation on pg_type.
func isAlreadyExists(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "42P07", // duplicate_table
		"42710", // duplicate_object
		"23505": // unique_violation (catalog race)
		return true
	}
	return false
}
