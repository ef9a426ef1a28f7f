package ingest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier records DDL and answers with scripted errors.
type fakeQuerier struct {
	mu    sync.Mutex
	execs []string

	// errFor returns the error for a given statement, nil for success.
	errFor func(sql string) error

	rowCount int64
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.mu.Lock()
	q.execs = append(q.execs, sql)
	q.mu.Unlock()
	if q.errFor != nil {
		if err := q.errFor(sql); err != nil {
			return pgconn.CommandTag{}, err
		}
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return fakeRow{count: q.rowCount}
}

type fakeRow struct {
	count int64
	err   error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) == 1 {
		if p, ok := dest[0].(*int64); ok {
			*p = r.count
		}
	}
	return nil
}

func TestEnsureTableIssuesExpectedDDL(t *testing.T) {
	q := &fakeQuerier{}
	if err := EnsureTable(context.Background(), q, "roads"); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	if len(q.execs) != 3 {
		t.Fatalf("got %d statements, want 3: %v", len(q.execs), q.execs)
	}
	if !strings.Contains(q.execs[0], "CREATE EXTENSION IF NOT EXISTS postgis") {
		t.Errorf("first statement should create postgis: %q", q.execs[0])
	}
	table := q.execs[1]
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "roads"`,
		"id UUID PRIMARY KEY DEFAULT gen_random_uuid()",
		"name VARCHAR(512) NOT NULL UNIQUE",
		"properties JSONB NOT NULL",
		"geometry GEOMETRY",
		"created_at TIMESTAMPTZ DEFAULT NOW()",
	} {
		if !strings.Contains(table, want) {
			t.Errorf("table DDL missing %q:\n%s", want, table)
		}
	}
	if !strings.Contains(q.execs[2], `CREATE INDEX IF NOT EXISTS "roads_properties_idx"`) ||
		!strings.Contains(q.execs[2], "USING GIN (properties)") {
		t.Errorf("unexpected index DDL: %q", q.execs[2])
	}
}

// TestEnsureTableConcurrent simulates two jobs racing to create the same
// table: the loser hits duplicate-object errors and must still succeed.
func TestEnsureTableConcurrent(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]bool{}

	q := &fakeQuerier{
		errFor: func(sql string) error {
			mu.Lock()
			defer mu.Unlock()
			if seen[sql] {
				// Second caller loses the race.
				return &pgconn.PgError{Code: "42P07", Message: "relation already exists"}
			}
			seen[sql] = true
			return nil
		},
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = EnsureTable(context.Background(), q, "shared")
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: unexpected error: %v", i, err)
		}
	}
}

func TestEnsureTableFatalOnOtherErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{
			name: "insufficient privilege",
			err:  &pgconn.PgError{Code: "42501", Message: "permission denied"},
		},
		{
			name: "plain connection error",
			err:  errors.New("connection refused"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &fakeQuerier{errFor: func(sql string) error {
				if strings.Contains(sql, "CREATE TABLE") {
					return tt.err
				}
				return nil
			}}

			err := EnsureTable(context.Background(), q, "roads")
			if err == nil {
				t.Fatal("expected error")
			}
			var schemaErr *SchemaError
			if !errors.As(err, &schemaErr) {
				t.Fatalf("expected *SchemaError, got %T: %v", err, err)
			}
			if schemaErr.Table != "roads" {
				t.Errorf("error not attributed to table: %q", schemaErr.Table)
			}
		})
	}
}

func TestIsAlreadyExists(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"duplicate table", &pgconn.PgError{Code: "42P07"}, true},
		{"duplicate object", &pgconn.PgError{Code: "42710"}, true},
		{"catalog unique violation", &pgconn.PgError{Code: "23505"}, true},
		{"privilege", &pgconn.PgError{Code: "42501"}, false},
		{"not a pg error", errors.New("boom"), false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAlreadyExists(tt.err); got != tt.want {
				t.Errorf("isAlreadyExists() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTableRowCount(t *testing.T) {
	q := &fakeQuerier{rowCount: 128}
	count, err := tableRowCount(context.Background(), q, "roads")
	if err != nil {
		t.Fatalf("tableRowCount: %v", err)
	}
	if count != 128 {
		t.Errorf("count = %d, want 128", count)
	}
}
