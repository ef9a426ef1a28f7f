// Package ingest streams GeoJSON feature collections into PostGIS tables
// using the bulk-copy protocol, one transaction per source file, with
// concurrency bounded by the connection pool.
package ingest

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"geosink/internal/logging"
)

// Ingester fans a batch of GeoJSON files out across a shared connection
// pool. The pool is the only shared resource; each job exclusively owns its
// acquired connection and transaction until it exits.
type Ingester struct {
	pool    *pgxpool.Pool
	limiter *jobLimiter

	// runJob and ensureTable execute one file job and the batch-level
	// schema setup. Swappable in tests.
	runJob      func(ctx context.Context, job ingestJob) (int64, error)
	ensureTable func(ctx context.Context, q Querier, table string) error
}

// Option customizes an Ingester.
type Option func(*Ingester)

// WithMaxConcurrent overrides the job concurrency bound. The default is the
// pool's connection limit.
func WithMaxConcurrent(n int) Option {
	return func(in *Ingester) {
		in.limiter = newJobLimiter(n)
	}
}

// New creates an Ingester over pool.
func New(pool *pgxpool.Pool, opts ...Option) *Ingester {
	maxConcurrent := DefaultMaxConcurrentJobs
	if pool != nil {
		maxConcurrent = int(pool.Config().MaxConns)
	}

	in := &Ingester{
		pool:    pool,
		limiter: newJobLimiter(maxConcurrent),
	}
	in.runJob = in.executeJob
	in.ensureTable = EnsureTable

	for _, opt := range opts {
		opt(in)
	}
	return in
}

// ingestJob is one (source file, destination table) pair. It is created
// when enumeration discovers the path, executed exactly once, and folded
// into the aggregate outcome.
type ingestJob struct {
	ID    string
	Path  string
	Table string

	// ensureSchema is set when the table is derived per file and must be
	// created by the job itself. Explicit tables are ensured once, before
	// any job starts.
	ensureSchema bool
}

// Ingest loads every file under path into table. An empty table means each
// file targets a table derived from its own base name.
//
// The returned count is the total number of rows the destination accepted
// across all committed files. Each file is all-or-nothing; the batch is
// best-effort per file. When any file fails, the error is a *BatchError
// naming every failed file, and counts from committed siblings are still
// reported.
func (in *Ingester) Ingest(ctx context.Context, path string, table string) (int64, error) {
	paths, err := resolvePaths(path)
	if err != nil {
		return 0, err
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("no input files under %s", path)
	}

	// An explicit target is ensured up front: a schema failure here aborts
	// the whole batch before any insert is attempted.
	if table != "" {
		if err := in.ensureTable(ctx, in.pool, table); err != nil {
			return 0, err
		}
	}

	jobs := make([]ingestJob, 0, len(paths))
	for _, p := range paths {
		job := ingestJob{ID: uuid.New().String(), Path: p, Table: table}
		if table == "" {
			job.Table = deriveTable(p)
			job.ensureSchema = true
		}
		jobs = append(jobs, job)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		total  int64
		failed []*FileError
	)

	for _, job := range jobs {
		if err := in.limiter.acquire(ctx); err != nil {
			mu.Lock()
			failed = append(failed, &FileError{Path: job.Path, Err: err})
			mu.Unlock()
			continue
		}

		wg.Add(1)
		go func(job ingestJob) {
			defer wg.Done()
			defer in.limiter.release()

			rows, err := in.runJob(ctx, job)

			if err != nil {
				logging.WithJob(job.ID, "path", job.Path, "table", job.Table).
					Error("file ingest failed", "error", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed = append(failed, &FileError{Path: job.Path, Err: err})
				return
			}
			total += rows
		}(job)
	}
	wg.Wait()

	if len(failed) > 0 {
		return total, &BatchError{Failed: failed}
	}
	return total, nil
}

// executeJob ingests one file inside one transaction on one pooled
// connection. Any failure rolls the whole file back; the destination never
// observes a partial file.
func (in *Ingester) executeJob(ctx context.Context, job ingestJob) (int64, error) {
	logger := logging.WithJob(job.ID, "path", job.Path, "table", job.Table)
	start := time.Now()

	conn, err := in.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if job.ensureSchema {
		if err := in.ensureTable(ctx, conn, job.Table); err != nil {
			return 0, err
		}
	}

	data, err := os.ReadFile(job.Path)
	if err != nil {
		return 0, fmt.Errorf("read source file: %w", err)
	}

	fc, err := parseFeatureCollection(job.Path, data)
	if err != nil {
		return 0, err
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	// Rollback after a successful commit is a no-op. WithoutCancel keeps
	// the rollback deliverable when the job's own context is what failed.
	defer tx.Rollback(context.WithoutCancel(ctx))

	stream := newCopyStream(ctx, conn.Conn().PgConn(), job.Table)
	defer stream.abort()

	for i, feature := range fc.Features {
		record, err := encodeRow(feature, i)
		if err != nil {
			return 0, err
		}
		if err := stream.send(record); err != nil {
			return 0, err
		}
	}

	rows, err := stream.finish()
	if err != nil {
		return 0, err
	}

	// Close-and-commit is the point of no return: past the finalize above,
	// only this commit makes the rows durable.
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	logger.Info("file ingested",
		"features", len(fc.Features),
		"rows", rows,
		"duration", time.Since(start),
	)
	return rows, nil
}

// TableRowCount reports the destination table's current row count. Offered
// as an observability convenience for callers that ingest into a single
// explicit table.
func (in *Ingester) TableRowCount(ctx context.Context, table string) (int64, error) {
	return tableRowCount(ctx, in.pool, table)
}
