package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"geosink/internal/config"
	"geosink/internal/ingest"
	"geosink/internal/logging"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <file-or-directory> [table]\n", os.Args[0])
		os.Exit(2)
	}
	inputPath := os.Args[1]
	table := ""
	if len(os.Args) == 3 {
		table = os.Args[2]
	}

	slog.Info("configuration loaded",
		"db_max_conns", cfg.Database.MaxConns,
		"ingest_max_concurrent", cfg.Ingest.MaxConcurrent,
		"ingest_timeout", cfg.Ingest.Timeout,
	)

	// Parse and configure connection pool
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		slog.Error("failed to parse database URL", "error", err)
		os.Exit(1)
	}

	// Apply pool configuration from config
	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	// Cancel on SIGINT/SIGTERM so in-flight transactions roll back instead
	// of half-committing.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		slog.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	opts := []ingest.Option{}
	if cfg.Ingest.MaxConcurrent > 0 {
		opts = append(opts, ingest.WithMaxConcurrent(cfg.Ingest.MaxConcurrent))
	}
	ingester := ingest.New(pool, opts...)

	ingestCtx, cancel := context.WithTimeout(ctx, cfg.Ingest.Timeout)
	defer cancel()

	slog.Info("ingest starting", "path", inputPath, "table", table)
	rows, err := ingester.Ingest(ingestCtx, inputPath, table)
	if err != nil {
		var batchErr *ingest.BatchError
		if errors.As(err, &batchErr) {
			slog.Error("ingest finished with failures",
				"rows_loaded", rows,
				"failed_files", len(batchErr.Failed),
				"error", err,
			)
		} else {
			slog.Error("ingest failed", "error", err)
		}
		os.Exit(1)
	}

	slog.Info("ingest complete", "rows_loaded", rows)

	// With a single explicit table, report its resulting row count.
	if table != "" {
		if count, err := ingester.TableRowCount(ctx, table); err == nil {
			slog.Info("destination table", "table", table, "row_count", count)
		}
	}
}
