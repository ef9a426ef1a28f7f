// Package logging provides structured logging configuration using log/slog.
//
// Every ingestion job gets its own job ID; WithJob produces a logger that
// carries it through the whole job lifecycle so all entries for one file
// can be correlated.
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// Setup configures the global slog logger based on level and format.
//
// Level values: "debug", "info", "warn", "error" (default: "info")
// Format values: "text", "json" (default: "text")
//
// Use "json" format in production for machine parsing (ELK, CloudWatch, etc.)
// Use "text" format in development for human readability.
func Setup(level, format string) {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}

	var handler slog.Handler
	if strings.ToLower(format) == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithJob returns a logger carrying a job ID plus any additional fields.
//
// Usage:
//
//	logger := logging.WithJob(jobID, "path", path, "table", table)
//	logger.Info("job started")
//	// ... later ...
//	logger.Info("job completed", "rows", rows)
func WithJob(jobID string, args ...any) *slog.Logger {
	return slog.Default().With(append([]any{"job_id", jobID}, args...)...)
}
