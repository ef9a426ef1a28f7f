package ingest

// errors.go defines the error taxonomy for the ingestion pipeline.
//
// The attribution rules mirror the propagation policy: parse and encode
// failures belong to one file's job and carry the path plus the feature
// that caused them; schema failures for an explicit target table are fatal
// for the whole batch; a BatchError aggregates per-file outcomes so no
// failed file is ever silently dropped from the report.

import (
	"errors"
	"fmt"
	"strings"
)

// ParseError reports a source file whose content is not a well-formed
// GeoJSON FeatureCollection.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EncodeError reports a feature that could not be turned into a bulk-copy
// record. It is always attributed to the owning feature by resolved name
// and zero-based position within its source file.
type EncodeError struct {
	Name  string
	Index int
	Err   error
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode feature %q (index %d): %v", e.Name, e.Index, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }

// SchemaError reports a destination table setup failure other than
// "already exists". It aborts the batch before any insert is attempted.
type SchemaError struct {
	Table string
	Err   error
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("ensure table %s: %v", e.Table, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// FileError pairs a failed source file with its cause.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// BatchError is the aggregate outcome of a batch where at least one file
// failed. Files that committed before a sibling failed stay committed; the
// batch is best-effort per file, not atomic.
type BatchError struct {
	// Failed lists every file that did not commit, in no particular order.
	Failed []*FileError
}

func (e *BatchError) Error() string {
	if len(e.Failed) == 1 {
		return fmt.Sprintf("1 file failed: %v", e.Failed[0])
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d files failed:", len(e.Failed))
	for _, f := range e.Failed {
		b.WriteString("\n  ")
		b.WriteString(f.Error())
	}
	return b.String()
}

// Unwrap exposes the underlying per-file errors to errors.Is/As.
func (e *BatchError) Unwrap() error {
	errs := make([]error, len(e.Failed))
	for i, f := range e.Failed {
		errs[i] = f
	}
	return errors.Join(errs...)
}
