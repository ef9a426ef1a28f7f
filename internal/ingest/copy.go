package ingest

// copy.go drives the server-side bulk-copy protocol. The stream is a
// single-use scoped resource: every exit path must end in exactly one of
// finish (finalize the load) or abort (fail the load so the surrounding
// transaction can roll back). Forgetting to finalize leaves the COPY open
// and the load incomplete, so the ingester pairs every stream with a
// deferred abort.

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// copyColumns is the destination column order every record must follow.
var copyColumns = []string{"name", "properties", "geometry"}

// copySink is the narrow slice of pgconn.PgConn the stream needs.
// Satisfied by *pgconn.PgConn.
type copySink interface {
	CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error)
}

// errStreamAborted is the cause handed to the pipe when the producer side
// gives up mid-stream.
var errStreamAborted = errors.New("bulk copy stream aborted")

// copyStream feeds pre-encoded records into a COPY ... FROM STDIN channel.
// Records are forwarded in the order sent; send blocks on backpressure from
// the destination.
type copyStream struct {
	pw   *io.PipeWriter
	done chan struct{}

	// set by the driver goroutine before done closes
	tag pgconn.CommandTag
	err error

	finished bool
}

// newCopyStream opens a bulk-copy channel on sink targeting table. The
// returned stream owns a goroutine that runs the COPY until finish or abort
// is called.
func newCopyStream(ctx context.Context, sink copySink, table string) *copyStream {
	stmt := fmt.Sprintf(
		"COPY %s (%s) FROM STDIN (FORMAT csv, NULL 'NULL')",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(copyColumns, ", "),
	)

	pr, pw := io.Pipe()
	cs := &copyStream{pw: pw, done: make(chan struct{})}

	go func() {
		defer close(cs.done)
		cs.tag, cs.err = sink.CopyFrom(ctx, pr, stmt)
		// If the COPY fails before the producer is done, release any
		// blocked send instead of leaving it stuck on the pipe.
		if cs.err != nil {
			pr.CloseWithError(cs.err)
		}
	}()

	return cs
}

// send forwards one record to the destination. A send failure poisons the
// whole channel; the caller must abort and fail the file.
func (cs *copyStream) send(record string) error {
	if _, err := io.WriteString(cs.pw, record); err != nil {
		return fmt.Errorf("send record: %w", err)
	}
	return nil
}

// finish finalizes the channel and reports how many rows the destination
// accepted. It must be called exactly once on the success path.
func (cs *copyStream) finish() (int64, error) {
	if cs.finished {
		return 0, errors.New("bulk copy stream already finalized")
	}
	cs.finished = true

	cs.pw.Close()
	<-cs.done
	if cs.err != nil {
		return 0, fmt.Errorf("finalize copy: %w", cs.err)
	}
	return cs.tag.RowsAffected(), nil
}

// abort tears the channel down so the destination never observes a
// half-sent file. Safe to call after finish; it then does nothing, which
// makes it suitable for a defer guarding every early return.
func (cs *copyStream) abort() {
	if cs.finished {
		return
	}
	cs.finished = true

	cs.pw.CloseWithError(errStreamAborted)
	<-cs.done
}
