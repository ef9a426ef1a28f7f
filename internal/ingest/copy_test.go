package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

// fakeSink consumes the copy stream the way pgconn would: it drains the
// reader and reports a COPY tag, or fails partway through.
type fakeSink struct {
	stmt     string
	received string
	failWith error // if set, returned without draining the reader
}

func (s *fakeSink) CopyFrom(ctx context.Context, r io.Reader, sql string) (pgconn.CommandTag, error) {
	s.stmt = sql
	if s.failWith != nil {
		return pgconn.CommandTag{}, s.failWith
	}
	data, err := io.ReadAll(r)
	s.received = string(data)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	rows := strings.Count(s.received, "\n")
	return pgconn.NewCommandTag(fmt.Sprintf("COPY %d", rows)), nil
}

func TestCopyStreamSendAndFinish(t *testing.T) {
	sink := &fakeSink{}
	stream := newCopyStream(context.Background(), sink, "roads")

	records := []string{
		"a,{},POINT(1 2)\n",
		"b,{},NULL\n",
		"c,{},POINT(3 4)\n",
	}
	for _, rec := range records {
		if err := stream.send(rec); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	rows, err := stream.finish()
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	if rows != 3 {
		t.Errorf("rows = %d, want 3", rows)
	}
	if sink.received != strings.Join(records, "") {
		t.Errorf("destination received %q, want records in order", sink.received)
	}
	if !strings.Contains(sink.stmt, `COPY "roads" (name, properties, geometry) FROM STDIN`) {
		t.Errorf("unexpected copy statement: %q", sink.stmt)
	}
	if !strings.Contains(sink.stmt, "NULL 'NULL'") {
		t.Errorf("copy statement missing NULL marker: %q", sink.stmt)
	}
}

func TestCopyStreamAbortFailsTheLoad(t *testing.T) {
	sink := &fakeSink{}
	stream := newCopyStream(context.Background(), sink, "roads")

	if err := stream.send("a,{},NULL\n"); err != nil {
		t.Fatalf("send: %v", err)
	}
	stream.abort()

	// The destination driver must have seen the stream fail, not a clean
	// EOF that would finalize a half-sent file.
	<-stream.done
	if stream.err == nil {
		t.Fatal("expected the copy driver to observe an error after abort")
	}
	if !errors.Is(stream.err, errStreamAborted) {
		t.Errorf("driver error = %v, want errStreamAborted", stream.err)
	}
}

func TestCopyStreamFinishAfterAbort(t *testing.T) {
	sink := &fakeSink{}
	stream := newCopyStream(context.Background(), sink, "roads")
	stream.abort()

	if _, err := stream.finish(); err == nil {
		t.Error("finish after abort should error, the stream is already finalized")
	}
}

func TestCopyStreamAbortAfterFinishIsNoop(t *testing.T) {
	sink := &fakeSink{}
	stream := newCopyStream(context.Background(), sink, "roads")

	if _, err := stream.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	// Deferred abort on the success path must not disturb anything.
	stream.abort()
	if sink.received != "" {
		t.Errorf("unexpected data: %q", sink.received)
	}
}

func TestCopyStreamSendAfterDriverFailure(t *testing.T) {
	driverErr := errors.New("connection reset")
	sink := &fakeSink{failWith: driverErr}
	stream := newCopyStream(context.Background(), sink, "roads")

	// The driver fails without consuming anything; sends must eventually
	// surface the failure instead of blocking forever.
	var sendErr error
	for i := 0; i < 100; i++ {
		if sendErr = stream.send("a,{},NULL\n"); sendErr != nil {
			break
		}
	}
	if sendErr == nil {
		t.Fatal("expected send to fail after driver failure")
	}
	if !errors.Is(sendErr, driverErr) {
		t.Errorf("send error = %v, want wrapped %v", sendErr, driverErr)
	}

	if _, err := stream.finish(); !errors.Is(err, driverErr) {
		t.Errorf("finish error = %v, want wrapped %v", err, driverErr)
	}
}

func TestCopyStreamQuotesTableIdentifier(t *testing.T) {
	sink := &fakeSink{}
	stream := newCopyStream(context.Background(), sink, `weird"name`)
	if _, err := stream.finish(); err != nil {
		t.Fatalf("finish: %v", err)
	}
	if !strings.Contains(sink.stmt, `"weird""name"`) {
		t.Errorf("table identifier not sanitized: %q", sink.stmt)
	}
}
