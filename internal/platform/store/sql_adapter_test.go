package store

import (
	"context"
	"errors"
	"testing"

	"instapilot/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type scanFunc func(dest ...any) error

func (f scanFunc) Scan(dest ...any) error { return f(dest...) }

// pgxStub answers every statement the same way
type pgxStub struct {
	tag  string
	err  error
	rows pgx.Rows
	row  scanFunc
}

func (s pgxStub) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(s.tag), s.err
}

func (s pgxStub) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return s.rows, s.err
}

func (s pgxStub) QueryRow(context.Context, string, ...any) pgx.Row { return s.row }

type recordTracer struct{ events []pg.QueryEvent }

func (r *recordTracer) OnQuery(_ context.Context, ev pg.QueryEvent) { r.events = append(r.events, ev) }

func TestTracedExecReportsEachStatement(t *testing.T) {
	rec := &recordTracer{}
	q := traced{q: pgxStub{tag: "UPDATE 3"}, tracer: rec, slowMs: 0}

	ct, err := q.Exec(context.Background(), "UPDATE automation_rules SET is_active = false WHERE id = ANY($1)", []string{"r1"})
	if err != nil || ct.RowsAffected() != 3 || ct.String() != "UPDATE 3" {
		t.Fatalf("unexpected tag %v %v", ct, err)
	}
	if args, _ := rec.events[0].Args.([]any); len(rec.events) != 1 || !rec.events[0].Slow || len(args) != 1 {
		t.Fatalf("a zero threshold marks every statement slow: %+v", rec.events)
	}

	q = traced{q: pgxStub{err: errors.New("conn reset")}, tracer: rec, slowMs: -1}
	if _, err := q.Exec(context.Background(), "DELETE FROM automation_quota"); err == nil {
		t.Fatalf("driver error must surface")
	}
	if ev := rec.events[1]; ev.Slow || ev.Err == nil {
		t.Fatalf("negative threshold disables slow marking and the error is kept: %+v", ev)
	}
}

func TestTracedQueryRowReportsAfterScan(t *testing.T) {
	rec := &recordTracer{}
	scanErr := errors.New("no rows")
	q := traced{q: pgxStub{row: func(...any) error { return scanErr }}, tracer: rec}

	r := q.QueryRow(context.Background(), "SELECT count FROM automation_quota WHERE rule_id = $1", "r1")
	if len(rec.events) != 0 {
		t.Fatalf("nothing is reported before the scan")
	}
	if err := r.Scan(new(int)); !errors.Is(err, scanErr) {
		t.Fatalf("want scan error, got %v", err)
	}
	if len(rec.events) != 1 || !errors.Is(rec.events[0].Err, scanErr) {
		t.Fatalf("scan error should be traced: %+v", rec.events)
	}
}

func TestTracedWithoutTracer(t *testing.T) {
	q := traced{q: pgxStub{tag: "INSERT 0 1", err: errors.New("down")}}
	if _, err := q.Query(context.Background(), "SELECT 1"); err == nil {
		t.Fatalf("query error must surface")
	}
	if _, err := q.Exec(context.Background(), "INSERT INTO automation_audit DEFAULT VALUES"); err == nil {
		t.Fatalf("exec error must surface")
	}
}

func TestPingNilAdapter(t *testing.T) {
	var a *pgAdapter
	if err := a.Ping(context.Background()); err == nil {
		t.Fatalf("nil adapter must not report healthy")
	}
}
