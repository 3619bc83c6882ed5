package store_test

import (
	"context"
	"errors"
	"testing"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/store"
	"instapilot/internal/platform/testkit/fakedb"

	"github.com/jackc/pgx/v5"
)

type ruleRow struct {
	ID     string
	Active bool
}

func scanRule(r store.Row) (ruleRow, error) {
	var x ruleRow
	err := r.Scan(&x.ID, &x.Active)
	return x, err
}

func TestIsNoRows(t *testing.T) {
	for name, err := range map[string]error{
		"pgx":     pgx.ErrNoRows,
		"wrapped": perr.Wrap(pgx.ErrNoRows, perr.ErrorCodeDB, "read rule"),
		"helper":  perr.ErrNotFound,
	} {
		if !store.IsNoRows(err) {
			t.Fatalf("%s: want no rows", name)
		}
	}
	if store.IsNoRows(errors.New("conn reset")) || store.IsNoRows(nil) {
		t.Fatalf("other errors are not no rows")
	}
}

func TestScalar(t *testing.T) {
	q := (&fakedb.Querier{}).On("FROM automation_quota", []any{4})
	n, err := store.Scalar[int](context.Background(), q, "SELECT count FROM automation_quota WHERE rule_id = $1", "r1")
	if err != nil || n != 4 {
		t.Fatalf("want (4, nil), got (%d, %v)", n, err)
	}
	if _, err := store.Scalar[int](context.Background(), q, "SELECT 1 FROM ig_accounts"); !store.IsNoRows(err) {
		t.Fatalf("empty result should be no rows, got %v", err)
	}
}

func TestOne(t *testing.T) {
	ctx := context.Background()
	q := (&fakedb.Querier{}).
		On("WHERE id = 'r1'", []any{"r1", true}).
		On("WHERE active", []any{"r1", true}, []any{"r2", true}).
		Fail("WHERE broken", errors.New("conn reset"))

	got, err := store.One(ctx, q, scanRule, "SELECT id, active FROM automation_rules WHERE id = 'r1'")
	if err != nil || got != (ruleRow{"r1", true}) {
		t.Fatalf("unexpected %+v %v", got, err)
	}
	if _, err := store.One(ctx, q, scanRule, "SELECT id, active FROM automation_rules WHERE id = 'gone'"); !perr.IsCode(err, perr.ErrorCodeNotFound) {
		t.Fatalf("want not found, got %v", err)
	}
	if _, err := store.One(ctx, q, scanRule, "SELECT id, active FROM automation_rules WHERE active"); err == nil {
		t.Fatalf("two rows must not pass as one")
	}
	if _, err := store.One(ctx, q, scanRule, "SELECT id, active FROM automation_rules WHERE broken"); err == nil {
		t.Fatalf("query failure must surface")
	}
}

func TestMany(t *testing.T) {
	ctx := context.Background()
	q := (&fakedb.Querier{}).On("automation_rules", []any{"r1", true}, []any{"r2", false})

	out, err := store.Many(ctx, q, scanRule, "SELECT id, active FROM automation_rules")
	if err != nil || len(out) != 2 || out[1].ID != "r2" || out[1].Active {
		t.Fatalf("unexpected %+v %v", out, err)
	}
	out, err = store.Many(ctx, q, scanRule, "SELECT id, active FROM ig_accounts")
	if err != nil || len(out) != 0 {
		t.Fatalf("empty set should be empty, got %+v %v", out, err)
	}

	bad := func(store.Row) (ruleRow, error) { return ruleRow{}, errors.New("bad column") }
	if _, err := store.Many(ctx, q, bad, "SELECT id, active FROM automation_rules"); err == nil {
		t.Fatalf("scan failure must surface")
	}
}
