// Package fakedb provides a scripted in-memory SQL querier for repo tests
package fakedb

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/store"
)

// Call records one statement sent to a Querier
type Call struct {
	SQL  string
	Args []any
}

// Querier is a scripted store.RowQuerier. Results are matched by the first
// registered SQL fragment contained in the statement
type Querier struct {
	mu      sync.Mutex
	results []scripted
	Calls   []Call
}

type scripted struct {
	match string
	rows  [][]any
	err   error
}

var _ store.TxRunner = (*Querier)(nil)

// On scripts the rows returned by statements containing match
func (q *Querier) On(match string, rows ...[]any) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results = append(q.results, scripted{match: match, rows: rows})
	return q
}

// Fail scripts an error for statements containing match
func (q *Querier) Fail(match string, err error) *Querier {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.results = append(q.results, scripted{match: match, err: err})
	return q
}

// Executed returns the recorded calls whose SQL contains match
func (q *Querier) Executed(match string) []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []Call
	for _, c := range q.Calls {
		if strings.Contains(c.SQL, match) {
			out = append(out, c)
		}
	}
	return out
}

func (q *Querier) lookup(sql string, args []any) scripted {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.Calls = append(q.Calls, Call{SQL: sql, Args: args})
	for _, r := range q.results {
		if strings.Contains(sql, r.match) {
			return r
		}
	}
	return scripted{}
}

// Exec implements store.RowQuerier
func (q *Querier) Exec(_ context.Context, sql string, args ...any) (store.CommandTag, error) {
	r := q.lookup(sql, args)
	if r.err != nil {
		return nil, r.err
	}
	return tag(len(r.rows)), nil
}

// Query implements store.RowQuerier
func (q *Querier) Query(_ context.Context, sql string, args ...any) (store.Rows, error) {
	r := q.lookup(sql, args)
	if r.err != nil {
		return nil, r.err
	}
	return &rows{data: r.rows, i: -1}, nil
}

// QueryRow implements store.RowQuerier
func (q *Querier) QueryRow(ctx context.Context, sql string, args ...any) store.Row {
	rs, err := q.Query(ctx, sql, args...)
	return &row{rs: rs, err: err}
}

// Tx runs fn against the same script
func (q *Querier) Tx(_ context.Context, fn func(store.RowQuerier) error) error { return fn(q) }

type tag int64

func (t tag) String() string      { return fmt.Sprintf("SCRIPTED %d", int64(t)) }
func (t tag) RowsAffected() int64 { return int64(t) }

type rows struct {
	data [][]any
	i    int
}

func (r *rows) Next() bool        { r.i++; return r.i < len(r.data) }
func (r *rows) Err() error        { return nil }
func (r *rows) Close()            {}
func (r *rows) Columns() []string { return nil }

func (r *rows) Scan(dest ...any) error {
	if r.i < 0 || r.i >= len(r.data) {
		return fmt.Errorf("fakedb: scan outside result set")
	}
	return assign(r.data[r.i], dest)
}

type row struct {
	rs  store.Rows
	err error
}

func (r *row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if !r.rs.Next() {
		return perr.ErrNotFound
	}
	return r.rs.Scan(dest...)
}

// assign copies src into the dest pointers; nil leaves the target zeroed
func assign(src []any, dest []any) error {
	if len(src) != len(dest) {
		return fmt.Errorf("fakedb: scripted %d columns, scanned %d", len(src), len(dest))
	}
	for i, d := range dest {
		dv := reflect.ValueOf(d)
		if dv.Kind() != reflect.Pointer || dv.IsNil() {
			return fmt.Errorf("fakedb: column %d: destination is not a pointer", i)
		}
		target := dv.Elem()
		if src[i] == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		sv := reflect.ValueOf(src[i])
		switch {
		case sv.Type().AssignableTo(target.Type()):
			target.Set(sv)
		case target.Kind() == reflect.Pointer && sv.Type().AssignableTo(target.Type().Elem()):
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(sv)
			target.Set(p)
		case sv.Type().ConvertibleTo(target.Type()):
			target.Set(sv.Convert(target.Type()))
		default:
			return fmt.Errorf("fakedb: column %d: cannot scan %T into %s", i, src[i], target.Type())
		}
	}
	return nil
}
