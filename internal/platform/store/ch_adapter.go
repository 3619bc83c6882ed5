package store

import (
	"context"
	"errors"

	"instapilot/internal/platform/store/ch"
)

// chAdapter narrows *ch.CH to the Clickhouse seam; Insert takes [][]any rows
type chAdapter struct{ c *ch.CH }

var _ Clickhouse = (*chAdapter)(nil)

func (a *chAdapter) Exec(ctx context.Context, sql string, args ...any) error {
	return a.c.Exec(ctx, sql, args...)
}

func (a *chAdapter) Insert(ctx context.Context, table string, data any) error {
	rows, ok := data.([][]any)
	if !ok {
		return errors.New("store: clickhouse insert wants [][]any")
	}
	return a.c.Insert(ctx, table, rows)
}

func (a *chAdapter) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	r, err := a.c.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return chRows{r}, nil
}

func (a *chAdapter) Ping(ctx context.Context) error {
	if a == nil || a.c == nil {
		return errors.New("store: nil clickhouse adapter")
	}
	return a.c.Ping(ctx)
}

func (a *chAdapter) Close() error { return a.c.Close() }

type chRows struct{ ch.Rows }

func (r chRows) Close() { _ = r.Rows.Close() }
