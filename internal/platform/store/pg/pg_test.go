package pg

import (
	"context"
	"errors"
	"testing"

	"instapilot/internal/platform/testkit"

	"github.com/jackc/pgx/v5/pgxpool"
)

func swapPool(t *testing.T, fn func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error)) {
	testkit.Swap(t, &newPool, fn)
}

func TestOpenParseError(t *testing.T) {
	if _, err := Open(context.Background(), Config{URL: "://bad"}, nil); err == nil {
		t.Fatalf("bad url must fail")
	}
}

func TestOpenAppliesConfig(t *testing.T) {
	var seen *pgxpool.Config
	swapPool(t, func(_ context.Context, c *pgxpool.Config) (*pgxpool.Pool, error) {
		seen = c
		return &pgxpool.Pool{}, nil
	})
	p, err := Open(context.Background(), Config{
		URL: "postgres://u:p@db:5432/instapilot?sslmode=disable", MaxConns: 7, SlowMs: 250, AppName: "instapilot",
	}, nil)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if seen.MaxConns != 7 || seen.ConnConfig.RuntimeParams["application_name"] != "instapilot" {
		t.Fatalf("pool config not applied: max=%d params=%v", seen.MaxConns, seen.ConnConfig.RuntimeParams)
	}
	if p.SlowMs != 250 || p.Pool == nil {
		t.Fatalf("unexpected client %+v", p)
	}
}

func TestOpenPoolError(t *testing.T) {
	swapPool(t, func(context.Context, *pgxpool.Config) (*pgxpool.Pool, error) { return nil, errors.New("boom") })
	if _, err := Open(context.Background(), Config{URL: "postgres://u:p@db:5432/instapilot"}, nil); err == nil {
		t.Fatalf("pool error must surface")
	}
}

func TestCloseNilSafe(t *testing.T) {
	var p *PG
	p.Close()
	(&PG{}).Close()
}
