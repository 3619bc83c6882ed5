package store

import (
	"context"
	"fmt"
	"time"

	chx "instapilot/internal/platform/store/ch"
	"instapilot/internal/platform/store/pg"
)

const (
	pingBackoffStart = 150 * time.Millisecond
	pingBackoffMax   = 2 * time.Second
)

// openPG opens the pool and hands out the traced adapter once a ping succeeds
func openPG(ctx context.Context, conf Config, s *Store) (*pgAdapter, error) {
	cfg := conf.PG
	var tracer pg.QueryTracer
	if cfg.LogSQL {
		tracer = pg.Tracer(s.Log)
	}
	p, err := pg.Open(ctx, pg.Config{
		URL: cfg.URL, MaxConns: cfg.MaxConns, SlowMs: cfg.SlowQueryMs, AppName: conf.AppName,
	}, tracer)
	if err != nil {
		return nil, err
	}

	var lastErr error
	wait := pingBackoffStart
	for attempt := 1; attempt <= cfg.retries(); attempt++ {
		pctx, cancel := context.WithTimeout(ctx, cfg.pingTimeout())
		// ping the pool directly so boot retries stay out of the sql trace
		lastErr = p.Pool.Ping(pctx)
		cancel()
		if lastErr == nil {
			return newPGAdapter(p), nil
		}
		s.Log.Warn().Err(lastErr).Int("attempt", attempt).Dur("retry_in", wait).Msg("postgres not ready")

		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(wait):
		}
		wait = min(wait*2, pingBackoffMax)
	}
	p.Close()
	return nil, fmt.Errorf("postgres ping failed after %d attempts: %w", cfg.retries(), lastErr)
}

func openCH(ctx context.Context, cfg Config) (Clickhouse, error) {
	c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, Role: cfg.AppName})
	if err != nil {
		return nil, err
	}
	return &chAdapter{c: c}, nil
}
