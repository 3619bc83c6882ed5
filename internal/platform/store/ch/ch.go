// Package ch provides a clickhouse client
package ch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	"instapilot/internal/core/version"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures clickhouse client
type Config struct {
	URL  string
	Role string

	DialTimeout time.Duration
}

// Rows is the driver result set
type Rows = driver.Rows

// ErrClosed is returned by calls on a client without a connection
var ErrClosed = errors.New("ch: no connection")

// CH wraps a native clickhouse connection
type CH struct {
	conn driver.Conn
}

// Open parses the DSN and builds a lazy connection; nothing is dialed until first use
func Open(_ context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("ch: parse dsn: %w", err)
	}
	opts.ClientInfo = clientInfo(cfg.Role, version.Info().Version)
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("ch: open: %w", err)
	}
	return &CH{conn: conn}, nil
}

// Exec runs a statement that returns no rows (DDL, mutations)
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	if c == nil || c.conn == nil {
		return ErrClosed
	}
	return c.conn.Exec(ctx, sql, args...)
}

// Insert appends rows to table in one batch; each row is in table column order
func (c *CH) Insert(ctx context.Context, table string, rows [][]any) error {
	if c == nil || c.conn == nil {
		return ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}
	batch, err := c.conn.PrepareBatch(ctx, "INSERT INTO "+table)
	if err != nil {
		return fmt.Errorf("ch: prepare %s: %w", table, err)
	}
	defer func() { _ = batch.Abort() }()

	for i, row := range rows {
		if err := batch.Append(row...); err != nil {
			return fmt.Errorf("ch: append %s row %d: %w", table, i, err)
		}
	}
	return batch.Send()
}

// Query runs a query and returns driver rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	if c == nil || c.conn == nil {
		return nil, ErrClosed
	}
	return c.conn.Query(ctx, sql, args...)
}

// Ping checks the server is reachable
func (c *CH) Ping(ctx context.Context) error {
	if c == nil || c.conn == nil {
		return ErrClosed
	}
	return c.conn.Ping(ctx)
}

// Close closes resources
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// clientInfo tags sessions in system.query_log with the process role and build
func clientInfo(role, tag string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	commit := "unknown"
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				commit = s.Value[:7]
			}
		}
	}
	products := []struct{ Name, Version string }{
		{"instapilot", tag},
		{"role", role},
		{"go", runtime.Version()},
		{"commit", commit},
		{"host", host},
	}
	for i := range products {
		products[i].Version = strings.TrimSpace(products[i].Version)
	}
	return clickhouse.ClientInfo{Products: products}
}
