// Package migrate applies the embedded Postgres and ClickHouse schema
package migrate

import (
	"context"
	"embed"
	"io/fs"
	"path"
	"sort"
	"strings"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/store"
)

//go:embed pg/*.sql
var pgFiles embed.FS

//go:embed ch/*.sql
var chFiles embed.FS

const trackingDDL = `CREATE TABLE IF NOT EXISTS schema_migrations (
	version    TEXT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PG applies pending Postgres migrations in file order, one transaction per file.
// It returns the versions applied on this run
func PG(ctx context.Context, db store.TxRunner) ([]string, error) {
	return pgFrom(ctx, db, pgFiles, "pg")
}

func pgFrom(ctx context.Context, db store.TxRunner, fsys fs.FS, dir string) ([]string, error) {
	log := logger.Named("migrate")
	if _, err := db.Exec(ctx, trackingDDL); err != nil {
		return nil, perr.FromPostgres(err, "migrate: tracking table")
	}

	applied, err := appliedVersions(ctx, db)
	if err != nil {
		return nil, err
	}

	names, err := sqlFiles(fsys, dir)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, name := range names {
		if applied[name] {
			continue
		}
		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return done, perr.Wrapf(err, perr.ErrorCodeUnknown, "migrate: read %s", name)
		}
		err = db.Tx(ctx, func(q store.RowQuerier) error {
			if _, err := q.Exec(ctx, string(body)); err != nil {
				return err
			}
			_, err := q.Exec(ctx, `INSERT INTO schema_migrations (version) VALUES ($1)`, name)
			return err
		})
		if err != nil {
			return done, perr.FromPostgresf(err, "migrate: apply %s", name)
		}
		log.Info().Str("version", name).Msg("migration applied")
		done = append(done, name)
	}
	if len(done) == 0 {
		log.Debug().Msg("schema up to date")
	}
	return done, nil
}

func appliedVersions(ctx context.Context, q store.RowQuerier) (map[string]bool, error) {
	versions, err := store.Many(ctx, q, func(r store.Row) (string, error) {
		var v string
		return v, r.Scan(&v)
	}, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, perr.FromPostgres(err, "migrate: read applied versions")
	}
	out := make(map[string]bool, len(versions))
	for _, v := range versions {
		out[v] = true
	}
	return out, nil
}

// CH applies the ClickHouse DDL. Statements are idempotent so every run replays them
func CH(ctx context.Context, c store.Clickhouse) (int, error) {
	return chFrom(ctx, c, chFiles, "ch")
}

func chFrom(ctx context.Context, c store.Clickhouse, fsys fs.FS, dir string) (int, error) {
	names, err := sqlFiles(fsys, dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, name := range names {
		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return n, perr.Wrapf(err, perr.ErrorCodeUnknown, "migrate: read %s", name)
		}
		// the native protocol takes one statement per call
		for _, stmt := range splitStatements(string(body)) {
			if err := c.Exec(ctx, stmt); err != nil {
				return n, perr.FromPostgresf(err, "migrate: ch %s", name)
			}
			n++
		}
	}
	logger.Named("migrate").Info().Int("statements", n).Msg("clickhouse schema applied")
	return n, nil
}

func sqlFiles(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeUnknown, "migrate: list %s", dir)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func splitStatements(body string) []string {
	var out []string
	for _, part := range strings.Split(body, ";") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
