// Package repo provides Postgres bindings for the accounts domain
package repo

import (
	"context"

	"instapilot/internal/modkit/repokit"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/store"
	"instapilot/internal/services/accounts/domain"
)

type (
	// PG is a Postgres binder for domain.Repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

var _ domain.Repo = (*queries)(nil)

// NewPG returns a Postgres binder for Repo
func NewPG() repokit.Binder[domain.Repo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) domain.Repo { return &queries{q: q} }

const accountCols = `a.id, a.workspace_id, a.ig_user_id, a.page_id, a.username, a.access_token, a.time_zone, a.connected_at`

func scanAccount(r store.Row) (domain.Account, error) {
	var a domain.Account
	err := r.Scan(&a.ID, &a.WorkspaceID, &a.IGUserID, &a.PageID, &a.Username, &a.AccessToken, &a.TimeZone, &a.ConnectedAt)
	return a, err
}

// ListConnected returns accounts that are still connected, oldest first
func (r *queries) ListConnected(ctx context.Context) ([]domain.Account, error) {
	out, err := store.Many(ctx, r.q, scanAccount, `
		SELECT `+accountCols+`
		FROM ig_accounts a
		WHERE a.disconnected_at IS NULL
		ORDER BY a.connected_at`)
	if err != nil {
		return nil, perr.FromPostgres(err, "accounts: list connected")
	}
	return out, nil
}

// ByID loads one connected account
func (r *queries) ByID(ctx context.Context, id string) (domain.Account, error) {
	a, err := store.One(ctx, r.q, scanAccount, `
		SELECT `+accountCols+`
		FROM ig_accounts a
		WHERE a.id = $1 AND a.disconnected_at IS NULL`, id)
	if store.IsNoRows(err) {
		return domain.Account{}, perr.NotFoundf("account %s not found", id)
	}
	if err != nil {
		return domain.Account{}, perr.FromPostgresf(err, "accounts: load %s", id)
	}
	return a, nil
}

// Candidates lists owners of platformID with their workspace's active rule count
func (r *queries) Candidates(ctx context.Context, platformID string) ([]domain.Candidate, error) {
	out, err := store.Many(ctx, r.q, func(row store.Row) (domain.Candidate, error) {
		var c domain.Candidate
		err := row.Scan(&c.ID, &c.WorkspaceID, &c.IGUserID, &c.PageID, &c.Username, &c.AccessToken,
			&c.TimeZone, &c.ConnectedAt, &c.ActiveRules)
		return c, err
	}, `
		SELECT `+accountCols+`,
			(SELECT count(*) FROM automation_rules ar
			 WHERE ar.workspace_id = a.workspace_id AND ar.is_active)::int AS active_rules
		FROM ig_accounts a
		WHERE a.disconnected_at IS NULL
		  AND (a.ig_user_id = $1 OR (a.page_id <> '' AND a.page_id = $1))`, platformID)
	if err != nil {
		return nil, perr.FromPostgresf(err, "accounts: candidates for %s", platformID)
	}
	return out, nil
}
