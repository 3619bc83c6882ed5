// Package repo persists polling state and publishes change events through Postgres
package repo

import (
	"context"
	"encoding/json"
	"time"

	"instapilot/internal/modkit/repokit"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/store"
	"instapilot/internal/services/poller/domain"
)

// ChangeChannel is the NOTIFY channel carrying change events
const ChangeChannel = "ig_metrics_changed"

// Repo is the poller's storage surface
type Repo interface {
	domain.StateStore
	domain.ChangeSink
}

type (
	// PG is a Postgres binder for Repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

var _ Repo = (*queries)(nil)

// NewPG returns a Postgres binder for Repo
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind implements repokit.Binder
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// Load returns the persisted state for accountID
func (r *queries) Load(ctx context.Context, accountID string) (domain.PollState, bool, error) {
	st, err := store.One(ctx, r.q, func(row store.Row) (domain.PollState, error) {
		var (
			st               domain.PollState
			activity, polled *time.Time
			tier             string
		)
		err := row.Scan(&st.AccountID, &st.HasSnapshot, &st.LastFollowerCount, &st.LastMediaCount,
			&st.LastEngagement.AvgLikes, &st.LastEngagement.AvgComments, &st.ConsecutiveNoChange,
			&activity, &polled, &tier)
		if activity != nil {
			st.LastActivityAt = *activity
		}
		if polled != nil {
			st.LastPolledAt = *polled
		}
		st.Tier = domain.Tier(tier)
		return st, err
	}, `
		SELECT account_id, has_snapshot, last_follower_count, last_media_count,
			avg_likes, avg_comments, consecutive_no_change,
			last_activity_at, last_polled_at, tier
		FROM ig_poll_state
		WHERE account_id = $1`, accountID)
	if store.IsNoRows(err) {
		return domain.PollState{}, false, nil
	}
	if err != nil {
		return domain.PollState{}, false, perr.FromPostgresf(err, "poller: load state %s", accountID)
	}
	return st, true, nil
}

// Save upserts the polling memory for one account
func (r *queries) Save(ctx context.Context, st domain.PollState) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO ig_poll_state (
			account_id, has_snapshot, last_follower_count, last_media_count,
			avg_likes, avg_comments, consecutive_no_change,
			last_activity_at, last_polled_at, tier, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
		ON CONFLICT (account_id) DO UPDATE SET
			has_snapshot          = EXCLUDED.has_snapshot,
			last_follower_count   = EXCLUDED.last_follower_count,
			last_media_count      = EXCLUDED.last_media_count,
			avg_likes             = EXCLUDED.avg_likes,
			avg_comments          = EXCLUDED.avg_comments,
			consecutive_no_change = EXCLUDED.consecutive_no_change,
			last_activity_at      = EXCLUDED.last_activity_at,
			last_polled_at        = EXCLUDED.last_polled_at,
			tier                  = EXCLUDED.tier,
			updated_at            = now()`,
		st.AccountID, st.HasSnapshot, st.LastFollowerCount, st.LastMediaCount,
		st.LastEngagement.AvgLikes, st.LastEngagement.AvgComments, st.ConsecutiveNoChange,
		nullTime(st.LastActivityAt), nullTime(st.LastPolledAt), string(st.Tier))
	if err != nil {
		return perr.FromPostgresf(err, "poller: save state %s", st.AccountID)
	}
	return nil
}

// Publish sends ev on ChangeChannel so cache owners can invalidate
func (r *queries) Publish(ctx context.Context, ev domain.ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return perr.Wrap(err, perr.ErrorCodeJSON, "poller: encode change event")
	}
	if _, err := r.q.Exec(ctx, `SELECT pg_notify($1, $2)`, ChangeChannel, string(payload)); err != nil {
		return perr.FromPostgresf(err, "poller: notify change %s", ev.AccountID)
	}
	return nil
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
