// Package repo stores automation rules, quota counters and the audit trail
package repo

import (
	"context"
	"encoding/json"
	"time"

	"instapilot/internal/modkit/repokit"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/store"
	"instapilot/internal/services/automation/domain"
)

// Repo is the automation storage surface
type Repo interface {
	domain.RuleStore
	domain.QuotaStore
	domain.AuditSink
	domain.Pruner
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

func scanRule(r store.Row) (domain.Rule, error) {
	var (
		rule                             domain.Rule
		typ                              string
		triggers, sched, conds, replyRaw []byte
	)
	if err := r.Scan(&rule.ID, &rule.WorkspaceID, &rule.Name, &typ,
		&triggers, &sched, &conds, &replyRaw, &rule.IsActive, &rule.CreatedAt); err != nil {
		return domain.Rule{}, err
	}
	rule.Type = domain.RuleType(typ)
	for _, f := range []struct {
		raw []byte
		dst any
	}{
		{triggers, &rule.Triggers}, {sched, &rule.Schedule}, {conds, &rule.Conditions}, {replyRaw, &rule.Reply},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dst); err != nil {
			return domain.Rule{}, perr.Wrapf(err, perr.ErrorCodeJSON, "automation: rule %s has malformed json", rule.ID)
		}
	}
	return rule, nil
}

// ActiveRules lists a workspace's active rules, newest first
func (r *queries) ActiveRules(ctx context.Context, workspaceID string) ([]domain.Rule, error) {
	rules, err := store.Many(ctx, r.q, scanRule, `
		SELECT id, workspace_id, name, rule_type, triggers, schedule, conditions, reply, is_active, created_at
		FROM automation_rules
		WHERE workspace_id = $1 AND is_active
		ORDER BY created_at DESC, id DESC`, workspaceID)
	if err != nil {
		return nil, perr.FromPostgresf(err, "automation: list rules for %s", workspaceID)
	}
	return rules, nil
}

// Deactivate flips is_active off for ruleIDs
func (r *queries) Deactivate(ctx context.Context, ruleIDs []string, reason string) error {
	if len(ruleIDs) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE automation_rules
		SET is_active = FALSE, deactivated_reason = $2, updated_at = now()
		WHERE id = ANY($1) AND is_active`, ruleIDs, reason)
	if err != nil {
		return perr.FromPostgresf(err, "automation: deactivate %v", ruleIDs)
	}
	return nil
}

// Count returns today's dispatches for ruleID; a missing row is zero
func (r *queries) Count(ctx context.Context, ruleID string, day time.Time) (int, error) {
	n, err := store.Scalar[int](ctx, r.q,
		`SELECT count FROM automation_quota WHERE rule_id = $1 AND day = $2`, ruleID, day)
	if store.IsNoRows(err) {
		return 0, nil
	}
	if err != nil {
		return 0, perr.FromPostgresf(err, "automation: read quota %s", ruleID)
	}
	return n, nil
}

// Increment bumps the counter, creating the row on the first dispatch of the day
func (r *queries) Increment(ctx context.Context, ruleID string, day time.Time) (int, error) {
	n, err := store.Scalar[int](ctx, r.q, `
		INSERT INTO automation_quota (rule_id, day, count, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (rule_id, day) DO UPDATE
		SET count = automation_quota.count + 1, updated_at = now()
		RETURNING count`, ruleID, day)
	if err != nil {
		return 0, perr.FromPostgresf(err, "automation: increment quota %s", ruleID)
	}
	return n, nil
}

// Reserve takes one unit of the rule's quota for day while the counter is below limit.
// A full counter is left alone and its current value is returned with ok=false
func (r *queries) Reserve(ctx context.Context, ruleID string, day time.Time, limit int) (int, bool, error) {
	n, err := store.Scalar[int](ctx, r.q, `
		INSERT INTO automation_quota (rule_id, day, count, updated_at)
		VALUES ($1, $2, 1, now())
		ON CONFLICT (rule_id, day) DO UPDATE
		SET count = automation_quota.count + 1, updated_at = now()
		WHERE automation_quota.count < $3
		RETURNING count`, ruleID, day, limit)
	if err == nil {
		return n, true, nil
	}
	if !store.IsNoRows(err) {
		return 0, false, perr.FromPostgresf(err, "automation: reserve quota %s", ruleID)
	}
	n, err = r.Count(ctx, ruleID, day)
	return n, false, err
}

// Release gives back a unit taken by Reserve; the counter never drops below zero
func (r *queries) Release(ctx context.Context, ruleID string, day time.Time) error {
	_, err := r.q.Exec(ctx, `
		UPDATE automation_quota
		SET count = count - 1, updated_at = now()
		WHERE rule_id = $1 AND day = $2 AND count > 0`, ruleID, day)
	if err != nil {
		return perr.FromPostgresf(err, "automation: release quota %s", ruleID)
	}
	return nil
}

// Record appends one audit row
func (r *queries) Record(ctx context.Context, e domain.AuditEntry) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO automation_audit (
			id, occurred_at, workspace_id, account_id, rule_id,
			event_key, event_class, outcome, reason, reply_text, delay_ms
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		auditRow(e)...)
	if err != nil {
		return perr.FromPostgresf(err, "automation: audit %s", e.EventKey)
	}
	return nil
}

// PruneQuota deletes counters for days before the cutoff
func (r *queries) PruneQuota(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM automation_quota WHERE day < $1`, before)
	if err != nil {
		return 0, perr.FromPostgres(err, "automation: prune quota")
	}
	return tag.RowsAffected(), nil
}

// PruneAudit deletes audit rows older than the cutoff
func (r *queries) PruneAudit(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.q.Exec(ctx, `DELETE FROM automation_audit WHERE occurred_at < $1`, before)
	if err != nil {
		return 0, perr.FromPostgres(err, "automation: prune audit")
	}
	return tag.RowsAffected(), nil
}

// auditRow lays an entry out in table column order; shared by both audit tables
func auditRow(e domain.AuditEntry) []any {
	return []any{
		e.ID, e.OccurredAt.UTC(), e.WorkspaceID, e.AccountID, e.RuleID,
		e.EventKey, string(e.EventClass), string(e.Outcome), e.Reason, e.ReplyText, e.Delay.Milliseconds(),
	}
}
