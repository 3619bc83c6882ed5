package service

import (
	"context"
	"time"

	"instapilot/internal/platform/logger"
	"instapilot/internal/services/automation/domain"
)

// Janitor prunes quota counters and audit rows past retention
type Janitor struct {
	Store          domain.Pruner
	QuotaRetention time.Duration
	AuditRetention time.Duration
	Now            func() time.Time
}

// Run prunes once; it is registered as a cron job
func (j Janitor) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	t := now()

	quota, err := j.Store.PruneQuota(ctx, Day(t.Add(-j.QuotaRetention)))
	if err != nil {
		return err
	}
	var audit int64
	if j.AuditRetention > 0 {
		if audit, err = j.Store.PruneAudit(ctx, t.Add(-j.AuditRetention)); err != nil {
			return err
		}
	}
	logger.C(ctx).Info().
		Str("component", "janitor").
		Int64("quota_rows", quota).
		Int64("audit_rows", audit).
		Msg("pruned automation tables")
	return nil
}
