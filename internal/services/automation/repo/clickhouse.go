package repo

import (
	"context"

	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/store"
	"instapilot/internal/services/automation/domain"
)

// AuditTable is the audit table name in both stores
const AuditTable = "automation_audit"

// CHAudit mirrors audit rows into ClickHouse for long range reporting
type CHAudit struct {
	CH store.Clickhouse
}

// Record inserts one row
func (c CHAudit) Record(ctx context.Context, e domain.AuditEntry) error {
	return c.CH.Insert(ctx, AuditTable, [][]any{auditRow(e)})
}

// tee writes to a primary sink and best-effort mirrors
type tee struct {
	primary domain.AuditSink
	mirrors []domain.AuditSink
	log     logger.Logger
}

// Tee returns a sink whose result is the primary's; mirror failures are only logged
func Tee(primary domain.AuditSink, mirrors ...domain.AuditSink) domain.AuditSink {
	if len(mirrors) == 0 {
		return primary
	}
	return &tee{primary: primary, mirrors: mirrors, log: *logger.Named("audit")}
}

func (t *tee) Record(ctx context.Context, e domain.AuditEntry) error {
	err := t.primary.Record(ctx, e)
	for _, m := range t.mirrors {
		if merr := m.Record(ctx, e); merr != nil {
			t.log.Warn().Err(merr).Str("key", e.EventKey).Msg("audit mirror failed")
		}
	}
	return err
}
