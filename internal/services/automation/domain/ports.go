package domain

import (
	"context"
	"time"
)

// RuleStore reads rules and persists deactivations
type RuleStore interface {
	ActiveRules(ctx context.Context, workspaceID string) ([]Rule, error)
	Deactivate(ctx context.Context, ruleIDs []string, reason string) error
}

// QuotaStore counts dispatches per rule and UTC day.
// Reserve takes a unit only while the count is below limit and reports the count it saw;
// Release gives back a unit whose reply was never sent
type QuotaStore interface {
	Count(ctx context.Context, ruleID string, day time.Time) (int, error)
	Increment(ctx context.Context, ruleID string, day time.Time) (int, error)
	Reserve(ctx context.Context, ruleID string, day time.Time, limit int) (n int, ok bool, err error)
	Release(ctx context.Context, ruleID string, day time.Time) error
}

// AuditSink appends audit records
type AuditSink interface {
	Record(ctx context.Context, e AuditEntry) error
}

// Pruner drops rows past retention
type Pruner interface {
	PruneQuota(ctx context.Context, before time.Time) (int64, error)
	PruneAudit(ctx context.Context, before time.Time) (int64, error)
}

// Sender performs the one external send for an armed event
type Sender interface {
	Send(ctx context.Context, ev Event, rule Rule, text string) (string, error)
}
