// Package service decides which automation rule governs an event and dispatches the reply
package service

import (
	"context"
	"fmt"
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/automation/domain"

	"github.com/google/uuid"
)

// Day is the UTC calendar day quota counters are keyed by
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Dispatch schedules the delayed send for an armed event. The dispatcher owns slot from here:
// it keeps the unit when the reply is sent and releases it otherwise
type Dispatch interface {
	Schedule(ev domain.Event, rule domain.Rule, slot domain.QuotaSlot) time.Duration
}

// Engine evaluates events against stored rules
type Engine struct {
	rules    domain.RuleStore
	quota    domain.QuotaStore
	audit    domain.AuditSink
	dispatch Dispatch
	metrics  *metrics.Registry
	now      func() time.Time
	log      logger.Logger
}

// EngineDeps are the engine collaborators; Dispatch and Metrics are optional
type EngineDeps struct {
	Rules    domain.RuleStore
	Quota    domain.QuotaStore
	Audit    domain.AuditSink
	Dispatch Dispatch
	Metrics  *metrics.Registry
}

// NewEngine builds an Engine
func NewEngine(d EngineDeps) *Engine {
	e := &Engine{
		rules:    d.Rules,
		quota:    d.Quota,
		audit:    d.Audit,
		dispatch: d.Dispatch,
		metrics:  d.Metrics,
		now:      time.Now,
		log:      *logger.Named("automation"),
	}
	if e.metrics == nil {
		e.metrics = metrics.Default()
	}
	return e
}

// Evaluate resolves the governing rule for ev, persists duplicate deactivations and takes a
// daily quota unit for armed, limited rules. The caller owns the returned Decision.Slot
func (e *Engine) Evaluate(ctx context.Context, ev domain.Event) (domain.Decision, error) {
	return e.evaluate(ctx, ev, true)
}

// Preview is Evaluate without side effects; duplicates stay active and no quota is taken
func (e *Engine) Preview(ctx context.Context, ev domain.Event) (domain.Decision, error) {
	return e.evaluate(ctx, ev, false)
}

func (e *Engine) evaluate(ctx context.Context, ev domain.Event, apply bool) (domain.Decision, error) {
	now := e.now()
	if ev.Class == domain.ClassMention {
		return Decide(ev, nil, now), nil
	}

	rules, err := e.rules.ActiveRules(ctx, ev.Account.WorkspaceID)
	if err != nil {
		return domain.Decision{}, err
	}
	d := Decide(ev, rules, now)
	if apply {
		if err := e.Apply(ctx, d); err != nil {
			// the decision stands; the next event retries the deactivation
			e.log.Error().Err(err).Strs("rules", d.Deactivate).Msg("deactivating duplicate rules failed")
		}
	}
	if !d.Armed() {
		return d, nil
	}

	limit := d.Rule.Conditions.MaxPerDay
	if limit <= 0 {
		return d, nil
	}
	day := Day(now)
	var (
		n  int
		ok bool
	)
	if apply {
		n, ok, err = e.quota.Reserve(ctx, d.Rule.ID, day, limit)
	} else {
		n, err = e.quota.Count(ctx, d.Rule.ID, day)
		ok = n < limit
	}
	if err != nil {
		return d, perr.Wrapf(err, perr.ErrorCodeDB, "automation: quota for %s", d.Rule.ID)
	}
	if !ok {
		d.Verdict = domain.VerdictQuota
		d.Reason = fmt.Sprintf("daily quota reached (%d/%d)", n, limit)
		return d, nil
	}
	if apply {
		d.Slot = domain.QuotaSlot{RuleID: d.Rule.ID, Day: day}
	}
	return d, nil
}

// release gives back a slot the engine took but could not hand to a dispatcher
func (e *Engine) release(ctx context.Context, slot domain.QuotaSlot) {
	if !slot.Held() {
		return
	}
	if err := e.quota.Release(context.WithoutCancel(ctx), slot.RuleID, slot.Day); err != nil {
		e.log.Error().Err(err).Str("rule_id", slot.RuleID).Msg("quota release failed")
	}
}

// Apply persists the side effects of a decision
func (e *Engine) Apply(ctx context.Context, d domain.Decision) error {
	if len(d.Deactivate) == 0 {
		return nil
	}
	if err := e.rules.Deactivate(ctx, d.Deactivate, "superseded by a newer rule of the same type"); err != nil {
		return err
	}
	e.log.Warn().Strs("rules", d.Deactivate).Msg("deactivated duplicate rules")
	return nil
}

// Handle evaluates ev and hands armed events to the dispatcher
func (e *Engine) Handle(ctx context.Context, ev domain.Event) error {
	d, err := e.Evaluate(ctx, ev)
	if err != nil {
		e.metrics.Dispatch(string(ev.Class), "error")
		return err
	}
	e.metrics.Dispatch(string(ev.Class), string(d.Verdict))

	log := e.log.With().Str("key", ev.Key).Str("account_id", ev.Account.ID).Str("verdict", string(d.Verdict)).Logger()
	switch d.Verdict {
	case domain.VerdictArmed:
		if e.dispatch == nil {
			e.release(ctx, d.Slot)
			return perr.Unavailablef("automation: no dispatcher")
		}
		delay := e.dispatch.Schedule(ev, *d.Rule, d.Slot)
		log.Info().Str("rule_id", d.Rule.ID).Str("matched", d.Matched).Dur("delay", delay).Msg("rule armed")
	case domain.VerdictOutsideWindow, domain.VerdictQuota:
		e.record(ctx, ev, d.Rule, domain.OutcomeRefused, d.Reason)
		log.Info().Str("rule_id", d.Rule.ID).Str("reason", d.Reason).Msg("dispatch refused")
	case domain.VerdictIgnored:
		e.record(ctx, ev, nil, domain.OutcomeIgnored, d.Reason)
	default:
		log.Debug().Str("reason", d.Reason).Msg("no rule fired")
	}
	return nil
}

func (e *Engine) record(ctx context.Context, ev domain.Event, rule *domain.Rule, out domain.Outcome, reason string) {
	entry := newAudit(ev, e.now(), out, reason)
	if rule != nil {
		entry.RuleID = rule.ID
	}
	if err := e.audit.Record(ctx, entry); err != nil {
		e.log.Error().Err(err).Str("key", ev.Key).Msg("audit append failed")
	}
}

func newAudit(ev domain.Event, at time.Time, out domain.Outcome, reason string) domain.AuditEntry {
	return domain.AuditEntry{
		ID:          uuid.NewString(),
		OccurredAt:  at.UTC(),
		WorkspaceID: ev.Account.WorkspaceID,
		AccountID:   ev.Account.ID,
		EventKey:    ev.Key,
		EventClass:  ev.Class,
		Outcome:     out,
		Reason:      reason,
	}
}
