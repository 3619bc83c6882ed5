package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"instapilot/internal/adapters/responder"
	"instapilot/internal/core/ratebudget"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/automation/domain"
)

// DispatcherConfig carries the dispatch knobs
type DispatcherConfig struct {
	Delay DelayConfig
	// BudgetWait bounds how long a due reply waits for rate budget, polling every BudgetPoll
	BudgetWait  time.Duration
	BudgetPoll  time.Duration
	SendTimeout time.Duration
	// Strict drops replies the producer could not write instead of sending a fallback
	Strict bool
}

// DefaultDispatcherConfig returns the production configuration
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Delay:       DefaultDelay(),
		BudgetWait:  2 * time.Minute,
		BudgetPoll:  5 * time.Second,
		SendTimeout: 20 * time.Second,
	}
}

// DispatcherDeps are the dispatcher collaborators; Metrics is optional
type DispatcherDeps struct {
	Budget   *ratebudget.Budget
	Producer responder.Producer
	Sender   domain.Sender
	Quota    domain.QuotaStore
	Audit    domain.AuditSink
	Metrics  *metrics.Registry
}

// Dispatcher owns one goroutine per pending reply
type Dispatcher struct {
	cfg      DispatcherConfig
	budget   *ratebudget.Budget
	producer responder.Producer
	sender   domain.Sender
	quota    domain.QuotaStore
	audit    domain.AuditSink
	metrics  *metrics.Registry
	log      logger.Logger

	// seams
	now  func() time.Time
	rnd  rng
	wait func(ctx context.Context, d time.Duration) error
	pick func(n int) int

	root    context.Context
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
	wg      sync.WaitGroup
	pending atomic.Int64
}

var _ Dispatch = (*Dispatcher)(nil)

// NewDispatcher builds a Dispatcher
func NewDispatcher(cfg DispatcherConfig, d DispatcherDeps) (*Dispatcher, error) {
	if err := cfg.Delay.Validate(); err != nil {
		return nil, err
	}
	if d.Budget == nil || d.Producer == nil || d.Sender == nil || d.Quota == nil || d.Audit == nil {
		return nil, perr.InvalidArgf("automation: dispatcher needs budget, producer, sender, quota and audit")
	}
	if cfg.BudgetPoll <= 0 {
		cfg.BudgetPoll = 5 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 20 * time.Second
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Dispatcher{
		cfg:      cfg,
		budget:   d.Budget,
		producer: d.Producer,
		sender:   d.Sender,
		quota:    d.Quota,
		audit:    d.Audit,
		metrics:  d.Metrics,
		log:      *logger.Named("dispatcher"),
		now:      time.Now,
		rnd:      globalRand{},
		wait:     sleep,
		root:     root,
		cancel:   cancel,
	}, nil
}

// job is one armed reply in flight
type job struct {
	ev    domain.Event
	rule  domain.Rule
	slot  domain.QuotaSlot
	delay time.Duration
	text  string
}

// Schedule starts the delayed send for an armed event and returns the drawn delay
func (d *Dispatcher) Schedule(ev domain.Event, rule domain.Rule, slot domain.QuotaSlot) time.Duration {
	floor := time.Duration(rule.Conditions.TimeDelay) * time.Second
	j := &job{ev: ev, rule: rule, slot: slot}
	j.delay = d.cfg.Delay.Draw(ev.Class, utf8.RuneCountInString(ev.Text), floor, d.rnd)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		d.log.Warn().Str("key", ev.Key).Msg("dispatcher stopped; dropping armed event")
		j.delay = 0
		d.finish(context.Background(), j, domain.OutcomeCancelled, "shutting down")
		return 0
	}
	d.wg.Add(1)
	d.mu.Unlock()

	d.pending.Add(1)
	d.metrics.Pending(1)
	go d.run(j)
	return j.delay
}

// Pending reports replies waiting on their delay or budget
func (d *Dispatcher) Pending() int { return int(d.pending.Load()) }

// Stop cancels every pending reply and waits for the goroutines to finish
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.mu.Unlock()
	d.cancel()
	d.wg.Wait()
}

func (d *Dispatcher) run(j *job) {
	ctx := d.root
	ev, rule := j.ev, j.rule
	defer func() {
		if rec := recover(); rec != nil {
			d.log.Error().Str("key", ev.Key).Str("panic", fmt.Sprint(rec)).Msg("dispatch panicked")
			d.finish(ctx, j, domain.OutcomeFailed, "panic")
		}
		d.pending.Add(-1)
		d.metrics.Pending(-1)
		d.wg.Done()
	}()

	if err := d.wait(ctx, j.delay); err != nil {
		d.finish(ctx, j, domain.OutcomeCancelled, "cancelled before send")
		return
	}

	text, ok := d.produce(ctx, ev, rule)
	if !ok {
		d.finish(ctx, j, domain.OutcomeDropped, "producer returned no reply")
		return
	}
	j.text = text

	if !d.acquire(ctx, ev.Account.ID) {
		if ctx.Err() != nil {
			d.finish(ctx, j, domain.OutcomeCancelled, "cancelled waiting for rate budget")
			return
		}
		d.finish(ctx, j, domain.OutcomeRateLimited, fmt.Sprintf("no rate budget within %s", d.cfg.BudgetWait))
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	id, err := d.sender.Send(sendCtx, ev, rule, text)
	cancel()
	if err != nil {
		d.finish(ctx, j, domain.OutcomeFailed, err.Error())
		return
	}

	// limited rules were counted when armed
	if !j.slot.Held() {
		if _, err := d.quota.Increment(context.WithoutCancel(ctx), rule.ID, Day(d.now())); err != nil {
			d.log.Error().Err(err).Str("rule_id", rule.ID).Msg("quota increment failed after send")
		}
	}
	d.log.Info().Str("key", ev.Key).Str("rule_id", rule.ID).Str("sent_id", id).Msg("reply sent")
	d.finish(ctx, j, domain.OutcomeSent, "")
}

// produce asks the producer and falls back to a template unless the rule or config is strict
func (d *Dispatcher) produce(ctx context.Context, ev domain.Event, rule domain.Rule) (string, bool) {
	req := responder.Request{
		Class:        replyClass(ev, rule),
		Text:         ev.Text,
		SenderHandle: ev.SenderHandle,
		RuleName:     rule.Name,
		AIContextual: rule.Triggers.AIContextual,
		Message:      rule.Reply.Message,
		Templates:    rule.Reply.Templates,
	}
	res := d.producer.Produce(ctx, req)
	if res.Kind == responder.KindProduced && res.Text != "" {
		return res.Text, true
	}
	d.log.Warn().Str("key", ev.Key).Str("result", res.Kind.String()).Str("reason", res.Reason).Msg("producer had no reply")
	if d.cfg.Strict || rule.Reply.Strict {
		return "", false
	}
	return responder.Fallback(req, d.pick), true
}

// acquire polls the budget until allowed or BudgetWait is used up
func (d *Dispatcher) acquire(ctx context.Context, accountID string) bool {
	attempts := int(d.cfg.BudgetWait / d.cfg.BudgetPoll)
	for i := 0; ; i++ {
		dec := d.budget.Acquire(accountID)
		d.metrics.Budget("dispatcher", dec.String())
		if dec == ratebudget.Allowed {
			return true
		}
		if i >= attempts {
			return false
		}
		if err := d.wait(ctx, d.cfg.BudgetPoll); err != nil {
			return false
		}
	}
}

func (d *Dispatcher) finish(ctx context.Context, j *job, out domain.Outcome, reason string) {
	ev := j.ev
	d.metrics.Dispatch(string(ev.Class), string(out))
	entry := newAudit(ev, d.now(), out, reason)
	entry.RuleID = j.rule.ID
	entry.ReplyText = j.text
	entry.Delay = j.delay

	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if out != domain.OutcomeSent && j.slot.Held() {
		if err := d.quota.Release(actx, j.slot.RuleID, j.slot.Day); err != nil {
			d.log.Error().Err(err).Str("rule_id", j.slot.RuleID).Msg("quota release failed")
		}
	}
	if err := d.audit.Record(actx, entry); err != nil {
		d.log.Error().Err(err).Str("key", ev.Key).Str("outcome", string(out)).Msg("audit append failed")
	}
	if out != domain.OutcomeSent {
		d.log.Info().Str("key", ev.Key).Str("outcome", string(out)).Str("reason", reason).Msg("dispatch ended")
	}
}

// replyClass is DM for anything answered privately
func replyClass(ev domain.Event, rule domain.Rule) responder.Class {
	if ev.Class == domain.ClassComment && rule.Type == domain.RuleComment {
		return responder.ClassComment
	}
	return responder.ClassDM
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
