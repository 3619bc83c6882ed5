package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"instapilot/internal/adapters/responder"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/automation/domain"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(_ context.Context, _ domain.Event, _ domain.Rule, text string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	if f.err != nil {
		return "", f.err
	}
	return "mid.1", nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type dispatchHarness struct {
	d      *Dispatcher
	budget *ratebudget.Budget
	sender *fakeSender
	quota  *memQuota
	audit  *auditLog
}

func newDispatchHarness(t *testing.T, cfg DispatcherConfig, p responder.Producer) *dispatchHarness {
	t.Helper()
	clock := func() time.Time { return wednesday }
	h := &dispatchHarness{
		budget: ratebudget.New(ratebudget.DefaultCeiling, ratebudget.WithClock(clock)),
		sender: &fakeSender{},
		quota:  &memQuota{},
		audit:  newAuditLog(),
	}
	d, err := NewDispatcher(cfg, DispatcherDeps{
		Budget: h.budget, Producer: p, Sender: h.sender, Quota: h.quota, Audit: h.audit, Metrics: metrics.New(),
	})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	d.now = clock
	d.pick = func(int) int { return 0 }
	d.wait = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	h.d = d
	t.Cleanup(d.Stop)
	return h
}

func produce(text string) responder.Producer {
	return responder.Func(func(context.Context, responder.Request) responder.Result {
		return responder.Produced(text)
	})
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher(DefaultDispatcherConfig(), DispatcherDeps{}); err == nil {
		t.Fatalf("missing collaborators must be rejected")
	}
	cfg := DefaultDispatcherConfig()
	cfg.Delay.DMMax = 0
	if _, err := NewDispatcher(cfg, DispatcherDeps{}); err == nil {
		t.Fatalf("bad delay config must be rejected")
	}
}

func TestDispatchSendsProducedReply(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("DM me"))
	r := rule("r1", domain.RuleDM)
	h.d.Schedule(event(domain.ClassDM, "price?"), r, domain.QuotaSlot{})

	got := h.audit.next(t)
	if got.Outcome != domain.OutcomeSent || got.ReplyText != "DM me" || got.RuleID != "r1" {
		t.Fatalf("unexpected audit %+v", got)
	}
	if sent := h.sender.texts(); len(sent) != 1 || sent[0] != "DM me" {
		t.Fatalf("want exactly one send, got %v", sent)
	}
	if n, _ := h.quota.Count(context.Background(), "r1", Day(wednesday)); n != 1 {
		t.Fatalf("successful send should count once, got %d", n)
	}
}

func TestDispatchFallsBackToTemplates(t *testing.T) {
	failing := responder.Func(func(context.Context, responder.Request) responder.Result {
		return responder.Failed(errors.New("model timeout"))
	})
	h := newDispatchHarness(t, DefaultDispatcherConfig(), failing)
	r := rule("r1", domain.RuleComment, "price")
	r.Reply.Templates = []string{"", "check your DMs"}

	h.d.Schedule(event(domain.ClassComment, "price"), r, domain.QuotaSlot{})
	if got := h.audit.next(t); got.Outcome != domain.OutcomeSent || got.ReplyText != "check your DMs" {
		t.Fatalf("fallback template should be sent: %+v", got)
	}
}

func TestDispatchStrictDrops(t *testing.T) {
	declining := responder.Func(func(context.Context, responder.Request) responder.Result {
		return responder.Declined("off topic")
	})
	h := newDispatchHarness(t, DefaultDispatcherConfig(), declining)
	r := rule("r1", domain.RuleDM)
	r.Reply.Strict = true

	h.d.Schedule(event(domain.ClassDM, "hello"), r, domain.QuotaSlot{})
	if got := h.audit.next(t); got.Outcome != domain.OutcomeDropped {
		t.Fatalf("strict rule should drop: %+v", got)
	}
	if len(h.sender.texts()) != 0 {
		t.Fatalf("dropped reply must not be sent")
	}
}

func TestDispatchRateLimited(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.BudgetWait, cfg.BudgetPoll = 10*time.Second, 5*time.Second
	h := newDispatchHarness(t, cfg, produce("hi"))
	// the fixed clock keeps the account inside its spacing window
	if !h.budget.TryAcquire(owner.ID) {
		t.Fatalf("first acquire should pass")
	}

	h.d.Schedule(event(domain.ClassDM, "hello"), rule("r1", domain.RuleDM), domain.QuotaSlot{})
	if got := h.audit.next(t); got.Outcome != domain.OutcomeRateLimited || got.ReplyText != "hi" {
		t.Fatalf("want rate_limited, got %+v", got)
	}
	if len(h.sender.texts()) != 0 {
		t.Fatalf("no budget means no send")
	}
}

func TestDispatchSendFailureIsNotRetried(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("hi"))
	h.sender.err = errors.New("graph 500")
	slot := reserve(t, h.quota, "r1", 3)

	h.d.Schedule(event(domain.ClassDM, "hello"), rule("r1", domain.RuleDM), slot)
	if got := h.audit.next(t); got.Outcome != domain.OutcomeFailed || got.Reason != "graph 500" {
		t.Fatalf("want failed, got %+v", got)
	}
	if n := len(h.sender.texts()); n != 1 {
		t.Fatalf("send must happen exactly once, got %d", n)
	}
	if n, _ := h.quota.Count(context.Background(), "r1", Day(wednesday)); n != 0 {
		t.Fatalf("failed send must give its slot back, got %d", n)
	}
}

func reserve(t *testing.T, q *memQuota, ruleID string, limit int) domain.QuotaSlot {
	t.Helper()
	if _, ok, err := q.Reserve(context.Background(), ruleID, Day(wednesday), limit); !ok || err != nil {
		t.Fatalf("reserve: ok=%v err=%v", ok, err)
	}
	return domain.QuotaSlot{RuleID: ruleID, Day: Day(wednesday)}
}

func TestDispatchHeldSlotIsNotCountedTwice(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("hi"))
	slot := reserve(t, h.quota, "r1", 3)

	h.d.Schedule(event(domain.ClassDM, "hello"), rule("r1", domain.RuleDM), slot)
	if got := h.audit.next(t); got.Outcome != domain.OutcomeSent {
		t.Fatalf("want sent, got %+v", got)
	}
	if n, _ := h.quota.Count(context.Background(), "r1", Day(wednesday)); n != 1 {
		t.Fatalf("reserved send should count once, got %d", n)
	}
}

func TestDispatchDropReleasesSlot(t *testing.T) {
	declining := responder.Func(func(context.Context, responder.Request) responder.Result {
		return responder.Declined("off topic")
	})
	h := newDispatchHarness(t, DefaultDispatcherConfig(), declining)
	r := rule("r1", domain.RuleDM)
	r.Reply.Strict = true
	slot := reserve(t, h.quota, "r1", 1)

	h.d.Schedule(event(domain.ClassDM, "hello"), r, slot)
	if got := h.audit.next(t); got.Outcome != domain.OutcomeDropped {
		t.Fatalf("want dropped, got %+v", got)
	}
	if n, _ := h.quota.Count(context.Background(), "r1", Day(wednesday)); n != 0 {
		t.Fatalf("dropped reply must give its slot back, got %d", n)
	}
}

func TestDispatchRuleDelayIsAFloor(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("hi"))
	waited := make(chan time.Duration, 4)
	h.d.wait = func(ctx context.Context, d time.Duration) error {
		waited <- d
		return ctx.Err()
	}
	r := rule("r1", domain.RuleDM)
	r.Conditions.TimeDelay = 120

	delay := h.d.Schedule(event(domain.ClassDM, "hello"), r, domain.QuotaSlot{})
	h.audit.next(t)
	if got := <-waited; got != delay || got < 2*time.Minute {
		t.Fatalf("want the drawn delay of at least 2m, got %s (scheduled %s)", got, delay)
	}
}

func TestStopCancelsPendingReplies(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("hi"))
	started := make(chan struct{})
	h.d.wait = func(ctx context.Context, _ time.Duration) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}

	h.d.Schedule(event(domain.ClassDM, "hello"), rule("r1", domain.RuleDM), domain.QuotaSlot{})
	<-started
	if h.d.Pending() != 1 {
		t.Fatalf("want one pending reply, got %d", h.d.Pending())
	}
	h.d.Stop()
	if got := h.audit.next(t); got.Outcome != domain.OutcomeCancelled {
		t.Fatalf("stop should cancel, got %+v", got)
	}
	if h.d.Pending() != 0 || len(h.sender.texts()) != 0 {
		t.Fatalf("nothing may be sent after stop")
	}

	if d := h.d.Schedule(event(domain.ClassDM, "late"), rule("r1", domain.RuleDM), domain.QuotaSlot{}); d != 0 {
		t.Fatalf("schedule after stop should refuse, got %s", d)
	}
	if got := h.audit.next(t); got.Outcome != domain.OutcomeCancelled {
		t.Fatalf("refused schedule is audited as cancelled: %+v", got)
	}
}

func TestReplyClass(t *testing.T) {
	cases := []struct {
		class domain.Class
		typ   domain.RuleType
		want  responder.Class
	}{
		{domain.ClassComment, domain.RuleComment, responder.ClassComment},
		{domain.ClassComment, domain.RuleCommentDM, responder.ClassDM},
		{domain.ClassComment, domain.RuleDM, responder.ClassDM},
		{domain.ClassDM, domain.RuleDM, responder.ClassDM},
	}
	for _, c := range cases {
		if got := replyClass(domain.Event{Class: c.class}, domain.Rule{Type: c.typ}); got != c.want {
			t.Fatalf("%s/%s: got %v", c.class, c.typ, got)
		}
	}
}
