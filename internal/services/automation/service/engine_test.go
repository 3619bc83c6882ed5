package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/automation/domain"
)

type memRules struct {
	mu          sync.Mutex
	rules       []domain.Rule
	deactivated []string
	err         error
}

func (m *memRules) ActiveRules(_ context.Context, ws string) ([]domain.Rule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.Rule
	for _, r := range m.rules {
		if r.IsActive && r.WorkspaceID == ws {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRules) Deactivate(_ context.Context, ids []string, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deactivated = append(m.deactivated, ids...)
	for i := range m.rules {
		for _, id := range ids {
			if m.rules[i].ID == id {
				m.rules[i].IsActive = false
			}
		}
	}
	return nil
}

type memQuota struct {
	mu sync.Mutex
	n  map[string]int
}

func quotaKey(ruleID string, day time.Time) string { return ruleID + "@" + day.Format(time.DateOnly) }

func (m *memQuota) Count(_ context.Context, ruleID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.n[quotaKey(ruleID, day)], nil
}

func (m *memQuota) Increment(_ context.Context, ruleID string, day time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == nil {
		m.n = make(map[string]int)
	}
	m.n[quotaKey(ruleID, day)]++
	return m.n[quotaKey(ruleID, day)], nil
}

func (m *memQuota) Reserve(_ context.Context, ruleID string, day time.Time, limit int) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.n == nil {
		m.n = make(map[string]int)
	}
	k := quotaKey(ruleID, day)
	if m.n[k] >= limit {
		return m.n[k], false, nil
	}
	m.n[k]++
	return m.n[k], true, nil
}

func (m *memQuota) Release(_ context.Context, ruleID string, day time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k := quotaKey(ruleID, day); m.n[k] > 0 {
		m.n[k]--
	}
	return nil
}

type auditLog struct {
	mu      sync.Mutex
	entries []domain.AuditEntry
	ch      chan domain.AuditEntry
}

func newAuditLog() *auditLog { return &auditLog{ch: make(chan domain.AuditEntry, 64)} }

func (a *auditLog) Record(_ context.Context, e domain.AuditEntry) error {
	a.mu.Lock()
	a.entries = append(a.entries, e)
	a.mu.Unlock()
	a.ch <- e
	return nil
}

// next waits for the next audit entry
func (a *auditLog) next(t *testing.T) domain.AuditEntry {
	t.Helper()
	select {
	case e := <-a.ch:
		return e
	case <-time.After(2 * time.Second):
		t.Fatalf("no audit entry recorded")
		return domain.AuditEntry{}
	}
}

func (a *auditLog) len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}

type dispatchFunc func(ev domain.Event, rule domain.Rule, slot domain.QuotaSlot) time.Duration

func (f dispatchFunc) Schedule(ev domain.Event, rule domain.Rule, slot domain.QuotaSlot) time.Duration {
	return f(ev, rule, slot)
}

func newEngine(rules *memRules, quota *memQuota, audit *auditLog, d Dispatch) *Engine {
	e := NewEngine(EngineDeps{Rules: rules, Quota: quota, Audit: audit, Dispatch: d, Metrics: metrics.New()})
	e.now = func() time.Time { return wednesday }
	return e
}

func TestEngineDailyQuota(t *testing.T) {
	r := rule("r1", domain.RuleComment, "price")
	r.Conditions.MaxPerDay = 2
	rules, quota, audit := &memRules{rules: []domain.Rule{r}}, &memQuota{}, newAuditLog()

	var armed int
	e := newEngine(rules, quota, audit, dispatchFunc(func(_ domain.Event, _ domain.Rule, slot domain.QuotaSlot) time.Duration {
		if !slot.Held() || slot.RuleID != "r1" {
			t.Fatalf("armed limited rule must hand over its slot, got %+v", slot)
		}
		armed++
		return time.Second
	}))

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := e.Handle(ctx, event(domain.ClassComment, "price?")); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if armed != 2 {
		t.Fatalf("want two dispatches under a quota of 2, got %d", armed)
	}
	if audit.len() != 1 {
		t.Fatalf("third event should be audited once, got %d", audit.len())
	}
	got := audit.next(t)
	if got.Outcome != domain.OutcomeRefused || got.RuleID != "r1" || got.Reason != "daily quota reached (2/2)" {
		t.Fatalf("unexpected audit %+v", got)
	}

	// a new UTC day starts a fresh counter
	e.now = func() time.Time { return wednesday.Add(24 * time.Hour) }
	d, err := e.Evaluate(ctx, event(domain.ClassComment, "price?"))
	if err != nil || !d.Armed() {
		t.Fatalf("next day should arm again: %+v %v", d, err)
	}
}

// replies still waiting on their delay already count against the quota
func TestEngineQuotaHoldsWhileRepliesArePending(t *testing.T) {
	h := newDispatchHarness(t, DefaultDispatcherConfig(), produce("see bio"))
	gate := make(chan struct{})
	h.d.wait = func(ctx context.Context, _ time.Duration) error {
		select {
		case <-gate:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	r := rule("r1", domain.RuleComment, "price")
	r.Conditions.MaxPerDay = 2
	e := newEngine(&memRules{rules: []domain.Rule{r}}, h.quota, h.audit, h.d)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ev := event(domain.ClassComment, "price?")
		ev.Key = fmt.Sprintf("comment:c%d", i)
		ev.CommentID = fmt.Sprintf("c%d", i)
		// separate accounts keep the fixed clock clear of the per-account spacing
		ev.Account.ID = fmt.Sprintf("acc-%d", i)
		if err := e.Handle(ctx, ev); err != nil {
			t.Fatalf("handle %d: %v", i, err)
		}
	}
	if got := h.audit.next(t); got.Outcome != domain.OutcomeRefused || got.Reason != "daily quota reached (2/2)" {
		t.Fatalf("third event must be refused while two replies are pending: %+v", got)
	}
	if h.d.Pending() != 2 {
		t.Fatalf("want two pending replies, got %d", h.d.Pending())
	}

	close(gate)
	for i := 0; i < 2; i++ {
		if got := h.audit.next(t); got.Outcome != domain.OutcomeSent {
			t.Fatalf("pending reply should be sent: %+v", got)
		}
	}
	if sent := h.sender.texts(); len(sent) != 2 {
		t.Fatalf("want two sends under a quota of 2, got %d", len(sent))
	}
	if n, _ := h.quota.Count(ctx, "r1", Day(wednesday)); n != 2 {
		t.Fatalf("counter should be 2, got %d", n)
	}
}

func TestEngineReleasesSlotWithoutDispatcher(t *testing.T) {
	r := rule("r1", domain.RuleDM, "hi")
	r.Conditions.MaxPerDay = 1
	quota := &memQuota{}
	e := newEngine(&memRules{rules: []domain.Rule{r}}, quota, newAuditLog(), nil)
	if err := e.Handle(context.Background(), event(domain.ClassDM, "hi")); err == nil {
		t.Fatalf("armed event without a dispatcher must fail")
	}
	if n, _ := quota.Count(context.Background(), "r1", Day(wednesday)); n != 0 {
		t.Fatalf("undispatched slot must be given back, got %d", n)
	}
}

func TestEnginePersistsDuplicateResolution(t *testing.T) {
	old, newer := rule("old", domain.RuleDM, "hi"), rule("new", domain.RuleDM, "hi")
	newer.CreatedAt = newer.CreatedAt.Add(time.Hour)
	rules := &memRules{rules: []domain.Rule{old, newer}}
	e := newEngine(rules, &memQuota{}, newAuditLog(), nil)

	d, err := e.Evaluate(context.Background(), event(domain.ClassDM, "hi"))
	if err != nil || d.Rule.ID != "new" {
		t.Fatalf("newest rule should govern: %+v %v", d, err)
	}
	if len(rules.deactivated) != 1 || rules.deactivated[0] != "old" {
		t.Fatalf("older duplicate should be deactivated, got %v", rules.deactivated)
	}
	active, _ := rules.ActiveRules(context.Background(), owner.WorkspaceID)
	if len(active) != 1 {
		t.Fatalf("exactly one rule should stay active, got %d", len(active))
	}
}

func TestEngineAuditsRefusalsAndMentions(t *testing.T) {
	r := rule("r1", domain.RuleComment, "price")
	r.Schedule.ActiveDays = []int{7}
	audit := newAuditLog()
	e := newEngine(&memRules{rules: []domain.Rule{r}}, &memQuota{}, audit, nil)
	ctx := context.Background()

	if err := e.Handle(ctx, event(domain.ClassComment, "price")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if got := audit.next(t); got.Outcome != domain.OutcomeRefused || !strings.Contains(got.Reason, "Wednesday") {
		t.Fatalf("out of window should be refused: %+v", got)
	}

	if err := e.Handle(ctx, event(domain.ClassMention, "price")); err != nil {
		t.Fatalf("handle mention: %v", err)
	}
	if got := audit.next(t); got.Outcome != domain.OutcomeIgnored || got.RuleID != "" || got.EventClass != domain.ClassMention {
		t.Fatalf("mention should be audited as ignored: %+v", got)
	}

	// nothing triggered is only logged
	if err := e.Handle(ctx, event(domain.ClassComment, "nice pic")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if audit.len() != 2 {
		t.Fatalf("untriggered events are not audited, got %d entries", audit.len())
	}
}

func TestEngineSurfacesStoreErrors(t *testing.T) {
	e := newEngine(&memRules{err: errors.New("db down")}, &memQuota{}, newAuditLog(), nil)
	if err := e.Handle(context.Background(), event(domain.ClassDM, "hi")); err == nil {
		t.Fatalf("rule store failure must surface")
	}
}

func TestEngineArmedWithoutDispatcher(t *testing.T) {
	e := newEngine(&memRules{rules: []domain.Rule{rule("r1", domain.RuleDM, "hi")}}, &memQuota{}, newAuditLog(), nil)
	if err := e.Handle(context.Background(), event(domain.ClassDM, "hi")); err == nil {
		t.Fatalf("armed event without a dispatcher must fail")
	}
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC-5", -5*3600)
	got := Day(time.Date(2026, 10, 21, 22, 0, 0, 0, loc))
	if !got.Equal(time.Date(2026, 10, 22, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("day is keyed in UTC, got %s", got)
	}
}

func TestEnginePreviewLeavesRulesAlone(t *testing.T) {
	old, newer := rule("old", domain.RuleDM, "hi"), rule("new", domain.RuleDM, "hi")
	newer.CreatedAt = newer.CreatedAt.Add(time.Hour)
	rules := &memRules{rules: []domain.Rule{old, newer}}
	e := newEngine(rules, &memQuota{}, newAuditLog(), nil)

	d, err := e.Preview(context.Background(), event(domain.ClassDM, "hi"))
	if err != nil || !d.Armed() || len(d.Deactivate) != 1 || d.Slot.Held() {
		t.Fatalf("preview should report the loser and hold no quota: %+v %v", d, err)
	}
	if len(rules.deactivated) != 0 {
		t.Fatalf("preview must not deactivate, got %v", rules.deactivated)
	}
}
