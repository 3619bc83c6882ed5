package module

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit"
	"instapilot/internal/platform/config"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/platform/testkit/fakedb"
	accounts "instapilot/internal/services/accounts/domain"
)

func TestFromConfigReadsEnv(t *testing.T) {
	t.Setenv("POLLER_HOURLY_CEILING", "120")
	t.Setenv("POLLER_TIER_ACTIVE", "90s")
	t.Setenv("POLLER_NIGHT_START_HOUR", "1")
	t.Setenv("POLLER_AUTOSTART", "false")

	o := FromConfig(config.New())
	if o.Ceiling != 120 || o.Tiers.Active != 90*time.Second || o.NightStart != 1 || o.Autostart {
		t.Fatalf("unexpected options %+v", o)
	}
	if o.ReconcileEvery != "@every 1m" {
		t.Fatalf("reconcile default lost: %q", o.ReconcileEvery)
	}
}

func TestNewRejectsInvertedTiers(t *testing.T) {
	t.Setenv("POLLER_TIER_ACTIVE", "2h")
	if _, err := New(modkit.Deps{Cfg: config.New()}, modkit.WithPorts(Needs{Metrics: metrics.New()})); err == nil {
		t.Fatalf("an active tier slower than the default tier must be rejected")
	}
}

func TestStartWithoutPostgresIsManual(t *testing.T) {
	m, err := New(modkit.Deps{Cfg: config.New()}, modkit.WithPorts(Needs{Metrics: metrics.New()}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Stop()
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if p, ok := m.Ports().(Ports); !ok || p.Scheduler == nil || p.Activity == nil {
		t.Fatalf("ports missing: %#v", m.Ports())
	}
}

func TestStartReconcilesFromPostgres(t *testing.T) {
	q := &fakedb.Querier{}
	budget := ratebudget.New(ratebudget.DefaultCeiling)
	m, err := New(modkit.Deps{Cfg: config.New(), PG: q}, modkit.WithPorts(Needs{Budget: budget, Metrics: metrics.New()}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	m.Stop()
	if len(q.Executed("FROM ig_accounts")) == 0 {
		t.Fatalf("initial reconcile should list connected accounts")
	}
}

func TestPollsSpendOneRequestPerToken(t *testing.T) {
	t.Setenv("POLLER_INITIAL_JITTER", "24h")
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// the shared client retries; polling must not
	graph := instagram.NewClient(instagram.Options{BaseURL: srv.URL, MaxRetries: 3, RetryBase: time.Millisecond})
	budget := ratebudget.New(ratebudget.DefaultCeiling)
	m, err := New(modkit.Deps{Cfg: config.New()}, modkit.WithPorts(Needs{Budget: budget, Graph: graph, Metrics: metrics.New()}))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer m.Stop()

	sched := m.Ports().(Ports).Scheduler
	acct := accounts.Account{ID: "acc-1", IGUserID: "1789", AccessToken: "tok"}
	sched.Attach(acct)
	if !sched.ForcePoll(context.Background(), acct.ID) {
		t.Fatalf("poll should be allowed")
	}
	if got, used := calls.Load(), budget.Snapshot().Used; got != 1 || used != 1 {
		t.Fatalf("want one request for one token, got %d requests and %d tokens", got, used)
	}
}
