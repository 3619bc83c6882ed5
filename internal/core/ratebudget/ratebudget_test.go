package ratebudget

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func TestDerivedLimits(t *testing.T) {
	b := New(200)
	if b.AccountLimit() != 50 {
		t.Fatalf("account limit want 50 got %d", b.AccountLimit())
	}
	if b.MinSpacing() != 36*time.Second {
		t.Fatalf("spacing want 36s got %s", b.MinSpacing())
	}
	if New(0).Ceiling() != DefaultCeiling {
		t.Fatalf("non-positive ceiling should fall back to default")
	}
	if New(2).AccountLimit() != 1 {
		t.Fatalf("account limit floors at 1")
	}
}

func TestSpacingGate(t *testing.T) {
	clk := newClock()
	b := New(200, WithClock(clk.Now))

	if got := b.Acquire("a"); got != Allowed {
		t.Fatalf("first call want allowed got %s", got)
	}
	clk.Advance(35 * time.Second)
	if got := b.Acquire("a"); got != DeniedSpacing {
		t.Fatalf("want spacing denial got %s", got)
	}
	// other accounts are not affected by a's spacing
	if !b.TryAcquire("b") {
		t.Fatalf("account b should be allowed")
	}
	clk.Advance(time.Second)
	if got := b.Acquire("a"); got != Allowed {
		t.Fatalf("after 36s want allowed got %s", got)
	}
}

func TestDeniedCallsAreNotCounted(t *testing.T) {
	clk := newClock()
	b := New(200, WithClock(clk.Now))
	b.TryAcquire("a")
	for range 10 {
		b.TryAcquire("a")
	}
	s := b.Snapshot()
	if s.Used != 1 || s.Accounts["a"].Count != 1 {
		t.Fatalf("denied calls leaked into counters: %+v", s)
	}
}

func TestPerAccountFairness(t *testing.T) {
	clk := newClock()
	b := New(40, WithClock(clk.Now))
	// spacing = 3600/40*2 = 180s, account limit = 10

	allowed := 0
	for range 60 {
		if b.TryAcquire("greedy") {
			allowed++
		}
		clk.Advance(3 * time.Minute)
		if clk.Now().Sub(time.Date(2025, 3, 5, 12, 0, 0, 0, time.UTC)) >= 50*time.Minute {
			break
		}
	}
	if allowed > b.AccountLimit() {
		t.Fatalf("account exceeded its share: %d > %d", allowed, b.AccountLimit())
	}
	if allowed != b.AccountLimit() {
		t.Fatalf("expected to reach the share exactly, got %d", allowed)
	}
	if got := b.Acquire("greedy"); got != DeniedAccount {
		t.Fatalf("want account denial got %s", got)
	}
}

func TestGlobalCeiling(t *testing.T) {
	clk := newClock()
	b := New(8, WithClock(clk.Now))
	// account limit 2, so 4 accounts fill the ceiling
	for i := range 4 {
		id := fmt.Sprintf("acct-%d", i)
		if !b.TryAcquire(id) {
			t.Fatalf("first call for %s denied", id)
		}
	}
	clk.Advance(b.MinSpacing())
	for i := range 4 {
		id := fmt.Sprintf("acct-%d", i)
		if !b.TryAcquire(id) {
			t.Fatalf("second call for %s denied", id)
		}
	}
	if got := b.Acquire("fresh"); got != DeniedGlobal {
		t.Fatalf("want global denial got %s", got)
	}

	// one hour after the first batch it drains
	clk.Advance(Window - b.MinSpacing() + time.Second)
	if got := b.Acquire("fresh"); got != Allowed {
		t.Fatalf("after window want allowed got %s", got)
	}
}

// Property: across random traffic no rolling hour holds more than the ceiling,
// and no account more than a quarter of it
func TestRollingBoundsHoldUnderRandomTraffic(t *testing.T) {
	clk := newClock()
	const ceiling = 20
	b := New(ceiling, WithClock(clk.Now))
	rng := rand.New(rand.NewSource(7))

	var global []time.Time
	per := map[string][]time.Time{}
	for range 5000 {
		clk.Advance(time.Duration(rng.Intn(40)) * time.Second)
		id := fmt.Sprintf("a%d", rng.Intn(6))
		if b.TryAcquire(id) {
			now := clk.Now()
			global = append(global, now)
			per[id] = append(per[id], now)
		}
	}

	check := func(name string, ts []time.Time, limit int) {
		for i := range ts {
			n := 0
			for j := i; j < len(ts) && ts[j].Sub(ts[i]) < Window; j++ {
				n++
			}
			if n > limit {
				t.Fatalf("%s: %d approvals in one window, limit %d", name, n, limit)
			}
		}
	}
	check("global", global, ceiling)
	for id, ts := range per {
		check(id, ts, ceiling/4)
	}
	if len(global) == 0 {
		t.Fatalf("expected some approvals")
	}
}

func TestConcurrentAcquireNeverExceedsCeiling(t *testing.T) {
	clk := newClock()
	b := New(100, WithClock(clk.Now))

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := range 400 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if b.TryAcquire(fmt.Sprintf("acct-%d", i)) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	if allowed != 100 {
		t.Fatalf("want exactly ceiling approvals, got %d", allowed)
	}
}

func TestAccountWindowSurvivesIdleGap(t *testing.T) {
	clk := newClock()
	b := New(200, WithClock(clk.Now))
	for i := 0; i < b.AccountLimit(); i++ {
		if !b.TryAcquire("a") {
			t.Fatalf("acquire %d should pass", i)
		}
		clk.Advance(b.MinSpacing())
	}
	// an idle stretch after the account stopped polling, still inside the hour
	clk.Advance(5 * time.Minute)
	if got := b.Acquire("a"); got != DeniedAccount {
		t.Fatalf("a returning account keeps its used share, got %s", got)
	}
	if s := b.Snapshot(); s.Accounts["a"].Count != b.AccountLimit() {
		t.Fatalf("window should still count %d, got %+v", b.AccountLimit(), s.Accounts["a"])
	}
}

func TestFollowUpSkipsSpacingOnly(t *testing.T) {
	clk := newClock()
	b := New(8, WithClock(clk.Now))
	if !b.TryAcquire("a") {
		t.Fatalf("first acquire should pass")
	}
	if got := b.Acquire("a"); got != DeniedSpacing {
		t.Fatalf("a second poll is spaced, got %s", got)
	}
	if got := b.AcquireFollowUp("a"); got != Allowed {
		t.Fatalf("follow up should skip spacing, got %s", got)
	}
	if got := b.AcquireFollowUp("a"); got != DeniedAccount {
		t.Fatalf("follow up still honors the account share, got %s", got)
	}
	if s := b.Snapshot(); s.Used != 2 || s.Accounts["a"].Count != 2 {
		t.Fatalf("follow up must be counted: %+v", s)
	}
}

func TestExpiredWindowsArePruned(t *testing.T) {
	clk := newClock()
	b := New(200, WithClock(clk.Now))
	b.TryAcquire("a")
	b.TryAcquire("b")
	clk.Advance(Window + time.Second)

	if !b.TryAcquire("b") {
		t.Fatalf("b should acquire after its window aged out")
	}
	b.mu.Lock()
	_, kept := b.accounts["a"]
	b.mu.Unlock()
	if kept {
		t.Fatalf("aged out window for a should be dropped on acquire")
	}
	if s := b.Snapshot(); len(s.Accounts) != 1 || s.Accounts["b"].Count != 1 {
		t.Fatalf("snapshot should only list live windows: %+v", s.Accounts)
	}
}

func TestSnapshotSweeps(t *testing.T) {
	clk := newClock()
	b := New(200, WithClock(clk.Now))
	b.TryAcquire("a")
	clk.Advance(Window + time.Second)
	s := b.Snapshot()
	if s.Used != 0 || s.Accounts["a"].Count != 0 {
		t.Fatalf("expired entries should be swept: %+v", s)
	}
}

func TestDecisionString(t *testing.T) {
	cases := map[Decision]string{
		Allowed:       "allowed",
		DeniedGlobal:  "global",
		DeniedAccount: "account",
		DeniedSpacing: "spacing",
		Decision(99):  "unknown",
	}
	for d, want := range cases {
		if d.String() != want {
			t.Fatalf("%d: want %q got %q", d, want, d.String())
		}
	}
}
