// Package ratebudget tracks the shared hourly Graph API request budget.
// A global rolling-hour history and per-account windows are consulted on
// every acquisition; nothing is ever queued or reserved for later
package ratebudget

import (
	"sync"
	"time"
)

// Window is the rolling window every counter is measured against
const Window = time.Hour

// DefaultCeiling is the platform's documented per-app hourly call budget
const DefaultCeiling = 200

// accountShare is the divisor applied to the ceiling for a single account
const accountShare = 4

// spacingMargin multiplies the even-spacing interval between calls of one account
const spacingMargin = 2

// Decision explains the outcome of an acquisition attempt
type Decision uint8

const (
	// Allowed means the request may proceed and has been counted
	Allowed Decision = iota
	// DeniedGlobal means the trailing hour is already at the ceiling
	DeniedGlobal
	// DeniedAccount means the account used its share of the ceiling
	DeniedAccount
	// DeniedSpacing means the account called again too soon
	DeniedSpacing
)

// String returns a stable label for logs and metrics
func (d Decision) String() string {
	switch d {
	case Allowed:
		return "allowed"
	case DeniedGlobal:
		return "global"
	case DeniedAccount:
		return "account"
	case DeniedSpacing:
		return "spacing"
	default:
		return "unknown"
	}
}

// accountWindow is the per-account rolling counter
type accountWindow struct {
	history       []time.Time
	windowStart   time.Time
	lastRequestAt time.Time
}

// Budget is the shared request budget; safe for concurrent use
type Budget struct {
	mu       sync.Mutex
	ceiling  int
	history  []time.Time
	accounts map[string]*accountWindow
	pruned   time.Time
	now      func() time.Time
}

// Option mutates a Budget during New
type Option func(*Budget)

// WithClock replaces the time source (tests)
func WithClock(now func() time.Time) Option {
	return func(b *Budget) {
		if now != nil {
			b.now = now
		}
	}
}

// New builds a Budget for the given hourly ceiling; non-positive uses DefaultCeiling
func New(ceiling int, opts ...Option) *Budget {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	b := &Budget{
		ceiling:  ceiling,
		accounts: make(map[string]*accountWindow),
		now:      time.Now,
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Ceiling returns the configured hourly ceiling
func (b *Budget) Ceiling() int { return b.ceiling }

// AccountLimit is the most one account may use within the window
func (b *Budget) AccountLimit() int {
	return max(1, b.ceiling/accountShare)
}

// MinSpacing is the minimum gap between two calls of the same account
func (b *Budget) MinSpacing() time.Duration {
	return Window / time.Duration(b.ceiling) * spacingMargin
}

// TryAcquire reports whether accountID may make one request now
func (b *Budget) TryAcquire(accountID string) bool {
	return b.Acquire(accountID) == Allowed
}

// Acquire applies the global, per-account, and spacing gates in that order.
// On Allowed the request is recorded against both counters
func (b *Budget) Acquire(accountID string) Decision {
	return b.acquire(accountID, true)
}

// AcquireFollowUp counts a second request belonging to an operation that
// already passed Acquire. The global and per-account gates still apply;
// spacing does not, since the first request set it
func (b *Budget) AcquireFollowUp(accountID string) Decision {
	return b.acquire(accountID, false)
}

func (b *Budget) acquire(accountID string, spaced bool) Decision {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.now()
	cutoff := now.Add(-Window)
	b.history = sweep(b.history, cutoff)
	if now.Sub(b.pruned) >= b.MinSpacing() {
		b.prune(cutoff)
		b.pruned = now
	}

	if len(b.history) >= b.ceiling {
		return DeniedGlobal
	}

	aw := b.accounts[accountID]
	if aw != nil {
		aw.history = sweep(aw.history, cutoff)
		if len(aw.history) > 0 {
			aw.windowStart = aw.history[0]
		}
		if len(aw.history) >= b.AccountLimit() {
			return DeniedAccount
		}
		if spaced && !aw.lastRequestAt.IsZero() && now.Sub(aw.lastRequestAt) < b.MinSpacing() {
			return DeniedSpacing
		}
	} else {
		aw = &accountWindow{}
		b.accounts[accountID] = aw
	}

	if len(aw.history) == 0 {
		aw.windowStart = now
	}
	aw.history = append(aw.history, now)
	aw.lastRequestAt = now
	b.history = append(b.history, now)
	return Allowed
}

// Stats is a read-only view of the budget
type Stats struct {
	Ceiling      int                     `json:"ceiling"`
	Used         int                     `json:"used"`
	AccountLimit int                     `json:"account_limit"`
	MinSpacing   time.Duration           `json:"min_spacing"`
	Accounts     map[string]AccountStats `json:"accounts"`
}

// AccountStats is a read-only view of one account window
type AccountStats struct {
	Count         int       `json:"count"`
	WindowStart   time.Time `json:"window_start"`
	LastRequestAt time.Time `json:"last_request_at"`
}

// Snapshot returns current usage after sweeping expired entries
func (b *Budget) Snapshot() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	cutoff := b.now().Add(-Window)
	b.history = sweep(b.history, cutoff)
	out := Stats{
		Ceiling:      b.ceiling,
		Used:         len(b.history),
		AccountLimit: b.AccountLimit(),
		MinSpacing:   b.MinSpacing(),
		Accounts:     make(map[string]AccountStats, len(b.accounts)),
	}
	b.prune(cutoff)
	for id, aw := range b.accounts {
		out.Accounts[id] = AccountStats{
			Count:         len(aw.history),
			WindowStart:   aw.windowStart,
			LastRequestAt: aw.lastRequestAt,
		}
	}
	return out
}

// prune sweeps every account window and drops the ones that aged out entirely.
// Windows outlive detached chains so a re-attached account keeps its usage
func (b *Budget) prune(cutoff time.Time) {
	for id, aw := range b.accounts {
		aw.history = sweep(aw.history, cutoff)
		if len(aw.history) == 0 && !aw.lastRequestAt.After(cutoff) {
			delete(b.accounts, id)
		}
	}
}

// sweep drops leading timestamps at or before cutoff; h is sorted ascending
func sweep(h []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(h) && !h[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return h
	}
	// copy down so the backing array does not grow without bound
	n := copy(h, h[i:])
	return h[:n]
}
