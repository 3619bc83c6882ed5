// Package service runs the adaptive per-account polling chains
package service

import (
	"context"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	accounts "instapilot/internal/services/accounts/domain"
	"instapilot/internal/services/poller/domain"
)

// Config carries scheduler knobs
type Config struct {
	Policy Policy

	// RateLimitedBackoff is the wait after a denied budget acquisition
	RateLimitedBackoff time.Duration
	// InitialJitter spreads first polls after a restart
	InitialJitter time.Duration
	// PollTimeout bounds a single fetch
	PollTimeout time.Duration
}

const minRateLimitedBackoff = 20 * time.Second

// DefaultConfig returns the production scheduler configuration
func DefaultConfig() Config {
	return Config{
		Policy:             DefaultPolicy(),
		RateLimitedBackoff: 30 * time.Second,
		InitialJitter:      30 * time.Second,
		PollTimeout:        20 * time.Second,
	}
}

// Deps are the collaborators a Scheduler needs; Sink, Store and Metrics are optional
type Deps struct {
	Budget  *ratebudget.Budget
	Source  domain.MetricsSource
	Sink    domain.ChangeSink
	Store   domain.StateStore
	Metrics *metrics.Registry
}

// Scheduler owns one self-rescheduling chain per attached account
type Scheduler struct {
	cfg     Config
	budget  *ratebudget.Budget
	source  domain.MetricsSource
	sink    domain.ChangeSink
	store   domain.StateStore
	metrics *metrics.Registry
	log     logger.Logger

	now    func() time.Time
	jitter func(max time.Duration) time.Duration

	root   context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	chains  map[string]*chain
	stopped bool
}

type chain struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
	reset  chan time.Duration

	// activity is the last NotifyActivity time in unix nanos
	activity atomic.Int64
	// view is the state published after each poll for lock-free reads
	view atomic.Pointer[domain.PollState]

	// mu serializes polls for this account; state is only touched under it
	mu    sync.Mutex
	state domain.PollState
}

var _ domain.SchedulerPort = (*Scheduler)(nil)

// New validates cfg and builds an idle scheduler
func New(cfg Config, d Deps) (*Scheduler, error) {
	if err := cfg.Policy.Validate(); err != nil {
		return nil, err
	}
	if cfg.RateLimitedBackoff < minRateLimitedBackoff {
		cfg.RateLimitedBackoff = minRateLimitedBackoff
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 20 * time.Second
	}
	if d.Budget == nil {
		d.Budget = ratebudget.New(ratebudget.DefaultCeiling)
	}
	if d.Metrics == nil {
		d.Metrics = metrics.Default()
	}
	root, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cfg:     cfg,
		budget:  d.Budget,
		source:  d.Source,
		sink:    d.Sink,
		store:   d.Store,
		metrics: d.Metrics,
		log:     *logger.Named("poller"),
		now:     time.Now,
		jitter: func(max time.Duration) time.Duration {
			if max <= 0 {
				return 0
			}
			return rand.N(max)
		},
		root:   root,
		cancel: cancel,
		chains: make(map[string]*chain),
	}, nil
}

// Attach starts a chain for acct; it reports false when one already runs
func (s *Scheduler) Attach(acct accounts.Account) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.chains[acct.ID]; ok {
		s.mu.Unlock()
		return false
	}
	ctx, cancel := context.WithCancel(s.root)
	c := &chain{
		id:     acct.ID,
		cancel: cancel,
		done:   make(chan struct{}),
		reset:  make(chan time.Duration, 1),
		state: domain.PollState{
			AccountID:   acct.ID,
			WorkspaceID: acct.WorkspaceID,
			IGUserID:    acct.IGUserID,
			Username:    acct.Username,
			Token:       acct.AccessToken,
			Location:    acct.Location(),
			// an account starts out as recently active
			LastActivityAt: s.now(),
			Tier:           domain.TierDefault,
		},
	}
	c.publish()
	s.chains[acct.ID] = c
	n := len(s.chains)
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.Chains(n)
	s.log.Info().Str("account_id", acct.ID).Str("username", acct.Username).Msg("chain attached")
	go s.run(ctx, c)
	return true
}

// Detach stops the chain for accountID and waits for it to exit
func (s *Scheduler) Detach(accountID string) bool {
	s.mu.Lock()
	c, ok := s.chains[accountID]
	if ok {
		delete(s.chains, accountID)
	}
	n := len(s.chains)
	s.mu.Unlock()
	if !ok {
		return false
	}

	c.cancel()
	<-c.done
	s.metrics.Chains(n)
	s.log.Info().Str("account_id", accountID).Msg("chain detached")
	return true
}

// Update refreshes the identity and credentials of a live chain and reports
// whether anything changed. The next poll uses the new values
func (s *Scheduler) Update(acct accounts.Account) bool {
	c := s.lookup(acct.ID)
	if c == nil {
		return false
	}
	loc := acct.Location()

	c.mu.Lock()
	defer c.mu.Unlock()
	st := &c.state
	if st.Token == acct.AccessToken && st.Username == acct.Username && st.IGUserID == acct.IGUserID &&
		st.WorkspaceID == acct.WorkspaceID && st.Location.String() == loc.String() {
		return false
	}
	st.WorkspaceID = acct.WorkspaceID
	st.IGUserID = acct.IGUserID
	st.Username = acct.Username
	st.Token = acct.AccessToken
	st.Location = loc
	c.publish()
	s.log.Info().Str("account_id", acct.ID).Str("zone", loc.String()).Msg("chain updated")
	return true
}

// NotifyActivity marks the account as recently active; it never blocks on a poll
func (s *Scheduler) NotifyActivity(accountID string) {
	if c := s.lookup(accountID); c != nil {
		c.activity.Store(s.now().UnixNano())
	}
}

// ForcePoll polls now if the budget allows it and restarts the chain's wait.
// It reports false with no side effects when the account is unknown or the budget denies
func (s *Scheduler) ForcePoll(ctx context.Context, accountID string) bool {
	c := s.lookup(accountID)
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	dec := s.budget.Acquire(accountID)
	s.metrics.Budget("poller_force", dec.String())
	if dec != ratebudget.Allowed {
		return false
	}
	next := s.poll(ctx, c)

	// keep only the newest wait
	select {
	case <-c.reset:
	default:
	}
	c.reset <- next
	return true
}

// States returns the latest published state of every chain
func (s *Scheduler) States() []domain.PollState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.PollState, 0, len(s.chains))
	for _, c := range s.chains {
		if v := c.view.Load(); v != nil {
			out = append(out, *v)
		}
	}
	return out
}

// Attached reports the ids of every live chain
func (s *Scheduler) Attached() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.chains))
	for id := range s.chains {
		out = append(out, id)
	}
	return out
}

// Stop cancels every chain and waits for them to exit
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.chains = make(map[string]*chain)
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	s.metrics.Chains(0)
}

func (s *Scheduler) lookup(id string) *chain {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chains[id]
}

func (s *Scheduler) run(ctx context.Context, c *chain) {
	defer s.wg.Done()
	defer close(c.done)

	s.restore(ctx, c)

	timer := time.NewTimer(s.jitter(s.cfg.InitialJitter))
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case d := <-c.reset:
			timer.Reset(d)
			continue
		case <-timer.C:
		}
		timer.Reset(s.tick(ctx, c))
	}
}

// restore merges persisted counters so a restart does not look like a change
func (s *Scheduler) restore(ctx context.Context, c *chain) {
	if s.store == nil {
		return
	}
	saved, ok, err := s.store.Load(ctx, c.id)
	if err != nil {
		s.log.Warn().Err(err).Str("account_id", c.id).Msg("poll state load failed")
		return
	}
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	st := &c.state
	if saved.HasSnapshot {
		st.Record(saved.Snapshot())
	}
	st.ConsecutiveNoChange = saved.ConsecutiveNoChange
	st.LastPolledAt = saved.LastPolledAt
	if saved.LastActivityAt.After(st.LastActivityAt) {
		st.LastActivityAt = saved.LastActivityAt
	}
	if saved.Tier != "" {
		st.Tier = saved.Tier
	}
	c.publish()
}

// tick is one scheduled step: budget gate, then poll
func (s *Scheduler) tick(ctx context.Context, c *chain) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		return s.cfg.RateLimitedBackoff
	}

	dec := s.budget.Acquire(c.id)
	s.metrics.Budget("poller", dec.String())
	if dec != ratebudget.Allowed {
		s.metrics.Poll("rate_limited", string(c.state.Tier))
		s.log.Debug().Str("account_id", c.id).Str("gate", dec.String()).Msg("poll deferred by budget")
		return s.cfg.RateLimitedBackoff
	}
	return s.poll(ctx, c)
}

// poll fetches, diffs and picks the next wait; callers hold c.mu and a budget token
func (s *Scheduler) poll(ctx context.Context, c *chain) (next time.Duration) {
	st := &c.state
	defer func() {
		if rec := recover(); rec != nil {
			s.log.Error().Str("account_id", c.id).Interface("panic", rec).Msg("poll panicked")
			st.Tier = domain.TierReduced
			next = s.cfg.Policy.Tiers.Reduced
			st.NextPollAt = s.now().Add(next)
			c.publish()
			s.metrics.Poll("panic", string(st.Tier))
		}
	}()

	pctx, cancel := context.WithTimeout(ctx, s.cfg.PollTimeout)
	snap, err := s.source.Fetch(pctx, domain.Target{
		AccountID: c.id, IGUserID: st.IGUserID, Token: st.Token, Engagement: st.LastEngagement,
	})
	cancel()

	now := s.now()
	st.LastPolledAt = now
	if a := c.activity.Load(); a > 0 {
		if at := time.Unix(0, a); at.After(st.LastActivityAt) {
			st.LastActivityAt = at
		}
	}

	outcome := "unchanged"
	if err != nil {
		if ctx.Err() != nil {
			return s.cfg.Policy.Tiers.Reduced
		}
		s.log.Warn().Err(err).Str("account_id", c.id).Msg("poll failed")
		outcome = "error"
		st.Tier = domain.TierReduced
		next = s.cfg.Policy.Tiers.Reduced
	} else {
		if st.Differs(snap) {
			outcome = "changed"
			prev, had := st.Snapshot(), st.HasSnapshot
			st.Record(snap)
			st.ConsecutiveNoChange = 0
			if had {
				s.publishChange(ctx, domain.ChangeEvent{
					AccountID:   c.id,
					WorkspaceID: st.WorkspaceID,
					Previous:    prev,
					Current:     snap,
					At:          now,
				})
			}
		} else {
			st.ConsecutiveNoChange++
		}
		st.Tier, next = s.cfg.Policy.Next(*st, now)
	}

	st.NextPollAt = now.Add(next)
	c.publish()
	s.save(ctx, *st)
	s.metrics.Poll(outcome, string(st.Tier))
	s.log.Debug().
		Str("account_id", c.id).
		Str("outcome", outcome).
		Str("tier", string(st.Tier)).
		Int("no_change", st.ConsecutiveNoChange).
		Dur("next", next).
		Msg("polled")
	return next
}

func (s *Scheduler) publishChange(ctx context.Context, ev domain.ChangeEvent) {
	if s.sink == nil {
		return
	}
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("account_id", ev.AccountID).Msg("change publish failed")
	}
}

func (s *Scheduler) save(ctx context.Context, st domain.PollState) {
	if s.store == nil {
		return
	}
	if err := s.store.Save(ctx, st); err != nil {
		s.log.Warn().Err(err).Str("account_id", st.AccountID).Msg("poll state save failed")
	}
}

func (c *chain) publish() {
	v := c.state
	c.view.Store(&v)
}
