package service

import (
	"time"

	perr "instapilot/internal/platform/errors"
	"instapilot/internal/services/poller/domain"
)

// Tiers holds the wait before the next poll for each cadence
type Tiers struct {
	Active  time.Duration
	Default time.Duration
	Reduced time.Duration
	Minimal time.Duration
	Night   time.Duration
}

// DefaultTiers returns the production cadences
func DefaultTiers() Tiers {
	return Tiers{
		Active:  time.Minute,
		Default: 3 * time.Minute,
		Reduced: 10 * time.Minute,
		Minimal: 20 * time.Minute,
		Night:   45 * time.Minute,
	}
}

// Validate requires every tier to be positive and strictly slower than the one before
func (t Tiers) Validate() error {
	order := []struct {
		name string
		d    time.Duration
	}{
		{"active", t.Active}, {"default", t.Default}, {"reduced", t.Reduced},
		{"minimal", t.Minimal}, {"night", t.Night},
	}
	for i, o := range order {
		if o.d <= 0 {
			return perr.InvalidArgf("poller: %s tier must be positive, got %s", o.name, o.d)
		}
		if i > 0 && o.d <= order[i-1].d {
			return perr.InvalidArgf("poller: %s tier (%s) must exceed %s tier (%s)",
				o.name, o.d, order[i-1].name, order[i-1].d)
		}
	}
	return nil
}

// For maps a tier to its wait
func (t Tiers) For(tier domain.Tier) time.Duration {
	switch tier {
	case domain.TierActive:
		return t.Active
	case domain.TierReduced:
		return t.Reduced
	case domain.TierMinimal:
		return t.Minimal
	case domain.TierNight:
		return t.Night
	default:
		return t.Default
	}
}

// Policy picks the next cadence from an account's polling memory
type Policy struct {
	Tiers Tiers

	// NightStart and NightEnd bound the quiet hours in account-local time, end exclusive
	NightStart int
	NightEnd   int

	NoChangeThreshold int
	IdleAfter         time.Duration
	ActiveWithin      time.Duration
}

// DefaultPolicy returns the production policy
func DefaultPolicy() Policy {
	return Policy{
		Tiers:             DefaultTiers(),
		NightStart:        0,
		NightEnd:          6,
		NoChangeThreshold: 5,
		IdleAfter:         30 * time.Minute,
		ActiveWithin:      10 * time.Minute,
	}
}

// Validate checks tiers, night hours and thresholds
func (p Policy) Validate() error {
	if err := p.Tiers.Validate(); err != nil {
		return err
	}
	if p.NightStart < 0 || p.NightStart > 23 || p.NightEnd < 0 || p.NightEnd > 24 {
		return perr.InvalidArgf("poller: night hours %d-%d out of range", p.NightStart, p.NightEnd)
	}
	if p.NoChangeThreshold < 1 {
		return perr.InvalidArgf("poller: no-change threshold must be at least 1")
	}
	if p.ActiveWithin <= 0 || p.IdleAfter < p.ActiveWithin {
		return perr.InvalidArgf("poller: idle window (%s) must cover active window (%s)", p.IdleAfter, p.ActiveWithin)
	}
	return nil
}

// Next evaluates the rules in priority order: night, stale counters, idle, active, default
func (p Policy) Next(st domain.PollState, now time.Time) (domain.Tier, time.Duration) {
	tier := p.pick(st, now)
	return tier, p.Tiers.For(tier)
}

func (p Policy) pick(st domain.PollState, now time.Time) domain.Tier {
	loc := st.Location
	if loc == nil {
		loc = time.UTC
	}
	if p.isNight(now.In(loc).Hour()) {
		return domain.TierNight
	}
	if st.ConsecutiveNoChange >= p.NoChangeThreshold {
		return domain.TierReduced
	}
	idle := now.Sub(st.LastActivityAt)
	if idle > p.IdleAfter {
		return domain.TierMinimal
	}
	if idle < p.ActiveWithin {
		return domain.TierActive
	}
	return domain.TierDefault
}

func (p Policy) isNight(h int) bool {
	switch {
	case p.NightStart == p.NightEnd:
		return false
	case p.NightStart < p.NightEnd:
		return h >= p.NightStart && h < p.NightEnd
	default:
		return h >= p.NightStart || h < p.NightEnd
	}
}
