package module

import (
	"time"

	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/config"
	"instapilot/internal/services/poller/service"
)

// Options controls the poller. Values are read from env
type Options struct {
	// Ceiling is the hourly Graph call budget shared with the dispatcher
	Ceiling int

	Tiers             service.Tiers
	NightStart        int
	NightEnd          int
	NoChangeThreshold int
	IdleAfter         time.Duration
	ActiveWithin      time.Duration

	RateLimitedBackoff time.Duration
	InitialJitter      time.Duration
	PollTimeout        time.Duration

	// ReconcileEvery is a cron schedule for the attach/detach sweep
	ReconcileEvery string
	// Autostart runs a reconcile pass when the module starts
	Autostart bool
}

// FromConfig reads options using POLLER_ prefix
func FromConfig(cfg config.Conf) Options {
	p := cfg.Prefix("POLLER_")
	def := service.DefaultConfig()
	t := def.Policy.Tiers
	return Options{
		Ceiling: p.MayInt("HOURLY_CEILING", ratebudget.DefaultCeiling),
		Tiers: service.Tiers{
			Active:  p.MayDuration("TIER_ACTIVE", t.Active),
			Default: p.MayDuration("TIER_DEFAULT", t.Default),
			Reduced: p.MayDuration("TIER_REDUCED", t.Reduced),
			Minimal: p.MayDuration("TIER_MINIMAL", t.Minimal),
			Night:   p.MayDuration("TIER_NIGHT", t.Night),
		},
		NightStart:         p.MayInt("NIGHT_START_HOUR", def.Policy.NightStart),
		NightEnd:           p.MayInt("NIGHT_END_HOUR", def.Policy.NightEnd),
		NoChangeThreshold:  p.MayInt("NO_CHANGE_THRESHOLD", def.Policy.NoChangeThreshold),
		IdleAfter:          p.MayDuration("IDLE_AFTER", def.Policy.IdleAfter),
		ActiveWithin:       p.MayDuration("ACTIVE_WITHIN", def.Policy.ActiveWithin),
		RateLimitedBackoff: p.MayDuration("RATE_LIMITED_BACKOFF", def.RateLimitedBackoff),
		InitialJitter:      p.MayDuration("INITIAL_JITTER", def.InitialJitter),
		PollTimeout:        p.MayDuration("POLL_TIMEOUT", def.PollTimeout),
		ReconcileEvery:     p.MayString("RECONCILE_SCHEDULE", "@every 1m"),
		Autostart:          p.MayBool("AUTOSTART", true),
	}
}

// schedulerConfig maps options onto the scheduler configuration
func (o Options) schedulerConfig() service.Config {
	return service.Config{
		Policy: service.Policy{
			Tiers:             o.Tiers,
			NightStart:        o.NightStart,
			NightEnd:          o.NightEnd,
			NoChangeThreshold: o.NoChangeThreshold,
			IdleAfter:         o.IdleAfter,
			ActiveWithin:      o.ActiveWithin,
		},
		RateLimitedBackoff: o.RateLimitedBackoff,
		InitialJitter:      o.InitialJitter,
		PollTimeout:        o.PollTimeout,
	}
}
