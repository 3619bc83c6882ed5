package service

import (
	"slices"
	"time"

	"instapilot/internal/services/automation/domain"
)

// Decide runs rule resolution for ev over a workspace's rules without touching any store:
// class filter, per-type duplicate resolution, trigger and schedule. Quota is checked by the engine
func Decide(ev domain.Event, rules []domain.Rule, now time.Time) domain.Decision {
	if ev.Class == domain.ClassMention {
		return domain.Decision{Verdict: domain.VerdictIgnored, Reason: "mentions are not automated"}
	}

	var cand []domain.Rule
	for _, r := range rules {
		if r.IsActive && r.WorkspaceID == ev.Account.WorkspaceID && r.Answers(ev.Class) {
			cand = append(cand, r)
		}
	}
	if len(cand) == 0 {
		return domain.Decision{Verdict: domain.VerdictNoRule, Reason: "no active rule for " + string(ev.Class)}
	}

	survivors, losers := resolveDuplicates(cand)
	d := domain.Decision{Deactivate: losers}

	for i := range survivors {
		r := survivors[i]
		ok, term, why := triggered(r, ev.Text)
		if !ok {
			if d.Reason == "" {
				d.Reason = why
			}
			continue
		}
		d.Rule, d.Matched, d.Reason = &r, term, ""
		if open, why := inWindow(r, now, ev.Account.Location()); !open {
			d.Verdict, d.Reason = domain.VerdictOutsideWindow, why
			return d
		}
		d.Verdict = domain.VerdictArmed
		return d
	}
	d.Verdict = domain.VerdictNotTriggered
	return d
}

// resolveDuplicates keeps the newest rule of every type and returns the ids of the rest.
// Survivors come back newest first
func resolveDuplicates(cand []domain.Rule) (survivors []domain.Rule, losers []string) {
	sorted := slices.Clone(cand)
	slices.SortStableFunc(sorted, func(a, b domain.Rule) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		// same instant: higher id wins so every pass converges on the same rule
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	kept := make(map[domain.RuleType]bool, 3)
	for _, r := range sorted {
		if kept[r.Type] {
			losers = append(losers, r.ID)
			continue
		}
		kept[r.Type] = true
		survivors = append(survivors, r)
	}
	return survivors, losers
}
