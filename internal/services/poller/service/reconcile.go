package service

import (
	"context"

	"instapilot/internal/platform/logger"
	accounts "instapilot/internal/services/accounts/domain"
)

// Reconciler keeps the set of live chains equal to the set of connected accounts
type Reconciler struct {
	Accounts  accounts.Repo
	Scheduler *Scheduler
}

// Result summarizes one reconcile pass
type Result struct {
	Attached int `json:"attached"`
	Updated  int `json:"updated"`
	Detached int `json:"detached"`
	Live     int `json:"live"`
}

// Run attaches new accounts, refreshes live ones and detaches disconnected ones
func (r Reconciler) Run(ctx context.Context) (Result, error) {
	list, err := r.Accounts.ListConnected(ctx)
	if err != nil {
		return Result{}, err
	}

	var res Result
	want := make(map[string]struct{}, len(list))
	for _, a := range list {
		want[a.ID] = struct{}{}
		switch {
		case r.Scheduler.Attach(a):
			res.Attached++
		case r.Scheduler.Update(a):
			res.Updated++
		}
	}
	for _, id := range r.Scheduler.Attached() {
		if _, ok := want[id]; ok {
			continue
		}
		if r.Scheduler.Detach(id) {
			res.Detached++
		}
	}
	res.Live = len(want)

	logger.C(ctx).Info().
		Str("component", "poller").
		Int("attached", res.Attached).
		Int("updated", res.Updated).
		Int("detached", res.Detached).
		Int("live", res.Live).
		Msg("reconciled chains")
	return res, nil
}

// Job adapts Run to the cron runner signature
func (r Reconciler) Job(ctx context.Context) error {
	_, err := r.Run(ctx)
	return err
}
