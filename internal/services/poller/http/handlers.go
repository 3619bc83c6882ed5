// Package http provides the ops transport for the poller
package http

import (
	"context"
	stdhttp "net/http"

	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit/httpkit"
	perr "instapilot/internal/platform/errors"
	accounts "instapilot/internal/services/accounts/domain"
	"instapilot/internal/services/poller/domain"
	"instapilot/internal/services/poller/service"
)

// Deps are what the ops handlers need
type Deps struct {
	Scheduler domain.SchedulerPort
	Accounts  accounts.Repo
	Budget    *ratebudget.Budget
	Reconcile func(ctx context.Context) (service.Result, error)
}

// Register mounts the ops routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{d: d}
	httpkit.PostJSON[domain.AccountRef](r, "/attach", h.attach)
	httpkit.PostJSON[domain.AccountRef](r, "/detach", h.detach)
	httpkit.PostJSON[domain.AccountRef](r, "/force", h.force)
	httpkit.PostJSON[domain.AccountRef](r, "/activity", h.activity)
	httpkit.Post(r, "/reconcile", h.reconcile)
	httpkit.Get(r, "/states", h.states)
	httpkit.Get(r, "/budget", h.budget)
}

type handlers struct{ d Deps }

// account loads the account and enforces the token's workspace scope
func (h *handlers) account(r *stdhttp.Request, id string) (accounts.Account, error) {
	if h.d.Accounts == nil {
		return accounts.Account{}, perr.Unavailablef("accounts store not wired")
	}
	a, err := h.d.Accounts.ByID(r.Context(), id)
	if err != nil {
		return accounts.Account{}, err
	}
	if ws, _ := httpkit.Tenant(r); ws != "" && ws != a.WorkspaceID {
		return accounts.Account{}, perr.NotFoundf("account %s not found", id)
	}
	return a, nil
}

// @Summary Attach an account's polling chain
// @Tags poller
// @Accept json
// @Produce json
// @Param payload body domain.AccountRef true "Account"
// @Success 200 {object} domain.AttachResult "ok"
// @Router /poller/attach [post]
func (h *handlers) attach(r *stdhttp.Request, in domain.AccountRef) (any, error) {
	a, err := h.account(r, in.AccountID)
	if err != nil {
		return nil, err
	}
	return domain.AttachResult{AccountID: a.ID, Changed: h.d.Scheduler.Attach(a)}, nil
}

// @Summary Detach an account's polling chain
// @Tags poller
// @Accept json
// @Produce json
// @Param payload body domain.AccountRef true "Account"
// @Success 200 {object} domain.AttachResult "ok"
// @Router /poller/detach [post]
func (h *handlers) detach(r *stdhttp.Request, in domain.AccountRef) (any, error) {
	if _, err := h.account(r, in.AccountID); err != nil && !perr.IsCode(err, perr.ErrorCodeNotFound) {
		return nil, err
	}
	return domain.AttachResult{AccountID: in.AccountID, Changed: h.d.Scheduler.Detach(in.AccountID)}, nil
}

// @Summary Poll an account now if the rate budget allows
// @Tags poller
// @Accept json
// @Produce json
// @Param payload body domain.AccountRef true "Account"
// @Success 200 {object} domain.ForceResult "ok"
// @Router /poller/force [post]
func (h *handlers) force(r *stdhttp.Request, in domain.AccountRef) (any, error) {
	if _, err := h.account(r, in.AccountID); err != nil {
		return nil, err
	}
	return domain.ForceResult{AccountID: in.AccountID, Polled: h.d.Scheduler.ForcePoll(r.Context(), in.AccountID)}, nil
}

func (h *handlers) activity(r *stdhttp.Request, in domain.AccountRef) (any, error) {
	if _, err := h.account(r, in.AccountID); err != nil {
		return nil, err
	}
	h.d.Scheduler.NotifyActivity(in.AccountID)
	return in, nil
}

func (h *handlers) reconcile(r *stdhttp.Request) (any, error) {
	if h.d.Reconcile == nil {
		return nil, perr.Unavailablef("reconcile not wired")
	}
	if ws, _ := httpkit.Tenant(r); ws != "" {
		return nil, perr.Forbiddenf("reconcile needs an operator token")
	}
	return h.d.Reconcile(r.Context())
}

// @Summary Current polling state per chain
// @Tags poller
// @Produce json
// @Success 200 {array} domain.PollState "ok"
// @Router /poller/states [get]
func (h *handlers) states(r *stdhttp.Request) (any, error) {
	all := h.d.Scheduler.States()
	ws, _ := httpkit.Tenant(r)
	if ws == "" {
		return all, nil
	}
	out := all[:0]
	for _, st := range all {
		if st.WorkspaceID == ws {
			out = append(out, st)
		}
	}
	return out, nil
}

func (h *handlers) budget(_ *stdhttp.Request) (any, error) {
	if h.d.Budget == nil {
		return nil, perr.Unavailablef("budget not wired")
	}
	return h.d.Budget.Snapshot(), nil
}
