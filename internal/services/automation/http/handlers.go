// Package http provides the ops transport for the rule engine
package http

import (
	"context"
	stdhttp "net/http"

	"instapilot/internal/modkit/httpkit"
	perr "instapilot/internal/platform/errors"
	accounts "instapilot/internal/services/accounts/domain"
	"instapilot/internal/services/automation/domain"
)

// Previewer evaluates an event without side effects
type Previewer interface {
	Preview(ctx context.Context, ev domain.Event) (domain.Decision, error)
}

// Deps are what the ops handlers need
type Deps struct {
	Engine   Previewer
	Accounts accounts.Repo
	Pending  func() int
}

// Register mounts the ops routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{d: d}
	httpkit.PostJSON[domain.PreviewRequest](r, "/preview", h.preview)
	httpkit.Get(r, "/dispatch", h.dispatch)
}

type handlers struct{ d Deps }

// @Summary Dry run the rule engine for one account
// @Tags automation
// @Accept json
// @Produce json
// @Param payload body domain.PreviewRequest true "Event"
// @Success 200 {object} domain.PreviewResult "ok"
// @Router /automation/preview [post]
func (h *handlers) preview(r *stdhttp.Request, in domain.PreviewRequest) (any, error) {
	if h.d.Accounts == nil || h.d.Engine == nil {
		return nil, perr.Unavailablef("rule engine not wired")
	}
	a, err := h.d.Accounts.ByID(r.Context(), in.AccountID)
	if err != nil {
		return nil, err
	}
	if ws, _ := httpkit.Tenant(r); ws != "" && ws != a.WorkspaceID {
		return nil, perr.NotFoundf("account %s not found", in.AccountID)
	}

	d, err := h.d.Engine.Preview(r.Context(), domain.Event{Class: in.Class, Key: "preview", Account: a, Text: in.Text})
	if err != nil {
		return nil, err
	}
	out := domain.PreviewResult{Verdict: d.Verdict, Matched: d.Matched, Reason: d.Reason, Duplicates: d.Deactivate}
	if d.Rule != nil {
		out.RuleID, out.RuleName = d.Rule.ID, d.Rule.Name
	}
	return out, nil
}

// @Summary Replies waiting on their delay or rate budget
// @Tags automation
// @Produce json
// @Success 200 {object} domain.DispatchStats "ok"
// @Router /automation/dispatch [get]
func (h *handlers) dispatch(_ *stdhttp.Request) (any, error) {
	if h.d.Pending == nil {
		return nil, perr.Unavailablef("dispatcher not wired")
	}
	return domain.DispatchStats{Pending: h.d.Pending()}, nil
}
