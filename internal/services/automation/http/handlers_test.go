package http

import (
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/platform/auth"
	perr "instapilot/internal/platform/errors"
	phttp "instapilot/internal/platform/net/http"
	accounts "instapilot/internal/services/accounts/domain"
	"instapilot/internal/services/automation/domain"

	"github.com/go-chi/chi/v5"
)

type previewFunc func(ctx context.Context, ev domain.Event) (domain.Decision, error)

func (f previewFunc) Preview(ctx context.Context, ev domain.Event) (domain.Decision, error) {
	return f(ctx, ev)
}

type fakeAccounts struct{ byID map[string]accounts.Account }

func (f fakeAccounts) ListConnected(context.Context) ([]accounts.Account, error) { return nil, nil }

func (f fakeAccounts) ByID(_ context.Context, id string) (accounts.Account, error) {
	a, ok := f.byID[id]
	if !ok {
		return accounts.Account{}, perr.NotFoundf("account %s not found", id)
	}
	return a, nil
}

func (f fakeAccounts) Candidates(context.Context, string) ([]accounts.Candidate, error) {
	return nil, nil
}

var authCfg = auth.Config{Secret: "test-secret", Issuer: "instapilot", TTL: time.Hour}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	engine := previewFunc(func(_ context.Context, ev domain.Event) (domain.Decision, error) {
		if ev.Class == domain.ClassMention {
			return domain.Decision{Verdict: domain.VerdictIgnored, Reason: "mentions are not automated"}, nil
		}
		r := domain.Rule{ID: "r1", Name: "prices"}
		return domain.Decision{Verdict: domain.VerdictArmed, Rule: &r, Matched: "price", Deactivate: []string{"r0"}}, nil
	})
	accts := fakeAccounts{byID: map[string]accounts.Account{
		"a1": {ID: "a1", WorkspaceID: "ws-1"},
		"a2": {ID: "a2", WorkspaceID: "ws-2"},
	}}

	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	r.Route("/automation", func(rr httpkit.Router) {
		httpkit.Protected(rr, httpkit.NewPortFunc(auth.Parser(authCfg)), func(pr httpkit.Router) {
			Register(pr, Deps{Engine: engine, Accounts: accts, Pending: func() int { return 3 }})
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, workspace, body string) (int, map[string]any) {
	t.Helper()
	tok, err := auth.Issue(authCfg, "ops", workspace, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req, _ := stdhttp.NewRequest(method, srv.URL+path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+tok)
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	defer res.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res.StatusCode, out
}

func TestPreviewReportsDecision(t *testing.T) {
	srv := newServer(t)
	code, body := do(t, srv, "POST", "/automation/preview", "ws-1", `{"account_id":"a1","class":"comment","text":"price?"}`)
	if code != 200 {
		t.Fatalf("preview: %d %v", code, body)
	}
	data, _ := body["data"].(map[string]any)
	if data["verdict"] != "armed" || data["rule_id"] != "r1" || data["matched"] != "price" {
		t.Fatalf("unexpected preview %v", data)
	}
	if dup, _ := data["duplicates"].([]any); len(dup) != 1 {
		t.Fatalf("duplicates should be reported: %v", data)
	}
}

func TestPreviewValidatesClass(t *testing.T) {
	srv := newServer(t)
	if code, _ := do(t, srv, "POST", "/automation/preview", "", `{"account_id":"a1","class":"story"}`); code != stdhttp.StatusBadRequest {
		t.Fatalf("unknown class should be rejected, got %d", code)
	}
}

func TestPreviewIsWorkspaceScoped(t *testing.T) {
	srv := newServer(t)
	if code, _ := do(t, srv, "POST", "/automation/preview", "ws-1", `{"account_id":"a2","class":"dm"}`); code != stdhttp.StatusNotFound {
		t.Fatalf("foreign account should look missing, got %d", code)
	}
}

func TestDispatchStats(t *testing.T) {
	srv := newServer(t)
	code, body := do(t, srv, "GET", "/automation/dispatch", "", "")
	data, _ := body["data"].(map[string]any)
	if code != 200 || data["pending"] != float64(3) {
		t.Fatalf("dispatch: %d %v", code, body)
	}
}
