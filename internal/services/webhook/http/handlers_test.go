package http

import (
	"context"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/platform/metrics"
	phttp "instapilot/internal/platform/net/http"
	accounts "instapilot/internal/services/accounts/domain"
	"instapilot/internal/services/webhook/domain"
	"instapilot/internal/services/webhook/service"

	"github.com/go-chi/chi/v5"
)

type oneOwner struct{}

func (oneOwner) Owner(context.Context, string) (accounts.Account, bool, error) {
	return accounts.Account{ID: "acc-1", IGUserID: "1789"}, true, nil
}

func newServer(t *testing.T) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	handled := &atomic.Int64{}
	gw := service.New(service.Config{VerifyToken: "tok", AppSecret: "s3cret"}, service.Deps{
		Owners:  oneOwner{},
		Handler: domain.HandlerFunc(func(context.Context, domain.Event) error { handled.Add(1); return nil }),
		Metrics: metrics.New(),
	})
	mux := chi.NewRouter()
	phttp.AdaptChi(mux).Route("/webhooks", func(r httpkit.Router) { Register(r, gw) })
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, handled
}

func read(t *testing.T, res *stdhttp.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, _ := io.ReadAll(res.Body)
	return string(b)
}

func TestVerifyEndpoint(t *testing.T) {
	srv, _ := newServer(t)

	res, err := srv.Client().Get(srv.URL + "/webhooks/instagram?hub.mode=subscribe&hub.verify_token=tok&hub.challenge=c-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if body := read(t, res); res.StatusCode != 200 || body != "c-42" {
		t.Fatalf("want 200 c-42, got %d %q", res.StatusCode, body)
	}

	res, err = srv.Client().Get(srv.URL + "/webhooks/instagram?hub.mode=subscribe&hub.verify_token=bad&hub.challenge=c-42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	read(t, res)
	if res.StatusCode != stdhttp.StatusForbidden {
		t.Fatalf("want 403, got %d", res.StatusCode)
	}
}

func post(t *testing.T, srv *httptest.Server, body, sig string) *stdhttp.Response {
	t.Helper()
	req, _ := stdhttp.NewRequest("POST", srv.URL+"/webhooks/instagram", strings.NewReader(body))
	if sig != "" {
		req.Header.Set(service.SignatureHeader, sig)
	}
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return res
}

func TestDeliveryEndpoint(t *testing.T) {
	srv, handled := newServer(t)
	body := `{"object":"instagram","entry":[{"id":"1789","time":1,"changes":[{"field":"comments","value":{"id":"c1","text":"hi","from":{"id":"u1"}}}]}]}`

	res := post(t, srv, body, service.Sign("s3cret", []byte(body)))
	if got := read(t, res); res.StatusCode != 200 || got != Received {
		t.Fatalf("want 200 %s, got %d %q", Received, res.StatusCode, got)
	}
	if handled.Load() != 1 {
		t.Fatalf("event not handled")
	}

	res = post(t, srv, body, service.Sign("wrong", []byte(body)))
	read(t, res)
	if res.StatusCode != stdhttp.StatusUnauthorized {
		t.Fatalf("bad signature: want 401, got %d", res.StatusCode)
	}
}

func TestMalformedEntriesStillAcknowledged(t *testing.T) {
	srv, handled := newServer(t)
	body := `{"object":"instagram","entry":[{"id":7},{"id":"1789","changes":[{"field":"comments","value":{"id":"c9","text":"ok"}}]}]}`
	res := post(t, srv, body, service.Sign("s3cret", []byte(body)))
	if got := read(t, res); res.StatusCode != 200 || got != Received {
		t.Fatalf("want 200, got %d %q", res.StatusCode, got)
	}
	if n := handled.Load(); n != 1 {
		t.Fatalf("healthy entry should be handled, got %d", n)
	}
}
