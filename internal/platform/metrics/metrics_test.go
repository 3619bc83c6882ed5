package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersIncrement(t *testing.T) {
	r := New()
	r.Budget("poller", "spacing")
	r.Budget("poller", "spacing")
	r.Poll("changed", "active")
	r.Webhook("message", "dispatched")
	r.Dispatch("dm", "sent")

	if got := testutil.ToFloat64(r.budget.WithLabelValues("poller", "spacing")); got != 2 {
		t.Fatalf("budget counter want 2 got %v", got)
	}
	if got := testutil.ToFloat64(r.dispatches.WithLabelValues("dm", "sent")); got != 1 {
		t.Fatalf("dispatch counter want 1 got %v", got)
	}
}

func TestGauges(t *testing.T) {
	r := New()
	r.Chains(3)
	r.Pending(2)
	r.Pending(-1)
	if got := testutil.ToFloat64(r.chains); got != 3 {
		t.Fatalf("chains want 3 got %v", got)
	}
	if got := testutil.ToFloat64(r.pending); got != 1 {
		t.Fatalf("pending want 1 got %v", got)
	}
}

func TestInstrumentUsesRoutePattern(t *testing.T) {
	r := New()
	mux := chi.NewRouter()
	mux.Use(r.Instrument)
	mux.Get("/accounts/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	mux.Handle("/metrics", r.Handler())

	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/accounts/42")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()

	if got := testutil.ToFloat64(r.httpTotal.WithLabelValues("GET", "/accounts/{id}", "418")); got != 1 {
		t.Fatalf("want one request under the route pattern, got %v", got)
	}

	resp, err = http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if !strings.Contains(string(body), "instapilot_http_requests_total") {
		t.Fatalf("exposition missing http counter")
	}
}
