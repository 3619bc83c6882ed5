// Package metrics exposes Prometheus collectors for HTTP traffic and the
// automation pipeline. All collectors live on one private registry
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "instapilot"

// Registry bundles the collectors used across services
type Registry struct {
	reg *prometheus.Registry

	httpDuration *prometheus.HistogramVec
	httpTotal    *prometheus.CounterVec

	budget     *prometheus.CounterVec
	polls      *prometheus.CounterVec
	webhooks   *prometheus.CounterVec
	dispatches *prometheus.CounterVec
	chains     prometheus.Gauge
	pending    prometheus.Gauge
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the process-wide registry
func Default() *Registry {
	defaultOnce.Do(func() { defaultReg = New() })
	return defaultReg
}

// New builds a fresh registry; tests use this to avoid shared counters
func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Latency distribution for inbound HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
	r.httpTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of inbound HTTP requests.",
	}, []string{"method", "route", "status"})

	r.budget = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ratebudget",
		Name:      "decisions_total",
		Help:      "Rate budget acquisitions by caller and decision.",
	}, []string{"caller", "decision"})
	r.polls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "polls_total",
		Help:      "Account polls by outcome and next tier.",
	}, []string{"outcome", "tier"})
	r.webhooks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "webhook",
		Name:      "events_total",
		Help:      "Webhook events by kind and outcome.",
	}, []string{"kind", "outcome"})
	r.dispatches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "automation",
		Name:      "dispatches_total",
		Help:      "Automation dispatches by class and outcome.",
	}, []string{"class", "outcome"})
	r.chains = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "poller",
		Name:      "chains",
		Help:      "Accounts with a live polling chain.",
	})
	r.pending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "automation",
		Name:      "pending_dispatches",
		Help:      "Dispatches waiting on their delay or budget.",
	})

	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpDuration, r.httpTotal,
		r.budget, r.polls, r.webhooks, r.dispatches,
		r.chains, r.pending,
	)
	return r
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry for tests
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

// Budget counts one rate budget decision
func (r *Registry) Budget(caller, decision string) {
	r.budget.WithLabelValues(caller, decision).Inc()
}

// Poll counts one poll outcome
func (r *Registry) Poll(outcome, tier string) {
	r.polls.WithLabelValues(outcome, tier).Inc()
}

// Webhook counts one webhook event outcome
func (r *Registry) Webhook(kind, outcome string) {
	r.webhooks.WithLabelValues(kind, outcome).Inc()
}

// Dispatch counts one dispatch outcome
func (r *Registry) Dispatch(class, outcome string) {
	r.dispatches.WithLabelValues(class, outcome).Inc()
}

// Chains sets the number of live polling chains
func (r *Registry) Chains(n int) { r.chains.Set(float64(n)) }

// Pending adjusts the pending dispatch gauge by delta
func (r *Registry) Pending(delta int) { r.pending.Add(float64(delta)) }

// Instrument records latency and status per chi route pattern
func (r *Registry) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, req)

		route := req.URL.Path
		if rc := chi.RouteContext(req.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := strconv.Itoa(sw.status)
		r.httpTotal.WithLabelValues(req.Method, route, status).Inc()
		r.httpDuration.WithLabelValues(req.Method, route, status).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
