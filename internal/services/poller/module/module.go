// Package module wires the poller service and exposes its ports
package module

import (
	"context"
	"net/http"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/platform/auth"
	"instapilot/internal/platform/jobs"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	str "instapilot/internal/platform/strings"
	accrepo "instapilot/internal/services/accounts/repo"
	pollhttp "instapilot/internal/services/poller/http"
	"instapilot/internal/services/poller/repo"
	"instapilot/internal/services/poller/service"
)

// Module owns the scheduler, its reconcile job and the ops routes
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	opts   Options
	needs  Needs
	ports  Ports
	authn  *httpkit.Port
	sched  *service.Scheduler
	recon  service.Reconciler
	runner *jobs.Runner
	log    logger.Logger
}

// New constructs the poller module. Missing injected collaborators get private defaults
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("poller"), modkit.WithPrefix("/poller")}, opts...)...)
	o := FromConfig(deps.Cfg)

	var needs Needs
	if n, ok := b.Ports.(Needs); ok {
		needs = n
	}
	if needs.Budget == nil {
		needs.Budget = ratebudget.New(o.Ceiling)
	}
	if needs.Graph == nil {
		needs.Graph = instagram.NewClient(instagram.OptionsFromConfig(deps.Cfg))
	}
	if needs.Metrics == nil {
		needs.Metrics = metrics.Default()
	}

	d := service.Deps{
		Budget:  needs.Budget,
		Source:  service.GraphSource{Client: needs.Graph.WithoutRetries(), Budget: needs.Budget},
		Metrics: needs.Metrics,
	}
	var recon service.Reconciler
	if deps.PG != nil {
		r := repo.NewPG().Bind(deps.PG)
		d.Sink, d.Store = r, r
		recon.Accounts = accrepo.NewPG().Bind(deps.PG)
	}

	sched, err := service.New(o.schedulerConfig(), d)
	if err != nil {
		return nil, err
	}
	recon.Scheduler = sched

	m := &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		opts:   o,
		needs:  needs,
		authn:  httpkit.NewPortFunc(auth.Parser(auth.FromConfig(deps.Cfg))),
		sched:  sched,
		recon:  recon,
		runner: jobs.New(nil),
		log:    *logger.Named("poller"),
	}
	m.ports = Ports{Scheduler: sched, Activity: sched}
	return m, nil
}

// Start runs a first reconcile pass and schedules the periodic sweep
func (m *Module) Start(ctx context.Context) error {
	if m.recon.Accounts == nil {
		m.log.Warn().Msg("no postgres; accounts must be attached through the ops api")
		return nil
	}
	if m.opts.Autostart {
		if err := m.runner.RunNow(ctx, "poller.reconcile", m.recon.Job); err != nil {
			m.log.Error().Err(err).Msg("initial reconcile failed")
		}
	}
	if err := m.runner.Add("poller.reconcile", m.opts.ReconcileEvery, m.recon.Job); err != nil {
		return err
	}
	m.runner.Start()
	return nil
}

// Stop halts the sweep and every chain
func (m *Module) Stop() {
	m.runner.Stop()
	m.sched.Stop()
}

// Scheduler returns the underlying scheduler
func (m *Module) Scheduler() *service.Scheduler { return m.sched }

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the JWT protected ops routes
func (m *Module) MountRoutes(r httpkit.Router) {
	d := pollhttp.Deps{
		Scheduler: m.sched,
		Accounts:  m.recon.Accounts,
		Budget:    m.needs.Budget,
	}
	if m.recon.Accounts != nil {
		d.Reconcile = m.recon.Run
	}
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		httpkit.Protected(rr, m.authn, func(pr httpkit.Router) {
			pollhttp.Register(pr, d)
		})
	})
}
