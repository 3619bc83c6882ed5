// Package module wires the rule engine, the dispatcher and the janitor
package module

import (
	"context"
	"net/http"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/adapters/responder"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/platform/auth"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/jobs"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	str "instapilot/internal/platform/strings"
	accounts "instapilot/internal/services/accounts/domain"
	accrepo "instapilot/internal/services/accounts/repo"
	"instapilot/internal/services/automation/domain"
	autohttp "instapilot/internal/services/automation/http"
	"instapilot/internal/services/automation/repo"
	"instapilot/internal/services/automation/service"
)

// Module owns the engine, the pending replies and the pruning job
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	opts     Options
	ports    Ports
	authn    *httpkit.Port
	accounts accounts.Repo
	engine   *service.Engine
	disp     *service.Dispatcher
	janitor  service.Janitor
	runner   *jobs.Runner
	log      logger.Logger
}

// New constructs the automation module; rules, quota and audit live in Postgres
func New(deps modkit.Deps, opts ...modkit.Option) (*Module, error) {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("automation"), modkit.WithPrefix("/automation")}, opts...)...)
	o := FromConfig(deps.Cfg)
	if deps.PG == nil {
		return nil, perr.InvalidArgf("automation module requires postgres")
	}

	var needs Needs
	if n, ok := b.Ports.(Needs); ok {
		needs = n
	}
	if needs.Budget == nil {
		needs.Budget = ratebudget.New(ratebudget.DefaultCeiling)
	}
	if needs.Graph == nil {
		needs.Graph = instagram.NewClient(instagram.OptionsFromConfig(deps.Cfg))
	}
	if needs.Metrics == nil {
		needs.Metrics = metrics.Default()
	}
	if needs.Producer == nil {
		needs.Producer = responder.NewOpenAI(o.OpenAI)
	}
	if needs.Sender == nil {
		needs.Sender = service.GraphSender{Client: needs.Graph}
	}

	store := repo.NewPG().Bind(deps.PG)
	var audit domain.AuditSink = store
	if deps.CH != nil && o.MirrorAudit {
		audit = repo.Tee(store, repo.CHAudit{CH: deps.CH})
	}

	disp, err := service.NewDispatcher(o.Dispatcher, service.DispatcherDeps{
		Budget:   needs.Budget,
		Producer: needs.Producer,
		Sender:   needs.Sender,
		Quota:    store,
		Audit:    audit,
		Metrics:  needs.Metrics,
	})
	if err != nil {
		return nil, err
	}
	engine := service.NewEngine(service.EngineDeps{
		Rules:    store,
		Quota:    store,
		Audit:    audit,
		Dispatch: disp,
		Metrics:  needs.Metrics,
	})

	return &Module{
		deps:     deps,
		name:     b.Name,
		prefix:   b.Prefix,
		mws:      b.Mw,
		opts:     o,
		ports:    Ports{Handler: WebhookHandler{Engine: engine}},
		authn:    httpkit.NewPortFunc(auth.Parser(auth.FromConfig(deps.Cfg))),
		accounts: accrepo.NewPG().Bind(deps.PG),
		engine:   engine,
		disp:     disp,
		janitor:  service.Janitor{Store: store, QuotaRetention: o.QuotaRetention, AuditRetention: o.AuditRetention},
		runner:   jobs.New(nil),
		log:      *logger.Named("automation"),
	}, nil
}

// Start schedules the janitor
func (m *Module) Start(context.Context) error {
	if err := m.runner.Add("automation.janitor", m.opts.JanitorSchedule, m.janitor.Run); err != nil {
		return err
	}
	m.runner.Start()
	m.log.Info().Str("janitor", m.opts.JanitorSchedule).Bool("strict", m.opts.Dispatcher.Strict).Msg("automation started")
	return nil
}

// Stop halts the janitor and cancels pending replies
func (m *Module) Stop() {
	m.runner.Stop()
	m.disp.Stop()
}

// Engine returns the rule engine
func (m *Module) Engine() *service.Engine { return m.engine }

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the JWT protected ops routes
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.prefix, func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		httpkit.Protected(rr, m.authn, func(pr httpkit.Router) {
			autohttp.Register(pr, autohttp.Deps{Engine: m.engine, Accounts: m.accounts, Pending: m.disp.Pending})
		})
	})
}
