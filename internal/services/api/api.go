// Package api composes the service modules into one HTTP surface
package api

import (
	"context"
	"net/http"
	"time"

	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	"instapilot/internal/modkit/module"
	"instapilot/internal/modkit/swaggerkit"
	"instapilot/internal/platform/config"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/platform/net/middleware"
	"instapilot/internal/platform/store"

	metamod "instapilot/internal/services/api/meta/module"
	automod "instapilot/internal/services/automation/module"
	pollmod "instapilot/internal/services/poller/module"
	webmod "instapilot/internal/services/webhook/module"
)

// Options are the API options
type Options struct {
	Config         config.Conf
	Store          *store.Store
	Logger         *logger.Logger
	Metrics        *metrics.Registry
	Budget         *ratebudget.Budget
	Graph          *instagram.Client
	EnableSwagger  bool
	EnableProfiler bool
}

// App holds the modules that own background work
type App struct {
	Poller     *pollmod.Module
	Automation *automod.Module
}

// Start starts the scheduler sweep and the automation janitor
func (a *App) Start(ctx context.Context) error {
	if err := a.Automation.Start(ctx); err != nil {
		return err
	}
	return a.Poller.Start(ctx)
}

// Stop stops polling first so no new activity arrives, then cancels pending replies
func (a *App) Stop() {
	a.Poller.Stop()
	a.Automation.Stop()
}

// Mount builds every module and mounts its routes. Webhooks live at the root,
// ops endpoints under /api/v1 and metrics at /metrics
func Mount(r phttp.Router, opt Options) (*App, error) {
	deps := modkit.Deps{
		Cfg: opt.Config,
		PG:  opt.Store.PG,
		CH:  opt.Store.CH,
	}
	deps.Guard = opt.Store.Guard
	if opt.Logger != nil {
		deps.Log = *opt.Logger
	}
	if opt.Metrics == nil {
		opt.Metrics = metrics.Default()
	}

	poller, err := pollmod.New(deps, modkit.WithPorts(pollmod.Needs{
		Budget:  opt.Budget,
		Graph:   opt.Graph,
		Metrics: opt.Metrics,
	}))
	if err != nil {
		return nil, err
	}
	auto, err := automod.New(deps, modkit.WithPorts(automod.Needs{
		Budget:  opt.Budget,
		Graph:   opt.Graph,
		Metrics: opt.Metrics,
	}))
	if err != nil {
		return nil, err
	}
	hook := webmod.New(deps,
		modkit.WithMiddlewares(webhookStack(opt.Metrics)...),
		modkit.WithPorts(webmod.Needs{
			Handler:  module.MustPortsOf[automod.Ports](auto).Handler,
			Activity: module.MustPortsOf[pollmod.Ports](poller).Activity,
			Metrics:  opt.Metrics,
		}),
	)

	r.Handle("/metrics", opt.Metrics.Handler())
	swaggerkit.Mount(r, opt.EnableSwagger)
	phttp.MountProfiler(r, "/debug", opt.EnableProfiler)

	reg := module.NewRegistry()
	reg.Register(hook)
	hook.MountRoutes(r)

	meta := metamod.New(deps, modkit.WithPorts(metamod.Needs{Modules: reg.Names}))
	ops := []module.Module{meta, poller, auto}
	stack := append(httpkit.CommonStack(), opt.Metrics.Instrument)
	httpkit.MountAPIV1(r, stack, func(api httpkit.Router) {
		for _, m := range ops {
			reg.Register(m)
			m.MountRoutes(api)
		}
	})

	return &App{Poller: poller, Automation: auto}, nil
}

// webhookStack is lighter than the ops stack: no compression, CORS or slash rewriting
func webhookStack(reg *metrics.Registry) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.AccessLog(500 * time.Millisecond),
		reg.Instrument,
	}
}
