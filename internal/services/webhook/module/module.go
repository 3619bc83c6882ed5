// Package module wires the webhook gateway into the HTTP surface
package module

import (
	"net/http"

	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	str "instapilot/internal/platform/strings"
	accrepo "instapilot/internal/services/accounts/repo"
	webhttp "instapilot/internal/services/webhook/http"
	"instapilot/internal/services/webhook/service"
)

// Module implements the webhook module
type Module struct {
	deps   modkit.Deps
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler

	gw    *service.Gateway
	ports Ports
}

// New constructs the webhook module; it needs Postgres for owner lookups
func New(deps modkit.Deps, opts ...modkit.Option) modkit.Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("webhook"), modkit.WithPrefix("/webhooks")}, opts...)...)
	o := FromConfig(deps.Cfg)

	var needs Needs
	if n, ok := b.Ports.(Needs); ok {
		needs = n
	}
	if needs.Handler == nil {
		panic("webhook module requires an event Handler (from services/automation)")
	}
	if deps.PG == nil {
		panic("webhook module requires postgres for owner lookups")
	}

	gw := service.New(service.Config{
		VerifyToken:   o.VerifyToken,
		AppSecret:     o.AppSecret,
		SkipSignature: o.SkipSignature,
		DedupCapacity: o.DedupCapacity,
	}, service.Deps{
		Owners:   service.CandidateOwners{Accounts: accrepo.NewPG().Bind(deps.PG)},
		Handler:  needs.Handler,
		Activity: needs.Activity,
		Metrics:  needs.Metrics,
	})

	return &Module{
		deps:   deps,
		name:   b.Name,
		prefix: b.Prefix,
		mws:    b.Mw,
		gw:     gw,
		ports:  Ports{Gateway: gw},
	}
}

// Name returns the module name
func (m *Module) Name() string { return str.MustString(m.name, "module name") }

// Prefix returns the module route prefix
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// MountRoutes mounts the unauthenticated platform endpoints; deliveries carry their own signature
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.Prefix(), func(rr httpkit.Router) {
		for _, mw := range m.mws {
			rr.Use(mw)
		}
		webhttp.Register(rr, m.gw)
	})
}
