// Package module mounts the meta routes under /meta
package module

import (
	"net/http"
	"time"

	"instapilot/internal/core/version"
	"instapilot/internal/modkit"
	"instapilot/internal/modkit/httpkit"
	str "instapilot/internal/platform/strings"
	metahttp "instapilot/internal/services/api/meta/http"
)

// Needs are optional; Modules feeds the /meta/service listing
type Needs struct {
	Modules func() []string
}

// Module serves liveness, readiness and build info
type Module struct {
	name   string
	prefix string
	mws    []func(http.Handler) http.Handler
	deps   metahttp.Deps
}

// New builds the meta module. Readiness pings whatever deps.Guard covers
func New(deps modkit.Deps, opts ...modkit.Option) *Module {
	b := modkit.Build(append([]modkit.Option{modkit.WithName("meta"), modkit.WithPrefix("/meta")}, opts...)...)
	d := metahttp.Deps{
		Service:   version.Info().Service,
		StartedAt: time.Now(),
		Guard:     deps.Guard,
	}
	if deps.PG != nil {
		d.Backends = append(d.Backends, "pg")
	}
	if deps.CH != nil {
		d.Backends = append(d.Backends, "ch")
	}
	if n, ok := b.Ports.(Needs); ok {
		d.Modules = n.Modules
	}
	return &Module{name: b.Name, prefix: b.Prefix, mws: b.Mw, deps: d}
}

// MountRoutes mounts the meta routes under the module prefix
func (m *Module) MountRoutes(r httpkit.Router) {
	r.Route(m.Prefix(), func(rr httpkit.Router) {
		if len(m.mws) > 0 {
			rr.Use(m.mws...)
		}
		metahttp.Register(rr, m.deps)
	})
}

func (m *Module) Name() string   { return str.MustString(m.name, "meta") }
func (m *Module) Prefix() string { return str.MustPrefix(m.prefix) }

// Ports is nil; nothing wires against meta
func (m *Module) Ports() any { return nil }
