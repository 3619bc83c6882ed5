// Package http serves the liveness, readiness and build info routes
package http

import (
	"context"
	"net/http"
	"time"

	"instapilot/internal/core/version"
	"instapilot/internal/modkit/httpkit"
	perr "instapilot/internal/platform/errors"
)

// readyTimeout bounds the backend pings behind /meta/ready
const readyTimeout = 2 * time.Second

// Deps are the handler dependencies. Guard and Modules may be nil
type Deps struct {
	Service   string
	StartedAt time.Time
	Backends  []string
	Guard     func(context.Context) error
	Modules   func() []string
	Now       func() time.Time
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK      bool   `json:"ok"`
	Service string `json:"service"`
	Started string `json:"started"`
	Now     string `json:"now"`
}

// ReadyResponse lists the backends that answered
type ReadyResponse struct {
	Status   string   `json:"status"`
	Backends []string `json:"backends"`
	Now      string   `json:"now"`
}

// ServiceResponse describes the running process
type ServiceResponse struct {
	Name    string   `json:"name"`
	Started string   `json:"started"`
	Uptime  int64    `json:"uptime"`
	Modules []string `json:"modules"`
}

type handlers struct{ d Deps }

// Register mounts the meta routes on r
func Register(r httpkit.Router, d Deps) {
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Backends == nil {
		d.Backends = []string{}
	}
	h := &handlers{d: d}
	httpkit.Get(r, "/health", h.health)
	httpkit.Get(r, "/ready", h.ready)
	httpkit.Get(r, "/version", h.version)
	httpkit.Get(r, "/service", h.service)
}

func (h *handlers) stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func (h *handlers) health(_ *http.Request) (any, error) {
	return HealthResponse{
		OK:      true,
		Service: h.d.Service,
		Started: h.stamp(h.d.StartedAt),
		Now:     h.stamp(h.d.Now()),
	}, nil
}

// ready answers 503 while any enabled backend fails its ping
func (h *handlers) ready(r *http.Request) (any, error) {
	if h.d.Guard != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := h.d.Guard(ctx); err != nil {
			return nil, perr.Unavailablef("not ready: %v", err)
		}
	}
	return ReadyResponse{Status: "ok", Backends: h.d.Backends, Now: h.stamp(h.d.Now())}, nil
}

func (h *handlers) version(_ *http.Request) (any, error) {
	return version.Info(), nil
}

func (h *handlers) service(_ *http.Request) (any, error) {
	mods := []string{}
	if h.d.Modules != nil {
		mods = h.d.Modules()
	}
	return ServiceResponse{
		Name:    h.d.Service,
		Started: h.stamp(h.d.StartedAt),
		Uptime:  int64(h.d.Now().Sub(h.d.StartedAt) / time.Second),
		Modules: mods,
	}, nil
}
