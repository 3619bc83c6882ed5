package httpkit

import (
	"net/http"
	"strings"

	perr "instapilot/internal/platform/errors"
	pnet "instapilot/internal/platform/net"
	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/platform/net/middleware"
)

// TokenFunc verifies a bearer token and names its operator and workspace
type TokenFunc func(token string) (userID string, tenantID string, err error)

// Port reads the Authorization header and hands the token to a TokenFunc
type Port struct {
	parse TokenFunc
}

// NewPortFunc builds a Port around fn
func NewPortFunc(fn TokenFunc) *Port { return &Port{parse: fn} }

// Parse implements middleware.AuthPort. Every failure is the same 401 so
// callers can't tell a malformed header from a bad signature
func (p *Port) Parse(r *http.Request) (string, string, error) {
	scheme, raw, _ := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	raw = strings.TrimSpace(raw)
	if !strings.EqualFold(scheme, "bearer") || raw == "" {
		return "", "", perr.Unauthorizedf("missing bearer token")
	}
	if p.parse == nil {
		return "", "", perr.Unauthorizedf("invalid bearer token")
	}
	uid, tid, err := p.parse(raw)
	if err != nil {
		return "", "", perr.Unauthorizedf("invalid bearer token")
	}
	return uid, tid, nil
}

// Protected mounts fn's routes behind bearer auth
func Protected(r Router, p middleware.AuthPort, fn func(Router)) {
	r.Group(func(gr Router) {
		gr.Use(middleware.Auth(p, phttp.RespondError))
		fn(gr)
	})
}

// Tenant is the workspace the caller's token is scoped to
func Tenant(r *http.Request) (string, error) {
	if ws := pnet.TenantID(r.Context()); ws != "" {
		return ws, nil
	}
	return "", perr.Unauthorizedf("missing tenant scope")
}
