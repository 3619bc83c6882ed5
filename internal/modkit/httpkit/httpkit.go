// Package httpkit is what service modules use to mount routes, so they never
// import the platform transport packages directly
package httpkit

import (
	"net/http"
	"strings"
	"time"

	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/platform/net/middleware"
)

type (
	// Envelope is the JSON body every ops route answers with
	Envelope = phttp.Envelope
	Handler  = phttp.Handler
	Router   = phttp.Router
)

// Get mounts a body-less handler; its result or error is enveloped
func Get(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, phttp.CallHandler(h))
}

// Post is Get for POST routes that take no body
func Post(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, phttp.CallHandler(h))
}

// PostJSON mounts a POST route that decodes and validates a T body
func PostJSON[T any](r Router, path string, h func(*http.Request, T) (any, error)) {
	r.Post(path, phttp.JSONHandler(h))
}

// MountAPIV1 mounts everything mount registers under /api/v1 behind mw
func MountAPIV1(r Router, mw []func(http.Handler) http.Handler, mount func(Router)) {
	mountVersion(r, "v1", mw, mount)
}

func mountVersion(r Router, version string, mw []func(http.Handler) http.Handler, mount func(Router)) {
	r.Route("/api/"+strings.Trim(version, "/"), func(api Router) {
		if len(mw) > 0 {
			api.Use(mw...)
		}
		mount(api)
	})
}

// CommonStack is the middleware the ops API runs behind
func CommonStack() []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		middleware.RequestID(),
		middleware.RealIP(),
		middleware.RecoverJSON,
		middleware.NoCache(),
		middleware.AccessLog(500 * time.Millisecond),
		middleware.CORS(middleware.CORSOptions{}),
		middleware.Compress(0),
		middleware.RedirectSlashes(),
		middleware.Timeout(30 * time.Second),
	}
}
