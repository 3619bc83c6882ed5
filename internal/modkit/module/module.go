// Package module defines the contract service modules satisfy and the
// helpers the host uses to wire them together
package module

import phttp "instapilot/internal/platform/net/http"

// Module mounts routes and exposes a port set for cross wiring
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
