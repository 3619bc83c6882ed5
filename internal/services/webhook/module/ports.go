package module

import (
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/webhook/domain"
)

// Ports defines webhook module ports exposed via the registry
type Ports struct {
	Gateway domain.GatewayPort
}

// Needs are injected with modkit.WithPorts; Handler is required
type Needs struct {
	Handler  domain.Handler
	Activity domain.ActivityNotifier
	Metrics  *metrics.Registry
}
