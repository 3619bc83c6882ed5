package module

import (
	"instapilot/internal/adapters/instagram"
	"instapilot/internal/adapters/responder"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/automation/domain"
	webhook "instapilot/internal/services/webhook/domain"
)

// Ports defines automation module ports exposed via the registry
type Ports struct {
	// Handler receives first-sight webhook events
	Handler webhook.Handler
}

// Needs are the process-wide collaborators the host injects with modkit.WithPorts.
// Producer and Sender override the OpenAI and Graph defaults
type Needs struct {
	Budget   *ratebudget.Budget
	Graph    *instagram.Client
	Metrics  *metrics.Registry
	Producer responder.Producer
	Sender   domain.Sender
}
