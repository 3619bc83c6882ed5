package module

import (
	"instapilot/internal/adapters/instagram"
	"instapilot/internal/core/ratebudget"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/poller/domain"
)

// Ports defines poller module ports exposed via the registry
type Ports struct {
	Scheduler domain.SchedulerPort
	Activity  domain.ActivityNotifier
}

// Needs are the process-wide collaborators the host injects with modkit.WithPorts.
// Budget must be the same instance the dispatcher spends from
type Needs struct {
	Budget  *ratebudget.Budget
	Graph   *instagram.Client
	Metrics *metrics.Registry
}
