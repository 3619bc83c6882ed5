package domain

import (
	"context"

	accounts "instapilot/internal/services/accounts/domain"
)

// MetricsSource fetches the current counters of an account
type MetricsSource interface {
	Fetch(ctx context.Context, t Target) (Snapshot, error)
}

// ChangeSink receives change events, typically to invalidate cached dashboards
type ChangeSink interface {
	Publish(ctx context.Context, ev ChangeEvent) error
}

// StateStore persists polling memory across restarts
type StateStore interface {
	Load(ctx context.Context, accountID string) (PollState, bool, error)
	Save(ctx context.Context, st PollState) error
}

// SchedulerPort is the poller surface exposed to other modules and the ops API
type SchedulerPort interface {
	Attach(acct accounts.Account) bool
	Detach(accountID string) bool
	NotifyActivity(accountID string)
	ForcePoll(ctx context.Context, accountID string) bool
	States() []PollState
}

// ActivityNotifier is the narrow port the webhook gateway depends on
type ActivityNotifier interface {
	NotifyActivity(accountID string)
}
