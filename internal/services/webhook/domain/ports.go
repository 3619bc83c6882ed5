package domain

import (
	"context"

	accounts "instapilot/internal/services/accounts/domain"
)

// OwnerResolver maps a page or account id from a delivery to its owning account
type OwnerResolver interface {
	Owner(ctx context.Context, platformID string) (accounts.Account, bool, error)
}

// Handler receives every first-sight owned event
type Handler interface {
	Handle(ctx context.Context, ev Event) error
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, ev Event) error

// Handle calls f
func (f HandlerFunc) Handle(ctx context.Context, ev Event) error { return f(ctx, ev) }

// ActivityNotifier is told whenever an account receives an event
type ActivityNotifier interface {
	NotifyActivity(accountID string)
}

// GatewayPort is the surface the transport depends on
type GatewayPort interface {
	Verify(mode, token, challenge string) (string, error)
	Deliver(ctx context.Context, body []byte, signature string) (Summary, error)
}
