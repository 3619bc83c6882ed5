package module

import (
	"context"

	"instapilot/internal/services/automation/domain"
	webhook "instapilot/internal/services/webhook/domain"
)

// EventHandler is the automation side of an inbound event
type EventHandler interface {
	Handle(ctx context.Context, ev domain.Event) error
}

// WebhookHandler adapts webhook events onto the rule engine
type WebhookHandler struct {
	Engine EventHandler
}

var _ webhook.Handler = WebhookHandler{}

// Handle converts ev and hands it to the engine
func (h WebhookHandler) Handle(ctx context.Context, ev webhook.Event) error {
	return h.Engine.Handle(ctx, domain.FromWebhook(ev))
}
