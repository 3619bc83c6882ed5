// Package service authenticates webhook deliveries and routes owned events downstream
package service

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"

	"instapilot/internal/core/dedup"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	"instapilot/internal/platform/metrics"
	"instapilot/internal/services/webhook/domain"
)

// Config carries the shared secrets
type Config struct {
	VerifyToken string
	AppSecret   string
	// SkipSignature disables HMAC checks; local testing only
	SkipSignature bool
	DedupCapacity int
}

// Deps are the gateway collaborators; Activity and Metrics are optional
type Deps struct {
	Owners   domain.OwnerResolver
	Handler  domain.Handler
	Activity domain.ActivityNotifier
	Seen     *dedup.Set
	Metrics  *metrics.Registry
}

// Gateway verifies and fans out webhook deliveries
type Gateway struct {
	cfg      Config
	owners   domain.OwnerResolver
	handler  domain.Handler
	activity domain.ActivityNotifier
	seen     *dedup.Set
	metrics  *metrics.Registry
	log      logger.Logger
}

var _ domain.GatewayPort = (*Gateway)(nil)

// New builds a Gateway
func New(cfg Config, d Deps) *Gateway {
	g := &Gateway{
		cfg:      cfg,
		owners:   d.Owners,
		handler:  d.Handler,
		activity: d.Activity,
		seen:     d.Seen,
		metrics:  d.Metrics,
		log:      *logger.Named("webhook"),
	}
	if g.seen == nil {
		g.seen = dedup.New(cfg.DedupCapacity)
	}
	if g.metrics == nil {
		g.metrics = metrics.Default()
	}
	if cfg.SkipSignature {
		g.log.Warn().Msg("signature checks disabled")
	}
	return g
}

// Verify answers the subscription handshake
func (g *Gateway) Verify(mode, token, challenge string) (string, error) {
	if mode != "subscribe" {
		return "", perr.Forbiddenf("webhook: unexpected mode %q", mode)
	}
	if g.cfg.VerifyToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(g.cfg.VerifyToken)) != 1 {
		return "", perr.Forbiddenf("webhook: verify token mismatch")
	}
	return challenge, nil
}

// Deliver authenticates body and processes each entry in isolation.
// Only authentication failures are returned; everything else ends up in the summary
func (g *Gateway) Deliver(ctx context.Context, body []byte, signature string) (domain.Summary, error) {
	if !g.cfg.SkipSignature {
		if err := checkSignature(g.cfg.AppSecret, body, signature); err != nil {
			g.metrics.Webhook("delivery", "unauthenticated")
			return domain.Summary{}, err
		}
	}

	var sum domain.Summary
	env, err := parseEnvelope(body)
	if err != nil {
		g.log.Warn().Err(err).Int("bytes", len(body)).Msg("dropping delivery")
		g.metrics.Webhook("delivery", "malformed")
		sum.Failed++
		return sum, nil
	}

	sum.Entries = len(env.Entry)
	for i, raw := range env.Entry {
		g.entry(ctx, i, raw, &sum)
	}

	g.log.Debug().
		Str("object", env.Object).
		Int("entries", sum.Entries).
		Int("handled", sum.Handled).
		Int("duplicates", sum.Duplicates).
		Int("failed", sum.Failed).
		Msg("delivery processed")
	return sum, nil
}

// entry processes one entry; panics and errors stay inside it
func (g *Gateway) entry(ctx context.Context, idx int, raw json.RawMessage, sum *domain.Summary) {
	defer func() {
		if rec := recover(); rec != nil {
			sum.Failed++
			g.metrics.Webhook("entry", "panic")
			g.log.Error().Int("entry", idx).Str("panic", fmt.Sprint(rec)).Msg("entry panicked")
		}
	}()

	e, err := parseEntry(raw)
	if err != nil {
		sum.Failed++
		g.metrics.Webhook("entry", "malformed")
		g.log.Warn().Err(err).Int("entry", idx).Msg("skipping entry")
		return
	}

	items := eventsOf(e)
	if len(items) == 0 {
		return
	}
	owner, ok, err := g.owners.Owner(ctx, e.ID)
	if err != nil {
		sum.Failed += len(items)
		g.metrics.Webhook("entry", "owner_error")
		g.log.Error().Err(err).Str("platform_id", e.ID).Msg("owner lookup failed")
		return
	}
	if !ok {
		sum.Unowned += len(items)
		g.metrics.Webhook("entry", "unowned")
		g.log.Debug().Str("platform_id", e.ID).Msg("no connected account for entry")
		return
	}
	notified := false
	for _, it := range items {
		switch {
		case it.broken != nil:
			sum.Failed++
			g.metrics.Webhook("event", "malformed")
			g.log.Warn().Err(it.broken).Str("account_id", owner.ID).Msg("skipping event")
			continue
		case it.skip != "":
			sum.Skipped++
			g.metrics.Webhook("event", "skipped")
			continue
		}

		ev := it.ev
		ev.Owner = owner
		sum.Events++
		if ev.SenderID != "" && ev.SenderID == owner.IGUserID {
			sum.Skipped++
			g.metrics.Webhook(string(ev.Kind), "self")
			continue
		}
		// echoes and our own replies must not promote the account's polling tier
		if g.activity != nil && !notified {
			g.activity.NotifyActivity(owner.ID)
			notified = true
		}
		if !g.seen.CheckAndMark(ev.Key) {
			sum.Duplicates++
			g.metrics.Webhook(string(ev.Kind), "duplicate")
			continue
		}
		if err := g.handler.Handle(ctx, ev); err != nil {
			sum.Failed++
			g.metrics.Webhook(string(ev.Kind), "failed")
			g.log.Error().Err(err).Str("key", ev.Key).Str("account_id", owner.ID).Msg("event handler failed")
			continue
		}
		sum.Handled++
		g.metrics.Webhook(string(ev.Kind), "handled")
	}
}
