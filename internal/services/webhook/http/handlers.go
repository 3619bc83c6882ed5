// Package http exposes the platform webhook endpoints
package http

import (
	"io"
	stdhttp "net/http"

	"instapilot/internal/modkit/httpkit"
	perr "instapilot/internal/platform/errors"
	"instapilot/internal/platform/logger"
	phttp "instapilot/internal/platform/net/http"
	"instapilot/internal/services/webhook/domain"
	"instapilot/internal/services/webhook/service"
)

// Received is the body every authenticated delivery gets back
const Received = "EVENT_RECEIVED"

// maxBody bounds a delivery
const maxBody = 4 << 20

// Register mounts the verify and delivery endpoints
func Register(r httpkit.Router, g domain.GatewayPort) {
	h := &handlers{g: g}
	r.Get("/instagram", h.verify)
	r.Post("/instagram", h.deliver)
}

type handlers struct{ g domain.GatewayPort }

// @Summary Webhook subscription handshake
// @Tags webhooks
// @Produce plain
// @Param hub.mode query string true "subscribe"
// @Param hub.verify_token query string true "Verify token"
// @Param hub.challenge query string true "Challenge"
// @Success 200 {string} string "challenge"
// @Failure 403 {object} httpkit.Envelope "forbidden"
// @Router /webhooks/instagram [get]
func (h *handlers) verify(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	q := r.URL.Query()
	challenge, err := h.g.Verify(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if err != nil {
		logger.C(r.Context()).Warn().Err(err).Msg("webhook verification refused")
		phttp.RespondError(w, r, err)
		return
	}
	text(w, challenge)
}

// @Summary Receive platform events
// @Tags webhooks
// @Accept json
// @Produce plain
// @Param X-Hub-Signature-256 header string true "sha256=<hex>"
// @Success 200 {string} string "EVENT_RECEIVED"
// @Failure 401 {object} httpkit.Envelope "bad signature"
// @Router /webhooks/instagram [post]
func (h *handlers) deliver(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody+1))
	if err != nil {
		phttp.RespondError(w, r, perr.Wrap(err, perr.ErrorCodeJSON, "webhook: read body"))
		return
	}
	if len(body) > maxBody {
		phttp.RespondError(w, r, perr.JSONErrf("webhook: body exceeds %d bytes", maxBody))
		return
	}
	if _, err := h.g.Deliver(r.Context(), body, r.Header.Get(service.SignatureHeader)); err != nil {
		logger.C(r.Context()).Warn().Err(err).Msg("webhook delivery refused")
		phttp.RespondError(w, r, err)
		return
	}
	text(w, Received)
}

func text(w stdhttp.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(stdhttp.StatusOK)
	_, _ = io.WriteString(w, s)
}
