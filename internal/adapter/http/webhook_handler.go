package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/gin-gonic/gin"
)

type webhookObserver interface {
	ObserveWebhook(status string)
}

// WebhookHandler receives WhatsApp webhook calls for the relay.
type WebhookHandler struct {
	relay   *usecase.Relay
	observe webhookObserver // optional
}

func NewWebhookHandler(relay *usecase.Relay, observe webhookObserver) *WebhookHandler {
	return &WebhookHandler{relay: relay, observe: observe}
}

// GET /webhook
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := firstQuery(c, "mode", "hub.mode")
	token := firstQuery(c, "verify_token", "hub.verify_token")
	challenge := firstQuery(c, "challenge", "hub.challenge")

	body, ok := h.relay.Verify(mode, token, challenge)
	if !ok {
		logging.From(c).Warn("webhook verification failed", "mode", mode)
		c.JSON(http.StatusForbidden, gin.H{"status": "verification_failed"})
		return
	}
	logging.From(c).Info("webhook verified")
	c.String(http.StatusOK, body)
}

// POST /webhook
// Always answers 200 so the provider does not retry; the outcome is in the body.
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.reply(c, usecase.RelayError, err)
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status, err := h.relay.Receive(ctx, raw)
	h.reply(c, status, err)
}

func (h *WebhookHandler) reply(c *gin.Context, status string, err error) {
	if h.observe != nil {
		h.observe.ObserveWebhook(status)
	}
	if err != nil {
		logging.From(c).Error("webhook processing failed", "err", err)
		c.JSON(http.StatusOK, gin.H{"status": status, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

func firstQuery(c *gin.Context, keys ...string) string {
	for _, k := range keys {
		if v := c.Query(k); v != "" {
			return v
		}
	}
	return ""
}
