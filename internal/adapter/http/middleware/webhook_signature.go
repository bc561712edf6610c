package middleware

import (
	"bytes"
	"io"
	"net/http"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20 // 1MB

type WebhookSignature struct {
	signer *security.WebhookSigner
}

func NewWebhookSignature(signer *security.WebhookSigner) *WebhookSignature {
	return &WebhookSignature{signer: signer}
}

// Verify checks X-Hub-Signature-256 against the raw body and restores the
// body for the next handler. It is a no-op when no secret is configured.
func (ws *WebhookSignature) Verify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ws.signer.Enabled() {
			c.Next()
			return
		}

		// --- Read raw body ---
		rawBody, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		_ = c.Request.Body.Close()

		if err := ws.signer.Verify(rawBody, c.GetHeader("X-Hub-Signature-256")); err != nil {
			logging.From(c).Warn("webhook signature rejected", "err", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "signature verification failed"})
			return
		}

		c.Request.Body = io.NopCloser(bytes.NewReader(rawBody))
		c.Request.ContentLength = int64(len(rawBody))
		c.Next()
	}
}
