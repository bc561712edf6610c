package http

import (
	"net/http"
	"strings"
	"time"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/gin-gonic/gin"
)

type TokenHandler struct {
	tokens *security.Tokens
	now    func() time.Time
}

func NewTokenHandler(tokens *security.Tokens) *TokenHandler {
	return &TokenHandler{tokens: tokens, now: time.Now}
}

// POST /v1/token (form)
// Accepts: client_id, client_secret
// Optional: scope (space-separated subset of client's perms)
func (h *TokenHandler) IssueToken(c *gin.Context) {
	clientID := c.PostForm("client_id")
	clientSecret := c.PostForm("client_secret")
	if clientID == "" || clientSecret == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	cl, ok := security.Authenticate(clientID, clientSecret)
	if !ok {
		logging.From(c).Info("client authentication failed", "client_id", clientID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid client"})
		return
	}

	perms := cl.Perms
	if scope := strings.Fields(c.PostForm("scope")); len(scope) > 0 {
		perms = narrow(cl.Perms, scope)
		if len(perms) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_scope"})
			return
		}
	}

	signed, err := h.tokens.Issue(clientID, perms, h.now())
	if err != nil {
		logging.From(c).Error("token signing failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "server_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": signed,
		"token_type":   "Bearer",
		"expires_in":   int(h.tokens.TTL().Seconds()),
		"scope":        strings.Join(perms, " "),
	})
}

// narrow keeps the requested scopes the client actually holds.
func narrow(have, want []string) []string {
	held := make(map[string]bool, len(have))
	for _, p := range have {
		held[p] = true
	}
	var out []string
	for _, p := range want {
		if held[p] {
			out = append(out, p)
		}
	}
	return out
}
