package middleware

import (
	"net/http"
	"strings"

	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/gin-gonic/gin"
)

// ClientIDKey holds the authenticated client id in the gin context.
const ClientIDKey = "client_id"

type Authz struct {
	tokens *security.Tokens
}

func NewAuthz(tokens *security.Tokens) *Authz {
	return &Authz{tokens: tokens}
}

// Require admits requests whose bearer token grants every perm listed.
func (a *Authz) Require(perms ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearer(c.GetHeader("Authorization"))
		if !ok {
			challenge(c, http.StatusUnauthorized, "invalid_request", "missing bearer token")
			return
		}

		claims, err := a.tokens.Parse(raw)
		if err != nil {
			logging.From(c).Debug("token rejected", "err", err)
			challenge(c, http.StatusUnauthorized, "invalid_token", security.Reason(err))
			return
		}
		if !claims.Has(perms...) {
			challenge(c, http.StatusForbidden, "insufficient_scope", "missing required permissions")
			return
		}

		c.Set(ClientIDKey, claims.ClientID)
		logging.With(c, logging.From(c).With("client_id", claims.ClientID))
		c.Next()
	}
}

func bearer(h string) (string, bool) {
	scheme, tok, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(tok) == "" {
		return "", false
	}
	return strings.TrimSpace(tok), true
}

func challenge(c *gin.Context, status int, code, desc string) {
	c.Header("WWW-Authenticate", `Bearer error="`+code+`", error_description="`+desc+`"`)
	c.AbortWithStatusJSON(status, gin.H{"error": code, "error_description": desc})
}
