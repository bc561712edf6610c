package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by API access tokens.
type Claims struct {
	ClientID string   `json:"client_id,omitempty"`
	Perms    []string `json:"perms"`
	jwt.RegisteredClaims
}

// Has reports whether every perm in req was granted.
func (c *Claims) Has(req ...string) bool {
	held := make(map[string]struct{}, len(c.Perms))
	for _, p := range c.Perms {
		held[p] = struct{}{}
	}
	for _, r := range req {
		if _, ok := held[r]; !ok {
			return false
		}
	}
	return true
}

// Tokens issues and checks HS256 client-credentials tokens.
type Tokens struct {
	secret   []byte
	issuer   string
	audience string
	ttl      time.Duration
	leeway   time.Duration
}

func NewTokens(secret, issuer, audience string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tokens{secret: []byte(secret), issuer: issuer, audience: audience, ttl: ttl, leeway: 30 * time.Second}
}

func (t *Tokens) TTL() time.Duration { return t.ttl }

// Issue signs a token for clientID holding perms, valid from now for TTL.
func (t *Tokens) Issue(clientID string, perms []string, now time.Time) (string, error) {
	claims := Claims{
		ClientID: clientID,
		Perms:    perms,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   clientID,
			Audience:  jwt.ClaimStrings{t.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies signature, issuer, audience and time claims.
func (t *Tokens) Parse(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(t.issuer),
		jwt.WithAudience(t.audience),
		jwt.WithLeeway(t.leeway),
	)
	if err != nil {
		return nil, err
	}
	return &claims, nil
}

// Reason maps a Parse error to a short description for WWW-Authenticate.
func Reason(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "iss/aud mismatch"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "malformed token"
	default:
		return "invalid jwt"
	}
}
