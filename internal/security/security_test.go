package security

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWebhookSigner(t *testing.T) {
	s := NewWebhookSigner("topsecret")
	body := []byte(`{"entry":[]}`)
	sig := s.Sign(body)

	assert.NoError(t, s.Verify(body, sig))
	assert.ErrorIs(t, s.Verify(body, ""), ErrMissingSignature)
	assert.ErrorIs(t, s.Verify(body, "md5=abc"), ErrBadSignature)
	assert.ErrorIs(t, s.Verify([]byte(`{"entry":[{}]}`), sig), ErrBadSignature)

	open := NewWebhookSigner("")
	assert.False(t, open.Enabled())
	assert.NoError(t, open.Verify(body, ""))
}

func TestWebhookSigner_KnownVector(t *testing.T) {
	// HMAC-SHA256("key", "The quick brown fox jumps over the lazy dog")
	s := NewWebhookSigner("key")
	assert.Equal(t,
		"sha256=f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8",
		s.Sign([]byte("The quick brown fox jumps over the lazy dog")))
}

func TestAuthenticate(t *testing.T) {
	cl, ok := Authenticate("svc-analytics", "ana-secret")
	assert.True(t, ok)
	assert.Equal(t, []string{PermCartRead}, cl.Perms)

	_, ok = Authenticate("svc-analytics", "wrong")
	assert.False(t, ok)
	_, ok = Authenticate("nobody", "x")
	assert.False(t, ok)
}

func TestTokens_IssueAndParse(t *testing.T) {
	tokens := NewTokens("s3cret", "gcart-api", "gcart-clients", 10*time.Minute)
	raw, err := tokens.Issue("svc-shop-agent", []string{PermCartRead, PermCartWrite}, time.Now())
	require.NoError(t, err)

	claims, err := tokens.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "svc-shop-agent", claims.ClientID)
	assert.True(t, claims.Has(PermCartRead, PermCartWrite))
	assert.False(t, claims.Has("cart.admin"))
}

func TestTokens_ParseRejects(t *testing.T) {
	tokens := NewTokens("s3cret", "gcart-api", "gcart-clients", time.Minute)

	expired, err := tokens.Issue("c", nil, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	_, err = tokens.Parse(expired)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
	assert.Equal(t, "token expired", Reason(err))

	other := NewTokens("s3cret", "gcart-api", "someone-else", time.Minute)
	raw, err := other.Issue("c", nil, time.Now())
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.Equal(t, "iss/aud mismatch", Reason(err))

	forged := NewTokens("not-the-secret", "gcart-api", "gcart-clients", time.Minute)
	raw, err = forged.Issue("c", nil, time.Now())
	require.NoError(t, err)
	_, err = tokens.Parse(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = tokens.Parse("x.y")
	assert.Equal(t, "malformed token", Reason(err))
}
