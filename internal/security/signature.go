package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const signaturePrefix = "sha256="

var (
	ErrMissingSignature = errors.New("missing signature")
	ErrBadSignature     = errors.New("signature mismatch")
)

// WebhookSigner computes and checks X-Hub-Signature-256 values
// ("sha256=" + hex HMAC-SHA256 of the raw body).
type WebhookSigner struct {
	secret []byte
}

func NewWebhookSigner(secret string) *WebhookSigner {
	return &WebhookSigner{secret: []byte(secret)}
}

// Enabled reports whether a secret is configured; without one every body passes.
func (s *WebhookSigner) Enabled() bool { return len(s.secret) > 0 }

func (s *WebhookSigner) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

func (s *WebhookSigner) Verify(body []byte, header string) error {
	if !s.Enabled() {
		return nil
	}
	if header == "" {
		return ErrMissingSignature
	}
	if !strings.HasPrefix(header, signaturePrefix) {
		return ErrBadSignature
	}
	if !hmac.Equal([]byte(s.Sign(body)), []byte(header)) {
		return ErrBadSignature
	}
	return nil
}

func secretEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
