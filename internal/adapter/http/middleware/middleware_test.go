package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aq2208/gcart-api/configs"
	"github.com/aq2208/gcart-api/internal/security"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

func testConfig() configs.Config {
	var cfg configs.Config
	cfg.Security.JWTSecret = "test-secret"
	cfg.Security.Issuer = "gcart-api"
	cfg.Security.Audience = "gcart-clients"
	return cfg
}

func signToken(t *testing.T, cfg configs.Config, aud string, perms ...string) string {
	t.Helper()
	now := time.Now()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"iss":       cfg.Security.Issuer,
		"aud":       aud,
		"iat":       now.Unix(),
		"exp":       now.Add(time.Minute).Unix(),
		"client_id": "tester",
		"perms":     perms,
	})
	s, err := tok.SignedString([]byte(cfg.Security.JWTSecret))
	require.NoError(t, err)
	return s
}

func TestAuthz_Require(t *testing.T) {
	cfg := testConfig()
	var client string
	r := gin.New()
	r.GET("/read", NewAuthz(security.NewTokens(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.Audience, time.Hour)).Require(security.PermCartRead),
		func(c *gin.Context) {
			client = c.GetString(ClientIDKey)
			c.Status(http.StatusNoContent)
		})

	do := func(auth string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/read", nil)
		if auth != "" {
			req.Header.Set("Authorization", auth)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, do("Bearer "+signToken(t, cfg, "someone-else", security.PermCartRead)).Code)
	assert.Equal(t, http.StatusForbidden, do("Bearer "+signToken(t, cfg, cfg.Security.Audience, security.PermCartWrite)).Code)
	assert.Equal(t, http.StatusNoContent, do("bearer "+signToken(t, cfg, cfg.Security.Audience, security.PermCartRead)).Code)
	assert.Equal(t, "tester", client)

	w := do("Bearer ")
	assert.Contains(t, w.Header().Get("WWW-Authenticate"), `error="invalid_request"`)
}

func TestWebhookSignature_Verify(t *testing.T) {
	signer := security.NewWebhookSigner("hook-secret")
	var got []byte
	r := gin.New()
	r.POST("/webhook", NewWebhookSignature(signer).Verify(), func(c *gin.Context) {
		got, _ = io.ReadAll(c.Request.Body)
		c.Status(http.StatusOK)
	})

	body := `{"entry":[]}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", signer.Sign([]byte(body)))
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, body, string(got))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
	req.Header.Set("X-Hub-Signature-256", "sha256=00")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogging_RedactsLogButKeepsBody(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewJSONHandler(&logs, nil))

	var got string
	r := gin.New()
	r.Use(Logging(l))
	r.POST("/v1/sessions/:id/tools/:name", func(c *gin.Context) {
		b, _ := io.ReadAll(c.Request.Body)
		got = string(b)
		c.JSON(http.StatusOK, gin.H{"status": "success"})
	})

	body := `{"code":"SAVE20","token":"tok-xyz-secret"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sessions/s1/tools/apply_discount", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	assert.Equal(t, body, got)
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))
	assert.Contains(t, logs.String(), `***redacted***`)
	assert.NotContains(t, logs.String(), `tok-xyz-secret`)
	assert.Contains(t, logs.String(), `"tool":"apply_discount"`)
}

func TestLogging_FormAndPhoneRedaction(t *testing.T) {
	var logs bytes.Buffer
	r := gin.New()
	r.Use(Logging(slog.New(slog.NewJSONHandler(&logs, nil))))
	r.POST("/v1/token", func(c *gin.Context) { c.Status(http.StatusUnauthorized) })
	r.POST("/webhook", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodPost, "/v1/token", strings.NewReader("client_id=svc&client_secret=hunter2"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"messages":[{"from":"5511998877"}]}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(httptest.NewRecorder(), req)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	out := logs.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "client_id=svc")
	assert.Contains(t, out, `"level":"WARN"`)
	assert.NotContains(t, out, "5511998877")
	assert.Contains(t, out, "******8877")
	assert.NotContains(t, out, "/healthz")
}

func TestPeekCapped_ReplaysWholeBody(t *testing.T) {
	big := strings.Repeat("x", reqBodyLimit+100)
	head, truncated, body := peekCapped(io.NopCloser(strings.NewReader(big)), reqBodyLimit)
	assert.True(t, truncated)
	assert.Len(t, head, reqBodyLimit)

	all, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, big, string(all))
}

func TestHTTPMetrics_LabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	r := gin.New()
	r.Use(m.Handler())
	r.GET("/v1/sessions/:id/calls", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/v1/sessions/a/calls", "/v1/sessions/b/calls", "/nope/1", "/nope/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/v1/sessions/:id/calls", "200")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "unmatched", "404")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight))
}
