package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_WritesJSONToConsoleAndFile(t *testing.T) {
	var console bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "app.log")

	l := build(Options{Component: "cart-mcp", FilePath: path, Level: "debug", Console: &console})
	l.Debug("tool called", "tool", "view_cart")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(console.Bytes(), &rec))
	assert.Equal(t, "cart-mcp", rec["component"])
	assert.Equal(t, "view_cart", rec["tool"])
	assert.Equal(t, "DEBUG", rec["level"])

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(b), `"msg":"tool called"`)
}

func TestBuild_LevelFilters(t *testing.T) {
	var console bytes.Buffer
	l := build(Options{Level: "warn", Console: &console})
	l.Info("hidden")
	assert.Zero(t, console.Len())
	l.Warn("shown")
	assert.Contains(t, console.String(), "shown")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestContextLoggers(t *testing.T) {
	var buf bytes.Buffer
	l := build(Options{Console: &buf})

	ctx := WithCtx(context.Background(), l)
	assert.Same(t, l, FromCtx(ctx))

	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest("GET", "/", nil)
	With(c, l)
	assert.Same(t, l, From(c))
	assert.Same(t, l, FromCtx(c.Request.Context()))
}
