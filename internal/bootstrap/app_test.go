package bootstrap

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/aq2208/gcart-api/configs"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitMCP_UsesConfiguredPricingAndSession(t *testing.T) {
	var cfg configs.Config
	cfg.App.Name = "gcart-api"
	cfg.MCP.SessionID = "desk"
	cfg.Pricing.DiscountCodes = map[string]string{"STAFF50": "0.5"}

	a, cleanup, err := InitMCP(cfg)
	require.NoError(t, err)
	defer cleanup()
	require.NotNil(t, a.Server)

	ctx := context.Background()
	_, err = a.Tools.Call(ctx, "desk", usecase.ToolAddToCart, json.RawMessage(`{"product":"gaming mouse pro"}`))
	require.NoError(t, err)
	res, err := a.Tools.Call(ctx, "desk", usecase.ToolApplyDiscount, json.RawMessage(`{"code":"staff50"}`))
	require.NoError(t, err)
	assert.Equal(t, usecase.StatusSuccess, res.ResultStatus())
}

func TestInitMCP_RejectsBadPricing(t *testing.T) {
	var cfg configs.Config
	cfg.Pricing.TaxRate = "lots"
	_, _, err := InitMCP(cfg)
	assert.Error(t, err)
}

func TestZapObserver(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	zapObserver{zap.New(core)}.ObserveToolCall("view_cart", usecase.StatusEmpty, 3*time.Millisecond)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "tool call", entry.Message)
	assert.Equal(t, "view_cart", entry.ContextMap()["tool"])
	assert.Equal(t, "empty", entry.ContextMap()["status"])
}
