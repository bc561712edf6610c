package bootstrap

import (
	"fmt"
	"os"

	"github.com/aq2208/gcart-api/configs"
	"github.com/aq2208/gcart-api/internal/adapter/cache"
	mcpadapter "github.com/aq2208/gcart-api/internal/adapter/mcp"
	"github.com/aq2208/gcart-api/internal/adapter/observ"
	domain "github.com/aq2208/gcart-api/internal/entity"
	"github.com/aq2208/gcart-api/internal/logging"
	"github.com/aq2208/gcart-api/internal/usecase"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// MCPApp is the stdio MCP server. It keeps its single cart in memory.
type MCPApp struct {
	Server *mcp.Server
	Tools  *usecase.Toolbox
	Logger *zap.Logger
}

// InitMCP wires the toolbox for the MCP binary. Nothing may write to stdout:
// it carries the protocol, so every logger goes to stderr.
func InitMCP(cfg configs.Config) (*MCPApp, func(), error) {
	logging.Init(logging.Options{Component: "cart-mcp", FilePath: cfg.Log.File, Level: cfg.Log.Level, Console: os.Stderr})
	logger, err := observ.NewLogger(cfg.Log.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}

	pricing, err := cfg.PricingRules()
	if err != nil {
		return nil, nil, err
	}
	sessionID := cfg.MCP.SessionID
	if sessionID == "" {
		sessionID = "default"
	}

	shop := usecase.NewShop(domain.DefaultCatalog(), pricing)
	tools := usecase.NewToolbox(shop, cache.NewMemorySessionStore(), usecase.WithObserver(zapObserver{logger}))
	server := mcpadapter.NewServer(tools, sessionID)

	cleanup := func() { _ = logger.Sync() }
	return &MCPApp{Server: server, Tools: tools, Logger: logger}, cleanup, nil
}
