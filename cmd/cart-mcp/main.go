package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/gcart-api/configs"
	mcpadapter "github.com/aq2208/gcart-api/internal/adapter/mcp"
	"github.com/aq2208/gcart-api/internal/bootstrap"
	"go.uber.org/zap"
)

func main() {
	log.SetOutput(os.Stderr)

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}
	cfgDir := os.Getenv("GCART_CONFIG_DIR")
	if cfgDir == "" {
		cfgDir = "configs"
	}

	cfg, err := configs.Load(cfgDir, env)
	if err != nil {
		log.Fatal(err)
	}

	a, cleanup, err := bootstrap.InitMCP(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.Logger.Info("cart-mcp serving on stdio", zap.String("server", mcpadapter.ServerName))
	if err := mcpadapter.Run(ctx, a.Server); err != nil && ctx.Err() == nil {
		a.Logger.Error("mcp server stopped", zap.Error(err))
		cleanup()
		os.Exit(1)
	}
}
