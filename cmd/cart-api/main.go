package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aq2208/gcart-api/cmd/cart-api/app"
	"github.com/aq2208/gcart-api/configs"
)

func main() {
	env := os.Getenv("APP_ENV") // dev | staging | prod
	if env == "" {
		env = "dev"
	}

	cfg, err := configs.Load("configs", env)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, cleanup, err := app.InitWithConfig(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer cleanup()

	log.Printf("cart-api (%s) listening on http %s, grpc %s", env, cfg.App.HTTPAddr, cfg.App.GRPCAddr)
	if err := a.Run(ctx); err != nil {
		log.Printf("cart-api stopped: %v", err)
		cleanup()
		os.Exit(1)
	}
}
