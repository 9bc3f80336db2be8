package main

import (
	"context"
	"os/signal"
	"syscall"

	"flowrelay/config"
	"flowrelay/internal/relay"
	"flowrelay/logger"

	"go.uber.org/zap"
)

func main() {
	// viper config
	cfg := config.Load()

	// zap logger
	log, err := logger.New(cfg.Log)
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run relay
	if err := relay.Run(ctx, cfg, log); err != nil {
		log.Fatal("relay failed", zap.Error(err))
	}
}
