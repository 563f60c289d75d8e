package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	consumerconfig "crowdfund/internal/app/consumer/config"
	consumerserver "crowdfund/internal/app/consumer/server"
	"crowdfund/internal/logging"
)

func main() {
	cfg, err := consumerconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := consumerserver.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init consumer")
	}
	defer srv.Close()

	log.Info().Str("topic", cfg.KafkaTopic).Msg("consumer started")
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("consumer stopped")
	}
}
