package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	apiconfig "crowdfund/internal/app/api/config"
	apiserver "crowdfund/internal/app/api/server"
	"crowdfund/internal/logging"
)

func main() {
	cfg, err := apiconfig.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := apiserver.New(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize api server")
	}
	defer srv.Close()

	log.Info().Str("port", cfg.Port).Str("network", cfg.Network).Msg("api listening")
	if err := srv.Run(ctx); err != nil {
		log.Error().Err(err).Msg("api server stopped")
	}
}
