package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crowdfund/internal/app/cli"
	"crowdfund/internal/logging"
)

func main() {
	cfg, err := cli.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logging.NewWithWriter(cfg.AppEnv, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand(cli.NewBuilder(cfg, log)).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
