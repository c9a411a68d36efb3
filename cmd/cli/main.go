package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/expertease/internal/client/cli"
	"github.com/dmitrijs2005/expertease/internal/client/config"
	"github.com/dmitrijs2005/expertease/internal/logging"
)

func main() {

	cfg := config.LoadConfig()
	logger := logging.NewTextLogger(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(ctx, cfg, logger)

	if err := app.Run(ctx); err != nil {
		logger.Error(ctx, "exited with error", "error", err)
		os.Exit(1)
	}
}
