package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrymomot/sessionhub/app/sessiond"
	"github.com/dmitrymomot/sessionhub/core/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := sessiond.NewApp(ctx)
	if err != nil {
		slog.Error("failed to initialize sessiond", logger.Error(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		slog.Error("sessiond exited with error", logger.Error(err))
		os.Exit(1)
	}
}
