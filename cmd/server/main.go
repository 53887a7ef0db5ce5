// Package main runs the WeaMind LINE bot server.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/garyellow/weamind-linebot-go/internal/app"
	"github.com/garyellow/weamind-linebot-go/internal/config"
)

func main() {
	if err := run(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run returns once the server has shut down. A signal during startup aborts
// the initial catalog sync as well.
func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	application, err := app.Initialize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}

	if err := application.Run(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}
