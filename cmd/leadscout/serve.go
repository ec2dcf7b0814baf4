package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/leadscout/internal/app"
	"github.com/MrWong99/leadscout/internal/config"
)

const shutdownTimeout = 15 * time.Second

func (c *cli) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Discord bot and the health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	// The watcher only calls back from Run, after application is set.
	var application *app.App
	watcher, err := config.NewWatcher(c.configPath, func(old, new *config.Config, d config.ConfigDiff) {
		application.ApplyChange(old, new, d)
	})
	if err != nil {
		return configError(c.configPath, err)
	}
	cfg := watcher.Current()
	c.level.Set(cfg.Server.LogLevel.Slog())

	slog.Info("leadscout starting",
		"config", c.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
		"store", cfg.Store.Backend,
		"backends", c.registry.Names(),
	)

	application, err = app.New(ctx, cfg, c.registry,
		app.WithLevelVar(c.level),
		app.WithWatcher(watcher),
	)
	if err != nil {
		return err
	}

	slog.Info("server ready; press Ctrl+C to shut down")
	runErr := application.Run(ctx)
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		slog.Error("run error", "err", runErr)
	}

	slog.Info("shutdown signal received, stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	slog.Info("goodbye")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
