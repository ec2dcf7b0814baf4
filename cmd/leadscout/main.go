// Command leadscout serves the tender lead bot and offers offline tools to
// query, migrate and fill the record store.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/leadscout/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	c := &cli{
		stdout:   stdout,
		level:    new(slog.LevelVar),
		registry: config.NewRegistry(),
	}
	slog.SetDefault(newLogger(stderr, c.level))
	registerBackends(c.registry)

	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "leadscout: %v\n", err)
		return 1
	}
	return 0
}

// cli carries the state shared by all subcommands.
type cli struct {
	stdout     io.Writer
	configPath string
	level      *slog.LevelVar
	registry   *config.Registry
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "leadscout",
		Short:         "Fuel-card tender leads on Discord",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")

	root.AddCommand(c.serveCmd(), c.queryCmd(), c.migrateCmd(), c.importCmd())
	return root
}

// loadConfig reads the config file and applies its log level.
func (c *cli) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, configError(c.configPath, err)
	}
	c.level.Set(cfg.Server.LogLevel.Slog())
	return cfg, nil
}

func configError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file %q not found; copy configs/example.yaml to get started", path)
	}
	return err
}

// newLogger writes text logs to w at the level held by lv.
func newLogger(w io.Writer, lv *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lv}))
}
