package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MrWong99/leadscout/internal/leadstore"
)

func (c *cli) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the tenders table in the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, closeStore, err := c.registry.Create(ctx, cfg.Store.BackendEntry)
			if err != nil {
				return err
			}
			defer closeStore()

			m, ok := store.(leadstore.Migrator)
			if !ok {
				return fmt.Errorf("store backend %q has no schema to migrate", cfg.Store.Backend)
			}
			if err := m.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Schema of the %s store is up to date.\n", cfg.Store.Backend)
			return nil
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <snapshot.yaml>",
		Short: "Upsert the records of a snapshot file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			snap, err := leadstore.LoadSnapshotFile(args[0])
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, closeStore, err := c.registry.Create(ctx, cfg.Store.BackendEntry)
			if err != nil {
				return err
			}
			defer closeStore()

			w, ok := store.(leadstore.Writer)
			if !ok {
				return fmt.Errorf("store backend %q is read-only", cfg.Store.Backend)
			}
			if m, ok := store.(leadstore.Migrator); ok {
				if err := m.Migrate(ctx); err != nil {
					return err
				}
			}
			records := snap.Records()
			if err := w.Save(ctx, records...); err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "Imported %s records into the %s store.\n", humanize.Comma(int64(len(records))), cfg.Store.Backend)
			return nil
		},
	}
}
