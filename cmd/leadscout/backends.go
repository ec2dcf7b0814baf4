package main

import (
	"context"
	"fmt"

	"github.com/MrWong99/leadscout/internal/config"
	"github.com/MrWong99/leadscout/internal/leadstore"
)

// registerBackends wires the built-in record stores into reg.
func registerBackends(reg *config.Registry) {
	reg.Register("postgres", func(ctx context.Context, e config.BackendEntry) (leadstore.Store, func() error, error) {
		pool, err := leadstore.OpenPostgres(ctx, e.DSN)
		if err != nil {
			return nil, nil, err
		}
		return leadstore.NewPostgresStore(pool), func() error { pool.Close(); return nil }, nil
	})

	// SQLite files are created on first use, so the schema is applied on open.
	reg.Register("sqlite", func(ctx context.Context, e config.BackendEntry) (leadstore.Store, func() error, error) {
		s, err := leadstore.OpenSQLite(e.Path)
		if err != nil {
			return nil, nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close()
			return nil, nil, fmt.Errorf("sqlite %q: %w", e.Path, err)
		}
		return s, s.Close, nil
	})

	reg.Register("snapshot", func(_ context.Context, e config.BackendEntry) (leadstore.Store, func() error, error) {
		s, err := leadstore.LoadSnapshotFile(e.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	})
}
