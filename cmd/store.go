package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/SorbetUP/BudgetExplorer/internal/store"
)

// initStore opens the configured run-log backend, or returns nil when
// persistence is disabled.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "", "none":
		return nil, nil
	case "sqlite":
		return store.NewSQLite(cfg.Store.SQLitePath)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// requireStore is initStore for commands that cannot work without one.
func requireStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, eris.New("a store is required: set store.driver to sqlite or postgres")
	}
	return st, nil
}
