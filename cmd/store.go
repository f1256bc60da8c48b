package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/fusion-intel/internal/db"
	"github.com/sells-group/fusion-intel/internal/store"
)

// initStore opens the configured store and runs migrations.
func initStore(ctx context.Context) (store.Store, error) {
	var st store.Store
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "fusion_research.db"
		}
		s, err := store.NewSQLite(path)
		if err != nil {
			return nil, err
		}
		st = s
	case "postgres":
		pool, err := db.NewPool(ctx, cfg.Store.DatabaseURL)
		if err != nil {
			return nil, err
		}
		st = store.NewPostgres(pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}

	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
