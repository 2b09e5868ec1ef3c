package db

import (
	"context"
	"fmt"

	"offerdesk/offer-service/internal/config"
	"offerdesk/offer-service/internal/offer"
	"offerdesk/offer-service/internal/store"
)

// OpenStore connects the backend named by cfg.Store, applies its migrations
// and returns the store together with a function that releases it.
func OpenStore(ctx context.Context, cfg *config.Config) (offer.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pool, err := NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if _, err := store.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return store.NewPostgres(pool), pool.Close, nil

	case config.StoreSQLite:
		s, err := store.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil

	default:
		return nil, nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
