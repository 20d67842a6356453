package factory

import (
	"context"
	"fmt"

	"github.com/DjordjeVuckovic/news-pulse/internal/storage"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/file"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/in_mem"
	"github.com/DjordjeVuckovic/news-pulse/internal/storage/pg"
)

// NewStore creates a storage.Store for the configured backend.
func NewStore(ctx context.Context, cfg *StorageConfig) (storage.Store, error) {
	switch cfg.Type {
	case storage.File:
		return file.NewFileStore(cfg.DataDir)

	case storage.PG:
		pool, err := pg.NewConnectionPool(ctx, *cfg.Pg)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
		}
		store, err := pg.NewStore(pool)
		if err != nil {
			return nil, err
		}
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil

	case storage.InMem:
		return in_mem.NewInMemStore(), nil

	default:
		return nil, fmt.Errorf(string(storage.ErrUnsupportedStorer), cfg.Type)
	}
}
