package cache

import (
	"context"
	"time"

	"puntoventa/internal/domain"
)

// CatalogCache holds the active product list. Every stock or price change
// invalidates it so cashiers never sell against a stale catalog for long.
//
// Invalidate advances the cache generation. Set only stores a catalog read
// at the current generation, so a read that raced an invalidation is dropped
// instead of overwriting it.
type CatalogCache interface {
	Get(ctx context.Context) ([]domain.Product, bool, error)
	Generation(ctx context.Context) (int64, error)
	Set(ctx context.Context, products []domain.Product, generation int64, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

type NoopCatalogCache struct{}

func (NoopCatalogCache) Get(_ context.Context) ([]domain.Product, bool, error) {
	return nil, false, nil
}

func (NoopCatalogCache) Generation(_ context.Context) (int64, error) {
	return 0, nil
}

func (NoopCatalogCache) Set(_ context.Context, _ []domain.Product, _ int64, _ time.Duration) error {
	return nil
}

func (NoopCatalogCache) Invalidate(_ context.Context) error {
	return nil
}
