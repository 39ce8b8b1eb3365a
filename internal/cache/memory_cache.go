package cache

import (
	"context"
	"slices"
	"sync"
	"time"

	"puntoventa/internal/domain"
)

// MemoryCatalogCache keeps the catalog in process. It serves a single
// backend instance when no Redis is configured.
type MemoryCatalogCache struct {
	mu         sync.Mutex
	products   []domain.Product
	expiresAt  time.Time
	generation int64
	now        func() time.Time
}

func NewMemoryCatalogCache() *MemoryCatalogCache {
	return &MemoryCatalogCache{now: time.Now}
}

func (c *MemoryCatalogCache) Get(_ context.Context) ([]domain.Product, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.products == nil || !c.now().Before(c.expiresAt) {
		return nil, false, nil
	}
	return slices.Clone(c.products), true, nil
}

func (c *MemoryCatalogCache) Generation(_ context.Context) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation, nil
}

func (c *MemoryCatalogCache) Set(_ context.Context, products []domain.Product, generation int64, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if products == nil || generation != c.generation {
		return nil
	}
	c.products = slices.Clone(products)
	c.expiresAt = c.now().Add(ttl)
	return nil
}

func (c *MemoryCatalogCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	c.products = nil
	return nil
}
