package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"puntoventa/internal/domain"
)

func sampleCatalog() []domain.Product {
	return []domain.Product{{ID: 1, Code: "ABR-001", Name: "Arroz", StockAvailable: 80, SalePrice: decimal.RequireFromString("32.50"), Active: true}}
}

// exerciseGenerationFence runs the same contract against any CatalogCache.
func exerciseGenerationFence(t *testing.T, c CatalogCache) {
	t.Helper()
	ctx := context.Background()

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	gen, err := c.Generation(ctx)
	if err != nil {
		t.Fatalf("generation: %v", err)
	}

	// A sale commits and invalidates while the catalog is being read.
	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if err := c.Set(ctx, sampleCatalog(), gen, time.Minute); err != nil {
		t.Fatalf("stale set: %v", err)
	}
	if _, ok, err := c.Get(ctx); err != nil || ok {
		t.Fatalf("expected stale catalog to be dropped, ok=%v err=%v", ok, err)
	}

	gen, err = c.Generation(ctx)
	if err != nil {
		t.Fatalf("generation: %v", err)
	}
	if err := c.Set(ctx, sampleCatalog(), gen, time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	products, ok, err := c.Get(ctx)
	if err != nil || !ok || len(products) != 1 || products[0].Code != "ABR-001" {
		t.Fatalf("expected cached catalog, got %+v ok=%v err=%v", products, ok, err)
	}

	if err := c.Invalidate(ctx); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	if _, ok, _ := c.Get(ctx); ok {
		t.Fatalf("expected invalidate to clear the catalog")
	}
}

func TestMemoryCatalogCacheDropsStaleWrites(t *testing.T) {
	exerciseGenerationFence(t, NewMemoryCatalogCache())
}

func TestMemoryCatalogCacheExpires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCatalogCache()
	c.now = func() time.Time { return now }

	if err := c.Set(ctx, sampleCatalog(), 0, 30*time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := c.Get(ctx); !ok {
		t.Fatalf("expected warm cache")
	}
	now = now.Add(30 * time.Second)
	if _, ok, _ := c.Get(ctx); ok {
		t.Fatalf("expected catalog to expire after ttl")
	}
}

func TestRedisCatalogCacheDropsStaleWrites(t *testing.T) {
	addr := os.Getenv("PUNTOVENTA_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("set PUNTOVENTA_TEST_REDIS_ADDR to run redis integration test")
	}
	c := NewRedisCatalogCache(addr, os.Getenv("PUNTOVENTA_TEST_REDIS_PASSWORD"), 0)
	t.Cleanup(func() { _ = c.Close() })
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
	exerciseGenerationFence(t, c)
}
