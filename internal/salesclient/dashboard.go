package salesclient

import (
	"context"

	"golang.org/x/sync/errgroup"

	"puntoventa/internal/domain"
)

// Dashboard is everything the sales screen shows on load.
type Dashboard struct {
	Sales    domain.SalePage
	Products []domain.Product
	Stats    domain.DailyStats
}

// LoadDashboard fetches sales, products and today's stats concurrently. The
// first failure cancels the other requests.
func (c *Client) LoadDashboard(ctx context.Context, q SalesQuery) (Dashboard, error) {
	var dash Dashboard
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sales, err := c.ListSales(gctx, q)
		dash.Sales = sales
		return err
	})
	g.Go(func() error {
		products, err := c.ListProducts(gctx)
		dash.Products = products
		return err
	})
	g.Go(func() error {
		stats, err := c.TodayStats(gctx)
		dash.Stats = stats
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return dash, nil
}
