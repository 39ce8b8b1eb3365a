package service

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"puntoventa/internal/domain"
	"puntoventa/internal/store"
)

const (
	defaultMovementLimit = 50
	maxMovementLimit     = 200
	defaultTopProducts   = 10
	maxTopProducts       = 100
	defaultReportDays    = 7
	maxReportDays        = 366
)

// LowStockProducts lists active products with at most threshold units left,
// emptiest first.
func (s *Service) LowStockProducts(ctx context.Context, threshold int) (domain.LowStockResponse, error) {
	if threshold < 0 {
		return domain.LowStockResponse{}, fmt.Errorf("%w: low stock threshold must be >= 0", store.ErrInvalidSale)
	}

	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.LowStockResponse{}, err
	}

	low := make([]domain.Product, 0)
	for _, product := range products {
		if product.StockAvailable <= threshold {
			low = append(low, product)
		}
	}
	slices.SortStableFunc(low, func(a, b domain.Product) int {
		if c := cmp.Compare(a.StockAvailable, b.StockAvailable); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})

	return domain.LowStockResponse{Threshold: threshold, Products: low}, nil
}

// StockMovements returns the newest entries of a product's stock ledger.
func (s *Service) StockMovements(ctx context.Context, productID int64, limit int) ([]domain.StockMovement, error) {
	if err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultMovementLimit
	case limit > maxMovementLimit:
		limit = maxMovementLimit
	}
	return s.repo.ListStockMovements(ctx, productID, limit)
}

// PeriodReport aggregates the sales of the inclusive day range from..to.
// An empty to means today and an empty from means a week ending on to.
func (s *Service) PeriodReport(ctx context.Context, from string, to string, limit int) (domain.PeriodReport, error) {
	end, err := s.parseDay(to)
	if err != nil {
		return domain.PeriodReport{}, err
	}
	start := end.AddDate(0, 0, -(defaultReportDays - 1))
	if strings.TrimSpace(from) != "" {
		if start, err = s.parseDay(from); err != nil {
			return domain.PeriodReport{}, err
		}
	}
	if start.After(end) {
		return domain.PeriodReport{}, fmt.Errorf("%w: from must not be after to", store.ErrInvalidSale)
	}
	days := int(end.Sub(start)/(24*time.Hour)) + 1
	if days > maxReportDays {
		return domain.PeriodReport{}, fmt.Errorf("%w: report range is limited to %d days", store.ErrInvalidSale, maxReportDays)
	}
	switch {
	case limit <= 0:
		limit = defaultTopProducts
	case limit > maxTopProducts:
		limit = maxTopProducts
	}

	sales, err := s.repo.ListSales(ctx, start, end.Add(24*time.Hour))
	if err != nil {
		return domain.PeriodReport{}, err
	}

	report := domain.PeriodReport{
		From:         start.Format(dateLayout),
		To:           end.Format(dateLayout),
		TotalRevenue: decimal.Zero,
		TotalTax:     decimal.Zero,
		Days:         make([]domain.PeriodDay, days),
		TopProducts:  []domain.ProductSales{},
	}
	for i := range report.Days {
		report.Days[i] = domain.PeriodDay{
			Date:    start.AddDate(0, 0, i).Format(dateLayout),
			Revenue: decimal.Zero,
			Tax:     decimal.Zero,
		}
	}

	byProduct := make(map[int64]*domain.ProductSales)
	for _, sale := range sales {
		if sale.Cancelled {
			report.Cancelled++
			continue
		}
		report.TotalSales++
		report.TotalRevenue = report.TotalRevenue.Add(sale.Total)
		report.TotalTax = report.TotalTax.Add(sale.Tax)

		idx := int(sale.CreatedAt.UTC().Sub(start) / (24 * time.Hour))
		if idx >= 0 && idx < days {
			day := &report.Days[idx]
			day.Sales++
			day.Revenue = day.Revenue.Add(sale.Total)
			day.Tax = day.Tax.Add(sale.Tax)
		}

		for _, line := range sale.Lines {
			entry, ok := byProduct[line.ProductID]
			if !ok {
				entry = &domain.ProductSales{
					ProductID: line.ProductID,
					Code:      line.ProductCode,
					Name:      line.ProductName,
					Revenue:   decimal.Zero,
				}
				byProduct[line.ProductID] = entry
			}
			entry.Units += int64(line.Quantity)
			entry.Sales++
			entry.Revenue = entry.Revenue.Add(line.Amount)
		}
	}

	for _, entry := range byProduct {
		report.TopProducts = append(report.TopProducts, *entry)
	}
	slices.SortFunc(report.TopProducts, func(a, b domain.ProductSales) int {
		if c := cmp.Compare(b.Units, a.Units); c != 0 {
			return c
		}
		if c := b.Revenue.Cmp(a.Revenue); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	if len(report.TopProducts) > limit {
		report.TopProducts = report.TopProducts[:limit]
	}

	return report, nil
}
