package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"puntoventa/internal/cache"
	"puntoventa/internal/cart"
	"puntoventa/internal/domain"
	"puntoventa/internal/metrics"
	"puntoventa/internal/store"
	"puntoventa/internal/xid"
)

var (
	ErrForbidden = errors.New("admin role required")
	// ErrPriceChanged means a sale line was priced from an outdated catalog.
	ErrPriceChanged = errors.New("price changed, refresh catalog")
)

const (
	defaultPageSize = 20
	maxPageSize     = 200
	dateLayout      = "2006-01-02"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Options struct {
	Cache    cache.CatalogCache
	CacheTTL time.Duration
	TaxRate  decimal.Decimal
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	// Now is overridden in tests.
	Now func() time.Time
}

type Service struct {
	repo     store.Repository
	cache    cache.CatalogCache
	cacheTTL time.Duration
	taxRate  decimal.Decimal
	logger   *zap.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Cache == nil {
		opts.Cache = cache.NoopCatalogCache{}
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 30 * time.Second
	}
	if opts.TaxRate.IsNegative() || opts.TaxRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		opts.TaxRate = cart.DefaultTaxRate
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Service{
		repo:     repo,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		taxRate:  opts.TaxRate,
		logger:   opts.Logger.Named("service"),
		metrics:  opts.Metrics,
		now:      opts.Now,
	}
}

func (s *Service) TaxSettings() domain.TaxSettings {
	return domain.TaxSettings{Rate: s.taxRate}
}

// ListProducts returns the active catalog, served from the catalog cache when
// it is warm.
func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	cached, ok, err := s.cache.Get(ctx)
	switch {
	case err != nil:
		s.metrics.CacheLookup("error")
		s.logger.Warn("catalog cache read failed", zap.Error(err))
	case ok:
		s.metrics.CacheLookup("hit")
		return cached, nil
	default:
		s.metrics.CacheLookup("miss")
	}

	// The generation is read before the catalog so a sale committed in
	// between turns this Set into a no-op.
	generation, genErr := s.cache.Generation(ctx)
	products, err := s.repo.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if genErr != nil {
		s.logger.Warn("catalog cache generation read failed", zap.Error(genErr))
		return products, nil
	}
	if err := s.cache.Set(ctx, products, generation, s.cacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.Error(err))
	}
	return products, nil
}

// QueryProducts searches, sorts and pages the active catalog.
func (s *Service) QueryProducts(ctx context.Context, q ListQuery) (domain.ProductPage, error) {
	products, err := s.ListProducts(ctx)
	if err != nil {
		return domain.ProductPage{}, err
	}

	view := derive(q, products, productColumns)
	return domain.ProductPage{
		Products:   view.Page,
		Total:      view.Total(),
		Page:       view.PageIndex,
		PageSize:   q.pageSize(),
		TotalPages: view.TotalPages,
	}, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	req.Code = strings.ToUpper(strings.TrimSpace(req.Code))
	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)

	if req.Code == "" || req.Name == "" {
		return domain.Product{}, fmt.Errorf("%w: code and name are required", store.ErrInvalidSale)
	}
	if !req.SalePrice.IsPositive() || req.CostPrice.IsNegative() || req.InitialStock < 0 {
		return domain.Product{}, fmt.Errorf("%w: price must be positive and stock non-negative", store.ErrInvalidSale)
	}

	created, err := s.repo.CreateProduct(ctx, domain.Product{
		Code:           req.Code,
		Name:           req.Name,
		Category:       req.Category,
		StockAvailable: req.InitialStock,
		SalePrice:      cart.RoundMoney(req.SalePrice),
		CostPrice:      cart.RoundMoney(req.CostPrice),
		Active:         true,
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_create", "product", fmt.Sprint(created.ID),
		fmt.Sprintf("code=%s,price=%s,stock=%d", created.Code, created.SalePrice.StringFixed(2), created.StockAvailable))

	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, req domain.ProductUpdateRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}

	existing, err := s.repo.GetProduct(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, fmt.Errorf("%w: name cannot be empty", store.ErrInvalidSale)
		}
		updated.Name = name
	}
	if req.Category != nil {
		updated.Category = strings.TrimSpace(*req.Category)
	}
	if req.SalePrice != nil {
		if !req.SalePrice.IsPositive() {
			return domain.Product{}, fmt.Errorf("%w: sale price must be positive", store.ErrInvalidSale)
		}
		updated.SalePrice = cart.RoundMoney(*req.SalePrice)
	}
	if req.CostPrice != nil {
		if req.CostPrice.IsNegative() {
			return domain.Product{}, fmt.Errorf("%w: cost price cannot be negative", store.ErrInvalidSale)
		}
		updated.CostPrice = cart.RoundMoney(*req.CostPrice)
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "product_update", "product", fmt.Sprint(saved.ID),
		fmt.Sprintf("price=%s->%s,active=%t", existing.SalePrice.StringFixed(2), saved.SalePrice.StringFixed(2), saved.Active))

	return *saved, nil
}

// AdjustStock moves stock by req.Delta. The result may not go below zero.
func (s *Service) AdjustStock(ctx context.Context, id int64, req domain.StockAdjustRequest) (domain.Product, error) {
	if err := requireAdmin(ctx); err != nil {
		return domain.Product{}, err
	}
	if req.Delta == 0 {
		return domain.Product{}, fmt.Errorf("%w: delta must be non-zero", store.ErrInvalidSale)
	}

	actor, _ := ActorFromContext(ctx)
	reason := defaultString(strings.TrimSpace(req.Reason), "unspecified")
	product, err := s.repo.AdjustStock(ctx, domain.StockMovement{
		ProductID: id,
		Delta:     req.Delta,
		Reason:    reason,
		Actor:     actor.Username,
		CreatedAt: s.now(),
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.invalidateCatalog(ctx)
	s.logAudit(ctx, "stock_adjust", "product", fmt.Sprint(product.ID),
		fmt.Sprintf("delta=%d,stock=%d,reason=%s", req.Delta, product.StockAvailable, reason))

	return *product, nil
}

// CreateSale validates the request, prices it with the configured tax rate and
// persists it. A replayed idempotency key returns the original sale with
// Duplicate set.
func (s *Service) CreateSale(ctx context.Context, req domain.SaleCreateRequest, idempotencyKey string) (domain.SaleCreateResponse, error) {
	idempotencyKey = strings.TrimSpace(idempotencyKey)
	if idempotencyKey != "" {
		existing, err := s.repo.FindSaleByIdempotency(ctx, idempotencyKey)
		if err == nil {
			return domain.SaleCreateResponse{Sale: *existing, Duplicate: true}, nil
		}
		if !errors.Is(err, store.ErrNotFound) {
			return domain.SaleCreateResponse{}, err
		}
	}

	sale, err := s.buildSale(ctx, req)
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		return domain.SaleCreateResponse{}, err
	}
	sale.IdempotencyKey = idempotencyKey

	created, err := s.repo.CreateSale(ctx, sale)
	if err != nil {
		s.metrics.SaleRejected(rejectionReason(err))
		return domain.SaleCreateResponse{}, err
	}
	if created.ID != sale.ID {
		// Lost an idempotency race; the stored sale wins.
		return domain.SaleCreateResponse{Sale: *created, Duplicate: true}, nil
	}

	s.invalidateCatalog(ctx)
	s.metrics.SaleCreated(created.PaymentMethod, created.Total.InexactFloat64())
	s.logAudit(ctx, "sale_create", "sale", created.ID,
		fmt.Sprintf("folio=%s,total=%s,payment=%s,units=%d", created.Folio, created.Total.StringFixed(2), created.PaymentMethod, created.Units()))

	return domain.SaleCreateResponse{Sale: *created}, nil
}

func (s *Service) buildSale(ctx context.Context, req domain.SaleCreateRequest) (domain.Sale, error) {
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		return domain.Sale{}, fmt.Errorf("%w: %v", store.ErrInvalidSale, cart.ErrMissingCustomerName)
	}

	var taxID *string
	if req.CustomerTaxID != nil {
		if normalized := cart.NormalizeTaxID(*req.CustomerTaxID); normalized != "" {
			if !cart.ValidTaxID(normalized) {
				return domain.Sale{}, fmt.Errorf("%w: %v", store.ErrInvalidSale, cart.ErrInvalidTaxID)
			}
			taxID = &normalized
		}
	}

	method := strings.ToLower(strings.TrimSpace(req.PaymentMethod))
	if !cart.PaymentMethod(method).Valid() {
		return domain.Sale{}, fmt.Errorf("%w: %v", store.ErrInvalidSale, cart.ErrInvalidPaymentMethod)
	}

	requested, err := mergeLines(req.Lines)
	if err != nil {
		return domain.Sale{}, err
	}

	ids := make([]int64, 0, len(requested))
	for _, line := range requested {
		ids = append(ids, line.ProductID)
	}
	products, err := s.repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return domain.Sale{}, err
	}

	lines := make([]domain.SaleLine, 0, len(requested))
	subtotal := decimal.Zero
	for _, line := range requested {
		product, ok := products[line.ProductID]
		if !ok || !product.Active {
			return domain.Sale{}, fmt.Errorf("%w: product %d is not available", store.ErrInvalidSale, line.ProductID)
		}
		if !line.UnitPrice.Equal(product.SalePrice) {
			return domain.Sale{}, fmt.Errorf("%w: %w for %s (now %s)",
				store.ErrInvalidSale, ErrPriceChanged, product.Name, product.SalePrice.StringFixed(2))
		}
		amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(amount)
		lines = append(lines, domain.SaleLine{
			ProductID:   product.ID,
			ProductCode: product.Code,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			Amount:      amount,
		})
	}

	subtotal = cart.RoundMoney(subtotal)
	tax := cart.RoundMoney(subtotal.Mul(s.taxRate))
	createdAt := s.now()

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	return domain.Sale{
		ID:            xid.New("sale"),
		Folio:         xid.Folio(createdAt),
		CustomerName:  customer,
		CustomerTaxID: taxID,
		PaymentMethod: method,
		Notes:         strings.TrimSpace(req.Notes),
		Lines:         lines,
		Subtotal:      subtotal,
		TaxRate:       s.taxRate,
		Tax:           tax,
		Total:         subtotal.Add(tax),
		CreatedBy:     actor.Username,
		CreatedAt:     createdAt,
	}, nil
}

// mergeLines folds repeated products into one line, keeping the first unit
// price seen, and preserves first-seen order. Prices are checked against the
// catalog afterwards.
func mergeLines(lines []domain.SaleLineRequest) ([]domain.SaleLineRequest, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidSale, cart.ErrEmptyCart)
	}

	merged := make([]domain.SaleLineRequest, 0, len(lines))
	index := make(map[int64]int, len(lines))
	for _, line := range lines {
		if line.ProductID < 1 {
			return nil, fmt.Errorf("%w: invalid product id %d", store.ErrInvalidSale, line.ProductID)
		}
		if line.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be positive", store.ErrInvalidSale)
		}
		if !line.UnitPrice.IsPositive() {
			return nil, fmt.Errorf("%w: unit price must be positive", store.ErrInvalidSale)
		}
		if i, seen := index[line.ProductID]; seen {
			merged[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(merged)
		line.UnitPrice = cart.RoundMoney(line.UnitPrice)
		merged = append(merged, line)
	}
	return merged, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrNotFound
	}
	sale, err := s.repo.GetSale(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

// ListSales pages the sales recorded on date (YYYY-MM-DD, UTC; empty means
// today), newest first unless q sorts otherwise.
func (s *Service) ListSales(ctx context.Context, date string, q ListQuery) (domain.SalePage, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.SalePage{}, err
	}

	sales, err := s.repo.ListSales(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return domain.SalePage{}, err
	}

	view := derive(q, sales, saleColumns)
	return domain.SalePage{
		Sales:      view.Page,
		Date:       day.Format(dateLayout),
		Total:      view.Total(),
		Page:       view.PageIndex,
		PageSize:   q.pageSize(),
		TotalPages: view.TotalPages,
	}, nil
}

// CancelSale marks the sale cancelled and puts its units back in stock.
func (s *Service) CancelSale(ctx context.Context, id string, reason string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrNotFound
	}
	reason = defaultString(strings.TrimSpace(reason), "unspecified")

	actor, _ := ActorFromContext(ctx)
	sale, err := s.repo.CancelSale(ctx, id, reason, actor.Username, s.now())
	if err != nil {
		return domain.Sale{}, err
	}

	s.invalidateCatalog(ctx)
	s.metrics.SaleCancelled()
	s.logAudit(ctx, "sale_cancel", "sale", sale.ID, fmt.Sprintf("folio=%s,reason=%s", sale.Folio, reason))

	return *sale, nil
}

// DailyStats summarizes the sales recorded on date. Cancelled sales are
// counted apart and excluded from revenue.
func (s *Service) DailyStats(ctx context.Context, date string) (domain.DailyStats, error) {
	day, err := s.parseDay(date)
	if err != nil {
		return domain.DailyStats{}, err
	}

	sales, err := s.repo.ListSales(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		return domain.DailyStats{}, err
	}

	stats := domain.DailyStats{
		Date:              day.Format(dateLayout),
		TotalRevenueToday: decimal.Zero,
		TotalTaxToday:     decimal.Zero,
		AverageTicket:     decimal.Zero,
		ByPayment:         []domain.DailyStatsPayment{},
	}
	byPayment := make(map[string]*domain.DailyStatsPayment)
	for _, sale := range sales {
		if sale.Cancelled {
			stats.CancelledToday++
			continue
		}
		stats.TotalSalesToday++
		stats.TotalRevenueToday = stats.TotalRevenueToday.Add(sale.Total)
		stats.TotalTaxToday = stats.TotalTaxToday.Add(sale.Tax)

		bucket, ok := byPayment[sale.PaymentMethod]
		if !ok {
			bucket = &domain.DailyStatsPayment{PaymentMethod: sale.PaymentMethod, Total: decimal.Zero}
			byPayment[sale.PaymentMethod] = bucket
		}
		bucket.Sales++
		bucket.Total = bucket.Total.Add(sale.Total)
	}

	if stats.TotalSalesToday > 0 {
		stats.AverageTicket = cart.RoundMoney(stats.TotalRevenueToday.Div(decimal.NewFromInt(stats.TotalSalesToday)))
	}
	for _, bucket := range byPayment {
		stats.ByPayment = append(stats.ByPayment, *bucket)
	}
	slices.SortFunc(stats.ByPayment, func(a, b domain.DailyStatsPayment) int {
		return cmp.Compare(a.PaymentMethod, b.PaymentMethod)
	})

	return stats, nil
}

func (s *Service) parseDay(date string) (time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		now := s.now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date must be YYYY-MM-DD", store.ErrInvalidSale)
	}
	return day.UTC(), nil
}

func (s *Service) invalidateCatalog(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func (s *Service) logAudit(ctx context.Context, action string, entityType string, entityID string, detail string) {
	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     s.now(),
	}); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("action", action),
			zap.String("entity", entityType+"/"+entityID),
			zap.Error(err),
		)
	}
}

func requireAdmin(ctx context.Context) error {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	return nil
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, store.ErrInsufficientStock):
		return "stock"
	case errors.Is(err, ErrPriceChanged):
		return "price"
	case errors.Is(err, store.ErrInvalidSale):
		return "validation"
	default:
		return "internal"
	}
}

func defaultString(value string, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
