package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"puntoventa/internal/domain"
	"puntoventa/internal/store"
)

func saleFor(lines ...domain.SaleLine) domain.Sale {
	return domain.Sale{
		Folio:         "V-TEST",
		CustomerName:  "Público General",
		PaymentMethod: domain.PaymentCash,
		Lines:         lines,
	}
}

func TestCreateSaleDecrementsStock(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	created, err := repo.CreateSale(ctx, saleFor(
		domain.SaleLine{ProductID: 1, Quantity: 3, UnitPrice: decimal.RequireFromString("32.50")},
		domain.SaleLine{ProductID: 5, Quantity: 1, UnitPrice: decimal.RequireFromString("118")},
	))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("expected generated sale id")
	}

	rice, _ := repo.GetProduct(ctx, 1)
	coffee, _ := repo.GetProduct(ctx, 5)
	if rice.StockAvailable != 77 || coffee.StockAvailable != 24 {
		t.Fatalf("unexpected stock after sale: rice=%d coffee=%d", rice.StockAvailable, coffee.StockAvailable)
	}
}

func TestCreateSaleIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	_, err := repo.CreateSale(ctx, saleFor(
		domain.SaleLine{ProductID: 1, Quantity: 2},
		domain.SaleLine{ProductID: 9, Quantity: 16},
	))
	var stockErr *store.StockError
	if !errors.As(err, &stockErr) || !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected stock error, got %v", err)
	}
	if stockErr.ProductID != 9 || stockErr.Available != 15 {
		t.Fatalf("unexpected stock error detail: %+v", stockErr)
	}

	rice, _ := repo.GetProduct(ctx, 1)
	if rice.StockAvailable != 80 {
		t.Fatalf("expected untouched stock, got %d", rice.StockAvailable)
	}
}

func TestCreateSaleReplaysIdempotencyKey(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	sale := saleFor(domain.SaleLine{ProductID: 2, Quantity: 1})
	sale.IdempotencyKey = "key-1"
	first, err := repo.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("first sale: %v", err)
	}
	second, err := repo.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("replayed sale: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected replay to return %s, got %s", first.ID, second.ID)
	}
	beans, _ := repo.GetProduct(ctx, 2)
	if beans.StockAvailable != 59 {
		t.Fatalf("expected a single decrement, stock=%d", beans.StockAvailable)
	}
}

func TestCancelSaleRestocksOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	created, err := repo.CreateSale(ctx, saleFor(domain.SaleLine{ProductID: 8, Quantity: 4}))
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}

	cancelled, err := repo.CancelSale(ctx, created.ID, "cliente desistió", "admin", time.Now().UTC())
	if err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	if !cancelled.Cancelled || cancelled.CancelledAt == nil {
		t.Fatalf("expected cancelled sale, got %+v", cancelled)
	}

	milk, _ := repo.GetProduct(ctx, 8)
	if milk.StockAvailable != 48 {
		t.Fatalf("expected restocked milk, got %d", milk.StockAvailable)
	}

	if _, err := repo.CancelSale(ctx, created.ID, "again", "admin", time.Now().UTC()); !errors.Is(err, store.ErrInvalidSale) {
		t.Fatalf("expected ErrInvalidSale on second cancel, got %v", err)
	}
	if _, err := repo.CancelSale(ctx, "missing", "", "admin", time.Now().UTC()); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListSalesFiltersByRange(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()
	day := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)

	for i, at := range []time.Time{day.Add(-time.Minute), day.Add(time.Hour), day.Add(2 * time.Hour), day.Add(24 * time.Hour)} {
		sale := saleFor(domain.SaleLine{ProductID: 6, Quantity: 1})
		sale.CreatedAt = at
		sale.Folio = string(rune('A' + i))
		if _, err := repo.CreateSale(ctx, sale); err != nil {
			t.Fatalf("seed sale %d: %v", i, err)
		}
	}

	sales, err := repo.ListSales(ctx, day, day.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("list sales: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales in range, got %d", len(sales))
	}
	if sales[0].Folio != "C" || sales[1].Folio != "B" {
		t.Fatalf("expected newest first, got %s then %s", sales[0].Folio, sales[1].Folio)
	}
}

func TestAdjustStockRejectsNegativeResult(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	if _, err := repo.AdjustStock(ctx, domain.StockMovement{ProductID: 12, Delta: -1}); !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	updated, err := repo.AdjustStock(ctx, domain.StockMovement{ProductID: 12, Delta: 10, Reason: "compra", Actor: "admin"})
	if err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	if updated.StockAvailable != 10 {
		t.Fatalf("expected 10 units, got %d", updated.StockAvailable)
	}
}

func TestStockLedgerRecordsEveryMovement(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	if _, err := repo.AdjustStock(ctx, domain.StockMovement{ProductID: 9, Delta: 5, Reason: "compra", Actor: "admin"}); err != nil {
		t.Fatalf("adjust stock: %v", err)
	}
	sale := saleFor(domain.SaleLine{ProductID: 9, Quantity: 3})
	sale.CreatedBy = "cajero"
	created, err := repo.CreateSale(ctx, sale)
	if err != nil {
		t.Fatalf("create sale: %v", err)
	}
	if _, err := repo.CancelSale(ctx, created.ID, "error de captura", "admin", time.Now().UTC()); err != nil {
		t.Fatalf("cancel sale: %v", err)
	}
	if _, err := repo.AdjustStock(ctx, domain.StockMovement{ProductID: 9, Delta: -100}); err == nil {
		t.Fatalf("expected rejected adjustment")
	}

	ledger, err := repo.ListStockMovements(ctx, 9, 10)
	if err != nil {
		t.Fatalf("list movements: %v", err)
	}
	if len(ledger) != 3 {
		t.Fatalf("expected 3 movements, rejected ones excluded, got %d", len(ledger))
	}

	want := []struct {
		kind       string
		delta      int
		stockAfter int
		actor      string
	}{
		{domain.MovementCancel, 3, 20, "admin"},
		{domain.MovementSale, -3, 17, "cajero"},
		{domain.MovementAdjustment, 5, 20, "admin"},
	}
	for i, w := range want {
		got := ledger[i]
		if got.Kind != w.kind || got.Delta != w.delta || got.StockAfter != w.stockAfter || got.Actor != w.actor {
			t.Fatalf("movement %d: expected %+v, got %+v", i, w, got)
		}
	}
	if ledger[0].Reference != created.ID || ledger[0].Reason != "error de captura" {
		t.Fatalf("expected cancel movement to reference the sale, got %+v", ledger[0])
	}

	latest, err := repo.ListStockMovements(ctx, 9, 1)
	if err != nil || len(latest) != 1 || latest[0].Kind != domain.MovementCancel {
		t.Fatalf("expected limit to keep the newest movement, got %+v (%v)", latest, err)
	}
	if _, err := repo.ListStockMovements(ctx, 999, 10); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestCreateProductRejectsDuplicateCode(t *testing.T) {
	ctx := context.Background()
	repo := NewSeeded()

	_, err := repo.CreateProduct(ctx, domain.Product{Code: "abr-001", Name: "Otro", SalePrice: decimal.NewFromInt(1)})
	if !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}
