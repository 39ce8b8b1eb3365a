package store

import (
	"context"
	"errors"
	"time"

	"puntoventa/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidSale       = errors.New("invalid sale")
	ErrDuplicate         = errors.New("already exists")
)

// StockError reports which product could not cover a sale line.
type StockError struct {
	ProductID int64
	Name      string
	Available int
	Requested int
}

func (e *StockError) Error() string {
	return "insufficient stock for " + e.Name
}

func (e *StockError) Unwrap() error {
	return ErrInsufficientStock
}

type Repository interface {
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	// AdjustStock applies movement.Delta to movement.ProductID and records the
	// movement in the product's stock ledger.
	AdjustStock(ctx context.Context, movement domain.StockMovement) (*domain.Product, error)
	// ListStockMovements returns up to limit ledger entries, newest first.
	ListStockMovements(ctx context.Context, productID int64, limit int) ([]domain.StockMovement, error)

	// CreateSale persists the sale and decrements stock for every line
	// atomically, writing one sale movement per line. A line the stock cannot
	// cover fails with *StockError.
	CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error)
	ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error)
	// CancelSale marks the sale cancelled and restores its stock, writing one
	// cancel movement per product.
	CancelSale(ctx context.Context, id string, reason string, actor string, at time.Time) (*domain.Sale, error)

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
