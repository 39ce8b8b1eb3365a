package memory

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"puntoventa/internal/domain"
	"puntoventa/internal/store"
	"puntoventa/internal/xid"
)

type Store struct {
	mu              sync.RWMutex
	products        map[int64]domain.Product
	nextProductID   int64
	salesByID       map[string]*domain.Sale
	salesByIdem     map[string]*domain.Sale
	auditLogs       []domain.AuditLog
	movements       map[int64][]domain.StockMovement
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD;
// when unset, dev defaults are used and a warning is logged. The postgres
// repository is used whenever DATABASE_URL is set.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		zap.L().Warn("memory store using default dev credentials; set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cajero", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			zap.L().Fatal("failed to hash seed password", zap.String("username", u.username), zap.Error(err))
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func price(raw string) decimal.Decimal {
	return decimal.RequireFromString(raw)
}

func NewSeeded() *Store {
	products := []domain.Product{
		{Code: "ABR-001", Name: "Arroz Blanco 1kg", Category: "abarrotes", StockAvailable: 80, SalePrice: price("32.50"), CostPrice: price("24.00")},
		{Code: "ABR-002", Name: "Frijol Negro 1kg", Category: "abarrotes", StockAvailable: 60, SalePrice: price("41.90"), CostPrice: price("31.00")},
		{Code: "ABR-003", Name: "Aceite Vegetal 1L", Category: "abarrotes", StockAvailable: 45, SalePrice: price("54.00"), CostPrice: price("42.10")},
		{Code: "ABR-004", Name: "Azúcar Estándar 1kg", Category: "abarrotes", StockAvailable: 70, SalePrice: price("33.00"), CostPrice: price("26.40")},
		{Code: "BEB-001", Name: "Café Molido 400g", Category: "bebidas", StockAvailable: 25, SalePrice: price("118.00"), CostPrice: price("86.00")},
		{Code: "BEB-002", Name: "Agua Natural 1.5L", Category: "bebidas", StockAvailable: 120, SalePrice: price("16.50"), CostPrice: price("9.80")},
		{Code: "BEB-003", Name: "Refresco Cola 600ml", Category: "bebidas", StockAvailable: 96, SalePrice: price("19.00"), CostPrice: price("12.70")},
		{Code: "LAC-001", Name: "Leche Entera 1L", Category: "lácteos", StockAvailable: 48, SalePrice: price("28.90"), CostPrice: price("22.50")},
		{Code: "LAC-002", Name: "Queso Panela 400g", Category: "lácteos", StockAvailable: 15, SalePrice: price("79.00"), CostPrice: price("58.00")},
		{Code: "PAN-001", Name: "Pan de Caja Grande", Category: "panadería", StockAvailable: 30, SalePrice: price("49.50"), CostPrice: price("35.00")},
		{Code: "LIM-001", Name: "Jabón de Tocador", Category: "limpieza", StockAvailable: 64, SalePrice: price("17.80"), CostPrice: price("11.20")},
		{Code: "LIM-002", Name: "Detergente en Polvo 1kg", Category: "limpieza", StockAvailable: 0, SalePrice: price("46.00"), CostPrice: price("33.90")},
	}

	now := time.Now().UTC()
	productMap := make(map[int64]domain.Product, len(products))
	var nextID int64
	for _, p := range products {
		nextID++
		p.ID = nextID
		p.Active = true
		p.UpdatedAt = now
		productMap[p.ID] = p
	}

	return &Store{
		products:        productMap,
		nextProductID:   nextID,
		salesByID:       make(map[string]*domain.Sale),
		salesByIdem:     make(map[string]*domain.Sale),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		movements:       make(map[int64][]domain.StockMovement),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmp.Compare(a.Name, b.Name)
		}
		return cmp.Compare(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(_ context.Context, ids []int64) (map[int64]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[int64]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := s.products[id]; ok {
			result[id] = product
		}
	}
	return result, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Code == "" || product.Name == "" || !product.SalePrice.IsPositive() || product.StockAvailable < 0 {
		return nil, store.ErrInvalidSale
	}
	for _, existing := range s.products {
		if strings.EqualFold(existing.Code, product.Code) {
			return nil, fmt.Errorf("%w: product code %s", store.ErrDuplicate, product.Code)
		}
	}

	s.nextProductID++
	product.ID = s.nextProductID
	product.Active = true
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.Name == "" || !product.SalePrice.IsPositive() {
		return nil, store.ErrInvalidSale
	}

	// Stock only moves through AdjustStock, CreateSale and CancelSale.
	product.Code = existing.Code
	product.StockAvailable = existing.StockAvailable
	product.UpdatedAt = time.Now().UTC()
	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) AdjustStock(_ context.Context, movement domain.StockMovement) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[movement.ProductID]
	if !exists {
		return nil, store.ErrNotFound
	}
	if product.StockAvailable+movement.Delta < 0 {
		return nil, &store.StockError{
			ProductID: product.ID,
			Name:      product.Name,
			Available: product.StockAvailable,
			Requested: -movement.Delta,
		}
	}
	if movement.CreatedAt.IsZero() {
		movement.CreatedAt = time.Now().UTC()
	}
	product.StockAvailable += movement.Delta
	product.UpdatedAt = movement.CreatedAt
	s.products[product.ID] = product

	movement.Kind = domain.MovementAdjustment
	s.recordMovement(movement, product.StockAvailable)
	return &product, nil
}

func (s *Store) ListStockMovements(_ context.Context, productID int64, limit int) ([]domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.products[productID]; !exists {
		return nil, store.ErrNotFound
	}
	ledger := s.movements[productID]
	result := make([]domain.StockMovement, 0, min(len(ledger), max(limit, 0)))
	for i := len(ledger) - 1; i >= 0 && len(result) < limit; i-- {
		result = append(result, ledger[i])
	}
	return result, nil
}

// recordMovement appends to the ledger. Callers hold the write lock.
func (s *Store) recordMovement(movement domain.StockMovement, stockAfter int) {
	movement.ID = xid.New("mov")
	movement.StockAfter = stockAfter
	s.movements[movement.ProductID] = append(s.movements[movement.ProductID], movement)
}

func (s *Store) CreateSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sale.IdempotencyKey != "" {
		if existing, ok := s.salesByIdem[sale.IdempotencyKey]; ok {
			return cloneSale(existing), nil
		}
	}
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}

	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		product, exists := s.products[line.ProductID]
		if !exists || !product.Active {
			return nil, fmt.Errorf("%w: product %d unavailable", store.ErrInvalidSale, line.ProductID)
		}
		if product.StockAvailable < line.Quantity {
			return nil, &store.StockError{
				ProductID: product.ID,
				Name:      product.Name,
				Available: product.StockAvailable,
				Requested: line.Quantity,
			}
		}
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	for _, line := range sale.Lines {
		product := s.products[line.ProductID]
		product.StockAvailable -= line.Quantity
		product.UpdatedAt = sale.CreatedAt
		s.products[line.ProductID] = product
		s.recordMovement(domain.StockMovement{
			ProductID: line.ProductID,
			Kind:      domain.MovementSale,
			Delta:     -line.Quantity,
			Reference: sale.ID,
			Actor:     sale.CreatedBy,
			CreatedAt: sale.CreatedAt,
		}, product.StockAvailable)
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	if sale.IdempotencyKey != "" {
		s.salesByIdem[sale.IdempotencyKey] = saved
	}

	return cloneSale(saved), nil
}

func (s *Store) GetSale(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) FindSaleByIdempotency(_ context.Context, key string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, ok := s.salesByIdem[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 32)
	for _, sale := range s.salesByID {
		if sale.CreatedAt.Before(from) || !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}

	slices.SortFunc(result, func(a, b domain.Sale) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
	return result, nil
}

func (s *Store) CancelSale(_ context.Context, id string, reason string, actor string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, ok := s.salesByID[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	if sale.Cancelled {
		return nil, fmt.Errorf("%w: sale %s already cancelled", store.ErrInvalidSale, sale.Folio)
	}

	for _, line := range sale.Lines {
		product, exists := s.products[line.ProductID]
		if !exists {
			continue
		}
		product.StockAvailable += line.Quantity
		product.UpdatedAt = at
		s.products[line.ProductID] = product
		s.recordMovement(domain.StockMovement{
			ProductID: line.ProductID,
			Kind:      domain.MovementCancel,
			Delta:     line.Quantity,
			Reason:    reason,
			Reference: sale.ID,
			Actor:     actor,
			CreatedAt: at,
		}, product.StockAvailable)
	}

	sale.Cancelled = true
	sale.CancelReason = reason
	sale.CancelledAt = &at

	return cloneSale(sale), nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

// AuditLogs returns a copy of the recorded audit entries, oldest first.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.auditLogs)
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: username %s", store.ErrDuplicate, username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	dup.Lines = slices.Clone(src.Lines)
	if src.CustomerTaxID != nil {
		taxID := *src.CustomerTaxID
		dup.CustomerTaxID = &taxID
	}
	if src.CancelledAt != nil {
		at := *src.CancelledAt
		dup.CancelledAt = &at
	}
	return &dup
}
