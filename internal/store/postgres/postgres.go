package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"puntoventa/internal/domain"
	"puntoventa/internal/store"
	"puntoventa/internal/xid"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Migrate creates the tables when they do not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schemaSQL)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, code, name, category, stock_available, sale_price, cost_price, active, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Category, &p.StockAvailable, &p.SalePrice, &p.CostPrice, &p.Active, &p.UpdatedAt)
	p.UpdatedAt = p.UpdatedAt.UTC()
	return p, err
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
		ORDER BY category, name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	product, err := scanProduct(s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &product, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]domain.Product, error) {
	result := make(map[int64]domain.Product, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = ANY($1)
	`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Code == "" || product.Name == "" || !product.SalePrice.IsPositive() || product.StockAvailable < 0 {
		return nil, store.ErrInvalidSale
	}

	created, err := scanProduct(s.db.QueryRowContext(ctx, `
		INSERT INTO products (code, name, category, stock_available, sale_price, cost_price, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,true,now(),now())
		RETURNING `+productColumns,
		product.Code, product.Name, product.Category, product.StockAvailable, product.SalePrice, product.CostPrice))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: product code %s", store.ErrDuplicate, product.Code)
		}
		return nil, err
	}
	return &created, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || !product.SalePrice.IsPositive() {
		return nil, store.ErrInvalidSale
	}

	updated, err := scanProduct(s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, sale_price = $4, cost_price = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns,
		product.ID, product.Name, product.Category, product.SalePrice, product.CostPrice, product.Active))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) AdjustStock(ctx context.Context, movement domain.StockMovement) (*domain.Product, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	current, err := scanProduct(pgTx.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
		FOR UPDATE
	`, movement.ProductID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if current.StockAvailable+movement.Delta < 0 {
		return nil, &store.StockError{ProductID: current.ID, Name: current.Name, Available: current.StockAvailable, Requested: -movement.Delta}
	}

	updated, err := scanProduct(pgTx.QueryRowContext(ctx, `
		UPDATE products
		SET stock_available = stock_available + $2, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns, movement.ProductID, movement.Delta))
	if err != nil {
		return nil, err
	}

	movement.Kind = domain.MovementAdjustment
	movement.StockAfter = updated.StockAvailable
	if err := insertMovement(ctx, pgTx, movement); err != nil {
		return nil, err
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ListStockMovements(ctx context.Context, productID int64, limit int) ([]domain.StockMovement, error) {
	if _, err := s.GetProduct(ctx, productID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, product_id, kind, delta, stock_after, reason, reference, actor, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, productID, max(limit, 0))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	movements := make([]domain.StockMovement, 0, max(limit, 0))
	for rows.Next() {
		var m domain.StockMovement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.Kind, &m.Delta, &m.StockAfter, &m.Reason, &m.Reference, &m.Actor, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.CreatedAt = m.CreatedAt.UTC()
		movements = append(movements, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return movements, nil
}

func insertMovement(ctx context.Context, tx *sql.Tx, m domain.StockMovement) error {
	if m.ID == "" {
		m.ID = xid.New("mov")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO stock_movements (id, product_id, kind, delta, stock_after, reason, reference, actor, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, m.ID, m.ProductID, m.Kind, m.Delta, m.StockAfter, m.Reason, m.Reference, m.Actor, m.CreatedAt)
	return err
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Lines) == 0 {
		return nil, store.ErrInvalidSale
	}
	if sale.IdempotencyKey != "" {
		if existing, err := s.FindSaleByIdempotency(ctx, sale.IdempotencyKey); err == nil {
			return existing, nil
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
	}

	// Read committed is enough: every product row the sale touches is locked
	// below before its stock is checked.
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	ids := uniqueProductIDs(sale.Lines)
	// Rows are locked in id order so concurrent sales cannot deadlock.
	productRows, err := pgTx.QueryContext(ctx, `
		SELECT id, name, stock_available, active
		FROM products
		WHERE id = ANY($1)
		ORDER BY id
		FOR UPDATE
	`, ids)
	if err != nil {
		return nil, err
	}
	type stockState struct {
		name      string
		available int
		active    bool
	}
	stock := make(map[int64]stockState, len(ids))
	for productRows.Next() {
		var id int64
		var state stockState
		if err := productRows.Scan(&id, &state.name, &state.available, &state.active); err != nil {
			_ = productRows.Close()
			return nil, err
		}
		stock[id] = state
	}
	if err := productRows.Err(); err != nil {
		_ = productRows.Close()
		return nil, err
	}
	_ = productRows.Close()

	for _, line := range sale.Lines {
		if line.Quantity < 1 {
			return nil, store.ErrInvalidSale
		}
		state, exists := stock[line.ProductID]
		if !exists || !state.active {
			return nil, fmt.Errorf("%w: product %d unavailable", store.ErrInvalidSale, line.ProductID)
		}
		if state.available < line.Quantity {
			return nil, &store.StockError{
				ProductID: line.ProductID,
				Name:      state.name,
				Available: state.available,
				Requested: line.Quantity,
			}
		}
		state.available -= line.Quantity
		stock[line.ProductID] = state
	}

	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	_, err = pgTx.ExecContext(ctx, `
		INSERT INTO sales (
			id, folio, idempotency_key, customer_name, customer_tax_id, payment_method, notes,
			subtotal, tax_rate, tax, total, cancelled, created_by, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,false,$12,$13)
	`, sale.ID, sale.Folio, nullIfEmpty(sale.IdempotencyKey), sale.CustomerName, nullString(sale.CustomerTaxID),
		sale.PaymentMethod, sale.Notes, sale.Subtotal, sale.TaxRate, sale.Tax, sale.Total, sale.CreatedBy, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) && sale.IdempotencyKey != "" {
			_ = pgTx.Rollback()
			if existing, lookupErr := s.FindSaleByIdempotency(ctx, sale.IdempotencyKey); lookupErr == nil {
				return existing, nil
			}
		}
		return nil, err
	}

	for _, line := range sale.Lines {
		_, err := pgTx.ExecContext(ctx, `
			INSERT INTO sale_lines (sale_id, product_id, product_code, product_name, quantity, unit_price, amount)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
		`, sale.ID, line.ProductID, line.ProductCode, line.ProductName, line.Quantity, line.UnitPrice, line.Amount)
		if err != nil {
			return nil, err
		}
		var stockAfter int
		err = pgTx.QueryRowContext(ctx, `
			UPDATE products
			SET stock_available = stock_available - $1, updated_at = now()
			WHERE id = $2
			RETURNING stock_available
		`, line.Quantity, line.ProductID).Scan(&stockAfter)
		if err != nil {
			return nil, err
		}
		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ProductID:  line.ProductID,
			Kind:       domain.MovementSale,
			Delta:      -line.Quantity,
			StockAfter: stockAfter,
			Reference:  sale.ID,
			Actor:      sale.CreatedBy,
			CreatedAt:  sale.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return &sale, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return s.findSale(ctx, "id", id)
}

func (s *Store) FindSaleByIdempotency(ctx context.Context, key string) (*domain.Sale, error) {
	if key == "" {
		return nil, store.ErrNotFound
	}
	return s.findSale(ctx, "idempotency_key", key)
}

const saleColumns = `id, folio, COALESCE(idempotency_key,''), customer_name, customer_tax_id, payment_method, notes,
	subtotal, tax_rate, tax, total, cancelled, COALESCE(cancel_reason,''), created_by, created_at, cancelled_at`

func scanSale(row rowScanner) (domain.Sale, error) {
	var sale domain.Sale
	var taxID sql.NullString
	var cancelledAt sql.NullTime
	err := row.Scan(
		&sale.ID,
		&sale.Folio,
		&sale.IdempotencyKey,
		&sale.CustomerName,
		&taxID,
		&sale.PaymentMethod,
		&sale.Notes,
		&sale.Subtotal,
		&sale.TaxRate,
		&sale.Tax,
		&sale.Total,
		&sale.Cancelled,
		&sale.CancelReason,
		&sale.CreatedBy,
		&sale.CreatedAt,
		&cancelledAt,
	)
	if err != nil {
		return sale, err
	}
	if taxID.Valid {
		sale.CustomerTaxID = &taxID.String
	}
	if cancelledAt.Valid {
		at := cancelledAt.Time.UTC()
		sale.CancelledAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func (s *Store) findSale(ctx context.Context, column string, value string) (*domain.Sale, error) {
	if column != "id" && column != "idempotency_key" {
		return nil, fmt.Errorf("unsupported lookup column")
	}

	sale, err := scanSale(s.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM sales
		WHERE %s = $1
	`, saleColumns, column), value))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	lines, err := s.loadLines(ctx, []string{sale.ID})
	if err != nil {
		return nil, err
	}
	sale.Lines = lines[sale.ID]
	return &sale, nil
}

func (s *Store) loadLines(ctx context.Context, saleIDs []string) (map[string][]domain.SaleLine, error) {
	result := make(map[string][]domain.SaleLine, len(saleIDs))
	if len(saleIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT sale_id, product_id, product_code, product_name, quantity, unit_price, amount
		FROM sale_lines
		WHERE sale_id = ANY($1)
		ORDER BY id ASC
	`, saleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var saleID string
		var line domain.SaleLine
		if err := rows.Scan(&saleID, &line.ProductID, &line.ProductCode, &line.ProductName, &line.Quantity, &line.UnitPrice, &line.Amount); err != nil {
			return nil, err
		}
		result[saleID] = append(result[saleID], line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) ListSales(ctx context.Context, from time.Time, to time.Time) ([]domain.Sale, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE created_at >= $1 AND created_at < $2
		ORDER BY created_at DESC, id DESC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, 64)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(sales))
	for _, sale := range sales {
		ids = append(ids, sale.ID)
	}
	lines, err := s.loadLines(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range sales {
		sales[i].Lines = lines[sales[i].ID]
	}
	return sales, nil
}

func (s *Store) CancelSale(ctx context.Context, id string, reason string, actor string, at time.Time) (*domain.Sale, error) {
	pgTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	var folio string
	var cancelled bool
	err = pgTx.QueryRowContext(ctx, `
		SELECT folio, cancelled
		FROM sales
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&folio, &cancelled)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if cancelled {
		return nil, fmt.Errorf("%w: sale %s already cancelled", store.ErrInvalidSale, folio)
	}

	_, err = pgTx.ExecContext(ctx, `
		UPDATE sales
		SET cancelled = true, cancel_reason = $2, cancelled_at = $3
		WHERE id = $1 AND cancelled = false
	`, id, reason, at)
	if err != nil {
		return nil, err
	}

	restock, err := pgTx.QueryContext(ctx, `
		SELECT product_id, SUM(quantity)
		FROM sale_lines
		WHERE sale_id = $1
		GROUP BY product_id
		ORDER BY product_id
	`, id)
	if err != nil {
		return nil, err
	}
	type restockLine struct {
		productID int64
		qty       int
	}
	var lines []restockLine
	for restock.Next() {
		var line restockLine
		if err := restock.Scan(&line.productID, &line.qty); err != nil {
			_ = restock.Close()
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := restock.Err(); err != nil {
		_ = restock.Close()
		return nil, err
	}
	_ = restock.Close()

	// Same id order as CreateSale so the two cannot deadlock on product rows.
	for _, line := range lines {
		var stockAfter int
		err := pgTx.QueryRowContext(ctx, `
			UPDATE products
			SET stock_available = stock_available + $2, updated_at = now()
			WHERE id = $1
			RETURNING stock_available
		`, line.productID, line.qty).Scan(&stockAfter)
		if err != nil {
			return nil, err
		}
		err = insertMovement(ctx, pgTx, domain.StockMovement{
			ProductID:  line.productID,
			Kind:       domain.MovementCancel,
			Delta:      line.qty,
			StockAfter: stockAfter,
			Reason:     reason,
			Reference:  id,
			Actor:      actor,
			CreatedAt:  at,
		})
		if err != nil {
			return nil, err
		}
	}

	if err := pgTx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSale(ctx, id)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidSale
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %s", store.ErrDuplicate, user.Username)
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidSale
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func uniqueProductIDs(lines []domain.SaleLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullString(val *string) any {
	if val == nil {
		return nil
	}
	return *val
}
