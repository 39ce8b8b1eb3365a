package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleAdmin   = "admin"
	RoleCashier = "cashier"
)

const (
	PaymentCash     = "cash"
	PaymentCard     = "card"
	PaymentTransfer = "transfer"
)

type Product struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Category       string          `json:"category"`
	StockAvailable int             `json:"stock_available"`
	SalePrice      decimal.Decimal `json:"sale_price"`
	CostPrice      decimal.Decimal `json:"cost_price"`
	Active         bool            `json:"active"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type ProductCreateRequest struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Category     string          `json:"category"`
	SalePrice    decimal.Decimal `json:"sale_price"`
	CostPrice    decimal.Decimal `json:"cost_price"`
	InitialStock int             `json:"initial_stock"`
}

type ProductUpdateRequest struct {
	Name      *string          `json:"name,omitempty"`
	Category  *string          `json:"category,omitempty"`
	SalePrice *decimal.Decimal `json:"sale_price,omitempty"`
	CostPrice *decimal.Decimal `json:"cost_price,omitempty"`
	Active    *bool            `json:"active,omitempty"`
}

// StockAdjustRequest moves stock by Delta units; negative values remove stock.
type StockAdjustRequest struct {
	Delta  int    `json:"delta"`
	Reason string `json:"reason"`
}

const (
	MovementSale       = "sale"
	MovementCancel     = "cancel"
	MovementAdjustment = "adjustment"
)

// StockMovement is one entry of a product's stock ledger. Delta is signed and
// StockAfter is the stock once the movement applied.
type StockMovement struct {
	ID         string    `json:"id"`
	ProductID  int64     `json:"product_id"`
	Kind       string    `json:"kind"`
	Delta      int       `json:"delta"`
	StockAfter int       `json:"stock_after"`
	Reason     string    `json:"reason,omitempty"`
	Reference  string    `json:"reference,omitempty"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

type LowStockResponse struct {
	Threshold int       `json:"threshold"`
	Products  []Product `json:"products"`
}

// ProductPage is the server-side paginated product listing.
type ProductPage struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	PageSize   int       `json:"page_size"`
	TotalPages int       `json:"total_pages"`
}

type SaleLineRequest struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type SaleCreateRequest struct {
	CustomerName  string            `json:"customer_name"`
	CustomerTaxID *string           `json:"customer_tax_id"`
	PaymentMethod string            `json:"payment_method"`
	Notes         string            `json:"notes"`
	Lines         []SaleLineRequest `json:"lines"`
}

type SaleLine struct {
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

type Sale struct {
	ID             string          `json:"id"`
	Folio          string          `json:"folio"`
	IdempotencyKey string          `json:"-"`
	CustomerName   string          `json:"customer_name"`
	CustomerTaxID  *string         `json:"customer_tax_id"`
	PaymentMethod  string          `json:"payment_method"`
	Notes          string          `json:"notes"`
	Lines          []SaleLine      `json:"lines"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxRate        decimal.Decimal `json:"tax_rate"`
	Tax            decimal.Decimal `json:"tax"`
	Total          decimal.Decimal `json:"total"`
	Cancelled      bool            `json:"cancelled"`
	CancelReason   string          `json:"cancel_reason,omitempty"`
	CreatedBy      string          `json:"created_by"`
	CreatedAt      time.Time       `json:"created_at"`
	CancelledAt    *time.Time      `json:"cancelled_at,omitempty"`
}

func (s Sale) Units() int {
	units := 0
	for _, line := range s.Lines {
		units += line.Quantity
	}
	return units
}

type SaleCreateResponse struct {
	Sale      Sale `json:"sale"`
	Duplicate bool `json:"duplicate"`
}

type SaleCancelRequest struct {
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin,omitempty"`
}

type SalePage struct {
	Sales      []Sale `json:"sales"`
	Date       string `json:"date"`
	Total      int    `json:"total"`
	Page       int    `json:"page"`
	PageSize   int    `json:"page_size"`
	TotalPages int    `json:"total_pages"`
}

type DailyStatsPayment struct {
	PaymentMethod string          `json:"payment_method"`
	Sales         int64           `json:"sales"`
	Total         decimal.Decimal `json:"total"`
}

type DailyStats struct {
	Date              string              `json:"date"`
	TotalSalesToday   int64               `json:"total_sales_today"`
	TotalRevenueToday decimal.Decimal     `json:"total_revenue_today"`
	TotalTaxToday     decimal.Decimal     `json:"total_tax_today"`
	AverageTicket     decimal.Decimal     `json:"average_ticket"`
	CancelledToday    int64               `json:"cancelled_today"`
	ByPayment         []DailyStatsPayment `json:"by_payment"`
}

type PeriodDay struct {
	Date    string          `json:"date"`
	Sales   int64           `json:"sales"`
	Revenue decimal.Decimal `json:"revenue"`
	Tax     decimal.Decimal `json:"tax"`
}

// ProductSales aggregates the non-cancelled lines of one product. Revenue is
// before tax.
type ProductSales struct {
	ProductID int64           `json:"product_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Units     int64           `json:"units"`
	Sales     int64           `json:"sales"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// PeriodReport covers the inclusive day range From..To.
type PeriodReport struct {
	From         string          `json:"from"`
	To           string          `json:"to"`
	TotalSales   int64           `json:"total_sales"`
	TotalRevenue decimal.Decimal `json:"total_revenue"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	Cancelled    int64           `json:"cancelled"`
	Days         []PeriodDay     `json:"days"`
	TopProducts  []ProductSales  `json:"top_products"`
}

type TaxSettings struct {
	Rate decimal.Decimal `json:"rate"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	ExpiresAt   string `json:"expires_at"`
}

type Actor struct {
	Username string
	Role     string
}

type UserCreateRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UserView struct {
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username  string
	Password  string
	Role      string
	Active    bool
	CreatedAt time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
