package cart

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer:
		return true
	default:
		return false
	}
}

// DefaultCustomerName is used for walk-in sales.
const DefaultCustomerName = "Público General"

// Context is the customer and payment data entered alongside the cart.
type Context struct {
	CustomerName  string
	CustomerTaxID string
	PaymentMethod PaymentMethod
	Notes         string
}

func DefaultContext() Context {
	return Context{
		CustomerName:  DefaultCustomerName,
		PaymentMethod: PaymentCash,
	}
}

var taxIDPattern = regexp.MustCompile(`^[A-ZÑ&]{3,4}[0-9]{6}[A-Z0-9]{3}$`)

// NormalizeTaxID trims and uppercases a tax id.
func NormalizeTaxID(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidTaxID reports whether raw is a well-formed tax id (3-4 letter prefix,
// six digits, three alphanumerics). Case is ignored.
func ValidTaxID(raw string) bool {
	return taxIDPattern.MatchString(NormalizeTaxID(raw))
}

// Validate checks the cart and context in a fixed order and reports the first
// failure only.
func (c Cart) Validate(ctx Context) error {
	if c.IsEmpty() {
		return ErrEmptyCart
	}
	if strings.TrimSpace(ctx.CustomerName) == "" {
		return ErrMissingCustomerName
	}
	if strings.TrimSpace(ctx.CustomerTaxID) != "" && !ValidTaxID(ctx.CustomerTaxID) {
		return ErrInvalidTaxID
	}
	if !ctx.PaymentMethod.Valid() {
		return ErrInvalidPaymentMethod
	}
	return nil
}

type PayloadLine struct {
	ProductID int64           `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// Payload is the sale-creation request body.
type Payload struct {
	CustomerName  string        `json:"customer_name"`
	CustomerTaxID *string       `json:"customer_tax_id"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Notes         string        `json:"notes"`
	Lines         []PayloadLine `json:"lines"`
}

// BuildPayload validates and projects the cart into a sale request. It has
// no side effects.
func (c Cart) BuildPayload(ctx Context) (Payload, error) {
	if err := c.Validate(ctx); err != nil {
		return Payload{}, err
	}

	var taxID *string
	if normalized := NormalizeTaxID(ctx.CustomerTaxID); normalized != "" {
		taxID = &normalized
	}

	lines := make([]PayloadLine, 0, len(c.lines))
	for _, line := range c.lines {
		lines = append(lines, PayloadLine{
			ProductID: line.Product.ID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}

	return Payload{
		CustomerName:  strings.TrimSpace(ctx.CustomerName),
		CustomerTaxID: taxID,
		PaymentMethod: ctx.PaymentMethod,
		Notes:         strings.TrimSpace(ctx.Notes),
		Lines:         lines,
	}, nil
}
