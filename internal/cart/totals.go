package cart

import "github.com/shopspring/decimal"

// DefaultTaxRate is the VAT rate applied when the backend does not publish one.
var DefaultTaxRate = decimal.RequireFromString("0.16")

func (c Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, line := range c.lines {
		sum = sum.Add(line.Amount())
	}
	return sum
}

// Tax is advisory; the backend computes the authoritative amount.
func (c Cart) Tax(rate decimal.Decimal) decimal.Decimal {
	return c.Subtotal().Mul(rate)
}

func (c Cart) Total(rate decimal.Decimal) decimal.Decimal {
	subtotal := c.Subtotal()
	return subtotal.Add(subtotal.Mul(rate))
}

// Totals is a snapshot of the three amounts for display.
type Totals struct {
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Total    decimal.Decimal
}

func (c Cart) Totals(rate decimal.Decimal) Totals {
	subtotal := c.Subtotal()
	tax := subtotal.Mul(rate)
	return Totals{Subtotal: subtotal, Tax: tax, Total: subtotal.Add(tax)}
}

// FormatMoney renders an amount with exactly two decimals.
func FormatMoney(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// RoundMoney rounds half away from zero to cents.
func RoundMoney(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(2)
}
