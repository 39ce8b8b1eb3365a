// Package cart holds the checkout cart: stock-bounded line items, money
// totals, customer validation and the payload handed to the sales backend.
//
// Cart is a value type. Every mutation returns a new Cart and leaves the
// receiver untouched, so a rejected operation never changes state.
package cart

import (
	"slices"

	"github.com/shopspring/decimal"
)

// Product is the catalog view the cart needs. StockAvailable is the stock
// ceiling for the product's line.
type Product struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	StockAvailable int             `json:"stock_available"`
	SalePrice      decimal.Decimal `json:"sale_price"`
}

// Line is one product in the cart. UnitPrice is captured when the line is
// created and does not follow later catalog price changes.
type Line struct {
	Product   Product
	Quantity  int
	UnitPrice decimal.Decimal
}

// Amount returns Quantity × UnitPrice.
func (l Line) Amount() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type Cart struct {
	lines []Line
}

func (c Cart) Lines() []Line {
	return slices.Clone(c.lines)
}

func (c Cart) Len() int {
	return len(c.lines)
}

func (c Cart) IsEmpty() bool {
	return len(c.lines) == 0
}

// Line returns the line for productID, if present.
func (c Cart) Line(productID int64) (Line, bool) {
	idx := c.index(productID)
	if idx < 0 {
		return Line{}, false
	}
	return c.lines[idx], true
}

// Units returns the total number of units across all lines.
func (c Cart) Units() int {
	total := 0
	for _, line := range c.lines {
		total += line.Quantity
	}
	return total
}

// ProductIDs returns the product ids in insertion order.
func (c Cart) ProductIDs() []int64 {
	ids := make([]int64, 0, len(c.lines))
	for _, line := range c.lines {
		ids = append(ids, line.Product.ID)
	}
	return ids
}

// Add puts one unit of product in the cart. An existing line grows by one
// unit as long as the stock ceiling allows it.
func (c Cart) Add(product Product) (Cart, error) {
	idx := c.index(product.ID)
	if idx >= 0 {
		line := c.lines[idx]
		if line.Quantity+1 > product.StockAvailable {
			return c, stockExceeded(product.StockAvailable)
		}
		next := c.clone()
		next.lines[idx].Product = product
		next.lines[idx].Quantity++
		return next, nil
	}

	if product.StockAvailable <= 0 {
		return c, ErrOutOfStock
	}
	next := c.clone()
	next.lines = append(next.lines, Line{
		Product:   product,
		Quantity:  1,
		UnitPrice: product.SalePrice,
	})
	return next, nil
}

func (c Cart) Remove(productID int64) (Cart, error) {
	idx := c.index(productID)
	if idx < 0 {
		return c, ErrLineNotFound
	}
	next := c.clone()
	next.lines = slices.Delete(next.lines, idx, idx+1)
	return next, nil
}

// SetQuantity replaces a line's quantity. Zero or negative removes the line.
func (c Cart) SetQuantity(productID int64, quantity int) (Cart, error) {
	if quantity <= 0 {
		return c.Remove(productID)
	}
	idx := c.index(productID)
	if idx < 0 {
		return c, ErrLineNotFound
	}
	if ceiling := c.lines[idx].Product.StockAvailable; quantity > ceiling {
		return c, stockExceeded(ceiling)
	}
	next := c.clone()
	next.lines[idx].Quantity = quantity
	return next, nil
}

// SyncCatalog refreshes each line's product from a fresh catalog read.
// Unit prices are kept. Lines whose product disappeared or ran out of stock
// are dropped and quantities above the new ceiling are clamped.
func (c Cart) SyncCatalog(products []Product) Cart {
	byID := make(map[int64]Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	next := Cart{lines: make([]Line, 0, len(c.lines))}
	for _, line := range c.lines {
		fresh, ok := byID[line.Product.ID]
		if !ok || fresh.StockAvailable <= 0 {
			continue
		}
		line.Product = fresh
		if line.Quantity > fresh.StockAvailable {
			line.Quantity = fresh.StockAvailable
		}
		next.lines = append(next.lines, line)
	}
	return next
}

func (c Cart) index(productID int64) int {
	return slices.IndexFunc(c.lines, func(l Line) bool {
		return l.Product.ID == productID
	})
}

func (c Cart) clone() Cart {
	return Cart{lines: slices.Clone(c.lines)}
}
