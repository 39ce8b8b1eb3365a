package service

import (
	"puntoventa/internal/domain"
	"puntoventa/internal/table"
)

// ListQuery is the search, sort and paging input of a listing endpoint.
// Page is 1-based; zero values mean first page and default size.
type ListQuery struct {
	Search   string
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

func (q ListQuery) pageSize() int {
	switch {
	case q.PageSize < 1:
		return defaultPageSize
	case q.PageSize > maxPageSize:
		return maxPageSize
	default:
		return q.PageSize
	}
}

func (q ListQuery) state() table.ViewState {
	return table.ViewState{
		SearchTerm:    q.Search,
		SortKey:       q.Sort,
		SortDirection: table.ParseDirection(q.Dir),
		PageIndex:     max(q.Page, 1),
		PageSize:      q.pageSize(),
	}
}

func derive[R any](q ListQuery, rows []R, columns []table.Column[R]) table.View[R] {
	return table.Derive(rows, columns, q.state())
}

var productColumns = []table.Column[domain.Product]{
	{Header: "Código", Key: "code", Sortable: true, Accessor: func(p domain.Product) any { return p.Code }},
	{Header: "Producto", Key: "name", Sortable: true, Accessor: func(p domain.Product) any { return p.Name }},
	{Header: "Categoría", Key: "category", Sortable: true, Accessor: func(p domain.Product) any { return p.Category }},
	{Header: "Existencia", Key: "stock_available", Sortable: true, Accessor: func(p domain.Product) any { return p.StockAvailable }},
	{Header: "Precio", Key: "sale_price", Sortable: true, Accessor: func(p domain.Product) any { return p.SalePrice }},
}

var saleColumns = []table.Column[domain.Sale]{
	{Header: "Folio", Key: "folio", Sortable: true, Accessor: func(s domain.Sale) any { return s.Folio }},
	{Header: "Cliente", Key: "customer_name", Sortable: true, Accessor: func(s domain.Sale) any { return s.CustomerName }},
	{Header: "RFC", Key: "customer_tax_id", Sortable: true, Accessor: func(s domain.Sale) any { return s.CustomerTaxID }},
	{Header: "Pago", Key: "payment_method", Sortable: true, Accessor: func(s domain.Sale) any { return s.PaymentMethod }},
	{Header: "Total", Key: "total", Sortable: true, Accessor: func(s domain.Sale) any { return s.Total }},
	{Header: "Fecha", Key: "created_at", Sortable: true, Accessor: func(s domain.Sale) any { return s.CreatedAt }},
}
