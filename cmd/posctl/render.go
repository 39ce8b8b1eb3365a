package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"puntoventa/internal/cart"
	"puntoventa/internal/domain"
	"puntoventa/internal/salesclient"
	"puntoventa/internal/table"
)

// renderRows prints rows as aligned columns under their headers.
func renderRows[R any](w io.Writer, columns []table.Column[R], rows []R) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	headers := make([]string, len(columns))
	for i, col := range columns {
		headers[i] = strings.ToUpper(col.Header)
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = col.Render(row)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func renderFooter(w io.Writer, start, end, total, page, pages int) {
	if total == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	fmt.Fprintf(w, "%d-%d of %d, page %d/%d\n", start, end, total, page, pages)
}

var productColumns = []table.Column[domain.Product]{
	{Header: "Id", Key: "id", Sortable: true, Accessor: func(p domain.Product) any { return p.ID }},
	{Header: "Code", Key: "code", Sortable: true, Accessor: func(p domain.Product) any { return p.Code }},
	{Header: "Name", Key: "name", Sortable: true, Accessor: func(p domain.Product) any { return p.Name }},
	{Header: "Category", Key: "category", Sortable: true, Accessor: func(p domain.Product) any { return p.Category }},
	{Header: "Stock", Key: "stock", Sortable: true, Accessor: func(p domain.Product) any { return p.StockAvailable }},
	{
		Header: "Price", Key: "price", Sortable: true,
		Accessor: func(p domain.Product) any { return p.SalePrice },
		Cell:     func(p domain.Product) string { return "$" + cart.FormatMoney(p.SalePrice) },
	},
}

var saleColumns = []table.Column[domain.Sale]{
	{Header: "Folio", Key: "folio", Accessor: func(s domain.Sale) any { return s.Folio }},
	{Header: "Time", Key: "created_at", Cell: func(s domain.Sale) string { return s.CreatedAt.Local().Format("15:04") }},
	{Header: "Customer", Key: "customer_name", Accessor: func(s domain.Sale) any { return s.CustomerName }},
	{Header: "Tax id", Key: "customer_tax_id", Accessor: func(s domain.Sale) any { return s.CustomerTaxID }},
	{Header: "Payment", Key: "payment_method", Accessor: func(s domain.Sale) any { return s.PaymentMethod }},
	{Header: "Units", Key: "units", Accessor: func(s domain.Sale) any { return s.Units() }},
	{Header: "Total", Key: "total", Cell: func(s domain.Sale) string { return "$" + cart.FormatMoney(s.Total) }},
	{Header: "Status", Key: "status", Cell: saleStatus},
}

func saleStatus(s domain.Sale) string {
	if s.Cancelled {
		return "cancelled"
	}
	return "ok"
}

// userError swaps transport errors for the message meant for the operator.
func userError(err error) error {
	var apiErr *salesclient.APIError
	if errors.As(err, &apiErr) {
		return errors.New(apiErr.UserMessage())
	}
	var subErr *cart.SubmissionError
	if errors.As(err, &subErr) {
		return errors.New(subErr.Message)
	}
	return err
}
