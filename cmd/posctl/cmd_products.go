package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"puntoventa/internal/domain"
	"puntoventa/internal/table"
)

type listFlags struct {
	search   string
	sort     string
	desc     bool
	page     int
	pageSize int
}

func (f *listFlags) bind(cmd *cobra.Command, sortUsage string) {
	cmd.Flags().StringVarP(&f.search, "search", "s", "", "case-insensitive search across all columns")
	cmd.Flags().StringVar(&f.sort, "sort", "", sortUsage)
	cmd.Flags().BoolVar(&f.desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&f.page, "page", 1, "page number")
	cmd.Flags().IntVar(&f.pageSize, "page-size", 10, "rows per page")
}

func newProductsCmd(opts *rootOptions) *cobra.Command {
	var (
		flags    listFlags
		lowStock int
	)
	cmd := &cobra.Command{
		Use:   "products",
		Short: "Browse the active catalog",
		Example: `  posctl products --search bebidas --sort price --desc
  posctl products --low-stock 10`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			var products []domain.Product
			if cmd.Flags().Changed("low-stock") {
				if lowStock < 0 {
					return fmt.Errorf("--low-stock must be zero or more")
				}
				resp, err := client.LowStock(ctx, lowStock)
				if err != nil {
					return userError(err)
				}
				products = resp.Products
			} else {
				all, err := client.ListProducts(ctx)
				if err != nil {
					return userError(err)
				}
				products = all
			}

			view := productView(products, flags)
			out := cmd.OutOrStdout()
			if err := renderRows(out, productColumns, view.Page); err != nil {
				return err
			}
			renderFooter(out, view.Start, view.End, view.Total(), view.PageIndex, view.TotalPages)
			return nil
		},
	}
	flags.bind(cmd, "sort column: id, code, name, category, stock, price")
	cmd.Flags().IntVar(&lowStock, "low-stock", 0, "only products with at most this many units")
	return cmd
}

func newMovementsCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "movements PRODUCT_ID",
		Short: "Show the stock ledger of a product (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id < 1 {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			movements, err := client.StockMovements(ctx, id, limit)
			if err != nil {
				return userError(err)
			}
			if len(movements) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no movements")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tKIND\tDELTA\tSTOCK\tBY\tDETAIL")
			for _, m := range movements {
				detail := m.Reason
				if detail == "" {
					detail = m.Reference
				}
				fmt.Fprintf(tw, "%s\t%s\t%+d\t%d\t%s\t%s\n",
					m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Kind, m.Delta, m.StockAfter, m.Actor, detail)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "newest entries to show")
	return cmd
}

// productView drives the table the same way an interactive screen would:
// search, sort (a second SetSort flips to descending), page size, page.
func productView(products []domain.Product, flags listFlags) table.View[domain.Product] {
	t := table.New(productColumns, flags.pageSize)
	t.SetRows(products)
	t.SetSearchTerm(flags.search)
	if flags.sort != "" {
		t.SetSort(flags.sort)
		if flags.desc {
			t.SetSort(flags.sort)
		}
	}
	t.GoToPage(flags.page)
	return t.View()
}
