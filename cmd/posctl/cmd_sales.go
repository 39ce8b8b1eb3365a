package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"puntoventa/internal/cart"
	"puntoventa/internal/salesclient"
)

func newSalesCmd(opts *rootOptions) *cobra.Command {
	var (
		flags listFlags
		date  string
	)
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "List the sales of a day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			q := salesclient.SalesQuery{
				Date:     date,
				Search:   flags.search,
				Sort:     flags.sort,
				Page:     flags.page,
				PageSize: flags.pageSize,
			}
			if flags.desc {
				q.Dir = "desc"
			}
			page, err := client.ListSales(ctx, q)
			if err != nil {
				return userError(err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "sales for %s\n", page.Date)
			if err := renderRows(out, saleColumns, page.Sales); err != nil {
				return err
			}
			start := (page.Page-1)*page.PageSize + 1
			renderFooter(out, start, start+len(page.Sales)-1, page.Total, page.Page, page.TotalPages)
			return nil
		},
	}
	flags.bind(cmd, "sort column: folio, customer_name, customer_tax_id, payment_method, total, created_at")
	cmd.Flags().StringVar(&date, "date", "", "day to list, YYYY-MM-DD (default today)")
	return cmd
}

func newCancelCmd(opts *rootOptions) *cobra.Command {
	var reason, pin string
	cmd := &cobra.Command{
		Use:   "cancel <sale-id>",
		Short: "Cancel a sale and return its stock",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			sale, err := client.CancelSale(ctx, args[0], reason, pin)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cancelled %s (%s), total $%s\n",
				sale.Folio, sale.CancelReason, cart.FormatMoney(sale.Total))
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")
	cmd.Flags().StringVar(&pin, "pin", "", "manager PIN, required for cashiers")
	return cmd
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show today's sales summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			stats, err := client.TodayStats(ctx)
			if err != nil {
				return userError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "date\t%s\n", stats.Date)
			fmt.Fprintf(tw, "sales\t%d\n", stats.TotalSalesToday)
			fmt.Fprintf(tw, "revenue\t$%s\n", cart.FormatMoney(stats.TotalRevenueToday))
			fmt.Fprintf(tw, "tax\t$%s\n", cart.FormatMoney(stats.TotalTaxToday))
			fmt.Fprintf(tw, "average ticket\t$%s\n", cart.FormatMoney(stats.AverageTicket))
			fmt.Fprintf(tw, "cancelled\t%d\n", stats.CancelledToday)
			for _, p := range stats.ByPayment {
				fmt.Fprintf(tw, "  %s\t%d sales, $%s\n", p.PaymentMethod, p.Sales, cart.FormatMoney(p.Total))
			}
			return tw.Flush()
		},
	}
}
