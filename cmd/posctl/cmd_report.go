package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"puntoventa/internal/cart"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		from  string
		to    string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize sales over a date range (admin)",
		Long: `Prints per-day totals and the best-selling products for the inclusive
range --from..--to. Without flags it covers the last seven days.`,
		Example: `  posctl report
  posctl report --from 2026-05-01 --to 2026-05-31 --limit 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			report, err := client.PeriodReport(ctx, from, to, limit)
			if err != nil {
				return userError(err)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(tw, "period\t%s to %s\n", report.From, report.To)
			fmt.Fprintf(tw, "sales\t%d\n", report.TotalSales)
			fmt.Fprintf(tw, "revenue\t$%s\n", cart.FormatMoney(report.TotalRevenue))
			fmt.Fprintf(tw, "tax\t$%s\n", cart.FormatMoney(report.TotalTax))
			fmt.Fprintf(tw, "cancelled\t%d\n", report.Cancelled)
			for _, day := range report.Days {
				if day.Sales == 0 {
					continue
				}
				fmt.Fprintf(tw, "  %s\t%d sales, $%s\n", day.Date, day.Sales, cart.FormatMoney(day.Revenue))
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			if len(report.TopProducts) == 0 {
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout())
			tw = tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCODE\tNAME\tUNITS\tREVENUE")
			for i, p := range report.TopProducts {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t$%s\n", i+1, p.Code, p.Name, p.Units, cart.FormatMoney(p.Revenue))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first day, YYYY-MM-DD")
	cmd.Flags().StringVar(&to, "to", "", "last day, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&limit, "limit", 10, "top products to list")
	return cmd
}
