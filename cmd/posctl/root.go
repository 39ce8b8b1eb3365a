package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"puntoventa/internal/config"
	"puntoventa/internal/salesclient"
)

type rootOptions struct {
	apiURL  string
	token   string
	timeout time.Duration
	verbose bool
}

func newRootCmd() *cobra.Command {
	_ = config.LoadDotEnv(".env")
	cfg := config.LoadClient()
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "posctl",
		Short: "Point-of-sale terminal client",
		Long: `posctl talks to the puntoventa sales backend.

Log in once, export the printed token as POS_API_TOKEN, then browse the
catalog, ring up sales and review today's totals.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.apiURL, "api-url", cfg.APIURL, "sales backend base URL (POS_API_URL)")
	root.PersistentFlags().StringVar(&opts.token, "token", cfg.Token, "bearer token (POS_API_TOKEN)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", cfg.Timeout, "per-request timeout (POS_HTTP_TIMEOUT)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log retries to stderr")

	root.AddCommand(
		newLoginCmd(opts),
		newProductsCmd(opts),
		newSalesCmd(opts),
		newSellCmd(opts),
		newCancelCmd(opts),
		newStatsCmd(opts),
		newReportCmd(opts),
		newMovementsCmd(opts),
	)
	return root
}

func (o *rootOptions) client() *salesclient.Client {
	cfg := config.ClientConfig{APIURL: o.apiURL, Token: o.token, Timeout: o.timeout}
	logger := zap.NewNop()
	if o.verbose {
		if l, err := zap.NewDevelopment(); err == nil {
			logger = l
		}
	}
	return salesclient.NewFromConfig(cfg, salesclient.WithLogger(logger))
}

// commandContext bounds a whole command, retries included.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), 2*time.Minute)
}
