package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"puntoventa/internal/cart"
	"puntoventa/internal/domain"
)

type sellFlags struct {
	items   []string
	name    string
	taxID   string
	payment string
	notes   string
	dryRun  bool
}

type cartItem struct {
	productID int64
	quantity  int
}

// parseItem reads ID or ID:QTY.
func parseItem(raw string) (cartItem, error) {
	idPart, qtyPart, hasQty := strings.Cut(strings.TrimSpace(raw), ":")
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil || id <= 0 {
		return cartItem{}, fmt.Errorf("invalid item %q: product id must be a positive integer", raw)
	}
	qty := 1
	if hasQty {
		qty, err = strconv.Atoi(qtyPart)
		if err != nil || qty <= 0 {
			return cartItem{}, fmt.Errorf("invalid item %q: quantity must be a positive integer", raw)
		}
	}
	return cartItem{productID: id, quantity: qty}, nil
}

func newSellCmd(opts *rootOptions) *cobra.Command {
	var flags sellFlags
	cmd := &cobra.Command{
		Use:   "sell",
		Short: "Ring up a sale",
		Long: `Builds a cart from --item flags, prints the totals and submits the sale.
Repeating a product id adds to its quantity.`,
		Example: `  posctl sell --item 5:2 --item 9 --payment card
  posctl sell --item 3 --customer "Ana López" --tax-id LOAA900101AB1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := commandContext(cmd)
			defer cancel()

			client := opts.client()
			defer client.Close()

			catalog, err := client.Catalog(ctx)
			if err != nil {
				return userError(err)
			}

			settings, err := client.TaxSettings(ctx)
			rate := sellTaxRate(settings, err)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "tax settings unavailable, using default tax rate %s\n", rate)
			}

			session := cart.NewSession(rate)
			if err := fillSession(session, catalog, flags); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := printCart(out, session); err != nil {
				return err
			}
			if flags.dryRun {
				return nil
			}

			receipt, err := session.Submit(ctx, client)
			if err != nil {
				return userError(err)
			}
			fmt.Fprintf(out, "sale %s registered, folio %s\n", receipt.SaleID, receipt.Folio)
			return nil
		},
	}
	cmd.Flags().StringArrayVarP(&flags.items, "item", "i", nil, "product as ID or ID:QTY, repeatable")
	cmd.Flags().StringVar(&flags.name, "customer", cart.DefaultCustomerName, "customer name")
	cmd.Flags().StringVar(&flags.taxID, "tax-id", "", "customer RFC")
	cmd.Flags().StringVar(&flags.payment, "payment", string(cart.PaymentCash), "cash, card or transfer")
	cmd.Flags().StringVar(&flags.notes, "notes", "", "free-form notes")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "print totals without submitting")
	return cmd
}

// sellTaxRate keeps the server's rate, zero included, and falls back to the
// default only when the settings call failed.
func sellTaxRate(settings domain.TaxSettings, err error) decimal.Decimal {
	if err != nil || settings.Rate.IsNegative() {
		return cart.DefaultTaxRate
	}
	return settings.Rate
}

// fillSession applies every --item to the session and sets the checkout
// context. Cart rules (stock ceilings, validation) run here, before any
// request is sent.
func fillSession(session *cart.Session, catalog []cart.Product, flags sellFlags) error {
	byID := make(map[int64]cart.Product, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	for _, raw := range flags.items {
		item, err := parseItem(raw)
		if err != nil {
			return err
		}
		product, ok := byID[item.productID]
		if !ok {
			return fmt.Errorf("product %d is not in the active catalog", item.productID)
		}

		current := 0
		if line, ok := session.Cart().Line(item.productID); ok {
			current = line.Quantity
		} else if err := session.Add(product); err != nil {
			return fmt.Errorf("%s: %w", product.Name, err)
		} else {
			current = 1
			item.quantity--
		}
		if item.quantity == 0 {
			continue
		}
		if err := session.SetQuantity(item.productID, current+item.quantity); err != nil {
			return fmt.Errorf("%s: %w", product.Name, err)
		}
	}

	checkout := cart.Context{
		CustomerName:  flags.name,
		CustomerTaxID: flags.taxID,
		PaymentMethod: cart.PaymentMethod(strings.ToLower(strings.TrimSpace(flags.payment))),
		Notes:         flags.notes,
	}
	if err := session.SetContext(checkout); err != nil {
		return err
	}
	if _, err := session.Cart().BuildPayload(checkout); err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			return fmt.Errorf("%w (use --item)", err)
		}
		return err
	}
	return nil
}

func printCart(w io.Writer, session *cart.Session) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "QTY\tPRODUCT\tPRICE\tAMOUNT\t")
	for _, line := range session.Cart().Lines() {
		fmt.Fprintf(tw, "%d\t%s\t$%s\t$%s\t\n",
			line.Quantity, line.Product.Name,
			cart.FormatMoney(line.UnitPrice), cart.FormatMoney(line.Amount()))
	}
	totals := session.Totals()
	fmt.Fprintf(tw, "\t\tsubtotal\t$%s\t\n", cart.FormatMoney(totals.Subtotal))
	fmt.Fprintf(tw, "\t\ttax (%s)\t$%s\t\n", session.TaxRate().String(), cart.FormatMoney(totals.Tax))
	fmt.Fprintf(tw, "\t\ttotal\t$%s\t\n", cart.FormatMoney(totals.Total))
	return tw.Flush()
}
