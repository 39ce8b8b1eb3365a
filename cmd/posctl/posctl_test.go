package main

import (
	"bytes"
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"puntoventa/internal/cart"
	"puntoventa/internal/domain"
	"puntoventa/internal/httpapi"
	"puntoventa/internal/salesclient"
	"puntoventa/internal/service"
	"puntoventa/internal/store/memory"
)

func TestParseItem(t *testing.T) {
	cases := []struct {
		raw     string
		want    cartItem
		wantErr bool
	}{
		{raw: "5", want: cartItem{productID: 5, quantity: 1}},
		{raw: " 7:3 ", want: cartItem{productID: 7, quantity: 3}},
		{raw: "0", wantErr: true},
		{raw: "abc", wantErr: true},
		{raw: "5:0", wantErr: true},
		{raw: "5:-2", wantErr: true},
		{raw: "5:x", wantErr: true},
	}
	for _, tc := range cases {
		got, err := parseItem(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseItem(%q) expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseItem(%q) unexpected error: %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseItem(%q) = %+v, want %+v", tc.raw, got, tc.want)
		}
	}
}

func TestProductViewSearchSortAndPage(t *testing.T) {
	price := decimal.RequireFromString
	products := []domain.Product{
		{ID: 1, Code: "ABR-001", Name: "Arroz", Category: "abarrotes", SalePrice: price("32.50")},
		{ID: 2, Code: "BEB-001", Name: "Café", Category: "bebidas", SalePrice: price("118.00")},
		{ID: 3, Code: "ABR-003", Name: "Aceite", Category: "abarrotes", SalePrice: price("54.00")},
		{ID: 4, Code: "ABR-002", Name: "Frijol", Category: "abarrotes", SalePrice: price("41.90")},
	}

	view := productView(products, listFlags{search: "ABARROTES", sort: "price", desc: true, page: 2, pageSize: 2})
	if view.Total() != 3 || view.TotalPages != 2 || view.PageIndex != 2 {
		t.Fatalf("unexpected view bounds: total=%d pages=%d page=%d", view.Total(), view.TotalPages, view.PageIndex)
	}
	if len(view.Page) != 1 || view.Page[0].ID != 1 {
		t.Fatalf("expected the cheapest product alone on page 2, got %+v", view.Page)
	}

	view = productView(products, listFlags{page: 9, pageSize: 10})
	if view.PageIndex != 1 || len(view.Page) != 4 {
		t.Fatalf("expected out-of-range page to clamp to the only page, got page=%d rows=%d", view.PageIndex, len(view.Page))
	}
}

func newBackend(t *testing.T) (string, string) {
	t.Helper()
	url := startBackend(t, decimal.RequireFromString("0.16"))
	return url, loginToken(t, url, "cajero", "cashier123")
}

func startBackend(t *testing.T, taxRate decimal.Decimal) string {
	t.Helper()
	repo := memory.NewSeeded()
	svc := service.New(repo, service.Options{TaxRate: taxRate})
	auth := httpapi.NewAuthManager(context.Background(), "posctl-test-secret", time.Hour, "739154", repo)
	srv := httptest.NewServer(httpapi.New(svc, auth, httpapi.Options{AllowedOrigin: "*"}).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func loginToken(t *testing.T, url, username, password string) string {
	t.Helper()
	client := salesclient.New(url)
	defer client.Close()
	resp, err := client.Login(context.Background(), username, password)
	if err != nil {
		t.Fatalf("login as %s failed: %v", username, err)
	}
	return resp.AccessToken
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSellSubmitsThroughBackend(t *testing.T) {
	url, token := newBackend(t)

	out, err := runCLI(t, "--api-url", url, "--token", token, "sell", "--item", "5", "--item", "5", "--payment", "CARD")
	if err != nil {
		t.Fatalf("sell failed: %v\n%s", err, out)
	}
	for _, want := range []string{"Café Molido 400g", "$236.00", "$37.76", "$273.76", "folio V-"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out)
		}
	}

	out, err = runCLI(t, "--api-url", url, "--token", token, "stats")
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if !strings.Contains(out, "$273.76") || !strings.Contains(out, "card") {
		t.Fatalf("expected stats to include the sale, got:\n%s", out)
	}
}

func TestSellRejectsBeforeSubmitting(t *testing.T) {
	url, token := newBackend(t)

	cases := []struct {
		name string
		args []string
		want string
	}{
		{"no items", []string{"sell"}, "add products to the cart"},
		{"over stock", []string{"sell", "--item", "9:16"}, "not enough stock available"},
		{"out of stock", []string{"sell", "--item", "12"}, "product out of stock"},
		{"unknown product", []string{"sell", "--item", "999"}, "not in the active catalog"},
		{"bad tax id", []string{"sell", "--item", "1", "--tax-id", "XYZ"}, "invalid tax id"},
		{"bad payment", []string{"sell", "--item", "1", "--payment", "crypto"}, "unsupported payment method"},
	}
	for _, tc := range cases {
		args := append([]string{"--api-url", url, "--token", token}, tc.args...)
		out, err := runCLI(t, args...)
		if err == nil || !strings.Contains(err.Error(), tc.want) {
			t.Fatalf("%s: expected error containing %q, got %v\n%s", tc.name, tc.want, err, out)
		}
	}

	out, err := runCLI(t, "--api-url", url, "--token", token, "sales")
	if err != nil {
		t.Fatalf("sales failed: %v", err)
	}
	if !strings.Contains(out, "no results") {
		t.Fatalf("expected no sales to be recorded, got:\n%s", out)
	}
}

func TestProductsCommandUsesTableEngine(t *testing.T) {
	url, token := newBackend(t)

	out, err := runCLI(t, "--api-url", url, "--token", token, "products", "--search", "abr", "--sort", "price", "--desc", "--page-size", "2")
	if err != nil {
		t.Fatalf("products failed: %v", err)
	}
	if !strings.Contains(out, "Aceite Vegetal 1L") || !strings.Contains(out, "Frijol Negro 1kg") {
		t.Fatalf("expected the two priciest groceries, got:\n%s", out)
	}
	if strings.Contains(out, "Arroz Blanco 1kg") {
		t.Fatalf("expected the cheapest grocery on page 2, got:\n%s", out)
	}
	if !strings.Contains(out, "1-2 of 4, page 1/2") {
		t.Fatalf("unexpected footer:\n%s", out)
	}
}

func TestCommandsSurfaceServerMessages(t *testing.T) {
	url, _ := newBackend(t)

	out, err := runCLI(t, "--api-url", url, "--token", "bogus", "stats")
	if err == nil {
		t.Fatalf("expected a bogus token to be rejected")
	}
	if strings.Contains(out, "revenue") {
		t.Fatalf("expected no stats output, got:\n%s", out)
	}

	_, err = runCLI(t, "--api-url", url, "login", "-u", "cajero", "-p", "wrong")
	if err == nil {
		t.Fatalf("expected login failure")
	}
}

func TestSellTaxRateHonorsZeroFromServer(t *testing.T) {
	zero := domain.TaxSettings{Rate: decimal.Zero}
	if got := sellTaxRate(zero, nil); !got.IsZero() {
		t.Fatalf("expected a zero rate to be kept, got %s", got)
	}
	if got := sellTaxRate(domain.TaxSettings{Rate: decimal.RequireFromString("0.08")}, nil); !got.Equal(decimal.RequireFromString("0.08")) {
		t.Fatalf("expected server rate, got %s", got)
	}
	if got := sellTaxRate(domain.TaxSettings{}, errors.New("down")); !got.Equal(cart.DefaultTaxRate) {
		t.Fatalf("expected default rate on error, got %s", got)
	}

	url := startBackend(t, decimal.Zero)
	token := loginToken(t, url, "cajero", "cashier123")
	out, err := runCLI(t, "--api-url", url, "--token", token, "sell", "--item", "5", "--dry-run")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}
	if strings.Contains(out, "default tax rate") {
		t.Fatalf("zero rate must not trigger the fallback notice:\n%s", out)
	}
	if !strings.Contains(out, "$118.00") || !strings.Contains(out, "$0.00") {
		t.Fatalf("expected untaxed totals, got:\n%s", out)
	}
}

func TestProductsLowStockFlag(t *testing.T) {
	url, token := newBackend(t)

	out, err := runCLI(t, "--api-url", url, "--token", token, "products", "--low-stock", "15")
	if err != nil {
		t.Fatalf("products failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Queso Panela 400g") || !strings.Contains(out, "Detergente en Polvo 1kg") {
		t.Fatalf("expected both low stock products, got:\n%s", out)
	}
	if strings.Contains(out, "Arroz Blanco 1kg") || !strings.Contains(out, "1-2 of 2") {
		t.Fatalf("expected only low stock products, got:\n%s", out)
	}

	if _, err := runCLI(t, "--api-url", url, "--token", token, "products", "--low-stock", "-3"); err == nil {
		t.Fatalf("expected a negative threshold to be refused")
	}
}

func TestReportAndMovementsCommands(t *testing.T) {
	url, cashier := newBackend(t)
	admin := loginToken(t, url, "admin", "admin123")

	if out, err := runCLI(t, "--api-url", url, "--token", cashier, "sell", "--item", "6:3", "--item", "5"); err != nil {
		t.Fatalf("sell failed: %v\n%s", err, out)
	}

	out, err := runCLI(t, "--api-url", url, "--token", admin, "report", "--limit", "1")
	if err != nil {
		t.Fatalf("report failed: %v\n%s", err, out)
	}
	// 49.50 + 118.00 before tax, 167.50 + 26.80 tax
	for _, want := range []string{"$194.30", "$26.80", "Agua Natural 1.5L"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected report to contain %q, got:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Café Molido 400g") {
		t.Fatalf("expected --limit 1 to keep only the best seller, got:\n%s", out)
	}

	out, err = runCLI(t, "--api-url", url, "--token", admin, "movements", "6")
	if err != nil {
		t.Fatalf("movements failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "sale") || !strings.Contains(out, "-3") || !strings.Contains(out, "117") {
		t.Fatalf("expected the sale in the ledger, got:\n%s", out)
	}

	if _, err := runCLI(t, "--api-url", url, "--token", cashier, "report"); err == nil {
		t.Fatalf("expected cashiers to be refused the report")
	}
	if _, err := runCLI(t, "--api-url", url, "--token", admin, "movements", "abc"); err == nil {
		t.Fatalf("expected an invalid product id to be refused")
	}
}
