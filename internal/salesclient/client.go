// Package salesclient talks to the sales backend over HTTP. Client implements
// cart.Submitter so a checkout session can submit through it directly.
package salesclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"puntoventa/internal/cart"
	"puntoventa/internal/config"
	"puntoventa/internal/domain"
)

const (
	idempotencyHeader = "Idempotency-Key"
	maxErrorBody      = 64 << 10
)

type Client struct {
	baseURL     string
	http        *http.Client
	logger      *zap.Logger
	maxAttempts int
	backoff     time.Duration

	mu    sync.RWMutex
	token string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry sets how many times a retryable call is attempted and the first
// backoff delay, which doubles after each failure.
func WithRetry(attempts int, backoff time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = max(attempts, 1)
		c.backoff = max(backoff, 0)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		http:        &http.Client{Timeout: 10 * time.Second},
		logger:      zap.NewNop(),
		maxAttempts: 3,
		backoff:     time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func NewFromConfig(cfg config.ClientConfig, opts ...Option) *Client {
	base := []Option{
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithToken(cfg.Token),
	}
	return New(cfg.APIURL, append(base, opts...)...)
}

func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

// Close releases idle keep-alive connections.
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// Login exchanges credentials for a bearer token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, username, password string) (domain.LoginResponse, error) {
	var resp domain.LoginResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   domain.LoginRequest{Username: username, Password: password},
	}, &resp)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	c.SetToken(resp.AccessToken)
	return resp, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var resp struct {
		Products []domain.Product `json:"products"`
	}
	if err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/products", retry: true}, &resp); err != nil {
		return nil, err
	}
	return resp.Products, nil
}

// Catalog returns the active products in the shape the cart works with.
func (c *Client) Catalog(ctx context.Context) ([]cart.Product, error) {
	products, err := c.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]cart.Product, 0, len(products))
	for _, p := range products {
		out = append(out, ToCartProduct(p))
	}
	return out, nil
}

func ToCartProduct(p domain.Product) cart.Product {
	return cart.Product{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		StockAvailable: p.StockAvailable,
		SalePrice:      p.SalePrice,
	}
}

func (c *Client) TaxSettings(ctx context.Context) (domain.TaxSettings, error) {
	var resp domain.TaxSettings
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/settings/tax", retry: true}, &resp)
	return resp, err
}

// SalesQuery filters the sales listing. Zero values are omitted.
type SalesQuery struct {
	Date     string
	Search   string
	Sort     string
	Dir      string
	Page     int
	PageSize int
}

func (q SalesQuery) values() url.Values {
	v := url.Values{}
	set := func(key, value string) {
		if value != "" {
			v.Set(key, value)
		}
	}
	set("date", q.Date)
	set("search", q.Search)
	set("sort", q.Sort)
	set("dir", q.Dir)
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

func (c *Client) ListSales(ctx context.Context, q SalesQuery) (domain.SalePage, error) {
	var resp domain.SalePage
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/sales", query: q.values(), retry: true}, &resp)
	return resp, err
}

func (c *Client) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	var resp struct {
		Sale domain.Sale `json:"sale"`
	}
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/sales/" + url.PathEscape(id), retry: true}, &resp)
	return resp.Sale, err
}

// CreateSale submits a checkout payload. Every call carries a fresh
// idempotency key, so retries of the same call never create a second sale.
func (c *Client) CreateSale(ctx context.Context, payload cart.Payload) (cart.SubmitResult, error) {
	var resp domain.SaleCreateResponse
	err := c.do(ctx, request{
		method:  http.MethodPost,
		path:    "/api/v1/sales",
		body:    payload,
		headers: map[string]string{idempotencyHeader: uuid.NewString()},
		retry:   true,
	}, &resp)
	if err != nil {
		return cart.SubmitResult{}, err
	}
	return cart.SubmitResult{ID: resp.Sale.ID, Folio: resp.Sale.Folio}, nil
}

func (c *Client) CancelSale(ctx context.Context, id, reason, managerPIN string) (domain.Sale, error) {
	var resp struct {
		Sale domain.Sale `json:"sale"`
	}
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/sales/" + url.PathEscape(id) + "/cancel",
		body:   domain.SaleCancelRequest{Reason: reason, ManagerPIN: managerPIN},
	}, &resp)
	return resp.Sale, err
}

func (c *Client) TodayStats(ctx context.Context) (domain.DailyStats, error) {
	var resp domain.DailyStats
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/sales/stats/today", retry: true}, &resp)
	return resp, err
}

// LowStock lists active products with at most threshold units left.
func (c *Client) LowStock(ctx context.Context, threshold int) (domain.LowStockResponse, error) {
	var resp domain.LowStockResponse
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/products",
		query:  url.Values{"low_stock": {strconv.Itoa(threshold)}},
		retry:  true,
	}, &resp)
	return resp, err
}

func (c *Client) StockMovements(ctx context.Context, productID int64, limit int) ([]domain.StockMovement, error) {
	query := url.Values{}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp struct {
		Movements []domain.StockMovement `json:"movements"`
	}
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/api/v1/products/" + strconv.FormatInt(productID, 10) + "/movements",
		query:  query,
		retry:  true,
	}, &resp)
	return resp.Movements, err
}

// PeriodReport fetches the sales report for the inclusive range from..to.
// Blank bounds take the server defaults.
func (c *Client) PeriodReport(ctx context.Context, from, to string, limit int) (domain.PeriodReport, error) {
	query := url.Values{}
	if from != "" {
		query.Set("from", from)
	}
	if to != "" {
		query.Set("to", to)
	}
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	var resp domain.PeriodReport
	err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/reports/period", query: query, retry: true}, &resp)
	return resp, err
}

type request struct {
	method  string
	path    string
	query   url.Values
	body    any
	headers map[string]string
	// retry marks calls that are safe to repeat.
	retry bool
}

func (c *Client) do(ctx context.Context, req request, out any) error {
	var payload []byte
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("salesclient: encode %s %s: %w", req.method, req.path, err)
		}
		payload = raw
	}

	attempts := 1
	if req.retry {
		attempts = c.maxAttempts
	}

	delay := c.backoff
	var err error
	for attempt := 1; ; attempt++ {
		err = c.send(ctx, req, payload, out)
		if err == nil || attempt >= attempts || !retryable(err) {
			return err
		}

		c.logger.Debug("retrying request",
			zap.String("method", req.method),
			zap.String("path", req.path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(err),
		)
		if waitErr := sleep(ctx, delay); waitErr != nil {
			return err
		}
		delay *= 2
	}
}

func (c *Client) send(ctx context.Context, req request, payload []byte, out any) error {
	target := c.baseURL + req.path
	if len(req.query) > 0 {
		target += "?" + req.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return fmt.Errorf("salesclient: build request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if payload != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token := c.Token(); token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	for key, value := range req.headers {
		httpReq.Header.Set(key, value)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return newNetworkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return newStatusError(resp.StatusCode, raw)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("salesclient: decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
