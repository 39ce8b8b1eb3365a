package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestCountersTrackSales(t *testing.T) {
	m := New()

	m.SaleCreated("cash", 116)
	m.SaleCreated("cash", 58)
	m.SaleCreated("card", 20)
	m.SaleRejected("stock")
	m.SaleCancelled()

	body := scrape(t, m)
	assert.Contains(t, body, `puntoventa_sales_created_total{payment_method="cash"} 2`)
	assert.Contains(t, body, `puntoventa_sales_created_total{payment_method="card"} 1`)
	assert.Contains(t, body, `puntoventa_sales_rejected_total{reason="stock"} 1`)
	assert.Contains(t, body, `puntoventa_sales_cancelled_total 1`)
	assert.Contains(t, body, `puntoventa_sales_ticket_amount_count 3`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	m.SaleCreated("cash", 1)
	m.SaleRejected("validation")
	m.SaleCancelled()
	m.CacheLookup("hit")
	m.ObserveRequest("GET", "/healthz", 200, time.Millisecond)
}

func TestHandlerExposesRequestDurations(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodGet, "/api/v1/products", http.StatusOK, 20*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, `puntoventa_http_request_duration_seconds_count{method="GET",route="/api/v1/products",status="200"} 1`)
}
