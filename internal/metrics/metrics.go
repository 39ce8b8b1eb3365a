// Package metrics exposes Prometheus instrumentation for the sales backend.
// Each Metrics owns its registry so tests and multiple servers never collide
// on global registration.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "puntoventa"

type Metrics struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
	SalesCreated    *prometheus.CounterVec
	SaleRejections  *prometheus.CounterVec
	SalesCancelled  prometheus.Counter
	SaleTotal       prometheus.Histogram
	CatalogCache    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		SalesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sales",
				Name:      "created_total",
				Help:      "Sales persisted, by payment method.",
			},
			[]string{"payment_method"},
		),
		SaleRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sales",
				Name:      "rejected_total",
				Help:      "Sale submissions rejected, by reason.",
			},
			[]string{"reason"}, // "validation" | "stock" | "internal"
		),
		SalesCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "cancelled_total",
			Help:      "Sales cancelled and restocked.",
		}),
		SaleTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sales",
			Name:      "ticket_amount",
			Help:      "Sale totals including tax.",
			Buckets:   []float64{50, 100, 250, 500, 1_000, 2_500, 5_000, 10_000},
		}),
		CatalogCache: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "catalog_cache",
				Name:      "lookups_total",
				Help:      "Catalog cache lookups, by result.",
			},
			[]string{"result"}, // "hit" | "miss" | "error"
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestDuration,
		m.SalesCreated,
		m.SaleRejections,
		m.SalesCancelled,
		m.SaleTotal,
		m.CatalogCache,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}

func (m *Metrics) SaleCreated(paymentMethod string, total float64) {
	if m == nil {
		return
	}
	m.SalesCreated.WithLabelValues(paymentMethod).Inc()
	m.SaleTotal.Observe(total)
}

func (m *Metrics) SaleRejected(reason string) {
	if m == nil {
		return
	}
	m.SaleRejections.WithLabelValues(reason).Inc()
}

func (m *Metrics) SaleCancelled() {
	if m == nil {
		return
	}
	m.SalesCancelled.Inc()
}

func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.CatalogCache.WithLabelValues(result).Inc()
}
