// Package obs holds the service-level Prometheus metrics. Store-level
// metrics flow through the libstore collector interfaces instead.
package obs

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the Prometheus instruments of the HTTP service and the
// background workers. A fresh Registry per instance keeps tests independent.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal  *prometheus.CounterVec   // method, route, status
	RequestSeconds *prometheus.HistogramVec // method, route

	BorrowsTotal      *prometheus.CounterVec // result=success|rejected|error
	ReturnsTotal      *prometheus.CounterVec // result=success|rejected|error
	ReservationsTotal *prometheus.CounterVec // result=success|rejected|error

	ReservationsExpired prometheus.Counter
	ActiveBorrows       prometheus.Gauge
}

// NewMetrics creates and registers all instruments on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libris_http_requests_total",
				Help: "Total HTTP requests by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		RequestSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "libris_http_request_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms .. ~2s
			},
			[]string{"method", "route"},
		),
		BorrowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libris_borrows_total",
				Help: "Total borrow attempts by result",
			},
			[]string{"result"},
		),
		ReturnsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libris_returns_total",
				Help: "Total return attempts by result",
			},
			[]string{"result"},
		),
		ReservationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "libris_reservations_total",
				Help: "Total reservation attempts by result",
			},
			[]string{"result"},
		),
		ReservationsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "libris_reservations_expired_total",
			Help: "Total reservations canceled by the expiry monitor",
		}),
		ActiveBorrows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "libris_active_borrows",
			Help: "Number of currently active borrowings",
		}),
	}

	m.registry.MustRegister(
		m.RequestsTotal,
		m.RequestSeconds,
		m.BorrowsTotal,
		m.ReturnsTotal,
		m.ReservationsTotal,
		m.ReservationsExpired,
		m.ActiveBorrows,
	)

	return m
}

// Handler returns the scrape endpoint for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
