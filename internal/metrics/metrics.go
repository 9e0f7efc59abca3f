// Package metrics exposes Prometheus collectors for the kitchen service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP request metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brigade_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Order lifecycle metrics
	OrdersPlacedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_orders_placed_total",
			Help: "Total number of confirmed order placements",
		},
		[]string{"tenant"},
	)
	OrdersRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_orders_rejected_total",
			Help: "Total number of placements rejected for insufficient stock",
		},
		[]string{"tenant"},
	)
	OrdersCancelledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_orders_cancelled_total",
			Help: "Total number of cancelled orders",
		},
		[]string{"tenant"},
	)

	// Procurement metrics
	PurchaseOrdersCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brigade_purchase_orders_created_total",
			Help: "Total number of purchase orders created by the procurement trigger",
		},
		[]string{"tenant"},
	)

	// Tenant routing metrics
	TenantMissingTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "brigade_tenant_missing_total",
			Help: "Total number of requests that could not be mapped to a tenant",
		},
	)
)

// ObserveRequest records one completed HTTP request
func ObserveRequest(method, path, status string, start time.Time) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
}
