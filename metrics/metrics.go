package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// CheckoutCounter counts checkout attempts by result (success, failed, retried)
	CheckoutCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_checkouts_total",
			Help: "Total number of checkout transactions by result",
		},
		[]string{"result"},
	)

	StockRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_stock_rejections_total",
			Help: "Add-item attempts rejected for insufficient stock",
		},
	)

	SchemaDowngrades = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_schema_downgrades_total",
			Help: "Optional schema features switched to the reduced code path",
		},
		[]string{"feature"},
	)

	StatusFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_status_fallbacks_total",
			Help: "Order status values replaced by a schema supported fallback",
		},
		[]string{"status", "fallback"},
	)

	TableReleaseFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_table_release_failures_total",
			Help: "Table releases that exhausted their retries",
		},
	)

	EventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pos_events_dropped_total",
			Help: "Change notifications dropped because a subscriber was full",
		},
	)

	CheckoutDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pos_checkout_duration_seconds",
			Help:    "Duration of checkout transactions in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(
		CheckoutCounter,
		StockRejections,
		SchemaDowngrades,
		StatusFallbacks,
		TableReleaseFailures,
		EventsDropped,
		CheckoutDuration,
	)
}
