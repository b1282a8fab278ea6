// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	TicksProcessed *prometheus.CounterVec
	TickErrors     *prometheus.CounterVec
	TickLatency    prometheus.Histogram
	Matches        *prometheus.CounterVec

	// Order metrics
	OrdersSubmitted *prometheus.CounterVec
	OrdersFailed    *prometheus.CounterVec
	OrderFallbacks  prometheus.Counter
	OrderWait       prometheus.Histogram

	// Position metrics
	PositionsOpened *prometheus.CounterVec
	PositionsClosed *prometheus.CounterVec
	OpenPositions   *prometheus.GaugeVec
	Tightenings     *prometheus.CounterVec

	// Rollover and tips
	Rollovers   *prometheus.CounterVec
	TipsUpdated *prometheus.CounterVec

	// Notification metrics
	NotificationFailures *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	LastTick      prometheus.Gauge
	UptimeSeconds prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on reg.
// A nil reg creates unregistered metrics.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "futures_trader"
	}
	f := promauto.With(reg)

	return &Metrics{
		// Engine metrics
		TicksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "ticks_processed_total",
			Help:      "Total number of symbol ticks processed by phase",
		}, []string{"phase"}),
		TickErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_errors_total",
			Help:      "Total number of aborted symbol ticks by custom symbol",
		}, []string{"custom_symbol"}),
		TickLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "tick_latency_seconds",
			Help:      "Latency of one engine tick over all symbols",
			Buckets:   prometheus.DefBuckets,
		}),
		Matches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "matching",
			Name:      "matches_total",
			Help:      "Total number of timeframe matches by strategy and timeframe",
		}, []string{"strategy", "timeframe"}),

		// Order metrics
		OrdersSubmitted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "submitted_total",
			Help:      "Total number of orders submitted by offset",
		}, []string{"offset"}),
		OrdersFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "failed_total",
			Help:      "Total number of orders that did not fill by offset",
		}, []string{"offset"}),
		OrderFallbacks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "limit_fallbacks_total",
			Help:      "Total number of market orders retried as limit orders",
		}),
		OrderWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "wait_seconds",
			Help:      "Time from submission to terminal order state",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),

		// Position metrics
		PositionsOpened: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "opened_total",
			Help:      "Total number of positions opened by strategy and direction",
		}, []string{"strategy", "direction"}),
		PositionsClosed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "closes_total",
			Help:      "Total number of close fills by reason",
		}, []string{"reason"}),
		OpenPositions: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open",
			Help:      "Currently open positions by custom symbol",
		}, []string{"custom_symbol"}),
		Tightenings: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "close_condition_updates_total",
			Help:      "Total number of persisted stop-loss / take-profit state changes",
		}, []string{"strategy"}),

		// Rollover and tips
		Rollovers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rollover",
			Name:      "switches_total",
			Help:      "Total number of contract switches by whether a position was carried",
		}, []string{"with_position"}),
		TipsUpdated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tips",
			Name:      "upserts_total",
			Help:      "Total number of pre-trade tip upserts by direction",
		}, []string{"direction"}),

		// Notification metrics
		NotificationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "failures_total",
			Help:      "Total number of swallowed notification failures by sink",
		}, []string{"sink"}),

		// Database metrics
		DBQueryDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		// Health metrics
		LastTick: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_tick_timestamp",
			Help:      "Unix timestamp of the last completed tick",
		}),
		UptimeSeconds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds_total",
			Help:      "Total uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Discard returns metrics that are not exported anywhere.
func Discard() *Metrics {
	return NewMetrics("", nil)
}

// RecordTick records one completed tick.
func (m *Metrics) RecordTick(start, now time.Time) {
	m.TickLatency.Observe(now.Sub(start).Seconds())
	m.LastTick.Set(float64(now.Unix()))
}

// RecordDBQuery records database query metrics.
func (m *Metrics) RecordDBQuery(database, operation string, seconds float64, err error) {
	m.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		m.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
