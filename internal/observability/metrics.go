// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram
	EventsTotal prometheus.Counter

	// Strategy metrics
	DecisionsTotal *prometheus.CounterVec
	TradesClosed   *prometheus.CounterVec
	TradesDropped  prometheus.Counter

	// Telemetry metrics
	TelemetryPublished prometheus.Counter
	TelemetryDropped   prometheus.Counter
	TelemetryFailed    prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance registered on reg.
// A nil reg uses the default Prometheus registerer.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "signal_backtest"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "runs_total",
			Help:      "Total number of backtest runs by status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of backtest runs",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 14),
		}),
		EventsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "replay_events_total",
			Help:      "Total number of per-minute replay events processed",
		}),

		DecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "decisions_total",
			Help:      "Total number of model decisions by resolved label",
		}, []string{"label"}),
		TradesClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "trades_closed_total",
			Help:      "Total number of closed trades by end reason",
		}, []string{"reason"}),
		TradesDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "strategy",
			Name:      "trades_discarded_total",
			Help:      "Total number of positions still open at end of replay",
		}),

		TelemetryPublished: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "published_total",
			Help:      "Total number of audit events delivered",
		}),
		TelemetryDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "dropped_total",
			Help:      "Total number of audit events dropped because the buffer was full",
		}),
		TelemetryFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "telemetry",
			Name:      "failed_total",
			Help:      "Total number of audit events whose delivery failed",
		}),

		DBQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_duration_seconds",
			Help:      "Database query latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "query_errors_total",
			Help:      "Total number of failed database queries",
		}, []string{"database", "operation"}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("", nil)

// RecordRun records a finished run.
func RecordRun(status string, durationSeconds float64) {
	DefaultMetrics.RunsTotal.WithLabelValues(status).Inc()
	DefaultMetrics.RunDuration.Observe(durationSeconds)
}

// RecordEvent increments the replay events counter.
func RecordEvent() {
	DefaultMetrics.EventsTotal.Inc()
}

// RecordDecision records a resolved model decision.
func RecordDecision(label string) {
	DefaultMetrics.DecisionsTotal.WithLabelValues(label).Inc()
}

// RecordTradeClosed records a closed trade by end reason.
func RecordTradeClosed(reason string) {
	DefaultMetrics.TradesClosed.WithLabelValues(reason).Inc()
}

// RecordTradeDiscarded records a position discarded at end of replay.
func RecordTradeDiscarded() {
	DefaultMetrics.TradesDropped.Inc()
}

// RecordTelemetry records the delivery result of one audit event.
func RecordTelemetry(err error) {
	if err != nil {
		DefaultMetrics.TelemetryFailed.Inc()
		return
	}
	DefaultMetrics.TelemetryPublished.Inc()
}

// RecordTelemetryDropped records an audit event dropped on a full buffer.
func RecordTelemetryDropped() {
	DefaultMetrics.TelemetryDropped.Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}
