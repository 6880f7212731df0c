// Package observability provides Prometheus metrics, the in-process
// performance/error monitor, and dependency health aggregation.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// API metrics
	RequestDuration *prometheus.HistogramVec
	HoldingsServed  prometheus.Gauge

	// Monitor metrics
	OperationDuration *prometheus.HistogramVec
	SlowOperations    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec

	// Discovery metrics
	CandidatesCreated *prometheus.CounterVec
	ScansTotal        *prometheus.CounterVec
	IndexFetchLatency *prometheus.HistogramVec

	// Rate limiter metrics
	RateLimitDecisions *prometheus.CounterVec

	// Pricing metrics
	PriceUpdates prometheus.Counter
	LatestRate   prometheus.Gauge

	// Market data metrics
	MarketDataRefreshes *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec

	// Health metrics
	ServiceHealth *prometheus.GaugeVec
	UptimeSeconds prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "btc_treasury"
	}

	return &Metrics{
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds by route and status",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
		HoldingsServed: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "holdings_entities_served",
			Help:      "Number of entities in the last holdings response",
		}),

		OperationDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "operation_duration_seconds",
			Help:      "Tracked operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"operation"}),
		SlowOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slow_operations_total",
			Help:      "Total number of operations slower than the slow threshold",
		}, []string{"operation"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "errors_total",
			Help:      "Total number of errors logged by component",
		}, []string{"component"}),

		CandidatesCreated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "candidates_created_total",
			Help:      "Total number of filing candidates created by venue",
		}, []string{"venue"}),
		ScansTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "scans_total",
			Help:      "Total number of per-entity discovery scans by status",
		}, []string{"status"}),
		IndexFetchLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "index_fetch_latency_seconds",
			Help:      "Filings index fetch latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"venue"}),

		RateLimitDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ratelimit",
			Name:      "decisions_total",
			Help:      "Total number of admission decisions by tier and outcome",
		}, []string{"tier", "outcome"}),

		PriceUpdates: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "updates_total",
			Help:      "Total number of BTC/USD snapshots recorded",
		}),
		LatestRate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pricing",
			Name:      "btc_usd_rate",
			Help:      "Most recently recorded BTC/USD rate",
		}),

		MarketDataRefreshes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "marketdata",
			Name:      "refreshes_total",
			Help:      "Total number of per-entity market data refreshes by status",
		}, []string{"status"}),

		DBQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Database query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"database", "operation"}),
		DBQueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "database",
			Name:      "query_errors_total",
			Help:      "Total number of database query errors",
		}, []string{"database", "operation"}),

		ServiceHealth: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "service_status",
			Help:      "Service health: 1 healthy, 0.5 degraded, 0 unhealthy, -1 not configured",
		}, []string{"service"}),
		UptimeSeconds: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "uptime_seconds",
			Help:      "Process uptime in seconds",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordRequest records an HTTP request's duration.
func RecordRequest(route, status string, seconds float64) {
	DefaultMetrics.RequestDuration.WithLabelValues(route, status).Observe(seconds)
}

// RecordHoldingsServed sets the size of the last holdings response.
func RecordHoldingsServed(n int) {
	DefaultMetrics.HoldingsServed.Set(float64(n))
}

// RecordOperation records a tracked operation's duration.
func RecordOperation(operation string, seconds float64, slow bool) {
	DefaultMetrics.OperationDuration.WithLabelValues(operation).Observe(seconds)
	if slow {
		DefaultMetrics.SlowOperations.WithLabelValues(operation).Inc()
	}
}

// RecordError increments the error counter for a component.
func RecordError(component string) {
	if component == "" {
		component = "unknown"
	}
	DefaultMetrics.ErrorsTotal.WithLabelValues(component).Inc()
}

// RecordCandidateCreated increments the candidates created counter.
func RecordCandidateCreated(venue string) {
	DefaultMetrics.CandidatesCreated.WithLabelValues(venue).Inc()
}

// RecordScan records one per-entity discovery scan outcome.
func RecordScan(status string) {
	DefaultMetrics.ScansTotal.WithLabelValues(status).Inc()
}

// RecordIndexFetch records filings index fetch latency.
func RecordIndexFetch(venue string, seconds float64) {
	DefaultMetrics.IndexFetchLatency.WithLabelValues(venue).Observe(seconds)
}

// RecordRateLimitDecision records an admission decision.
func RecordRateLimitDecision(tier string, allowed bool) {
	outcome := "rejected"
	if allowed {
		outcome = "allowed"
	}
	DefaultMetrics.RateLimitDecisions.WithLabelValues(tier, outcome).Inc()
}

// RecordPriceUpdate records a new BTC/USD snapshot.
func RecordPriceUpdate(rate float64) {
	DefaultMetrics.PriceUpdates.Inc()
	DefaultMetrics.LatestRate.Set(rate)
}

// RecordMarketDataRefresh records one per-entity refresh outcome.
func RecordMarketDataRefresh(status string) {
	DefaultMetrics.MarketDataRefreshes.WithLabelValues(status).Inc()
}

// RecordDBQuery records database query metrics.
func RecordDBQuery(database, operation string, seconds float64, err error) {
	DefaultMetrics.DBQueryDuration.WithLabelValues(database, operation).Observe(seconds)
	if err != nil {
		DefaultMetrics.DBQueryErrors.WithLabelValues(database, operation).Inc()
	}
}

// RecordServiceHealth publishes a dependency's status.
func RecordServiceHealth(service string, status Status) {
	DefaultMetrics.ServiceHealth.WithLabelValues(service).Set(status.gaugeValue())
}

// RecordUptime publishes process uptime.
func RecordUptime(seconds float64) {
	DefaultMetrics.UptimeSeconds.Set(seconds)
}
