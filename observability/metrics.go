package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the exchange engine
type Metrics struct {
	// Price feed metrics
	FeedRequestsTotal  *prometheus.CounterVec
	FeedFallbacksTotal *prometheus.CounterVec
	FeedDuration       *prometheus.HistogramVec
	FeedDegraded       prometheus.Gauge

	// Engine metrics
	RefreshDuration      *prometheus.HistogramVec
	RefreshSkippedTotal  *prometheus.CounterVec
	OrderBookBuilds      *prometheus.CounterVec
	PredictionDuration   prometheus.Histogram
	PredictionConfidence *prometheus.HistogramVec

	// Trading metrics
	TradesTotal    *prometheus.CounterVec
	TradeNotional  *prometheus.HistogramVec
	PortfolioValue prometheus.Gauge
	CashBalance    prometheus.Gauge

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// confidenceBuckets are histogram buckets for confidence metrics (0 to 100)
var confidenceBuckets = []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// Price feed metrics
		FeedRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "feed",
				Name:      "requests_total",
				Help:      "Total number of price feed requests by provider and operation",
			},
			[]string{"provider", "operation"},
		),
		FeedFallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "feed",
				Name:      "fallbacks_total",
				Help:      "Total number of synthetic fallbacks after a provider failure",
			},
			[]string{"provider", "operation"},
		),
		FeedDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "feed",
				Name:      "duration_seconds",
				Help:      "Duration of price feed provider calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"provider", "operation"},
		),
		FeedDegraded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ai_exchange",
				Subsystem: "feed",
				Name:      "degraded",
				Help:      "1 when the live provider is failing and the synthetic generator is in use",
			},
		),

		// Engine metrics
		RefreshDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "engine",
				Name:      "refresh_duration_seconds",
				Help:      "Duration of refresh cycles in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"task"},
		),
		RefreshSkippedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "engine",
				Name:      "refresh_skipped_total",
				Help:      "Total number of refresh cycles skipped because one was in flight",
			},
			[]string{"task"},
		),
		OrderBookBuilds: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "orderbook",
				Name:      "builds_total",
				Help:      "Total number of order book snapshots built",
			},
			[]string{"symbol"},
		),
		PredictionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "prediction",
				Name:      "batch_duration_seconds",
				Help:      "Duration of a prediction batch over the symbol universe",
				Buckets:   defaultBuckets,
			},
		),
		PredictionConfidence: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "prediction",
				Name:      "confidence",
				Help:      "Distribution of prediction confidence by trend",
				Buckets:   confidenceBuckets,
			},
			[]string{"trend"},
		),

		// Trading metrics
		TradesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "trading",
				Name:      "trades_total",
				Help:      "Total number of trade intents by side and outcome",
			},
			[]string{"side", "order_type", "outcome"},
		),
		TradeNotional: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "trading",
				Name:      "notional",
				Help:      "Notional value of executed trades",
				Buckets:   prometheus.ExponentialBuckets(10, 10, 7),
			},
			[]string{"side"},
		),
		PortfolioValue: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ai_exchange",
				Subsystem: "portfolio",
				Name:      "total_value",
				Help:      "Current total value of the paper portfolio",
			},
		),
		CashBalance: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ai_exchange",
				Subsystem: "portfolio",
				Name:      "cash_balance",
				Help:      "Current cash balance of the paper portfolio",
			},
		),

		// Database metrics
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),

		// HTTP metrics
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ai_exchange",
				Subsystem: "http",
				Name:      "response_size_bytes",
				Help:      "Size of HTTP responses in bytes",
				Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
			},
			[]string{"method", "path"},
		),

		// Circuit breaker metrics
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ai_exchange",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ai_exchange",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// SetMetrics replaces the global metrics instance (useful for testing)
func SetMetrics(m *Metrics) {
	globalMetrics = m
}

// RecordFeedRequest records a provider call and its duration
func (m *Metrics) RecordFeedRequest(provider, operation string, duration time.Duration) {
	m.FeedRequestsTotal.WithLabelValues(provider, operation).Inc()
	m.FeedDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
}

// RecordFeedFallback records a fallback to the synthetic generator
func (m *Metrics) RecordFeedFallback(provider, operation string) {
	m.FeedFallbacksTotal.WithLabelValues(provider, operation).Inc()
}

// SetFeedDegraded sets the degraded gauge
func (m *Metrics) SetFeedDegraded(degraded bool) {
	if degraded {
		m.FeedDegraded.Set(1)
		return
	}
	m.FeedDegraded.Set(0)
}

// RecordRefresh records the duration of a refresh task run
func (m *Metrics) RecordRefresh(task string, duration time.Duration) {
	m.RefreshDuration.WithLabelValues(task).Observe(duration.Seconds())
}

// RecordRefreshSkipped records a refresh skipped because one was in flight
func (m *Metrics) RecordRefreshSkipped(task string) {
	m.RefreshSkippedTotal.WithLabelValues(task).Inc()
}

// RecordOrderBookBuild records an order book snapshot build
func (m *Metrics) RecordOrderBookBuild(symbol string) {
	m.OrderBookBuilds.WithLabelValues(symbol).Inc()
}

// RecordPredictionBatch records the duration of a prediction batch
func (m *Metrics) RecordPredictionBatch(duration time.Duration) {
	m.PredictionDuration.Observe(duration.Seconds())
}

// RecordPrediction records the confidence of a generated prediction
func (m *Metrics) RecordPrediction(trend string, confidence int) {
	m.PredictionConfidence.WithLabelValues(trend).Observe(float64(confidence))
}

// RecordTrade records a trade intent outcome. Outcome is "executed" or an error kind.
func (m *Metrics) RecordTrade(side, orderType, outcome string, notional float64) {
	m.TradesTotal.WithLabelValues(side, orderType, outcome).Inc()
	if outcome == "executed" {
		m.TradeNotional.WithLabelValues(side).Observe(notional)
	}
}

// SetPortfolio sets the portfolio gauges
func (m *Metrics) SetPortfolio(totalValue, cash float64) {
	m.PortfolioValue.Set(totalValue)
	m.CashBalance.Set(cash)
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration, responseSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveRefresh records the refresh duration for a task
func (t *Timer) ObserveRefresh(task string) {
	t.metrics.RecordRefresh(task, time.Since(t.start))
}

// ObserveFeed records a provider call duration
func (t *Timer) ObserveFeed(provider, operation string) {
	t.metrics.RecordFeedRequest(provider, operation, time.Since(t.start))
}

// ObservePredictionBatch records the prediction batch duration
func (t *Timer) ObservePredictionBatch() {
	t.metrics.RecordPredictionBatch(time.Since(t.start))
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
