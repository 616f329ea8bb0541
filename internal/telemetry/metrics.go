// Package telemetry owns the Prometheus metrics registry. Every mutable
// counter lives here; components report through narrow callbacks so none of
// them imports prometheus directly.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Metrics is the process-wide registry.
type Metrics struct {
	registry *prometheus.Registry

	ScanDuration     *prometheus.HistogramVec
	ScansTotal       *prometheus.CounterVec
	SignalsTotal     *prometheus.CounterVec
	AlertsTotal      *prometheus.CounterVec
	ScanErrorsTotal  *prometheus.CounterVec
	ProviderRequests *prometheus.CounterVec
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	CircuitState     prometheus.Gauge
	BudgetRemaining  prometheus.Gauge
	WebhookOutcomes  *prometheus.CounterVec
	WorkersHealthy   prometheus.Gauge
}

// New builds and registers all collectors on a private registry, so tests
// can create as many instances as they like.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "oraklscan_scan_duration_seconds",
			Help:    "Duration of one full scan cycle",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"strategy"}),
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_scans_total",
			Help: "Completed scan cycles",
		}, []string{"strategy"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_signals_total",
			Help: "Signals surviving the filter cascade",
		}, []string{"strategy"}),
		AlertsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_alerts_total",
			Help: "Alerts posted to the webhook",
		}, []string{"strategy"}),
		ScanErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_scan_errors_total",
			Help: "Per-symbol scan failures",
		}, []string{"strategy"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_provider_requests_total",
			Help: "Provider API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_cache_hits_total",
			Help: "TTL cache hits by tier",
		}, []string{"tier"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_cache_misses_total",
			Help: "TTL cache misses by tier",
		}, []string{"tier"}),
		CircuitState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oraklscan_circuit_state",
			Help: "Provider circuit breaker state (0 closed, 1 half-open, 2 open)",
		}),
		BudgetRemaining: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oraklscan_budget_remaining",
			Help: "Daily provider request budget remaining (-1 when unlimited)",
		}),
		WebhookOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "oraklscan_webhook_total",
			Help: "Webhook delivery outcomes",
		}, []string{"outcome"}),
		WorkersHealthy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "oraklscan_workers_healthy",
			Help: "Number of workers currently healthy",
		}),
	}

	m.registry.MustRegister(
		m.ScanDuration, m.ScansTotal, m.SignalsTotal, m.AlertsTotal,
		m.ScanErrorsTotal, m.ProviderRequests, m.CacheHits, m.CacheMisses,
		m.CircuitState, m.BudgetRemaining, m.WebhookOutcomes, m.WorkersHealthy,
	)
	return m
}

// Handler serves the registry for /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gather exposes the registry's families for inspection.
func (m *Metrics) Gather() ([]*dto.MetricFamily, error) {
	return m.registry.Gather()
}

// ObserveScan records one completed scan cycle.
func (m *Metrics) ObserveScan(strategy string, d time.Duration) {
	m.ScanDuration.WithLabelValues(strategy).Observe(d.Seconds())
	m.ScansTotal.WithLabelValues(strategy).Inc()
}

// ProviderRequest is the fetcher's metrics callback.
func (m *Metrics) ProviderRequest(endpoint string, _ time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ProviderRequests.WithLabelValues(endpoint, outcome).Inc()
}

// WebhookOutcome is the sink's outcome callback.
func (m *Metrics) WebhookOutcome(ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "failed"
	}
	m.WebhookOutcomes.WithLabelValues(outcome).Inc()
}

// SetCircuitState maps the breaker's state string onto the gauge.
func (m *Metrics) SetCircuitState(state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	m.CircuitState.Set(v)
}
