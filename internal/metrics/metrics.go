package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the Prometheus metrics for the staking orchestrator.
// Metrics are registered in a dedicated registry so they do not interfere
// with the default global registry.
type Collector struct {
	registry *prometheus.Registry

	opsSubmitted *prometheus.CounterVec
	opsSettled   *prometheus.CounterVec
	opsRejected  *prometheus.CounterVec

	readErrors   prometheus.Counter
	readDuration prometheus.Histogram

	viewRequests prometheus.Counter
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		opsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stakepilot",
			Name:      "operations_submitted_total",
			Help:      "Transactions submitted, by operation kind.",
		}, []string{"kind"}),
		opsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stakepilot",
			Name:      "operations_settled_total",
			Help:      "Transactions settled, by operation kind and outcome.",
		}, []string{"kind", "outcome"}),
		opsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "stakepilot",
			Name:      "operations_rejected_total",
			Help:      "Submissions rejected before a transaction existed, by kind.",
		}, []string{"kind"}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stakepilot",
			Name:      "read_errors_total",
			Help:      "Failed contract read calls.",
		}),
		readDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "stakepilot",
			Name:      "reload_duration_seconds",
			Help:      "Latency of full state reloads.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		viewRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "stakepilot",
			Name:      "view_requests_total",
			Help:      "Derived view computations served.",
		}),
	}

	reg.MustRegister(c.opsSubmitted, c.opsSettled, c.opsRejected,
		c.readErrors, c.readDuration, c.viewRequests)
	return c
}

// OpSubmitted records a submitted transaction for an operation kind.
func (c *Collector) OpSubmitted(kind string) {
	c.opsSubmitted.WithLabelValues(kind).Inc()
}

// OpSettled records a settled transaction with its outcome
// ("success", "reverted" or "error").
func (c *Collector) OpSettled(kind, outcome string) {
	c.opsSettled.WithLabelValues(kind, outcome).Inc()
}

// OpRejected records a submission that never produced a transaction.
func (c *Collector) OpRejected(kind string) {
	c.opsRejected.WithLabelValues(kind).Inc()
}

// ReadError records a failed contract read.
func (c *Collector) ReadError() {
	c.readErrors.Inc()
}

// ObserveReload records the duration of one state reload in seconds.
func (c *Collector) ObserveReload(seconds float64) {
	c.readDuration.Observe(seconds)
}

// ViewRequest records one derived-view computation.
func (c *Collector) ViewRequest() {
	c.viewRequests.Inc()
}

// Handler returns an HTTP handler serving the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (for tests).
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
