package observability

import (
	"time"

	"github.com/lucafranzi/contabile/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the billing engine.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can serve it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	eventsGenerated prometheus.Counter
	invoicesTotal   *prometheus.CounterVec
	remindersTotal  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry avoids "duplicate collector"
// panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "billing_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_requests_total",
				Help: "Total requests processed.",
			},
			[]string{"status"},
		),
		eventsGenerated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "billing_events_generated_total",
				Help: "Payment events materialized by the recurring fee scheduler.",
			},
		),
		invoicesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_invoices_total",
				Help: "Invoice lifecycle transitions by resulting status.",
			},
			[]string{"status"},
		),
		remindersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_reminders_total",
				Help: "Renewal reminders by delivery outcome.",
			},
			[]string{"outcome"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "billing_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrRequest increments the request counter with a status label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// AddEventsGenerated counts events materialized by a scheduler run.
func (m *Metrics) AddEventsGenerated(n int) {
	m.eventsGenerated.Add(float64(n))
}

// IncrInvoice counts an invoice transition into the given status.
func (m *Metrics) IncrInvoice(status string) {
	m.invoicesTotal.WithLabelValues(status).Inc()
}

// IncrReminder counts a reminder delivery outcome ("sent" or "failed").
func (m *Metrics) IncrReminder(outcome string) {
	m.remindersTotal.WithLabelValues(outcome).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// OpsSnapshot returns the counter snapshot served by GET /v1/metrics/ops.
func (m *Metrics) OpsSnapshot() *domain.OpsMetrics {
	hits := counterValue(m.cacheHits.WithLabelValues("dashboard"))
	misses := counterValue(m.cacheMisses.WithLabelValues("dashboard"))
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.OpsMetrics{
		EventsGenerated: int64(counterValue(m.eventsGenerated)),
		InvoicesCreated: int64(counterValue(m.invoicesTotal.WithLabelValues("draft"))),
		InvoicesPaid:    int64(counterValue(m.invoicesTotal.WithLabelValues("paid"))),
		RemindersSent:   int64(counterValue(m.remindersTotal.WithLabelValues("sent"))),
		RemindersFailed: int64(counterValue(m.remindersTotal.WithLabelValues("failed"))),
		RequestsTotal: int64(counterValue(m.requestsTotal.WithLabelValues("success")) +
			counterValue(m.requestsTotal.WithLabelValues("error"))),
		RequestErrors: int64(counterValue(m.requestsTotal.WithLabelValues("error"))),
		CacheHitRate:  hitRate,
	}
}

// counterValue extracts the current float64 value from a prometheus counter.
func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
