package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/estatehub/crm-ingest/internal/domain"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	EventsAccepted   *prometheus.CounterVec
	EventsDuplicate  *prometheus.CounterVec
	JobsProcessed    *prometheus.CounterVec
	JobsRequeued     *prometheus.CounterVec
	JobsDeadLettered *prometheus.CounterVec
	JobsRecovered    prometheus.Counter
	HandlerLatency   *prometheus.HistogramVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
// Using a custom registry (instead of prometheus.DefaultRegisterer) keeps
// tests isolated and avoids global state.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_accepted_total",
			Help: "Total number of envelopes accepted into the queue.",
		}, []string{"event_type"}),

		EventsDuplicate: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_events_duplicate_total",
			Help: "Total number of duplicate submissions detected by the dedup ledger.",
		}, []string{"event_type"}),

		JobsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_jobs_processed_total",
			Help: "Total number of jobs whose handler completed successfully.",
		}, []string{"event_type"}),

		JobsRequeued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_jobs_requeued_total",
			Help: "Total number of failed attempts returned to the backlog with backoff.",
		}, []string{"event_type"}),

		JobsDeadLettered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingest_jobs_dead_lettered_total",
			Help: "Total number of jobs that exhausted their retry budget.",
		}, []string{"event_type"}),

		JobsRecovered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingest_jobs_recovered_total",
			Help: "Total number of stuck processing jobs returned to the backlog by the recovery sweep.",
		}),

		HandlerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingest_handler_seconds",
			Help:    "Handler execution latency per successful attempt.",
			Buckets: prometheus.DefBuckets,
		}, []string{"event_type"}),
	}

	reg.MustRegister(
		m.EventsAccepted,
		m.EventsDuplicate,
		m.JobsProcessed,
		m.JobsRequeued,
		m.JobsDeadLettered,
		m.JobsRecovered,
		m.HandlerLatency,
	)

	return m
}

// IngestHooks returns the metric callbacks expected by service.NewIngestService.
func (m *Metrics) IngestHooks() (onAccepted, onDuplicate func(domain.EventType)) {
	onAccepted = func(et domain.EventType) {
		m.EventsAccepted.WithLabelValues(string(et)).Inc()
	}
	onDuplicate = func(et domain.EventType) {
		m.EventsDuplicate.WithLabelValues(string(et)).Inc()
	}
	return
}

// DispatcherHooks returns the metric callbacks expected by dispatcher.MetricHooks.
// Centralises the prometheus observation calls so dispatcher.go stays import-free.
func (m *Metrics) DispatcherHooks() (
	onProcessed func(domain.EventType, time.Duration),
	onRequeued func(domain.EventType),
	onDeadLettered func(domain.EventType),
) {
	onProcessed = func(et domain.EventType, latency time.Duration) {
		m.JobsProcessed.WithLabelValues(string(et)).Inc()
		m.HandlerLatency.WithLabelValues(string(et)).Observe(latency.Seconds())
	}
	onRequeued = func(et domain.EventType) {
		m.JobsRequeued.WithLabelValues(string(et)).Inc()
	}
	onDeadLettered = func(et domain.EventType) {
		m.JobsDeadLettered.WithLabelValues(string(et)).Inc()
	}
	return
}
