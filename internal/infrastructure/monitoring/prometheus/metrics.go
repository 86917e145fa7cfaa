// Package prometheus registers and exposes the platform's metrics.
package prometheus

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every registered instrument.  One instance is created at
// startup and threaded through the layers that observe.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP layer
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Scoring pipeline
	RecordsScoredTotal *prometheus.CounterVec // labels: tier
	ScoreDistribution  prometheus.Histogram
	BatchDuration      prometheus.Histogram
	BatchSize          prometheus.Histogram

	// Ingestion
	IngestRowsTotal     *prometheus.CounterVec // labels: outcome
	IngestBatchesTotal  prometheus.Counter
	ArchiveBytesTotal   prometheus.Counter

	// Cache
	CacheHitsTotal   prometheus.Counter
	CacheMissesTotal prometheus.Counter

	// Messaging
	EventsPublishedTotal *prometheus.CounterVec // labels: topic, status
	EventsConsumedTotal  *prometheus.CounterVec // labels: topic, status
}

var scoreBuckets = []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100, 120, 150}

// NewMetrics builds a Metrics set on its own registry (plus the standard Go
// and process collectors) so tests can create isolated instances.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssell_http_requests_total",
			Help: "Total HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crosssell_http_request_duration_seconds",
			Help:    "HTTP request duration.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),

		RecordsScoredTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssell_records_scored_total",
			Help: "Records scored, by resulting priority tier.",
		}, []string{"tier"}),
		ScoreDistribution: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosssell_score_distribution",
			Help:    "Final score distribution on the base scale.",
			Buckets: scoreBuckets,
		}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosssell_batch_duration_seconds",
			Help:    "Batch scoring run duration.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}),
		BatchSize: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "crosssell_batch_size_records",
			Help:    "Records per batch scoring run.",
			Buckets: []float64{1, 10, 50, 100, 500, 1000, 5000, 10000},
		}),

		IngestRowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssell_ingest_rows_total",
			Help: "Ingested rows, by outcome (scored, dropped, failed).",
		}, []string{"outcome"}),
		IngestBatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crosssell_ingest_batches_total",
			Help: "Ingestion batches processed.",
		}),
		ArchiveBytesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crosssell_archive_bytes_total",
			Help: "Raw bytes archived to object storage.",
		}),

		CacheHitsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crosssell_cache_hits_total",
			Help: "Dashboard snapshot cache hits.",
		}),
		CacheMissesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "crosssell_cache_misses_total",
			Help: "Dashboard snapshot cache misses.",
		}),

		EventsPublishedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssell_events_published_total",
			Help: "Events published to Kafka.",
		}, []string{"topic", "status"}),
		EventsConsumedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "crosssell_events_consumed_total",
			Help: "Events consumed from Kafka.",
		}, []string{"topic", "status"}),
	}
}

// Handler serves the /metrics scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records one completed HTTP request.
func (m *Metrics) ObserveHTTP(method, path, status string, elapsed time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// ObserveScored records one scored record.
func (m *Metrics) ObserveScored(tier string, score int) {
	m.RecordsScoredTotal.WithLabelValues(tier).Inc()
	m.ScoreDistribution.Observe(float64(score))
}

// ObserveBatch records one batch scoring run.
func (m *Metrics) ObserveBatch(size int, elapsed time.Duration) {
	m.BatchSize.Observe(float64(size))
	m.BatchDuration.Observe(elapsed.Seconds())
}
