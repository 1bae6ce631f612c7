package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// FanoutMetrics holds Prometheus metrics for the query executor's
// per-collection fan-out search (internal/query/executor.go's fanOut),
// adapted from the teacher's federation connector metrics.
type FanoutMetrics struct {
	FanoutSearchesTotal   *prometheus.CounterVec
	FanoutSearchDuration  *prometheus.HistogramVec
	FanoutResultsCount    prometheus.Histogram

	CollectionSearchesTotal  *prometheus.CounterVec
	CollectionSearchDuration *prometheus.HistogramVec
	CollectionErrorsTotal    *prometheus.CounterVec

	ActiveCollections prometheus.Gauge
}

// NewFanoutMetrics creates and registers the fan-out search metrics.
func NewFanoutMetrics(namespace string) *FanoutMetrics {
	if namespace == "" {
		namespace = "contextcore"
	}

	return &FanoutMetrics{
		FanoutSearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fanout_searches_total",
				Help:      "Total number of query fan-out searches by status",
			},
			[]string{"status"},
		),
		FanoutSearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fanout_search_duration_seconds",
				Help:      "Fan-out search total duration in seconds",
				Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"phase"},
		),
		FanoutResultsCount: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fanout_results_count",
				Help:      "Number of results returned by a fan-out search after fusion",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
		),

		CollectionSearchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_searches_total",
				Help:      "Total number of per-collection searches by dataset and status",
			},
			[]string{"dataset_id", "status"},
		),
		CollectionSearchDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "collection_search_duration_seconds",
				Help:      "Per-collection search duration in seconds",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"dataset_id"},
		),
		CollectionErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "collection_errors_total",
				Help:      "Total number of per-collection search errors by dataset and error type",
			},
			[]string{"dataset_id", "error_type"},
		),

		ActiveCollections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_collections",
				Help:      "Number of collections searched by the most recent fan-out",
			},
		),
	}
}

// RecordFanoutSearch records one completed Search call spanning every
// target collection.
func (f *FanoutMetrics) RecordFanoutSearch(status string, duration time.Duration, resultCount int) {
	f.FanoutSearchesTotal.WithLabelValues(status).Inc()
	f.FanoutSearchDuration.WithLabelValues("total").Observe(duration.Seconds())
	f.FanoutResultsCount.Observe(float64(resultCount))
}

// RecordCollectionSearch records one target collection's leg of a fanOut
// call.
func (f *FanoutMetrics) RecordCollectionSearch(datasetID, status string, duration time.Duration) {
	f.CollectionSearchesTotal.WithLabelValues(datasetID, status).Inc()
	f.CollectionSearchDuration.WithLabelValues(datasetID).Observe(duration.Seconds())
}

// RecordCollectionError records a per-collection search error.
func (f *FanoutMetrics) RecordCollectionError(datasetID, errorType string) {
	f.CollectionErrorsTotal.WithLabelValues(datasetID, errorType).Inc()
}

// UpdateActiveCollections records how many collections the most recent
// fan-out searched.
func (f *FanoutMetrics) UpdateActiveCollections(count int) {
	f.ActiveCollections.Set(float64(count))
}
