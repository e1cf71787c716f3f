// Package metrics registers the Prometheus instrumentation for the pipeline.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Pipeline holds the pipeline-level Prometheus collectors.
type Pipeline struct {
	Processed   prometheus.Counter
	Relevant    prometheus.Counter
	Critical    prometheus.Counter
	Duplicates  prometheus.Counter
	StageErrors *prometheus.CounterVec

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	AnalyzeDuration prometheus.Histogram
}

// NewPipeline creates and registers the pipeline collectors on reg.
func NewPipeline(reg prometheus.Registerer) *Pipeline {
	m := &Pipeline{
		Processed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "messages_processed_total",
			Help:      "Total messages run through the pipeline.",
		}),
		Relevant: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "messages_relevant_total",
			Help:      "Messages classified as crisis-relevant.",
		}),
		Critical: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "messages_critical_total",
			Help:      "Messages scored with CRITICAL urgency.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "messages_duplicate_total",
			Help:      "Messages flagged as semantic duplicates.",
		}),
		StageErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "stage_errors_total",
			Help:      "Recovered stage failures by stage and kind.",
		}, []string{"stage", "kind"}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "geocode_cache_hits_total",
			Help:      "Geocode cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "crisislens",
			Name:      "geocode_cache_misses_total",
			Help:      "Geocode cache misses (external lookups).",
		}),
		AnalyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crisislens",
			Name:      "analyze_duration_seconds",
			Help:      "Wall time of a single message analysis.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.Processed, m.Relevant, m.Critical, m.Duplicates,
			m.StageErrors, m.CacheHits, m.CacheMisses, m.AnalyzeDuration,
		)
	}
	return m
}

// NewNopPipeline returns unregistered collectors, for tests.
func NewNopPipeline() *Pipeline {
	return NewPipeline(nil)
}

// ObserveAnalyze records one analysis duration.
func (m *Pipeline) ObserveAnalyze(d time.Duration) {
	m.AnalyzeDuration.Observe(d.Seconds())
}
