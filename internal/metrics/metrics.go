// Package metrics holds the Prometheus collectors shared by the engine and
// the worker. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "resume_fit"

type Metrics struct {
	embedDuration    prometheus.Histogram
	embedChunks      prometheus.Counter
	cacheRequests    *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
	messages         *prometheus.CounterVec
}

// New registers the collectors with reg. A nil registerer falls back to the
// default Prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		embedDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_duration_seconds",
			Help:      "Time spent computing a document embedding, cache misses only.",
			Buckets:   prometheus.DefBuckets,
		}),
		embedChunks: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_chunks_total",
			Help:      "Number of chunks sent to the embedding model.",
		}),
		cacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_requests_total",
			Help:      "Embedding cache lookups by result.",
		}, []string{"result"}),
		analyses: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Compatibility analyses by outcome.",
		}, []string{"outcome"}),
		analysisDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end duration of a compatibility analysis.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "worker_messages_total",
			Help:      "Queue messages handled by the worker, by status.",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveEmbedding(d time.Duration, chunks int) {
	if m == nil {
		return
	}
	m.embedDuration.Observe(d.Seconds())
	m.embedChunks.Add(float64(chunks))
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues("hit").Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues("miss").Inc()
}

// ObserveAnalysis records an analysis outcome such as "success", "timeout"
// or "error".
func (m *Metrics) ObserveAnalysis(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}

func (m *Metrics) Message(status string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(status).Inc()
}
