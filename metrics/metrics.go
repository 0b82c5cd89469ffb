// Package metrics provides Prometheus metrics for a graph build.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every metric of one build, registered on its own registry
// so a batch run can dump them to a node-exporter textfile.
type Metrics struct {
	Registry *prometheus.Registry

	NodesTotal          *prometheus.CounterVec
	EdgesTotal          *prometheus.CounterVec
	RecordsSkippedTotal *prometheus.CounterVec
	EmbeddingsTotal     prometheus.Counter
	EmbedRetriesTotal   prometheus.Counter

	PassDuration       *prometheus.HistogramVec
	EmbedBatchDuration prometheus.Histogram

	BuildTimestamp prometheus.Gauge
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		NodesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexgraph_nodes_total",
				Help: "Nodes written, by source and whether the node is synthetic",
			},
			[]string{"source", "synthetic"},
		),
		EdgesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexgraph_edges_total",
				Help: "Edges written, by relationship type",
			},
			[]string{"rel"},
		),
		RecordsSkippedTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexgraph_records_skipped_total",
				Help: "Input records dropped during cleaning or node building",
			},
			[]string{"source"},
		),
		EmbeddingsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "lexgraph_embeddings_total",
			Help: "Node embeddings written",
		}),
		EmbedRetriesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "lexgraph_embed_retries_total",
			Help: "Embedding backend calls retried",
		}),

		PassDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lexgraph_pass_duration_seconds",
				Help:    "Duration of each build pass in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"pass"},
		),
		EmbedBatchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "lexgraph_embed_batch_seconds",
			Help:    "Duration of a single embedding backend call in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		BuildTimestamp: f.NewGauge(prometheus.GaugeOpts{
			Name: "lexgraph_build_timestamp_seconds",
			Help: "Unix time the last build finished",
		}),
	}
}

// AddNodes counts n nodes of a source.
func (m *Metrics) AddNodes(source string, synthetic bool, n int) {
	m.NodesTotal.WithLabelValues(source, strconv.FormatBool(synthetic)).Add(float64(n))
}

// AddEdges counts n edges of a relationship type.
func (m *Metrics) AddEdges(rel string, n int) {
	m.EdgesTotal.WithLabelValues(rel).Add(float64(n))
}

// AddSkipped counts n dropped records of a source.
func (m *Metrics) AddSkipped(source string, n int) {
	m.RecordsSkippedTotal.WithLabelValues(source).Add(float64(n))
}

// ObservePass records how long a pass took.
func (m *Metrics) ObservePass(pass string, d time.Duration) {
	m.PassDuration.WithLabelValues(pass).Observe(d.Seconds())
}

// ObserveEmbedBatch records one backend call that embedded n texts.
func (m *Metrics) ObserveEmbedBatch(n int, d time.Duration) {
	m.EmbedBatchDuration.Observe(d.Seconds())
	m.EmbeddingsTotal.Add(float64(n))
}

// IncEmbedRetry counts one retried backend call.
func (m *Metrics) IncEmbedRetry() {
	m.EmbedRetriesTotal.Inc()
}

// Timer measures a pass. Call the returned func when the pass ends.
func (m *Metrics) Timer(pass string) func() time.Duration {
	start := time.Now()
	return func() time.Duration {
		d := time.Since(start)
		m.ObservePass(pass, d)
		return d
	}
}

// WriteTextfile stamps the build time and writes the registry in the text
// exposition format to path.
func (m *Metrics) WriteTextfile(path string) error {
	m.BuildTimestamp.SetToCurrentTime()
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("metrics.WriteTextfile: %w", err)
	}
	return nil
}
