package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	m := New()
	m.AddNodes("code", false, 3)
	m.AddNodes("code", true, 2)
	m.AddEdges("contains", 4)
	m.AddSkipped("authorities", 1)
	m.ObserveEmbedBatch(5, 10*time.Millisecond)
	m.IncEmbedRetry()

	assert.Equal(t, 3.0, testutil.ToFloat64(m.NodesTotal.WithLabelValues("code", "false")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodesTotal.WithLabelValues("code", "true")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.EdgesTotal.WithLabelValues("contains")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RecordsSkippedTotal.WithLabelValues("authorities")))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.EmbeddingsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EmbedRetriesTotal))
}

func TestTimer(t *testing.T) {
	m := New()
	stop := m.Timer("nodes")
	d := stop()
	assert.GreaterOrEqual(t, d, time.Duration(0))
	assert.Equal(t, 1, testutil.CollectAndCount(m.PassDuration, "lexgraph_pass_duration_seconds"))
}

func TestRegistriesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.AddEdges("cites", 1)
	assert.Equal(t, 0.0, testutil.ToFloat64(b.EdgesTotal.WithLabelValues("cites")))
}

func TestWriteTextfile(t *testing.T) {
	m := New()
	m.AddEdges("cites", 7)

	path := filepath.Join(t.TempDir(), "lexgraph.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `lexgraph_edges_total{rel="cites"} 7`)
	assert.Contains(t, string(data), "lexgraph_build_timestamp_seconds")
}
