package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordPhase(t *testing.T) {
	c := NewCollector()
	c.RecordPhase("vaults_ensured", OutcomeSuccess, 2*time.Second)
	c.RecordPhase("vaults_ensured", OutcomeSuccess, time.Second)
	c.RecordPhase("pool_created", OutcomeFailure, time.Second)

	counter, ok := c.metrics.Load(PhaseCounterType)
	require.True(t, ok)
	// two label pairs
	assert.Equal(t, 2, testutil.CollectAndCount(counter.(prometheus.Collector)))
	assert.Equal(t, float64(2), testutil.ToFloat64(
		counter.(*prometheus.CounterVec).WithLabelValues("vaults_ensured", OutcomeSuccess)))
}

func TestCollector_IndependentRegistries(t *testing.T) {
	// Two collectors in one process must not collide on registration.
	a := NewCollector()
	b := NewCollector()
	a.RecordTransaction("create_pool", OutcomeSuccess, time.Second)
	assert.NotSame(t, a.Registry(), b.Registry())
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordTransaction("swap", OutcomeSuccess, time.Second)
		c.RecordPhase("done", OutcomeSuccess, time.Second)
		c.SetLookupTableSize(27)
		c.Reset()
	})
	assert.NoError(t, c.WriteTextfile("ignored"))
}

func TestCollector_WriteTextfile(t *testing.T) {
	c := NewCollector()
	c.SetLookupTableSize(27)
	path := filepath.Join(t.TempDir(), "curvectl.prom")

	require.NoError(t, c.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "curvectl_lookup_table_addresses 27")
}
