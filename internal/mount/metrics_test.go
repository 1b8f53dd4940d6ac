package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/metrics"
	"github.com/scmfs/scmfs/internal/objectstore"
)

func newTestCollector(t *testing.T) *metrics.Collector {
	t.Helper()
	c, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "test_mount"})
	require.NoError(t, err)
	return c
}

func TestMount_SetMetrics_ForwardsToCheckoutEngine(t *testing.T) {
	m := newTestMount(t, ProtocolNFS, objectstore.ObjectID{1})
	collector := newTestCollector(t)

	m.SetMetrics(collector)

	assert.Same(t, collector, m.Metrics)
	assert.Same(t, collector, m.checkoutEng.Metrics)
}

func TestMount_StartChannel_RecordsChannelAttachOutcome(t *testing.T) {
	m := newTestMount(t, ProtocolNFS, objectstore.ObjectID{1})
	m.SetMetrics(newTestCollector(t))

	require.NoError(t, m.Initialize(context.Background(), nil, nil))
	require.NoError(t, m.StartChannel(context.Background(), false))

	assert.Equal(t, StateRunning, m.State())
}

func TestMount_WithoutMetrics_LifecycleStillWorks(t *testing.T) {
	m := newTestMount(t, ProtocolNFS, objectstore.ObjectID{1})
	require.Nil(t, m.Metrics)

	require.NoError(t, m.Initialize(context.Background(), nil, nil))
	require.NoError(t, m.StartChannel(context.Background(), false))
	_, err := m.Shutdown(context.Background(), false, false)
	require.NoError(t, err)
}
