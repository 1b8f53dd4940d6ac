package mount

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/health"
	"github.com/scmfs/scmfs/internal/objectstore"
)

func TestMount_RegisterHealthChecks_AllHealthyWhenRunning(t *testing.T) {
	m := newTestMount(t, ProtocolNFS, objectstore.ObjectID{1})
	require.NoError(t, m.Initialize(context.Background(), nil, nil))
	require.NoError(t, m.StartChannel(context.Background(), false))

	checker, err := health.NewChecker(&health.Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, m.RegisterHealthChecks(checker, time.Minute))

	results, err := checker.RunAllChecks(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)
	for _, r := range results {
		assert.Equal(t, health.StatusHealthy, r.Status, r.Check)
	}
}

func TestMount_RegisterHealthChecks_ChannelLivenessUnhealthyWhenRunningAfterDetach(t *testing.T) {
	m := newTestMount(t, ProtocolNFS, objectstore.ObjectID{1})
	require.NoError(t, m.Initialize(context.Background(), nil, nil))
	require.NoError(t, m.StartChannel(context.Background(), false))
	require.NoError(t, m.Unmount(context.Background()))
	// state stays RUNNING while the channel has detached itself.
	m.state.Exchange(StateRunning)

	checker, err := health.NewChecker(&health.Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, m.RegisterHealthChecks(checker, time.Minute))

	result, err := checker.RunCheck(context.Background(), "channel_liveness")
	require.NoError(t, err)
	assert.Equal(t, health.StatusUnhealthy, result.Status)
}
