package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChecker_RunCheck(t *testing.T) {
	c, err := NewChecker(&Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.RegisterCheck("ping", "liveness", CategoryCore, PriorityCritical, PingCheck()))

	result, err := c.RunCheck(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestChecker_RunCheck_Failure(t *testing.T) {
	c, err := NewChecker(&Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)

	failing := func(ctx context.Context) error { return errors.New("channel not responding") }
	require.NoError(t, c.RegisterCheck("channel_liveness", "channel liveness", CategoryCore, PriorityCritical, failing))

	result, err := c.RunCheck(context.Background(), "channel_liveness")
	require.NoError(t, err)
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Error, "channel not responding")
}

func TestChecker_RunAllChecks_OverallStatus(t *testing.T) {
	c, err := NewChecker(&Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.RegisterCheck("ok", "", CategoryCore, PriorityLow, PingCheck()))
	require.NoError(t, c.RegisterCheck("bad", "", CategoryCore, PriorityCritical, func(ctx context.Context) error {
		return errors.New("state inconsistent")
	}))

	results, err := c.RunAllChecks(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.True(t, c.GetStats().OverallStatus == StatusUnhealthy)
	assert.False(t, c.IsHealthy())
}

func TestChecker_EnableDisableCheck(t *testing.T) {
	c, err := NewChecker(&Config{Enabled: true, Timeout: time.Second})
	require.NoError(t, err)

	require.NoError(t, c.RegisterCheck("ping", "", CategoryCore, PriorityLow, PingCheck()))
	require.NoError(t, c.DisableCheck("ping"))

	result, err := c.RunCheck(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, result.Status)

	require.NoError(t, c.EnableCheck("ping"))
	result, err = c.RunCheck(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, StatusHealthy, result.Status)
}

func TestStateConsistencyCheck(t *testing.T) {
	check := StateConsistencyCheck(func() (bool, string) { return false, "RUNNING with no attached channel" })
	err := check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RUNNING with no attached channel")
}

func TestChannelLivenessCheck(t *testing.T) {
	alive := ChannelLivenessCheck(func(ctx context.Context) (bool, error) { return true, nil })
	assert.NoError(t, alive(context.Background()))

	dead := ChannelLivenessCheck(func(ctx context.Context) (bool, error) { return false, nil })
	assert.Error(t, dead(context.Background()))
}

func TestPrefetchLeaseCheck(t *testing.T) {
	stalledAt := time.Now().Add(-time.Minute)
	check := PrefetchLeaseCheck(
		func() (int, int) { return 8, 8 },
		func() time.Time { return stalledAt },
		30*time.Second,
	)
	require.Error(t, check(context.Background()))

	notStalled := PrefetchLeaseCheck(
		func() (int, int) { return 8, 8 },
		func() time.Time { return time.Now() },
		30*time.Second,
	)
	assert.NoError(t, notStalled(context.Background()))

	underMax := PrefetchLeaseCheck(
		func() (int, int) { return 2, 8 },
		func() time.Time { return stalledAt },
		30*time.Second,
	)
	assert.NoError(t, underMax(context.Background()))
}

func TestParentLockStalenessCheck(t *testing.T) {
	heldSince := time.Now().Add(-time.Second)
	check := ParentLockStalenessCheck(func() (bool, time.Time) { return true, heldSince }, 500*time.Millisecond)
	require.Error(t, check(context.Background()))

	notHeld := ParentLockStalenessCheck(func() (bool, time.Time) { return false, time.Time{} }, 500*time.Millisecond)
	assert.NoError(t, notHeld(context.Background()))
}

func TestRemediator_FiresAfterThreshold(t *testing.T) {
	r := NewRemediator(2)
	fired := 0
	r.Register("channel_liveness", func(ctx context.Context) error {
		fired++
		return nil
	})

	unhealthy := &Result{Check: "channel_liveness", Status: StatusUnhealthy}
	require.NoError(t, r.Observe(context.Background(), unhealthy))
	assert.Equal(t, 0, fired)
	require.NoError(t, r.Observe(context.Background(), unhealthy))
	assert.Equal(t, 1, fired)

	healthy := &Result{Check: "channel_liveness", Status: StatusHealthy}
	require.NoError(t, r.Observe(context.Background(), healthy))
	require.NoError(t, r.Observe(context.Background(), unhealthy))
	assert.Equal(t, 1, fired)
}
