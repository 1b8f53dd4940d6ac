package mount

import (
	"context"
	"time"

	"github.com/scmfs/scmfs/internal/health"
)

// RegisterHealthChecks wires the mount's own state into checker's periodic
// checks, closing over m rather than exposing new public accessors: state
// consistency, channel liveness, prefetch-lease exhaustion, and parent-lock
// staleness, matching the checks health.mountchecks.go defines. staleAfter
// bounds how long a parent-lock hold or a maxed-out prefetch pool is
// tolerated before it's reported unhealthy.
func (m *Mount) RegisterHealthChecks(checker *health.Checker, staleAfter time.Duration) error {
	if err := checker.RegisterCheck("mount_state_consistency", "mount lifecycle state matches its attached channel",
		health.CategoryCore, health.PriorityCritical, health.StateConsistencyCheck(m.isStateConsistent)); err != nil {
		return err
	}

	if err := checker.RegisterCheck("channel_liveness", "attached channel is still responding",
		health.CategoryCore, health.PriorityHigh, health.ChannelLivenessCheck(m.isChannelAlive)); err != nil {
		return err
	}

	if err := checker.RegisterCheck("prefetch_lease_exhaustion", "prefetch lease pool is not stuck at capacity",
		health.CategoryPerformance, health.PriorityLow,
		health.PrefetchLeaseCheck(m.prefetchLeaseCounts, m.prefetchStalledSince, staleAfter)); err != nil {
		return err
	}

	if err := checker.RegisterCheck("parent_lock_staleness", "checkout parent lock is not held past the checkout timeout",
		health.CategoryCore, health.PriorityCritical,
		health.ParentLockStalenessCheck(m.checkoutEng.ParentLockHeldSince, staleAfter)); err != nil {
		return err
	}

	return nil
}

func (m *Mount) isStateConsistent() (bool, string) {
	state := m.State()
	chn := m.Channel()
	if state == StateRunning && chn == nil {
		return false, "state is RUNNING but no channel is attached"
	}
	if state != StateRunning && chn != nil {
		select {
		case <-chn.Done():
		default:
			return false, "channel is still attached outside RUNNING state"
		}
	}
	return true, ""
}

func (m *Mount) isChannelAlive(ctx context.Context) (bool, error) {
	chn := m.Channel()
	if chn == nil {
		return true, nil
	}
	select {
	case <-chn.Done():
		return false, nil
	default:
		return true, nil
	}
}

func (m *Mount) prefetchLeaseCounts() (inFlight, max int) {
	return int(m.PrefetchesInProgress()), int(m.maxPrefetches)
}

// prefetchStalledSince is a coarse stand-in for a real leak-detection
// timestamp: without per-lease acquisition times, staleness is measured
// from the last completed checkout instead, which is refreshed often enough
// under normal operation that a genuinely stuck pool still trips the check.
func (m *Mount) prefetchStalledSince() time.Time {
	if t := m.LastCheckoutTime(); !t.IsZero() {
		return t
	}
	return time.Now()
}
