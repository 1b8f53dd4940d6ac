package health

import (
	"context"
	"fmt"
	"time"
)

// StateConsistencyCheck fails if isConsistent reports the mount's atomic
// state and its cached collaborators (inode map, channel handle) have
// diverged, e.g. RUNNING with no attached channel.
func StateConsistencyCheck(isConsistent func() (bool, string)) CheckFunction {
	return func(ctx context.Context) error {
		ok, detail := isConsistent()
		if !ok {
			return fmt.Errorf("mount state inconsistent: %s", detail)
		}
		return nil
	}
}

// ChannelLivenessCheck fails if the attached channel has stopped responding
// without the mount observing completion (a wedged FUSE/NFS/projection
// driver rather than a clean unmount).
func ChannelLivenessCheck(isAlive func(ctx context.Context) (bool, error)) CheckFunction {
	return func(ctx context.Context) error {
		alive, err := isAlive(ctx)
		if err != nil {
			return fmt.Errorf("channel liveness probe failed: %w", err)
		}
		if !alive {
			return fmt.Errorf("channel is attached but not responding")
		}
		return nil
	}
}

// PrefetchLeaseCheck fails if the prefetch lease counter has been pinned at
// its configured maximum for longer than stalledFor, which usually means a
// leaked lease (a prefetch that failed to fetch-sub on its error path).
func PrefetchLeaseCheck(current func() (inFlight, max int), stalledSince func() time.Time, stalledFor time.Duration) CheckFunction {
	return func(ctx context.Context) error {
		inFlight, max := current()
		if max <= 0 || inFlight < max {
			return nil
		}
		if since := time.Since(stalledSince()); since > stalledFor {
			return fmt.Errorf("prefetch leases pinned at max (%d) for %s", max, since)
		}
		return nil
	}
}

// ParentLockStalenessCheck fails if a ParentCommit writer lock has been held
// continuously for longer than maxHeld, which past the checkout timeout
// bound (500ms) means a checkout transaction is wedged rather than merely
// contended.
func ParentLockStalenessCheck(heldSince func() (held bool, since time.Time), maxHeld time.Duration) CheckFunction {
	return func(ctx context.Context) error {
		held, since := heldSince()
		if !held {
			return nil
		}
		if elapsed := time.Since(since); elapsed > maxHeld {
			return fmt.Errorf("parent commit writer lock held for %s, exceeding %s", elapsed, maxHeld)
		}
		return nil
	}
}

// RemediationAction is a best-effort recovery step taken after a check
// fails repeatedly. It never retries a checkout: spec.md §5 makes checkout
// run-to-completion-or-rollback, not something a health monitor should
// re-drive.
type RemediationAction func(ctx context.Context) error

// Remediator runs a RemediationAction once a named check has failed
// consecutively at least threshold times, and resets its counter on the
// next healthy result.
type Remediator struct {
	threshold int
	actions   map[string]RemediationAction
	failures  map[string]int
}

// NewRemediator builds a Remediator that fires each action after threshold
// consecutive failures of its named check.
func NewRemediator(threshold int) *Remediator {
	if threshold <= 0 {
		threshold = 3
	}
	return &Remediator{
		threshold: threshold,
		actions:   make(map[string]RemediationAction),
		failures:  make(map[string]int),
	}
}

// Register associates a remediation action with a check name.
func (r *Remediator) Register(checkName string, action RemediationAction) {
	r.actions[checkName] = action
}

// Observe feeds a check result into the remediator, firing the associated
// action if the failure threshold is crossed. Returns the remediation error,
// if any action ran and failed.
func (r *Remediator) Observe(ctx context.Context, result *Result) error {
	if result == nil {
		return nil
	}

	if result.Status == StatusHealthy {
		r.failures[result.Check] = 0
		return nil
	}

	r.failures[result.Check]++
	if r.failures[result.Check] < r.threshold {
		return nil
	}

	action, ok := r.actions[result.Check]
	if !ok {
		return nil
	}

	r.failures[result.Check] = 0
	if err := action(ctx); err != nil {
		return fmt.Errorf("remediation for %s failed: %w", result.Check, err)
	}
	return nil
}
