package telemetry

import "time"

// CheckoutMode mirrors the checkout target modes named in spec.md §3.
type CheckoutMode string

const (
	ModeDryRun CheckoutMode = "DRY_RUN"
	ModeNormal CheckoutMode = "NORMAL"
	ModeForce  CheckoutMode = "FORCE"
)

// FinishedCheckout is emitted once per completed checkout attempt, whether
// it succeeded or failed, as named in spec.md §4.2 step 11 and §6.
type FinishedCheckout struct {
	Mode         CheckoutMode
	Duration     time.Duration
	Success      bool
	TreesFetched int
	BlobsFetched int
}

// Emit logs the event at INFO on success, WARN on failure.
func (e FinishedCheckout) Emit(logger *Logger) {
	fields := map[string]interface{}{
		"mode":          string(e.Mode),
		"duration_s":    e.Duration.Seconds(),
		"success":       e.Success,
		"trees_fetched": e.TreesFetched,
		"blobs_fetched": e.BlobsFetched,
	}
	if e.Success {
		logger.Info("finished checkout", fields)
	} else {
		logger.Warn("finished checkout", fields)
	}
}

// ParentMismatch is emitted by parent-enforcing diff (spec.md §4.3) when the
// caller-supplied commit does not match the mount's current ParentCommit.
type ParentMismatch struct {
	Expected string
	Actual   string
}

// Emit logs the event at WARN.
func (e ParentMismatch) Emit(logger *Logger) {
	logger.Warn("parent mismatch", map[string]interface{}{
		"expected": e.Expected,
		"actual":   e.Actual,
	})
}
