package checkout

import (
	"context"
	"time"

	"github.com/sourcegraph/conc"

	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/fault"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/journal"
	"github.com/scmfs/scmfs/internal/metrics"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/overlay"
	"github.com/scmfs/scmfs/internal/pathutil"
	"github.com/scmfs/scmfs/internal/telemetry"
)

// Engine drives checkout transactions for a single mount.
type Engine struct {
	Store   objectstore.Store
	Inodes  *inode.Map
	Overlay overlay.Overlay
	Journal *journal.Journal
	Fault   *fault.Injector
	Logger  *telemetry.Logger

	// Metrics, if set, receives per-phase durations and outcome counters for
	// every Checkout call. Left nil, the engine runs without instrumentation.
	Metrics *metrics.Collector

	MountPath         string
	ParentLockTimeout time.Duration

	parentLock *ParentLock
	renameLock chan struct{}
}

// NewEngine creates an Engine whose parent lock starts at initialParent.
func NewEngine(store objectstore.Store, inodes *inode.Map, ov overlay.Overlay, jrn *journal.Journal, injector *fault.Injector, logger *telemetry.Logger, mountPath string, initialParent objectstore.ObjectID) *Engine {
	if injector == nil {
		injector = fault.NewInjector()
	}
	if logger == nil {
		logger, _ = telemetry.New(nil)
	}

	renameLock := make(chan struct{}, 1)
	renameLock <- struct{}{}

	return &Engine{
		Store:             store,
		Inodes:            inodes,
		Overlay:           ov,
		Journal:           jrn,
		Fault:             injector,
		Logger:            logger,
		MountPath:         mountPath,
		ParentLockTimeout: 500 * time.Millisecond,
		parentLock:        NewParentLock(initialParent),
		renameLock:        renameLock,
	}
}

// CurrentParent returns the mount's currently checked-out root, without
// acquiring the checkout lock.
func (e *Engine) CurrentParent() objectstore.ObjectID {
	return e.parentLock.Current()
}

// ParentLockHeldSince reports whether the checkout parent lock is currently
// held and, if so, since when.
func (e *Engine) ParentLockHeldSince() (held bool, since time.Time) {
	return e.parentLock.HeldSince()
}

// CheckParent acquires the parent lock briefly to read the current parent
// under the same bounded timeout checkout uses, for parent-enforcing diff
// (spec.md §4.3). ok is false if the lock could not be acquired within
// timeout, matching checkout's own CHECKOUT_IN_PROGRESS failure mode.
func (e *Engine) CheckParent(timeout time.Duration) (current objectstore.ObjectID, ok bool) {
	release, current, ok := e.parentLock.Acquire(timeout)
	if !ok {
		return objectstore.ObjectID{}, false
	}
	release()
	return current, true
}

// ResetParent reassigns the mount's parent commit directly, without diffing
// or moving any inode: the round-trip law spec.md §8 calls resetParent,
// used to repair a mount whose on-disk state and recorded parent have
// diverged from a source outside this engine's control (e.g. an amend or
// rebase upstream). It still goes through the parent lock so it can't race
// a real checkout, and it always records a hash-update journal entry even
// though no tree was applied.
func (e *Engine) ResetParent(ctx context.Context, newParent objectstore.ObjectID) (oldParent objectstore.ObjectID, err error) {
	release, oldParent, ok := e.parentLock.Acquire(e.ParentLockTimeout)
	if !ok {
		return objectstore.ObjectID{}, scmfserrors.NewError(scmfserrors.ErrCodeCheckoutInProgress,
			"another checkout operation is still in progress").
			WithComponent("checkout").WithOperation("ResetParent")
	}
	defer release()

	e.parentLock.Set(newParent)
	e.Journal.RecordHashUpdate(oldParent, newParent)
	return oldParent, nil
}

// Checkout moves the mount from its current parent to targetRootID,
// following the same phase ordering as EdenMount::checkout: acquire the
// parent lock, fetch both trees, diff the working state against the old
// tree, acquire the rename lock, apply the tree change, finish by
// installing the new parent, then record a journal entry. A FinishedCheckout
// event is emitted whether the attempt succeeds or fails.
func (e *Engine) Checkout(ctx context.Context, targetRootID objectstore.ObjectID, mode Mode) (result *Result, err error) {
	start := time.Now()
	fetchCtx := objectstore.NewFetchContext()

	defer func() {
		conflicts := 0
		if result != nil {
			conflicts = len(result.Conflicts)
		}
		e.logFinished(mode, time.Since(start), err == nil, conflicts, fetchCtx)
	}()

	var times Times

	release, oldParent, ok := e.parentLock.Acquire(e.ParentLockTimeout)
	if !ok {
		return nil, scmfserrors.NewError(scmfserrors.ErrCodeCheckoutInProgress,
			"another checkout operation is still in progress").
			WithComponent("checkout").WithOperation("Checkout")
	}
	defer release()
	times.AcquireParentsLock = time.Since(start)

	if err := e.Fault.Check(ctx, "checkout", e.MountPath); err != nil {
		return nil, err
	}

	var fromTree, toTree *objectstore.Tree
	var fromErr, toErr error

	var wg conc.WaitGroup
	wg.Go(func() { fromTree, fromErr = e.Store.GetRootTree(ctx, oldParent, fetchCtx) })
	wg.Go(func() { toTree, toErr = e.Store.GetRootTree(ctx, targetRootID, fetchCtx) })
	wg.Wait()

	if fromErr != nil {
		return nil, fromErr
	}
	if toErr != nil {
		return nil, toErr
	}
	times.LookupTrees = time.Since(start)

	var uncleanPaths []pathutil.RelativePath
	if mode != ModeDryRun {
		unclean, diffErr := e.runJournalDiff(ctx, fromTree, fetchCtx)
		if diffErr != nil {
			e.Logger.Warn("journal diff failed", map[string]interface{}{"error": diffErr.Error()})
		}
		uncleanPaths = unclean
	}
	times.Diff = time.Since(start)

	if err := e.acquireRenameLock(ctx); err != nil {
		return nil, err
	}
	defer e.releaseRenameLock()
	times.AcquireRenameLock = time.Since(start)

	if err := e.Fault.Check(ctx, "inodeCheckout", e.MountPath); err != nil {
		return nil, err
	}

	conflicts, applyErr := e.applyTree(ctx, inode.Root, fromTree, toTree, mode, fetchCtx)
	if applyErr != nil {
		return nil, applyErr
	}
	times.Checkout = time.Since(start)

	if mode != ModeDryRun {
		e.parentLock.Set(targetRootID)
	}
	times.Finish = time.Since(start)
	e.recordPhaseMetrics(times)

	if mode != ModeDryRun {
		if len(uncleanPaths) > 0 {
			e.recordUnclean(oldParent, targetRootID, uncleanPaths)
		} else {
			e.Journal.RecordHashUpdate(oldParent, targetRootID)
		}
	}

	return &Result{Times: times, Conflicts: conflicts}, nil
}
