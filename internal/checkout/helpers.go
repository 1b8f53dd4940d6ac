package checkout

import (
	"context"
	"time"

	"github.com/scmfs/scmfs/internal/diff"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
	"github.com/scmfs/scmfs/internal/telemetry"
)

// runJournalDiff walks the mount's live inode state against fromTree,
// mirroring EdenMount's journalDiffCallback->performDiff(mount, rootInode,
// fromTree): it never touches toTree, since the question it answers is
// "what did the user change underneath the tree we're about to replace",
// not "what differs between the two trees". It returns the paths that
// changed, so the checkout can flag them as unclean without a second diff
// pass.
func (e *Engine) runJournalDiff(ctx context.Context, fromTree *objectstore.Tree, fetchCtx *objectstore.FetchContext) ([]pathutil.RelativePath, error) {
	callback := diff.NewJournalDiffCallback(nil)

	diffFetchCtx, err := diff.PerformWorkingCopyDiff(ctx, e.Store, callback, e.Inodes, inode.Root, fromTree)
	if err != nil {
		return nil, err
	}
	fetchCtx.Merge(diffFetchCtx)

	return callback.StealUncleanPaths(), nil
}

// acquireRenameLock blocks until the mount-wide rename lock is free or ctx
// is canceled. EdenMount holds this lock across the inode-tree apply phase
// so a concurrent rename can't observe a half-checked-out tree.
func (e *Engine) acquireRenameLock(ctx context.Context) error {
	select {
	case <-e.renameLock:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) releaseRenameLock() {
	e.renameLock <- struct{}{}
}

func (e *Engine) recordUnclean(oldRootID, newRootID objectstore.ObjectID, paths []pathutil.RelativePath) {
	e.Journal.RecordUncleanPaths(oldRootID, newRootID, paths)
}

func (e *Engine) logFinished(mode Mode, duration time.Duration, success bool, conflicts int, fetchCtx *objectstore.FetchContext) {
	telemetry.FinishedCheckout{
		Mode:         mode,
		Duration:     duration,
		Success:      success,
		TreesFetched: int(fetchCtx.TreesFetched()),
		BlobsFetched: int(fetchCtx.BlobsFetched()),
	}.Emit(e.Logger)

	if e.Metrics == nil {
		return
	}
	e.Metrics.RecordCheckout(string(mode), duration, success, conflicts)
	e.Metrics.RecordTreeFetch(int(fetchCtx.TreesFetched()))
	e.Metrics.RecordBlobFetch(int(fetchCtx.BlobsFetched()))
}

// recordPhaseMetrics reports each checkout phase's duration once the
// operation reaches Finish, so a failed attempt (which never gets here)
// doesn't skew the phase histograms with a partial split.
func (e *Engine) recordPhaseMetrics(times Times) {
	if e.Metrics == nil {
		return
	}
	e.Metrics.RecordPhase("acquire_parent_lock", times.AcquireParentsLock)
	e.Metrics.RecordPhase("lookup_trees", times.LookupTrees)
	e.Metrics.RecordPhase("diff", times.Diff)
	e.Metrics.RecordPhase("acquire_rename_lock", times.AcquireRenameLock)
	e.Metrics.RecordPhase("checkout", times.Checkout)
	e.Metrics.RecordPhase("finish", times.Finish)
}
