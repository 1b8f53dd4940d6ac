package mount

import (
	"context"
	"time"

	"github.com/scmfs/scmfs/internal/diff"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
	"github.com/scmfs/scmfs/internal/telemetry"
)

// parentEnforceTimeout is the same 500ms bound checkout's parent lock uses,
// per spec.md §4.3/§5.
const parentEnforceTimeout = 500 * time.Millisecond

// DiffOptions configures a single Diff call.
type DiffOptions struct {
	ListIgnored bool

	// EnforceParent, when true, requires the mount's current ParentCommit
	// equal ExpectedParent before diffing proceeds, failing with
	// OUT_OF_DATE_PARENT and emitting a ParentMismatch event otherwise.
	EnforceParent  bool
	ExpectedParent objectstore.ObjectID
}

// Diff streams differences between the mount's current parent tree and
// targetRootID through callback, per spec.md §4.3. Directory recursion and
// per-path classification live in internal/diff; this method only adds the
// parent-enforcement gate and the fetch-context/store wiring a bare
// diff.Engine doesn't own.
func (m *Mount) Diff(ctx context.Context, callback diff.Callback, targetRootID objectstore.ObjectID, opts DiffOptions) error {
	if opts.EnforceParent {
		actual, ok := m.checkoutEng.CheckParent(parentEnforceTimeout)
		if !ok {
			return scmfserrors.NewError(scmfserrors.ErrCodeCheckoutInProgress,
				"could not acquire parent lock for parent-enforcing diff").
				WithComponent("mount").WithOperation("Diff")
		}
		if actual != opts.ExpectedParent {
			telemetry.ParentMismatch{
				Expected: opts.ExpectedParent.String(),
				Actual:   actual.String(),
			}.Emit(m.Logger)
			return scmfserrors.NewError(scmfserrors.ErrCodeOutOfDateParent,
				"caller's parent commit does not match the mount's current parent").
				WithComponent("mount").WithOperation("Diff").
				WithExpectedActual(opts.ExpectedParent.String(), actual.String())
		}
	}

	fromID := m.CurrentParent()
	fc := objectstore.NewFetchContext()

	fromTree, err := m.Store.GetRootTree(ctx, fromID, fc)
	if err != nil {
		return err
	}
	toTree, err := m.Store.GetRootTree(ctx, targetRootID, fc)
	if err != nil {
		return err
	}

	engine := diff.New(&diff.Context{
		Store:       m.Store,
		Callback:    callback,
		FetchStats:  fc,
		ListIgnored: opts.ListIgnored,
	})
	return engine.Diff(ctx, pathutil.Root, fromTree, toTree)
}
