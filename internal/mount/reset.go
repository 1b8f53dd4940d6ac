package mount

import (
	"context"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// ResetParent reassigns the mount's parent commit directly, without
// diffing the working copy or moving any inode, per spec.md §8's round-trip
// law: resetting to the current parent is a no-op observable only in the
// journal, and resetting twice in a row records two hash-update entries
// even though the second leaves the parent unchanged.
func (m *Mount) ResetParent(ctx context.Context, newParent objectstore.ObjectID) (oldParent objectstore.ObjectID, err error) {
	return m.checkoutEng.ResetParent(ctx, newParent)
}
