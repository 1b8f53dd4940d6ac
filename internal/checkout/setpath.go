package checkout

import (
	"context"
	"time"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// SetPathObjectId grafts a single tree or blob at path, creating any missing
// intermediate directories along the way. It reuses the same rename-lock
// discipline as Checkout but skips the parent-lock and diff phases: the
// mount's checked-out parent does not change, only one path underneath it.
// POSIX-only, used by partial/sparse checkout tooling.
func (e *Engine) SetPathObjectId(ctx context.Context, path pathutil.RelativePath, id objectstore.ObjectID, entryType objectstore.EntryType) (*Result, error) {
	start := time.Now()
	var times Times

	if err := e.Fault.Check(ctx, "setPathObjectId", e.MountPath); err != nil {
		return nil, err
	}

	if err := e.acquireRenameLock(ctx); err != nil {
		return nil, err
	}
	defer e.releaseRenameLock()
	times.AcquireRenameLock = time.Since(start)

	dir, _ := path.Dirname()
	parent, err := e.ensureDirectoryExists(dir)
	if err != nil {
		return nil, err
	}

	leaf := path.Basename()
	if existing, ok := e.Inodes.LookupChild(parent, leaf); ok {
		e.Inodes.SetBackingID(existing.Number(), id)
	} else {
		e.Inodes.Create(parent, leaf, kindForEntry(entryType), id)
	}
	times.Checkout = time.Since(start)
	times.Finish = times.Checkout

	return &Result{Times: times}, nil
}

// ensureDirectoryExists walks dir's components from the mount root,
// creating any missing intermediate tree inodes, and returns the inode
// number of the deepest directory.
func (e *Engine) ensureDirectoryExists(dir pathutil.RelativePath) (inode.Number, error) {
	current := inode.Root
	if dir.IsRoot() {
		return current, nil
	}

	for _, component := range dir.Components() {
		if child, ok := e.Inodes.LookupChild(current, component); ok {
			current = child.Number()
			continue
		}
		child := e.Inodes.Create(current, component, inode.KindTree, objectstore.ObjectID{})
		current = child.Number()
	}
	return current, nil
}
