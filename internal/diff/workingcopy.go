package diff

import (
	"context"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// DiffWorkingCopy compares fromTree against the live inode state rooted at
// root, the "load file contents by path" closure spec.md's DiffEngine
// describes expressed as an inode-map lookup instead of a second tree
// fetch: an entry the map has never registered reads through fromTree
// unmodified by construction, so the walk can skip it without touching the
// object store at all. Only entries fromTree already knows about can ever
// be reported: a locally added file has no counterpart in fromTree and, per
// EdenMount::JournalDiffCallback, an addition is never unclean.
func (e *Engine) DiffWorkingCopy(gctx context.Context, path pathutil.RelativePath, inodes *inode.Map, root inode.Number, fromTree *objectstore.Tree) error {
	for _, entry := range fromTree.Entries {
		childPath, err := path.Join(entry.Name)
		if err != nil {
			e.ctx.Callback.DiffError(path, err)
			continue
		}

		child, ok := inodes.LookupChild(root, entry.Name)
		if !ok {
			// Nobody has ever looked this path up, so it can't have diverged.
			continue
		}

		if child.IsUnlinked() {
			e.reportRemoved(gctx, childPath, entry)
			continue
		}

		switch entry.Type {
		case objectstore.EntryDirectory:
			if child.Kind() != inode.KindTree {
				e.ctx.Callback.ModifiedFile(childPath)
				continue
			}
			subtree, err := e.ctx.Store.GetRootTree(gctx, entry.ID, e.ctx.FetchStats)
			if err != nil {
				e.ctx.Callback.DiffError(childPath, err)
				continue
			}
			if err := e.DiffWorkingCopy(gctx, childPath, inodes, child.Number(), subtree); err != nil {
				e.ctx.Callback.DiffError(childPath, err)
			}
		default:
			if child.IsMaterialized() {
				e.ctx.Callback.ModifiedFile(childPath)
			}
		}
	}

	return nil
}
