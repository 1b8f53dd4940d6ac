package diff

import (
	"context"
	"sort"

	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// Callback receives each path-level difference an Engine finds while
// walking two trees. Implementations must not block: the engine calls back
// synchronously from within the walk.
type Callback interface {
	AddedFile(path pathutil.RelativePath)
	RemovedFile(path pathutil.RelativePath)
	ModifiedFile(path pathutil.RelativePath)
	DiffError(path pathutil.RelativePath, err error)
}

// Context carries the state a single diff run shares across every
// directory it descends into: the object store to fetch subtrees from, the
// callback to report differences to, and the fetch-statistics context those
// fetches should be charged against.
type Context struct {
	Store       objectstore.Store
	Callback    Callback
	FetchStats  *objectstore.FetchContext
	ListIgnored bool
}

// Engine walks two trees in lockstep, reporting only the entries whose
// object id or type actually changed.
type Engine struct {
	ctx *Context
}

// New creates an Engine that reports differences through ctx.Callback.
func New(ctx *Context) *Engine {
	return &Engine{ctx: ctx}
}

// Diff compares fromTree against toTree, both rooted at path, recursing
// into subdirectories whose tree id differs between the two sides. A nil
// tree on either side is treated as an empty directory, so a whole
// subtree appearing or disappearing is reported entry-by-entry.
func (e *Engine) Diff(gctx context.Context, path pathutil.RelativePath, fromTree, toTree *objectstore.Tree) error {
	fromEntries := entryMap(fromTree)
	toEntries := entryMap(toTree)

	names := make(map[string]struct{}, len(fromEntries)+len(toEntries))
	for name := range fromEntries {
		names[name] = struct{}{}
	}
	for name := range toEntries {
		names[name] = struct{}{}
	}

	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		childPath, err := path.Join(name)
		if err != nil {
			e.ctx.Callback.DiffError(path, err)
			continue
		}

		from, hasFrom := fromEntries[name]
		to, hasTo := toEntries[name]

		switch {
		case hasFrom && !hasTo:
			e.reportRemoved(gctx, childPath, from)
		case !hasFrom && hasTo:
			e.reportAdded(gctx, childPath, to)
		case from.ID == to.ID && from.Type == to.Type:
			// Unchanged; nothing to report and, for a directory, nothing to
			// descend into since its contents are identical by construction.
		case from.Type == objectstore.EntryDirectory && to.Type == objectstore.EntryDirectory:
			if err := e.diffSubtree(gctx, childPath, from.ID, to.ID); err != nil {
				e.ctx.Callback.DiffError(childPath, err)
			}
		default:
			e.ctx.Callback.ModifiedFile(childPath)
		}
	}

	return nil
}

func (e *Engine) reportRemoved(gctx context.Context, path pathutil.RelativePath, entry objectstore.TreeEntry) {
	if entry.Type == objectstore.EntryDirectory {
		tree, err := e.ctx.Store.GetRootTree(gctx, entry.ID, e.ctx.FetchStats)
		if err != nil {
			e.ctx.Callback.DiffError(path, err)
			return
		}
		_ = e.Diff(gctx, path, tree, nil)
		return
	}
	e.ctx.Callback.RemovedFile(path)
}

func (e *Engine) reportAdded(gctx context.Context, path pathutil.RelativePath, entry objectstore.TreeEntry) {
	if entry.Type == objectstore.EntryDirectory {
		tree, err := e.ctx.Store.GetRootTree(gctx, entry.ID, e.ctx.FetchStats)
		if err != nil {
			e.ctx.Callback.DiffError(path, err)
			return
		}
		_ = e.Diff(gctx, path, nil, tree)
		return
	}
	e.ctx.Callback.AddedFile(path)
}

func (e *Engine) diffSubtree(gctx context.Context, path pathutil.RelativePath, fromID, toID objectstore.ObjectID) error {
	fromTree, err := e.ctx.Store.GetRootTree(gctx, fromID, e.ctx.FetchStats)
	if err != nil {
		return err
	}
	toTree, err := e.ctx.Store.GetRootTree(gctx, toID, e.ctx.FetchStats)
	if err != nil {
		return err
	}
	return e.Diff(gctx, path, fromTree, toTree)
}

func entryMap(tree *objectstore.Tree) map[string]objectstore.TreeEntry {
	if tree == nil {
		return nil
	}
	m := make(map[string]objectstore.TreeEntry, len(tree.Entries))
	for _, e := range tree.Entries {
		m[e.Name] = e
	}
	return m
}
