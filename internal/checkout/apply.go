package checkout

import (
	"context"
	"fmt"
	"sort"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

func kindForEntry(t objectstore.EntryType) inode.Kind {
	switch t {
	case objectstore.EntryDirectory:
		return inode.KindTree
	case objectstore.EntrySymlink:
		return inode.KindSymlink
	default:
		return inode.KindFile
	}
}

// applyTree walks fromTree and toTree together under parent, updating the
// inode map to match toTree and returning every path where a local
// modification stood in the way. It is the Go analog of TreeInode::checkout
// recursing into each changed child.
func (e *Engine) applyTree(ctx context.Context, parent inode.Number, fromTree, toTree *objectstore.Tree, mode Mode, fc *objectstore.FetchContext) ([]Conflict, error) {
	var conflicts []Conflict

	fromEntries := treeEntryMap(fromTree)
	toEntries := treeEntryMap(toTree)

	names := make(map[string]struct{}, len(fromEntries)+len(toEntries))
	for n := range fromEntries {
		names[n] = struct{}{}
	}
	for n := range toEntries {
		names[n] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		from, hasFrom := fromEntries[name]
		to, hasTo := toEntries[name]
		existing, hasExisting := e.Inodes.LookupChild(parent, name)

		switch {
		case hasFrom && !hasTo:
			if hasExisting && existing.IsMaterialized() && mode != ModeForce {
				conflicts = append(conflicts, conflictAt(name, ConflictModifiedRemoved,
					"locally modified but removed in the target tree"))
				continue
			}
			if hasExisting && mode != ModeDryRun {
				e.Inodes.Unlink(parent, name)
				_ = e.Overlay.RemoveInode(ctx, uint64(existing.Number()))
			}

		case !hasFrom && hasTo:
			if hasExisting && mode != ModeForce {
				conflicts = append(conflicts, conflictAt(name, ConflictUntrackedAdded,
					"untracked local entry occupies a path the target tree wants to create"))
				continue
			}
			childNumber := e.getOrCreateChildNumber(parent, name, to, hasExisting, existing, mode)
			if to.Type == objectstore.EntryDirectory {
				subtree, err := e.Store.GetRootTree(ctx, to.ID, fc)
				if err != nil {
					return conflicts, err
				}
				sub, err := e.applyTree(ctx, childNumber, nil, subtree, mode, fc)
				if err != nil {
					return conflicts, err
				}
				conflicts = append(conflicts, sub...)
			}

		case from.ID == to.ID && from.Type == to.Type:
			// Unchanged subtree: nothing to update, nothing to descend into.

		default:
			if from.Type != to.Type {
				conflicts = append(conflicts, conflictAt(name, ConflictTypeMismatch,
					fmt.Sprintf("local entry is a %s, target tree wants a %s", entryTypeName(from.Type), entryTypeName(to.Type))))
				continue
			}
			if hasExisting && existing.IsMaterialized() && mode != ModeForce {
				conflicts = append(conflicts, conflictAt(name, ConflictModifiedRemoved,
					"locally modified and also changed in the target tree"))
				continue
			}

			childNumber := e.getOrCreateChildNumber(parent, name, to, hasExisting, existing, mode)
			if mode != ModeDryRun {
				e.Inodes.SetBackingID(childNumber, to.ID)
			}

			if to.Type == objectstore.EntryDirectory {
				fromSub, err := e.Store.GetRootTree(ctx, from.ID, fc)
				if err != nil {
					return conflicts, err
				}
				toSub, err := e.Store.GetRootTree(ctx, to.ID, fc)
				if err != nil {
					return conflicts, err
				}
				sub, err := e.applyTree(ctx, childNumber, fromSub, toSub, mode, fc)
				if err != nil {
					return conflicts, err
				}
				conflicts = append(conflicts, sub...)
			}
		}
	}

	return conflicts, nil
}

// getOrCreateChildNumber resolves the inode a recursive descent into this
// entry should use as its parent. In ModeDryRun it never allocates: an entry
// that doesn't already exist stays unmaterialized, and the returned zero
// Number simply resolves no children on the recursive LookupChild calls
// below it, which is the correct "nothing local exists under a path that was
// never created" answer for a dry run.
func (e *Engine) getOrCreateChildNumber(parent inode.Number, name string, entry objectstore.TreeEntry, hasExisting bool, existing *inode.Inode, mode Mode) inode.Number {
	if hasExisting {
		return existing.Number()
	}
	if mode == ModeDryRun {
		return inode.Number(0)
	}
	return e.Inodes.Create(parent, name, kindForEntry(entry.Type), entry.ID).Number()
}

func conflictAt(name string, t ConflictType, message string) Conflict {
	p, err := pathutil.NewRelativePath(name)
	if err != nil {
		p = pathutil.Root
	}
	return Conflict{Path: p, Type: t, Message: message}
}

func entryTypeName(t objectstore.EntryType) string {
	switch t {
	case objectstore.EntryDirectory:
		return "directory"
	case objectstore.EntrySymlink:
		return "symlink"
	case objectstore.EntryExecutable:
		return "executable file"
	default:
		return "file"
	}
}

func treeEntryMap(tree *objectstore.Tree) map[string]objectstore.TreeEntry {
	if tree == nil {
		return nil
	}
	m := make(map[string]objectstore.TreeEntry, len(tree.Entries))
	for _, e := range tree.Entries {
		m[e.Name] = e
	}
	return m
}
