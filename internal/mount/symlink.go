package mount

import (
	"context"

	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// maxSymlinkDepth bounds resolve's recursion, matching the ELOOP threshold
// spec.md §4.6 names.
const maxSymlinkDepth = 40

// ResolveSymlink returns start unchanged if it is not a symlink; otherwise
// it reads the link's target, resolves it relative to the symlink's
// containing directory, looks the result up from the mount root, and
// recurses, failing with ELOOP past maxSymlinkDepth.
func (m *Mount) ResolveSymlink(ctx context.Context, start *inode.Inode) (*inode.Inode, error) {
	return m.resolveSymlinkDepth(ctx, start, 0)
}

func (m *Mount) resolveSymlinkDepth(ctx context.Context, current *inode.Inode, depth int) (*inode.Inode, error) {
	if current.Kind() != inode.KindSymlink {
		return current, nil
	}
	if depth >= maxSymlinkDepth {
		return nil, scmfserrors.NewError(scmfserrors.ErrCodeLoop, "symlink chain exceeds maximum depth").
			WithComponent("mount").WithOperation("ResolveSymlink")
	}

	target, err := m.ReadLink(ctx, current.Number())
	if err != nil {
		return nil, err
	}

	containingDir, err := m.pathOf(current.Parent())
	if err != nil {
		return nil, err
	}

	resolvedPath, err := pathutil.ResolveSymlinkTarget(containingDir, target)
	if err != nil {
		return nil, err
	}

	next, err := m.lookupPath(resolvedPath)
	if err != nil {
		return nil, err
	}

	return m.resolveSymlinkDepth(ctx, next, depth+1)
}

// pathOf reconstructs the mount-relative path of an inode by walking parent
// links up to the root. Fails with ENOENT if the chain is broken (an
// unlinked ancestor), matching spec.md §4.6's stated failure mode.
func (m *Mount) pathOf(number inode.Number) (pathutil.RelativePath, error) {
	if number == inode.Root {
		return pathutil.Root, nil
	}

	self, ok := m.Inodes.Lookup(number)
	if !ok || self.IsUnlinked() {
		return "", scmfserrors.NewError(scmfserrors.ErrCodeNotFound, "inode has no path").
			WithComponent("mount").WithOperation("ResolveSymlink")
	}

	parentPath, err := m.pathOf(self.Parent())
	if err != nil {
		return "", err
	}
	return parentPath.Join(self.Name())
}

// lookupPath walks path's components from the mount root, failing with
// ENOENT on a missing component.
func (m *Mount) lookupPath(path pathutil.RelativePath) (*inode.Inode, error) {
	current := inode.Root
	if path.IsRoot() {
		root, _ := m.Inodes.Lookup(inode.Root)
		return root, nil
	}

	var found *inode.Inode
	for _, name := range path.Components() {
		child, ok := m.Inodes.LookupChild(current, name)
		if !ok {
			return nil, scmfserrors.NewError(scmfserrors.ErrCodeNotFound, "symlink target not found").
				WithComponent("mount").WithOperation("ResolveSymlink").
				WithDetail("path", path.String())
		}
		found = child
		current = child.Number()
	}
	return found, nil
}
