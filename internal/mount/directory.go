package mount

import (
	"github.com/scmfs/scmfs/internal/inode"

	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// EnsureDirectory guarantees every component of path exists as a directory
// under the mount root, creating any missing components, and returns the
// final directory's inode number. It is race-tolerant per spec.md §4.7: if
// a concurrent creator wins the race to create a component, this restarts
// that component against whatever the concurrent creator installed rather
// than failing.
func (m *Mount) EnsureDirectory(path pathutil.RelativePath) (inode.Number, error) {
	current := inode.Root
	for _, name := range path.Components() {
		next, err := m.ensureDirectoryComponent(current, name)
		if err != nil {
			return 0, err
		}
		current = next
	}
	return current, nil
}

func (m *Mount) ensureDirectoryComponent(parent inode.Number, name string) (inode.Number, error) {
	if child, ok := m.Inodes.LookupChild(parent, name); ok {
		if child.Kind() != inode.KindTree {
			return 0, scmfserrors.NewError(scmfserrors.ErrCodeAlreadyExists,
				"path component exists and is not a directory").
				WithComponent("mount").WithOperation("EnsureDirectory").
				WithDetail("name", name)
		}
		return child.Number(), nil
	}

	// CreateIfAbsent decides the winner atomically: a concurrent creator
	// racing on the same name gets handed back here instead of being
	// overwritten, matching the mkdir-then-restart-on-EEXIST behavior
	// spec.md §4.7 asks for.
	winner, _ := m.Inodes.CreateIfAbsent(parent, name, inode.KindTree, objectstore.ObjectID{})
	if winner.Kind() != inode.KindTree {
		return 0, scmfserrors.NewError(scmfserrors.ErrCodeAlreadyExists,
			"path component exists and is not a directory").
			WithComponent("mount").WithOperation("EnsureDirectory").
			WithDetail("name", name)
	}
	return winner.Number(), nil
}
