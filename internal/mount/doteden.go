package mount

import (
	"context"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
)

const dotEdenName = ".eden"

// controlSymlink is one of the four fixed symlinks DotEdenSetup installs
// inside the .eden control directory.
type controlSymlink struct {
	name   string
	target func(m *Mount) string
}

var controlSymlinks = []controlSymlink{
	{name: "this-dir", target: func(m *Mount) string { return m.Config.MountPath + "/" + dotEdenName }},
	{name: "root", target: func(m *Mount) string { return m.Config.MountPath }},
	{name: "socket", target: func(m *Mount) string { return m.socketPath }},
	{name: "client", target: func(m *Mount) string { return m.Config.ClientDir }},
}

// SetupDotEden ensures the .eden control directory exists at the mount root
// and creates or repairs its four fixed symlinks, per spec.md §4.5. Errors
// installing an individual symlink are logged and swallowed; the mount
// proceeds either way. Once all four have been attempted, the .eden inode
// number is recorded, which locks the directory against further
// modification (checked by every caller that would otherwise let a
// filesystem operation touch .eden). Idempotent: a mount whose .eden is
// already locked does nothing.
func (m *Mount) SetupDotEden(ctx context.Context) error {
	if m.IsDotEdenLocked() {
		return nil
	}

	dotEden, _ := m.Inodes.CreateIfAbsent(inode.Root, dotEdenName, inode.KindTree, objectstore.ObjectID{})

	for _, sym := range controlSymlinks {
		if err := m.installControlSymlink(ctx, dotEden.Number(), sym.name, sym.target(m)); err != nil {
			m.Logger.Warn("failed to install .eden symlink", map[string]interface{}{
				"name":  sym.name,
				"error": err.Error(),
			})
		}
	}

	m.recordDotEdenInode(dotEden.Number())
	return nil
}

func (m *Mount) installControlSymlink(ctx context.Context, dotEdenNum inode.Number, name, target string) error {
	existing, ok := m.Inodes.LookupChild(dotEdenNum, name)
	if !ok {
		return m.createControlSymlink(ctx, dotEdenNum, name, target)
	}

	switch existing.Kind() {
	case inode.KindTree:
		m.Logger.Warn("skipping .eden symlink: a directory occupies its name", map[string]interface{}{"name": name})
		return nil
	case inode.KindSymlink:
		current, err := m.ReadLink(ctx, existing.Number())
		if err != nil {
			return err
		}
		if current == target {
			return nil
		}
		m.Inodes.Unlink(dotEdenNum, name)
		return m.createControlSymlink(ctx, dotEdenNum, name, target)
	default:
		m.Inodes.Unlink(dotEdenNum, name)
		return m.createControlSymlink(ctx, dotEdenNum, name, target)
	}
}

func (m *Mount) createControlSymlink(ctx context.Context, dotEdenNum inode.Number, name, target string) error {
	created := m.Inodes.Create(dotEdenNum, name, inode.KindSymlink, objectstore.ObjectID{})
	return m.WriteFile(ctx, created.Number(), 0, []byte(target))
}
