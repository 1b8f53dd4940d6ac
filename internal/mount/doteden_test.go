package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
)

func TestSetupDotEden_InstallsFourControlSymlinks(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	m.SetSocketPath("/tmp/scmfsd.sock")

	require.NoError(t, m.SetupDotEden(context.Background()))

	num, ok := m.DotEdenInode()
	require.True(t, ok)

	for _, name := range []string{"this-dir", "root", "socket", "client"} {
		child, ok := m.Inodes.LookupChild(num, name)
		require.True(t, ok, "missing %s", name)
		assert.Equal(t, inode.KindSymlink, child.Kind())
	}

	root, ok := m.Inodes.LookupChild(num, "root")
	require.True(t, ok)
	target, err := m.ReadLink(context.Background(), root.Number())
	require.NoError(t, err)
	assert.Equal(t, m.Config.MountPath, target)
}

func TestSetupDotEden_IdempotentOnceLocked(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	require.NoError(t, m.SetupDotEden(context.Background()))
	firstNum, _ := m.DotEdenInode()

	require.NoError(t, m.SetupDotEden(context.Background()))
	secondNum, _ := m.DotEdenInode()

	assert.Equal(t, firstNum, secondNum)
	assert.True(t, m.IsDotEdenLocked())
}

func TestSetupDotEden_RepairsStaleSymlinkTarget(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	dotEden := m.Inodes.Create(inode.Root, dotEdenName, inode.KindTree, objectstore.ObjectID{})
	stale := m.Inodes.Create(dotEden.Number(), "root", inode.KindSymlink, objectstore.ObjectID{})
	require.NoError(t, m.WriteFile(context.Background(), stale.Number(), 0, []byte("/stale/path")))

	require.NoError(t, m.installControlSymlink(context.Background(), dotEden.Number(), "root", m.Config.MountPath))

	fixed, ok := m.Inodes.LookupChild(dotEden.Number(), "root")
	require.True(t, ok)
	target, err := m.ReadLink(context.Background(), fixed.Number())
	require.NoError(t, err)
	assert.Equal(t, m.Config.MountPath, target)
}
