package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
)

func makeSymlink(t *testing.T, m *Mount, parent inode.Number, name, target string) *inode.Inode {
	t.Helper()
	link := m.Inodes.Create(parent, name, inode.KindSymlink, objectstore.ObjectID{})
	require.NoError(t, m.WriteFile(context.Background(), link.Number(), 0, []byte(target)))
	return link
}

func TestResolveSymlink_NonSymlinkReturnsUnchanged(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	dir := m.Inodes.Create(inode.Root, "dir", inode.KindTree, objectstore.ObjectID{})

	resolved, err := m.ResolveSymlink(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir.Number(), resolved.Number())
}

func TestResolveSymlink_ResolvesToTarget(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	target := m.Inodes.Create(inode.Root, "target.txt", inode.KindFile, objectstore.ObjectID{})
	link := makeSymlink(t, m, inode.Root, "link", "target.txt")

	resolved, err := m.ResolveSymlink(context.Background(), link)
	require.NoError(t, err)
	assert.Equal(t, target.Number(), resolved.Number())
}

func TestResolveSymlink_FollowsChain(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	target := m.Inodes.Create(inode.Root, "final.txt", inode.KindFile, objectstore.ObjectID{})
	makeSymlink(t, m, inode.Root, "b", "final.txt")
	a := makeSymlink(t, m, inode.Root, "a", "b")

	resolved, err := m.ResolveSymlink(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, target.Number(), resolved.Number())
}

func TestResolveSymlink_DetectsLoop(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	a := makeSymlink(t, m, inode.Root, "a", "b")
	makeSymlink(t, m, inode.Root, "b", "a")

	_, err := m.ResolveSymlink(context.Background(), a)
	assert.Error(t, err)
}

func TestResolveSymlink_MissingTargetFails(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	link := makeSymlink(t, m, inode.Root, "dangling", "nope.txt")

	_, err := m.ResolveSymlink(context.Background(), link)
	assert.Error(t, err)
}
