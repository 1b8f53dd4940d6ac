package mount

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

func TestEnsureDirectory_CreatesMissingComponents(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	path, err := pathutil.NewRelativePath("a/b/c")
	require.NoError(t, err)

	num, err := m.EnsureDirectory(path)
	require.NoError(t, err)

	a, ok := m.Inodes.LookupChild(inode.Root, "a")
	require.True(t, ok)
	b, ok := m.Inodes.LookupChild(a.Number(), "b")
	require.True(t, ok)
	c, ok := m.Inodes.LookupChild(b.Number(), "c")
	require.True(t, ok)
	assert.Equal(t, c.Number(), num)
}

func TestEnsureDirectory_IdempotentOnExisting(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	path, err := pathutil.NewRelativePath("dir")
	require.NoError(t, err)

	first, err := m.EnsureDirectory(path)
	require.NoError(t, err)
	second, err := m.EnsureDirectory(path)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestEnsureDirectory_FailsOnNonDirectoryComponent(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	m.Inodes.Create(inode.Root, "file", inode.KindFile, objectstore.ObjectID{})

	path, err := pathutil.NewRelativePath("file/child")
	require.NoError(t, err)

	_, err = m.EnsureDirectory(path)
	assert.Error(t, err)
}

func TestEnsureDirectory_RootPathIsNoop(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	num, err := m.EnsureDirectory(pathutil.Root)
	require.NoError(t, err)
	assert.Equal(t, inode.Root, num)
}

func TestEnsureDirectory_ConcurrentCallersAgreeOnWinner(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	path, err := pathutil.NewRelativePath("x/y/z")
	require.NoError(t, err)

	const n = 16
	results := make([]inode.Number, n)
	errs := make([]error, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = m.EnsureDirectory(path)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}

	x, ok := m.Inodes.LookupChild(inode.Root, "x")
	require.True(t, ok)
	assert.Len(t, m.Inodes.Children(inode.Root), 1)

	y, ok := m.Inodes.LookupChild(x.Number(), "y")
	require.True(t, ok)
	assert.Len(t, m.Inodes.Children(x.Number()), 1)

	z, ok := m.Inodes.LookupChild(y.Number(), "z")
	require.True(t, ok)
	assert.Len(t, m.Inodes.Children(y.Number()), 1)
	assert.Equal(t, z.Number(), results[0])
}
