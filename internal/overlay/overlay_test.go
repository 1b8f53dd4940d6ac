package overlay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOverlay(t *testing.T) *FileOverlay {
	t.Helper()
	dir := t.TempDir()
	o := NewFileOverlay(true)
	require.NoError(t, o.Initialize(context.Background(), dir, nil))
	t.Cleanup(func() { _ = o.Close() })
	return o
}

func TestFileOverlay_SaveLoadDir(t *testing.T) {
	o := newTestOverlay(t)
	ctx := context.Background()

	entries := []DirEntry{
		{Name: "a.txt", Inode: 42, Kind: KindFile},
		{Name: "sub", Inode: 43, Kind: KindDirectory},
	}
	require.NoError(t, o.SaveOverlayDir(ctx, 7, entries))

	loaded, ok, err := o.LoadOverlayDir(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, entries, loaded)
}

func TestFileOverlay_LoadDir_Missing(t *testing.T) {
	o := newTestOverlay(t)
	_, ok, err := o.LoadOverlayDir(context.Background(), 999)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileOverlay_SaveLoadFile(t *testing.T) {
	o := newTestOverlay(t)
	ctx := context.Background()

	require.NoError(t, o.SaveFile(ctx, 5, 0, []byte("hello ")))
	require.NoError(t, o.SaveFile(ctx, 5, 6, []byte("world")))
	require.NoError(t, o.Flush(ctx))

	data, ok, err := o.LoadFile(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello world", string(data))
}

func TestFileOverlay_RemoveInode(t *testing.T) {
	o := newTestOverlay(t)
	ctx := context.Background()

	require.NoError(t, o.SaveOverlayDir(ctx, 1, []DirEntry{{Name: "x", Inode: 2}}))
	require.NoError(t, o.RemoveInode(ctx, 1))

	_, ok, err := o.LoadOverlayDir(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileOverlay_NonPersistent_WipesOnInitialize(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	o1 := NewFileOverlay(true)
	require.NoError(t, o1.Initialize(ctx, dir, nil))
	require.NoError(t, o1.SaveOverlayDir(ctx, 1, []DirEntry{{Name: "x", Inode: 2}}))
	require.NoError(t, o1.Close())

	o2 := NewFileOverlay(false)
	require.NoError(t, o2.Initialize(ctx, dir, nil))
	t.Cleanup(func() { _ = o2.Close() })

	_, ok, err := o2.LoadOverlayDir(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, o2.IsPersistent())
}

func TestFileOverlay_Initialize_ReportsProgress(t *testing.T) {
	dir := t.TempDir()
	o := NewFileOverlay(true)

	var lastPercent int
	calls := 0
	err := o.Initialize(context.Background(), dir, func(percent int) {
		calls++
		lastPercent = percent
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	require.Equal(t, 1, calls)
	assert.Equal(t, 100, lastPercent)
}

func TestFileOverlay_Close_FlushesPendingWrites(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	o := NewFileOverlay(true)
	require.NoError(t, o.Initialize(ctx, dir, nil))

	require.NoError(t, o.SaveFile(ctx, 9, 0, []byte("pending")))
	require.NoError(t, o.Close())

	o2 := NewFileOverlay(true)
	require.NoError(t, o2.Initialize(ctx, dir, nil))
	t.Cleanup(func() { _ = o2.Close() })

	data, ok, err := o2.LoadFile(ctx, 9)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "pending", string(data))
}

func TestFileOverlay_NonContiguousWrite_Errors(t *testing.T) {
	o := newTestOverlay(t)
	ctx := context.Background()

	require.NoError(t, o.SaveFile(ctx, 3, 0, []byte("abc")))
	err := o.SaveFile(ctx, 3, 100, []byte("xyz"))
	assert.Error(t, err)
}

func TestFileOverlay_ConcurrentWrites(t *testing.T) {
	o := newTestOverlay(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			_ = o.SaveOverlayDir(ctx, uint64(i), []DirEntry{{Name: "f", Inode: uint64(i)}})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("concurrent writes did not complete in time")
	}
}
