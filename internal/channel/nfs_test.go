package channel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/inode"
)

type fakeBackend struct{}

func (fakeBackend) Lookup(inode.Number, string) (*inode.Inode, bool) { return nil, false }
func (fakeBackend) Get(inode.Number) (*inode.Inode, bool)            { return nil, false }
func (fakeBackend) Children(inode.Number) []*inode.Inode            { return nil }
func (fakeBackend) ReadFile(context.Context, inode.Number, int64, int) ([]byte, error) {
	return nil, nil
}
func (fakeBackend) WriteFile(context.Context, inode.Number, int64, []byte) error { return nil }
func (fakeBackend) ReadLink(context.Context, inode.Number) (string, error)       { return "", nil }

type fakeNFSMounter struct {
	mountCalls   int
	unmountCalls int
	mountErr     error
}

func (m *fakeNFSMounter) NFSMount(ctx context.Context, mountPath, mountdAddr string, readOnly bool, ioSize int) error {
	m.mountCalls++
	return m.mountErr
}

func (m *fakeNFSMounter) NFSUnmount(ctx context.Context, mountPath string) error {
	m.unmountCalls++
	return nil
}

func TestNFSChannel_AttachAndDetach(t *testing.T) {
	dir := t.TempDir()
	mounter := &fakeNFSMounter{}
	ch := NewNFSChannel(fakeBackend{}, mounter, dir, 0)

	require.NoError(t, ch.Attach(context.Background(), "/mnt/repo", false))
	assert.Equal(t, 1, mounter.mountCalls)
	assert.Equal(t, KindNFS, ch.Kind())

	require.NoError(t, ch.Detach(context.Background()))
	assert.Equal(t, 1, mounter.unmountCalls)

	select {
	case <-ch.Done():
	default:
		t.Fatal("expected channel to be done after detach")
	}
}

func TestNFSChannel_AttachPropagatesMounterError(t *testing.T) {
	dir := t.TempDir()
	mounter := &fakeNFSMounter{mountErr: assert.AnError}
	ch := NewNFSChannel(fakeBackend{}, mounter, dir, 0)

	err := ch.Attach(context.Background(), "/mnt/repo", false)
	require.Error(t, err)
}
