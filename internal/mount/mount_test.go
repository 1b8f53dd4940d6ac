package mount

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/fault"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/journal"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/overlay"
	"github.com/scmfs/scmfs/internal/privhelper"
)

// fakeStore is a minimal objectstore.Store good enough to exercise
// Mount.Diff and Initialize without a real backend.
type fakeStore struct {
	trees map[objectstore.ObjectID]*objectstore.Tree
	blobs map[objectstore.ObjectID][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		trees: map[objectstore.ObjectID]*objectstore.Tree{},
		blobs: map[objectstore.ObjectID][]byte{},
	}
}

func (s *fakeStore) GetRootTree(ctx context.Context, id objectstore.ObjectID, fc *objectstore.FetchContext) (*objectstore.Tree, error) {
	fc.RecordTreeFetch()
	t, ok := s.trees[id]
	if !ok {
		return &objectstore.Tree{ID: id}, nil
	}
	return t, nil
}

func (s *fakeStore) GetTreeEntryForRootID(context.Context, objectstore.ObjectID, objectstore.EntryType, string, *objectstore.FetchContext) (objectstore.TreeEntry, error) {
	return objectstore.TreeEntry{}, nil
}

func (s *fakeStore) GetBlob(ctx context.Context, id objectstore.ObjectID, fc *objectstore.FetchContext) ([]byte, error) {
	fc.RecordBlobFetch()
	return s.blobs[id], nil
}

func (s *fakeStore) PutTree(context.Context, []objectstore.TreeEntry) (objectstore.ObjectID, error) {
	return objectstore.ObjectID{}, nil
}

func (s *fakeStore) PutBlob(context.Context, []byte) (objectstore.ObjectID, error) {
	return objectstore.ObjectID{}, nil
}

func (s *fakeStore) HealthCheck(context.Context) error { return nil }
func (s *fakeStore) Close() error                      { return nil }

func newTestMount(t *testing.T, protocol Protocol, initialParent objectstore.ObjectID) *Mount {
	t.Helper()

	ov := overlay.NewFileOverlay(false)
	require.NoError(t, ov.Initialize(context.Background(), t.TempDir(), nil))
	t.Cleanup(func() { _ = ov.Close() })

	cfg := Config{
		MountPath: t.TempDir(),
		ClientDir: t.TempDir(),
		Protocol:  protocol,
	}
	m := New(cfg, Owner{UID: 1, GID: 1}, newFakeStore(), ov, inode.NewMap(initialParent), journal.New(64), fault.NewInjector(), nil, initialParent)
	m.PrivHelper = fakeHelper{}
	return m
}

// fakeHelper is a privhelper.Helper that never touches the kernel, for
// tests that exercise StartChannel/Shutdown without a real mount.
type fakeHelper struct{}

func (fakeHelper) FuseMount(ctx context.Context, mountPath string, readOnly bool) (privhelper.DeviceHandle, error) {
	return privhelper.DeviceHandle{FD: -1, Valid: true}, nil
}
func (fakeHelper) FuseUnmount(ctx context.Context, mountPath string) error { return nil }
func (fakeHelper) NFSMount(ctx context.Context, mountPath, mountdAddr string, readOnly bool, ioSize int) error {
	return nil
}
func (fakeHelper) NFSUnmount(ctx context.Context, mountPath string) error { return nil }
func (fakeHelper) BindMount(ctx context.Context, target, source string) error { return nil }
func (fakeHelper) BindUnmount(ctx context.Context, path string) error         { return nil }

func TestNewTestMount_StateStartsUninitialized(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{1})
	assert.Equal(t, StateUninitialized, m.State())
}
