package mount

import (
	"context"

	"github.com/scmfs/scmfs/internal/channel"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
)

var _ channel.Backend = (*Mount)(nil)

// Lookup, Get, Children, ReadFile, WriteFile, and ReadLink implement
// channel.Backend, letting any attached Channel (FUSE, NFS, projection)
// dispatch kernel requests straight at the mount's inode map, overlay, and
// object store without those channel drivers importing this package.

func (m *Mount) Lookup(parent inode.Number, name string) (*inode.Inode, bool) {
	return m.Inodes.LookupChild(parent, name)
}

func (m *Mount) Get(number inode.Number) (*inode.Inode, bool) {
	return m.Inodes.Lookup(number)
}

func (m *Mount) Children(parent inode.Number) []*inode.Inode {
	return m.Inodes.Children(parent)
}

// ReadFile returns size bytes at offset from number's content: the
// overlay's copy if the inode has been materialized, otherwise the
// unmodified blob fetched from the object store by its backing id.
func (m *Mount) ReadFile(ctx context.Context, number inode.Number, offset int64, size int) ([]byte, error) {
	self, ok := m.Inodes.Lookup(number)
	if !ok {
		return nil, scmfserrors.NewError(scmfserrors.ErrCodeNotFound, "inode not found").
			WithComponent("mount").WithOperation("ReadFile")
	}

	var content []byte
	if self.IsMaterialized() {
		data, found, err := m.Overlay.LoadFile(ctx, uint64(number))
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, nil
		}
		content = data
	} else {
		fc := objectstore.NewFetchContext()
		data, err := m.Store.GetBlob(ctx, self.BackingID(), fc)
		if err != nil {
			return nil, err
		}
		content = data
	}

	if offset >= int64(len(content)) {
		return nil, nil
	}
	end := offset + int64(size)
	if end > int64(len(content)) {
		end = int64(len(content))
	}
	return content[offset:end], nil
}

// WriteFile materializes number (if not already) and writes data into the
// overlay, flushing it so a following ReadFile sees the new bytes.
func (m *Mount) WriteFile(ctx context.Context, number inode.Number, offset int64, data []byte) error {
	if _, ok := m.Inodes.Lookup(number); !ok {
		return scmfserrors.NewError(scmfserrors.ErrCodeNotFound, "inode not found").
			WithComponent("mount").WithOperation("WriteFile")
	}
	if err := m.Overlay.SaveFile(ctx, uint64(number), offset, data); err != nil {
		return err
	}
	if err := m.Overlay.Flush(ctx); err != nil {
		return err
	}
	m.Inodes.MarkMaterialized(number)
	return nil
}

// ReadLink returns a symlink inode's target string.
func (m *Mount) ReadLink(ctx context.Context, number inode.Number) (string, error) {
	data, err := m.ReadFile(ctx, number, 0, symlinkMaxLen)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

const symlinkMaxLen = 4096
