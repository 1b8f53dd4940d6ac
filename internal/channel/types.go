package channel

import (
	"context"

	"github.com/scmfs/scmfs/internal/inode"
)

// Backend is everything a Channel needs from the mount to answer kernel
// requests, without importing internal/mount or internal/checkout directly
// (both of those import channel, so the dependency has to run this way).
type Backend interface {
	Lookup(parent inode.Number, name string) (*inode.Inode, bool)
	Get(number inode.Number) (*inode.Inode, bool)
	Children(parent inode.Number) []*inode.Inode
	ReadFile(ctx context.Context, number inode.Number, offset int64, size int) ([]byte, error)
	WriteFile(ctx context.Context, number inode.Number, offset int64, data []byte) error
	ReadLink(ctx context.Context, number inode.Number) (string, error)
}

// Kind identifies which kernel protocol a Handle speaks.
type Kind int

const (
	KindNone Kind = iota
	KindFUSE
	KindNFS
	KindProjection
)

func (k Kind) String() string {
	switch k {
	case KindFUSE:
		return "fuse"
	case KindNFS:
		return "nfs"
	case KindProjection:
		return "projection"
	default:
		return "none"
	}
}

// Channel is the variant kernel-channel handle: exactly one of a FUSE, NFS,
// or projection driver is live at a time, dispatched by Kind. All
// channel-facing operations go through this interface so a Mount never has
// to type-switch on the concrete driver.
type Channel interface {
	Kind() Kind
	// Attach starts serving kernel requests at mountPath. It returns once
	// the kernel handshake completes (device obtained, first requests
	// deliverable), not once the channel fully stops.
	Attach(ctx context.Context, mountPath string, readOnly bool) error
	// Detach requests a clean stop and waits for it to finish.
	Detach(ctx context.Context) error
	// Done is closed when the channel's serve loop returns, whether from
	// a clean Detach or an external unmount (e.g. `umount` run by hand).
	Done() <-chan struct{}
	// StopError reports why the channel stopped, nil for a clean stop.
	StopError() error
	// AccessLog returns this channel's per-pid operation counter, the
	// backing store for Mount.GetProcessAccessLog.
	AccessLog() *AccessLog
}
