// Package privhelper defines the RPC surface a mount uses to reach
// operations that require elevated privilege: the actual mount(2)/umount(2)
// syscalls and bind-mount setup, which the daemon process itself does not
// run as root. spec.md §6 names this the "privileged helper" collaborator;
// this package is the client-side interface plus the one implementation
// that ships in this repository, a same-process dev helper that performs
// the syscalls directly rather than round-tripping to a separate process.
// A production deployment substitutes an RPC-backed implementation without
// the mount package's callers changing.
package privhelper

import "context"

// DeviceHandle is an opaque FUSE device descriptor obtained from the
// privileged helper's fuse_mount call, passed to the FUSE channel that
// takes ownership of it.
type DeviceHandle struct {
	FD    int
	Valid bool
}

// Helper is the client surface spec.md §6 names: fuse_mount/fuse_unmount,
// nfs_mount/nfs_unmount, bind_mount/bind_unmount.
type Helper interface {
	FuseMount(ctx context.Context, mountPath string, readOnly bool) (DeviceHandle, error)
	FuseUnmount(ctx context.Context, mountPath string) error

	NFSMount(ctx context.Context, mountPath, mountdAddr string, readOnly bool, ioSize int) error
	NFSUnmount(ctx context.Context, mountPath string) error

	BindMount(ctx context.Context, target, source string) error
	BindUnmount(ctx context.Context, path string) error
}
