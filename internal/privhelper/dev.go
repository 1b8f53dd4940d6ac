package privhelper

import (
	"context"
	"fmt"
	"syscall"

	"github.com/scmfs/scmfs/internal/channel"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
)

var _ channel.NFSMounter = DevHelper{}

// DevHelper is a same-process privileged-helper implementation: it performs
// the mount/unmount syscalls directly rather than delegating to a separate
// privileged process, matching how internal/fuse/mount.go's MountManager
// used to call syscall.Unmount directly before this package existed.
//
// FuseMount does not itself call mount(2): github.com/hanwen/go-fuse/v2's
// fs.Mount performs the open("/dev/fuse")+mount(2) sequence internally when
// the channel attaches, so there is no separate device fd for this helper
// to hand back. FuseMount instead exists as the authorization point a real
// RPC-backed helper would use, and returns a placeholder handle that
// downstream code (the takeover payload) treats as valid once the channel
// itself confirms attach succeeded.
type DevHelper struct{}

// NewDevHelper creates a Helper suitable for a daemon running with the
// capabilities it needs directly (CAP_SYS_ADMIN, or FUSE configured for
// unprivileged mounts).
func NewDevHelper() *DevHelper { return &DevHelper{} }

func (DevHelper) FuseMount(ctx context.Context, mountPath string, readOnly bool) (DeviceHandle, error) {
	return DeviceHandle{FD: -1, Valid: true}, nil
}

func (DevHelper) FuseUnmount(ctx context.Context, mountPath string) error {
	return unmount(mountPath)
}

// NFSMount is a placeholder for the loopback-NFS mount(2) call: setting up
// a real kernel NFS client mount against a loopback server is platform- and
// privilege-specific in ways this repository's dev helper does not attempt.
// It returns nil without mounting anything; internal/mount passes this helper
// to channel.NFSChannel as its NFSMounter.
func (DevHelper) NFSMount(ctx context.Context, mountPath, mountdAddr string, readOnly bool, ioSize int) error {
	return nil
}

func (DevHelper) NFSUnmount(ctx context.Context, mountPath string) error {
	return unmount(mountPath)
}

// BindMount performs a Linux bind mount of source onto target.
func (DevHelper) BindMount(ctx context.Context, target, source string) error {
	if err := syscall.Mount(source, target, "", syscall.MS_BIND, ""); err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeMountFailed, fmt.Sprintf("bind mount %s onto %s failed", source, target)).
			WithComponent("privhelper").WithOperation("BindMount").WithCause(err)
	}
	return nil
}

func (DevHelper) BindUnmount(ctx context.Context, path string) error {
	return unmount(path)
}

func unmount(path string) error {
	if err := syscall.Unmount(path, syscall.MNT_DETACH); err != nil {
		return scmfserrors.NewError(scmfserrors.ErrCodeUnmountFailed, fmt.Sprintf("unmount %s failed", path)).
			WithComponent("privhelper").WithOperation("Unmount").WithCause(err)
	}
	return nil
}
