package mount

import (
	"context"
	"fmt"

	"github.com/scmfs/scmfs/internal/channel"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
)

// attachResult carries the pieces of channel-attach state Shutdown later
// needs to build a takeover payload: the FUSE device handle (meaningless
// for the other protocols) and whether the kernel side is still considered
// valid once attach returns.
type attachResult struct {
	chn             channel.Channel
	deviceFD        int
	kernelSideValid bool
}

// attachChannel dispatches to the protocol-specific sub-protocol spec.md
// §4.4 describes, one per Config.Protocol. Each variant is responsible for
// checking the unmount handshake mid-attempt where a real privileged round
// trip creates a cancellation window.
func (m *Mount) attachChannel(ctx context.Context, readOnly bool) (attachResult, error) {
	switch m.Config.Protocol {
	case ProtocolFUSE:
		return m.attachFUSE(ctx, readOnly)
	case ProtocolNFS:
		return m.attachNFS(ctx, readOnly)
	case ProtocolProjection:
		return m.attachProjection(ctx, readOnly)
	default:
		return attachResult{}, fmt.Errorf("mount: unknown protocol %d", m.Config.Protocol)
	}
}

// attachFUSE obtains a device handle from the privileged helper first, then
// checks for a race against a concurrent unmount() before handing the
// handle to go-fuse, matching EdenMount's ordering: a request that lands
// between the helper call and the dispatcher starting must not leave a
// mounted-but-abandoned kernel side.
func (m *Mount) attachFUSE(ctx context.Context, readOnly bool) (attachResult, error) {
	handle, err := m.helper().FuseMount(ctx, m.Config.MountPath, readOnly)
	if err != nil {
		return attachResult{}, err
	}

	if m.handshake.UnmountStarted() {
		_ = m.helper().FuseUnmount(ctx, m.Config.MountPath)
		return attachResult{}, scmfserrors.NewError(scmfserrors.ErrCodeDeviceUnmountedDuringInitialization,
			"unmount was requested while the fuse device was still initializing").
			WithComponent("mount").WithOperation("StartChannel")
	}

	fc := channel.NewFUSEChannel(m, channel.FUSEOptions{FSName: "scmfs"})
	if err := fc.Attach(ctx, m.Config.MountPath, readOnly); err != nil {
		_ = m.helper().FuseUnmount(ctx, m.Config.MountPath)
		return attachResult{}, err
	}

	return attachResult{chn: fc, deviceFD: handle.FD, kernelSideValid: handle.Valid}, nil
}

// attachNFS registers the loopback listener and asks the privileged helper
// to mount it. privhelper.Helper's NFSMount/NFSUnmount methods satisfy
// channel.NFSMounter directly, so no adapter is needed between the two
// packages.
func (m *Mount) attachNFS(ctx context.Context, readOnly bool) (attachResult, error) {
	nc := channel.NewNFSChannel(m, m.helper(), m.Config.ClientDir, 0)
	if err := nc.Attach(ctx, m.Config.MountPath, readOnly); err != nil {
		return attachResult{}, err
	}
	return attachResult{chn: nc, deviceFD: -1, kernelSideValid: true}, nil
}

// attachProjection starts the Windows projection driver directly: unlike
// FUSE and NFS it needs no privileged-helper round trip, per
// internal/channel/projection.go's doc comment.
func (m *Mount) attachProjection(ctx context.Context, readOnly bool) (attachResult, error) {
	pc, err := channel.NewProjectionAttach(m)
	if err != nil {
		return attachResult{}, err
	}
	if err := pc.Attach(ctx, m.Config.MountPath, readOnly); err != nil {
		return attachResult{}, err
	}
	return attachResult{chn: pc, deviceFD: -1, kernelSideValid: true}, nil
}
