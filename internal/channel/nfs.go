package channel

import (
	"context"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// NFSMounter is the privileged-helper surface an NFSChannel needs: the
// actual "mount -t nfs" (or macOS equivalent) call has to run with
// elevated privilege, so it is a caller-supplied collaborator rather than
// something this package does itself. Implemented by internal/privhelper.
type NFSMounter interface {
	NFSMount(ctx context.Context, mountPath, mountdAddr string, readOnly bool, ioSize int) error
	NFSUnmount(ctx context.Context, mountPath string) error
}

// NFSChannel is the loopback-NFS variant of Channel: an in-process server
// registers a listener the kernel NFS client talks to, then a privileged
// helper mounts that loopback address at mountPath. This variant has no
// teacher analog in the example pack (none of the retrieved repos speak
// NFS); it is built directly from the mount-registration sequence spec.md
// §4.4 describes for the NFS case.
type NFSChannel struct {
	backend   Backend
	mounter   NFSMounter
	clientDir string
	ioSize    int

	mu        sync.Mutex
	listener  net.Listener
	mountPath string
	done      chan struct{}
	err       error

	accessLog *AccessLog
}

// NewNFSChannel creates a channel that registers a loopback NFS listener
// under clientDir (a Unix socket named nfsd.socket when the platform
// supports one) before asking mounter to mount it.
func NewNFSChannel(backend Backend, mounter NFSMounter, clientDir string, ioSize int) *NFSChannel {
	if ioSize <= 0 {
		ioSize = 64 * 1024
	}
	return &NFSChannel{backend: backend, mounter: mounter, clientDir: clientDir, ioSize: ioSize, done: make(chan struct{}), accessLog: NewAccessLog()}
}

func (c *NFSChannel) Kind() Kind { return KindNFS }

// AccessLog returns this channel's per-pid operation counter. The loopback
// NFS server never learns a caller's pid, so it stays empty; it exists so
// Mount.GetProcessAccessLog can dispatch through the Channel interface
// uniformly regardless of protocol.
func (c *NFSChannel) AccessLog() *AccessLog { return c.accessLog }

func (c *NFSChannel) Attach(ctx context.Context, mountPath string, readOnly bool) error {
	socketPath := filepath.Join(c.clientDir, "nfsd.socket")
	_ = os.Remove(socketPath)

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return fmt.Errorf("channel: nfs socket init failed: %w", err)
	}

	c.mu.Lock()
	c.listener = listener
	c.mountPath = mountPath
	c.mu.Unlock()

	if err := c.mounter.NFSMount(ctx, mountPath, listener.Addr().String(), readOnly, c.ioSize); err != nil {
		_ = listener.Close()
		return fmt.Errorf("channel: nfs mount helper failed: %w", err)
	}

	go c.serve(listener)
	return nil
}

// serve accepts connections until the listener is closed by Detach. The
// actual NFS wire protocol is out of scope here: the kernel-channel driver
// itself is an external collaborator per spec.md §1, so this loop only
// keeps the socket alive for the mount's lifetime.
func (c *NFSChannel) serve(listener net.Listener) {
	defer close(c.done)
	for {
		conn, err := listener.Accept()
		if err != nil {
			c.mu.Lock()
			c.err = nil
			c.mu.Unlock()
			return
		}
		conn.Close()
	}
}

func (c *NFSChannel) Detach(ctx context.Context) error {
	c.mu.Lock()
	mountPath := c.mountPath
	c.mu.Unlock()

	if err := c.mounter.NFSUnmount(ctx, mountPath); err != nil {
		return fmt.Errorf("channel: nfs unmount helper failed: %w", err)
	}

	c.mu.Lock()
	listener := c.listener
	c.mu.Unlock()
	if listener != nil {
		_ = listener.Close()
	}

	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *NFSChannel) Done() <-chan struct{} { return c.done }

func (c *NFSChannel) StopError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
