package channel

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"syscall"
	"time"

	gofuse "github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	"github.com/scmfs/scmfs/internal/inode"
)

// FUSEOptions configures the go-fuse server a FUSEChannel starts.
type FUSEOptions struct {
	ThreadCount    int
	RequestTimeout time.Duration
	AllowOther     bool
	FSName         string
}

func defaultFUSEOptions() FUSEOptions {
	return FUSEOptions{
		ThreadCount:    runtime.GOMAXPROCS(0),
		RequestTimeout: 60 * time.Second,
		FSName:         "scmfs",
	}
}

// FUSEChannel speaks the FUSE protocol via github.com/hanwen/go-fuse/v2,
// the Linux/macOS-direct variant of Channel. Attach binds a dispatcher over
// Backend and starts serving; Detach requests an unmount and waits for the
// server loop to exit.
type FUSEChannel struct {
	backend Backend
	opts    FUSEOptions

	mu      sync.Mutex
	server  *fuse.Server
	done    chan struct{}
	stopErr error

	accessLog *AccessLog
}

// NewFUSEChannel creates a channel that will dispatch kernel requests to
// backend once Attach is called.
func NewFUSEChannel(backend Backend, opts FUSEOptions) *FUSEChannel {
	if opts.ThreadCount <= 0 {
		opts = defaultFUSEOptions()
	}
	return &FUSEChannel{backend: backend, opts: opts, done: make(chan struct{}), accessLog: NewAccessLog()}
}

func (c *FUSEChannel) Kind() Kind { return KindFUSE }

// AccessLog returns this channel's per-pid operation counter, populated
// from the caller identity go-fuse's context bridge attaches to every
// request.
func (c *FUSEChannel) AccessLog() *AccessLog { return c.accessLog }

// Attach mounts the FUSE filesystem at mountPath and returns once the
// kernel has accepted the mount, not once serving stops. The caller (the
// mount's ChannelAttach step) is responsible for having already obtained a
// device handle from the privileged mount helper before calling this in
// a real deployment; here the go-fuse library performs that syscall
// itself via fs.Mount, matching how the projection variant differs only
// in which library owns the handshake.
func (c *FUSEChannel) Attach(ctx context.Context, mountPath string, readOnly bool) error {
	root := &fuseNode{backend: c.backend, number: inode.Root, accessLog: c.accessLog}

	mountOpts := fuse.MountOptions{
		FsName:               c.opts.FSName,
		Name:                 c.opts.FSName,
		AllowOther:           c.opts.AllowOther,
		DisableXAttrs:        true,
		IgnoreSecurityLabels: true,
	}
	if readOnly {
		mountOpts.Options = append(mountOpts.Options, "ro")
	}

	server, err := gofuse.Mount(mountPath, root, &gofuse.Options{
		MountOptions: mountOpts,
	})
	if err != nil {
		return fmt.Errorf("channel: fuse attach failed: %w", err)
	}

	c.mu.Lock()
	c.server = server
	c.mu.Unlock()

	go func() {
		server.Wait()
		c.mu.Lock()
		close(c.done)
		c.mu.Unlock()
	}()

	return nil
}

// Detach requests an unmount and waits for the server loop to exit or ctx
// to be canceled, whichever comes first.
func (c *FUSEChannel) Detach(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.mu.Unlock()
	if server == nil {
		return nil
	}

	if err := server.Unmount(); err != nil {
		c.mu.Lock()
		c.stopErr = err
		c.mu.Unlock()
		return fmt.Errorf("channel: fuse detach failed: %w", err)
	}

	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *FUSEChannel) Done() <-chan struct{} { return c.done }

func (c *FUSEChannel) StopError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stopErr
}

// fuseNode is the minimal dispatcher go-fuse needs to speak the protocol
// against Backend: enough of Lookup/Readdir/Getattr/Open/Read/Write/
// Readlink to exercise a real mount, without owning any of the storage,
// caching, or checkout logic those calls resolve against.
type fuseNode struct {
	gofuse.Inode
	backend   Backend
	number    inode.Number
	accessLog *AccessLog
}

// recordAccess logs ctx's caller pid against n's channel access log, if the
// context carries one. go-fuse's context bridge attaches caller identity
// (uid/gid/pid) to every dispatched request's ctx.
func (n *fuseNode) recordAccess(ctx context.Context) {
	if n.accessLog == nil {
		return
	}
	if caller, ok := fuse.FromContext(ctx); ok {
		n.accessLog.RecordAccess(caller.Pid)
	}
}

var (
	_ gofuse.NodeLookuper   = (*fuseNode)(nil)
	_ gofuse.NodeReaddirer  = (*fuseNode)(nil)
	_ gofuse.NodeGetattrer  = (*fuseNode)(nil)
	_ gofuse.NodeOpener     = (*fuseNode)(nil)
	_ gofuse.NodeReader     = (*fuseNode)(nil)
	_ gofuse.NodeWriter     = (*fuseNode)(nil)
	_ gofuse.NodeReadlinker = (*fuseNode)(nil)
)

func kindToStat(k inode.Kind) (mode uint32) {
	switch k {
	case inode.KindTree:
		return fuse.S_IFDIR | 0755
	case inode.KindSymlink:
		return fuse.S_IFLNK | 0777
	default:
		return fuse.S_IFREG | 0644
	}
}

func (n *fuseNode) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*gofuse.Inode, syscall.Errno) {
	n.recordAccess(ctx)
	child, ok := n.backend.Lookup(n.number, name)
	if !ok {
		return nil, syscall.ENOENT
	}
	out.Mode = kindToStat(child.Kind())
	childNode := &fuseNode{backend: n.backend, number: child.Number(), accessLog: n.accessLog}
	return n.NewInode(ctx, childNode, gofuse.StableAttr{
		Mode: kindToStat(child.Kind()) &^ 0777,
		Ino:  uint64(child.Number()),
	}), 0
}

func (n *fuseNode) Readdir(ctx context.Context) (gofuse.DirStream, syscall.Errno) {
	children := n.backend.Children(n.number)
	entries := make([]fuse.DirEntry, 0, len(children))
	for _, c := range children {
		entries = append(entries, fuse.DirEntry{
			Name: c.Name(),
			Ino:  uint64(c.Number()),
			Mode: kindToStat(c.Kind()) &^ 0777,
		})
	}
	return gofuse.NewListDirStream(entries), 0
}

func (n *fuseNode) Getattr(ctx context.Context, fh gofuse.FileHandle, out *fuse.AttrOut) syscall.Errno {
	self, ok := n.backend.Get(n.number)
	if !ok {
		return syscall.ENOENT
	}
	out.Mode = kindToStat(self.Kind())
	return 0
}

func (n *fuseNode) Open(ctx context.Context, flags uint32) (gofuse.FileHandle, uint32, syscall.Errno) {
	return nil, 0, 0
}

func (n *fuseNode) Read(ctx context.Context, fh gofuse.FileHandle, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n.recordAccess(ctx)
	data, err := n.backend.ReadFile(ctx, n.number, off, len(dest))
	if err != nil {
		return nil, syscall.EIO
	}
	return fuse.ReadResultData(data), 0
}

func (n *fuseNode) Write(ctx context.Context, fh gofuse.FileHandle, data []byte, off int64) (uint32, syscall.Errno) {
	n.recordAccess(ctx)
	if err := n.backend.WriteFile(ctx, n.number, off, data); err != nil {
		return 0, syscall.EIO
	}
	return uint32(len(data)), 0
}

func (n *fuseNode) Readlink(ctx context.Context) ([]byte, syscall.Errno) {
	target, err := n.backend.ReadLink(ctx, n.number)
	if err != nil {
		return nil, syscall.EIO
	}
	return []byte(target), 0
}
