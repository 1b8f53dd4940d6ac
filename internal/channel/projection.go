//go:build cgofuse

package channel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	"github.com/scmfs/scmfs/internal/inode"
)

// ProjectionChannel is the Windows projection variant of Channel, built on
// github.com/winfsp/cgofuse. Unlike FUSE it needs no privileged-helper
// round-trip: it starts the projection driver directly.
type ProjectionChannel struct {
	fuse.FileSystemBase

	backend Backend

	mu   sync.Mutex
	host *fuse.FileSystemHost
	done chan struct{}
	err  error

	accessLog *AccessLog
}

// NewProjectionChannel creates a channel that will dispatch kernel requests
// to backend once Attach is called.
func NewProjectionChannel(backend Backend) *ProjectionChannel {
	return &ProjectionChannel{backend: backend, done: make(chan struct{}), accessLog: NewAccessLog()}
}

// AccessLog returns this channel's per-pid operation counter. cgofuse's
// FileSystemBase callbacks don't surface a caller pid the way go-fuse's
// bridge does, so the projection variant's log stays empty; it exists so
// Mount.GetProcessAccessLog can dispatch through the Channel interface
// uniformly regardless of protocol.
func (c *ProjectionChannel) AccessLog() *AccessLog { return c.accessLog }

// NewProjectionAttach is the build-tag-independent entry point ChannelAttach
// uses: under this (cgofuse) build it always succeeds.
func NewProjectionAttach(backend Backend) (Channel, error) {
	return NewProjectionChannel(backend), nil
}

func (c *ProjectionChannel) Kind() Kind { return KindProjection }

func (c *ProjectionChannel) Attach(ctx context.Context, mountPath string, readOnly bool) error {
	c.host = fuse.NewFileSystemHost(c)

	options := []string{"-o", "FileSystemName=scmfs"}
	if readOnly {
		options = append(options, "-o", "ro")
	}

	go func() {
		ret := c.host.Mount(mountPath, options)
		c.mu.Lock()
		if ret != 0 {
			c.err = fmt.Errorf("channel: projection host exited with code %d", ret)
		}
		close(c.done)
		c.mu.Unlock()
	}()

	return nil
}

func (c *ProjectionChannel) Detach(ctx context.Context) error {
	c.mu.Lock()
	host := c.host
	c.mu.Unlock()
	if host == nil {
		return nil
	}
	if ret := host.Unmount(); ret != 0 {
		return fmt.Errorf("channel: projection detach failed with code %d", ret)
	}
	select {
	case <-c.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ProjectionChannel) Done() <-chan struct{} { return c.done }

func (c *ProjectionChannel) StopError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// resolve walks path's components against Backend from the root, since
// cgofuse's FileSystemInterface is path-addressed rather than inode-number
// addressed.
func (c *ProjectionChannel) resolve(path string) (*inode.Inode, bool) {
	current := inode.Root
	var self *inode.Inode
	if self, _ = c.backend.Get(current); path == "/" || path == "" {
		return self, self != nil
	}

	components := strings.Split(strings.Trim(path, "/"), "/")
	var found *inode.Inode
	for _, name := range components {
		child, ok := c.backend.Lookup(current, name)
		if !ok {
			return nil, false
		}
		found = child
		current = child.Number()
	}
	return found, found != nil
}

func (c *ProjectionChannel) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	n, ok := c.resolve(path)
	if !ok {
		return -fuse.ENOENT
	}
	if n.Kind() == inode.KindTree {
		stat.Mode = fuse.S_IFDIR | 0755
	} else {
		stat.Mode = fuse.S_IFREG | 0644
	}
	return 0
}

func (c *ProjectionChannel) Open(path string, flags int) (int, uint64) {
	if _, ok := c.resolve(path); !ok {
		return -fuse.ENOENT, 0
	}
	return 0, uint64(inode.Root)
}

func (c *ProjectionChannel) Read(path string, buff []byte, ofst int64, fh uint64) int {
	n, ok := c.resolve(path)
	if !ok {
		return -fuse.ENOENT
	}
	data, err := c.backend.ReadFile(context.Background(), n.Number(), ofst, len(buff))
	if err != nil {
		return -fuse.EIO
	}
	copy(buff, data)
	return len(data)
}

func (c *ProjectionChannel) Write(path string, buff []byte, ofst int64, fh uint64) int {
	n, ok := c.resolve(path)
	if !ok {
		return -fuse.ENOENT
	}
	if err := c.backend.WriteFile(context.Background(), n.Number(), ofst, buff); err != nil {
		return -fuse.EIO
	}
	return len(buff)
}

func (c *ProjectionChannel) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	n, ok := c.resolve(path)
	if !ok {
		return -fuse.ENOENT
	}
	num := inode.Root
	if n != nil {
		num = n.Number()
	}
	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, child := range c.backend.Children(num) {
		fill(child.Name(), nil, 0)
	}
	return 0
}
