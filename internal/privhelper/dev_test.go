package privhelper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests exercise DevHelper's error-wrapping and placeholder-handle
// behavior only: the actual mount(2)/umount(2) syscalls it wraps need
// CAP_SYS_ADMIN and a real kernel filesystem to succeed, so success paths
// are integration-level concerns rather than unit tests, the same split
// internal/channel draws around fuse.go/projection.go.

func TestDevHelper_FuseMount_ReturnsPlaceholderHandle(t *testing.T) {
	h := NewDevHelper()
	handle, err := h.FuseMount(context.Background(), "/nonexistent/mount/point", false)
	require.NoError(t, err)
	assert.True(t, handle.Valid)
}

func TestDevHelper_NFSMount_IsANoop(t *testing.T) {
	h := NewDevHelper()
	err := h.NFSMount(context.Background(), "/mnt/x", "127.0.0.1:2049", true, 65536)
	assert.NoError(t, err)
}

func TestDevHelper_FuseUnmount_WrapsSyscallError(t *testing.T) {
	h := NewDevHelper()
	err := h.FuseUnmount(context.Background(), "/nonexistent/mount/point")
	assert.Error(t, err)
}

func TestDevHelper_NFSUnmount_WrapsSyscallError(t *testing.T) {
	h := NewDevHelper()
	err := h.NFSUnmount(context.Background(), "/nonexistent/mount/point")
	assert.Error(t, err)
}

func TestDevHelper_BindUnmount_WrapsSyscallError(t *testing.T) {
	h := NewDevHelper()
	err := h.BindUnmount(context.Background(), "/nonexistent/path")
	assert.Error(t, err)
}

func TestDevHelper_BindMount_FailsWithoutPrivilegeOrTarget(t *testing.T) {
	h := NewDevHelper()
	err := h.BindMount(context.Background(), "/nonexistent/target", "/nonexistent/source")
	assert.Error(t, err)
}
