package mount

import (
	"context"
	"path/filepath"

	"github.com/scmfs/scmfs/internal/pathutil"
)

// AddBindMount grafts targetPath onto repoPath inside the mount, creating
// repoPath's parent directories first if they don't already exist. Both
// steps must succeed for the bind mount to be considered installed:
// EnsureDirectory race-tolerantly registers any missing directory inodes
// before the privileged helper touches the kernel side.
func (m *Mount) AddBindMount(ctx context.Context, repoPath pathutil.RelativePath, targetPath string) error {
	if _, err := m.EnsureDirectory(repoPath); err != nil {
		return err
	}
	mountPoint := filepath.Join(m.Config.MountPath, repoPath.String())
	return m.helper().BindMount(ctx, mountPoint, targetPath)
}

// RemoveBindMount detaches whatever is bind-mounted at repoPath.
func (m *Mount) RemoveBindMount(ctx context.Context, repoPath pathutil.RelativePath) error {
	mountPoint := filepath.Join(m.Config.MountPath, repoPath.String())
	return m.helper().BindUnmount(ctx, mountPoint)
}
