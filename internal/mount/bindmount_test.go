package mount

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

func TestMount_AddBindMount_CreatesDirectoryFirst(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	rel, err := pathutil.NewRelativePath("mnt/data")
	require.NoError(t, err)

	require.NoError(t, m.AddBindMount(context.Background(), rel, "/some/source"))

	_, err = m.EnsureDirectory(rel)
	assert.NoError(t, err)
}

func TestMount_RemoveBindMount_DoesNotRequireDirectory(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	rel, err := pathutil.NewRelativePath("mnt/data")
	require.NoError(t, err)

	assert.NoError(t, m.RemoveBindMount(context.Background(), rel))
}

func TestMount_AddBindMount_UsesMountPathPrefix(t *testing.T) {
	m := newTestMount(t, ProtocolFUSE, objectstore.ObjectID{})
	rel, err := pathutil.NewRelativePath("a/b")
	require.NoError(t, err)

	var captured string
	m.PrivHelper = capturingHelper{fakeHelper{}, &captured}

	require.NoError(t, m.AddBindMount(context.Background(), rel, "/src"))
	assert.Equal(t, filepath.Join(m.Config.MountPath, "a/b"), captured)
}

type capturingHelper struct {
	fakeHelper
	target *string
}

func (c capturingHelper) BindMount(ctx context.Context, target, source string) error {
	*c.target = target
	return nil
}
