package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSecureJoin(t *testing.T) {
	p, err := SecureJoin("/mnt/client", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, "/mnt/client/a/b", p)

	_, err = SecureJoin("/mnt/client", "..", "..", "etc", "passwd")
	assert.Error(t, err)

	_, err = SecureJoin("", "a")
	assert.Error(t, err)
}

func TestToFilesystemPath(t *testing.T) {
	root, err := ToFilesystemPath("/mnt/client", Root)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/client", root)

	rp, err := NewRelativePath("a/b")
	require.NoError(t, err)

	p, err := ToFilesystemPath("/mnt/client", rp)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/client/a/b", p)
}
