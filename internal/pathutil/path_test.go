package pathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRelativePath(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    RelativePath
		wantErr bool
	}{
		{"empty is root", "", Root, false},
		{"dot is root", ".", Root, false},
		{"simple", "a/b/c", "a/b/c", false},
		{"cleans redundant slashes", "a//b/./c", "a/b/c", false},
		{"rejects absolute", "/a/b", "", true},
		{"rejects traversal", "../etc/passwd", "", true},
		{"rejects nested traversal", "a/../../b", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewRelativePath(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelativePath_Join(t *testing.T) {
	root := Root
	a, err := root.Join("a")
	require.NoError(t, err)
	assert.Equal(t, RelativePath("a"), a)

	ab, err := a.Join("b")
	require.NoError(t, err)
	assert.Equal(t, RelativePath("a/b"), ab)

	_, err = a.Join("")
	assert.Error(t, err)
	_, err = a.Join("x/y")
	assert.Error(t, err)
	_, err = a.Join("..")
	assert.Error(t, err)
}

func TestRelativePath_DirnameBasename(t *testing.T) {
	p := RelativePath("a/b/c")
	dir, ok := p.Dirname()
	require.True(t, ok)
	assert.Equal(t, RelativePath("a/b"), dir)
	assert.Equal(t, "c", p.Basename())

	top := RelativePath("a")
	dir, ok = top.Dirname()
	require.True(t, ok)
	assert.Equal(t, Root, dir)

	_, ok = Root.Dirname()
	assert.False(t, ok)
}

func TestRelativePath_Components(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, RelativePath("a/b/c").Components())
	assert.Nil(t, Root.Components())
}

func TestRelativePath_HasPrefixDir(t *testing.T) {
	assert.True(t, RelativePath("a/b").HasPrefixDir("a"))
	assert.True(t, RelativePath("a").HasPrefixDir("a"))
	assert.True(t, RelativePath("a/b").HasPrefixDir(Root))
	assert.False(t, RelativePath("ab").HasPrefixDir("a"))
}

func TestResolveSymlinkTarget(t *testing.T) {
	dir, err := NewRelativePath("a/b")
	require.NoError(t, err)

	target, err := ResolveSymlinkTarget(dir, "../c")
	require.NoError(t, err)
	assert.Equal(t, RelativePath("a/c"), target)

	target, err = ResolveSymlinkTarget(dir, "./d")
	require.NoError(t, err)
	assert.Equal(t, RelativePath("a/b/d"), target)

	_, err = ResolveSymlinkTarget(dir, "../../../etc/passwd")
	assert.Error(t, err)

	target, err = ResolveSymlinkTarget(dir, "/etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, RelativePath("etc/passwd"), target)
}
