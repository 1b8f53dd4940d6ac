package objectstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectID_StringRoundTrip(t *testing.T) {
	var id ObjectID
	id[0] = 0xab
	id[31] = 0xff

	s := id.String()
	parsed, err := ParseObjectID(s)
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestObjectID_IsZero(t *testing.T) {
	var zero ObjectID
	assert.True(t, zero.IsZero())

	nonZero := ObjectID{1}
	assert.False(t, nonZero.IsZero())
}

func TestParseObjectID_WrongLength(t *testing.T) {
	_, err := ParseObjectID("abcd")
	assert.Error(t, err)
}

func TestTree_EntryByName(t *testing.T) {
	tree := &Tree{Entries: []TreeEntry{
		{Name: "a", Type: EntryFile},
		{Name: "b", Type: EntryDirectory},
	}}

	entry, ok := tree.EntryByName("b")
	require.True(t, ok)
	assert.Equal(t, EntryDirectory, entry.Type)

	_, ok = tree.EntryByName("missing")
	assert.False(t, ok)
}

func TestFetchContext_RecordAndMerge(t *testing.T) {
	fc := NewFetchContext()
	fc.RecordTreeFetch()
	fc.RecordTreeFetch()
	fc.RecordBlobFetch()

	assert.Equal(t, int64(2), fc.TreesFetched())
	assert.Equal(t, int64(1), fc.BlobsFetched())

	other := NewFetchContext()
	other.RecordTreeFetch()
	other.RecordBlobFetch()
	other.RecordBlobFetch()

	fc.Merge(other)
	assert.Equal(t, int64(3), fc.TreesFetched())
	assert.Equal(t, int64(3), fc.BlobsFetched())
}

func TestFetchContext_NilIsNoop(t *testing.T) {
	var fc *FetchContext
	assert.NotPanics(t, func() {
		fc.RecordTreeFetch()
		fc.RecordBlobFetch()
	})
	assert.Equal(t, int64(0), fc.TreesFetched())
}
