package objectstore

import (
	"encoding/hex"
	"sync/atomic"
)

// ObjectID is a content hash identifying a blob or tree. Trees are keyed by
// the hash of their serialized entry list; blobs by the hash of their raw
// bytes.
type ObjectID [32]byte

// String renders the ID as lowercase hex, the form used for S3 object keys.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// IsZero reports whether id is the zero value, used to represent "nothing"
// as the old side of the initial hash-update journal entry.
func (id ObjectID) IsZero() bool {
	return id == ObjectID{}
}

// ParseObjectID decodes a hex-encoded object ID.
func ParseObjectID(s string) (ObjectID, error) {
	var id ObjectID
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, errShortObjectID(len(b))
	}
	copy(id[:], b)
	return id, nil
}

type errShortObjectID int

func (e errShortObjectID) Error() string {
	return "objectstore: object id must be 32 bytes, got " + itoa(int(e))
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := [20]byte{}
	i := len(digits)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		digits[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		digits[i] = '-'
	}
	return string(digits[i:])
}

// EntryType classifies a TreeEntry.
type EntryType int

const (
	EntryFile EntryType = iota
	EntryDirectory
	EntrySymlink
	EntryExecutable
)

// TreeEntry is one named child of a Tree.
type TreeEntry struct {
	Name string
	Type EntryType
	ID   ObjectID
}

// Tree is the content-addressed representation of a directory: an ordered
// list of named entries, each pointing at either a blob (file/symlink) or
// another tree (subdirectory).
type Tree struct {
	ID      ObjectID
	Entries []TreeEntry
}

// EntryByName looks up a single entry by basename, returning false if no
// entry with that name exists.
func (t *Tree) EntryByName(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
	}
	return TreeEntry{}, false
}

// FetchContext accumulates fetch statistics across a single checkout or
// diff request, matching spec.md §6's "fetch statistics exposed via a
// per-request context." Safe for concurrent use by the parallel diff walk.
type FetchContext struct {
	treesFetched int64
	blobsFetched int64
}

// NewFetchContext returns a zeroed FetchContext.
func NewFetchContext() *FetchContext {
	return &FetchContext{}
}

// RecordTreeFetch increments the tree-fetch counter.
func (f *FetchContext) RecordTreeFetch() {
	if f == nil {
		return
	}
	atomic.AddInt64(&f.treesFetched, 1)
}

// RecordBlobFetch increments the blob-fetch counter.
func (f *FetchContext) RecordBlobFetch() {
	if f == nil {
		return
	}
	atomic.AddInt64(&f.blobsFetched, 1)
}

// TreesFetched returns the current tree-fetch count.
func (f *FetchContext) TreesFetched() int64 {
	if f == nil {
		return 0
	}
	return atomic.LoadInt64(&f.treesFetched)
}

// BlobsFetched returns the current blob-fetch count.
func (f *FetchContext) BlobsFetched() int64 {
	if f == nil {
		return 0
	}
	return atomic.LoadInt64(&f.blobsFetched)
}

// Merge folds other's counts into f, used when a diff or checkout combines
// statistics from several concurrently-run sub-fetches.
func (f *FetchContext) Merge(other *FetchContext) {
	if f == nil || other == nil {
		return
	}
	atomic.AddInt64(&f.treesFetched, other.TreesFetched())
	atomic.AddInt64(&f.blobsFetched, other.BlobsFetched())
}
