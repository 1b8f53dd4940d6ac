package diff

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

type fakeStore struct {
	trees map[objectstore.ObjectID]*objectstore.Tree
}

func (s *fakeStore) GetRootTree(ctx context.Context, id objectstore.ObjectID, fc *objectstore.FetchContext) (*objectstore.Tree, error) {
	fc.RecordTreeFetch()
	t, ok := s.trees[id]
	if !ok {
		return nil, assert.AnError
	}
	return t, nil
}
func (s *fakeStore) GetTreeEntryForRootID(context.Context, objectstore.ObjectID, objectstore.EntryType, string, *objectstore.FetchContext) (objectstore.TreeEntry, error) {
	return objectstore.TreeEntry{}, nil
}
func (s *fakeStore) GetBlob(context.Context, objectstore.ObjectID, *objectstore.FetchContext) ([]byte, error) {
	return nil, nil
}
func (s *fakeStore) PutTree(context.Context, []objectstore.TreeEntry) (objectstore.ObjectID, error) {
	return objectstore.ObjectID{}, nil
}
func (s *fakeStore) PutBlob(context.Context, []byte) (objectstore.ObjectID, error) {
	return objectstore.ObjectID{}, nil
}
func (s *fakeStore) HealthCheck(context.Context) error { return nil }
func (s *fakeStore) Close() error                      { return nil }

type recordingCallback struct {
	added, removed, modified []string
	errs                     int
}

func (c *recordingCallback) AddedFile(p pathutil.RelativePath)    { c.added = append(c.added, p.String()) }
func (c *recordingCallback) RemovedFile(p pathutil.RelativePath)  { c.removed = append(c.removed, p.String()) }
func (c *recordingCallback) ModifiedFile(p pathutil.RelativePath) { c.modified = append(c.modified, p.String()) }
func (c *recordingCallback) DiffError(pathutil.RelativePath, error) { c.errs++ }

func mustPath(t *testing.T, s string) pathutil.RelativePath {
	t.Helper()
	p, err := pathutil.NewRelativePath(s)
	require.NoError(t, err)
	return p
}

func TestEngine_Diff_TopLevelChanges(t *testing.T) {
	from := &objectstore.Tree{Entries: []objectstore.TreeEntry{
		{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{1}},
		{Name: "b.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{2}},
		{Name: "same.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{3}},
	}}
	to := &objectstore.Tree{Entries: []objectstore.TreeEntry{
		{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{9}},
		{Name: "c.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{4}},
		{Name: "same.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{3}},
	}}

	cb := &recordingCallback{}
	fc := objectstore.NewFetchContext()
	engine := New(&Context{Store: &fakeStore{}, Callback: cb, FetchStats: fc})

	require.NoError(t, engine.Diff(context.Background(), mustPath(t, ""), from, to))

	assert.ElementsMatch(t, []string{"a.txt"}, cb.modified)
	assert.ElementsMatch(t, []string{"b.txt"}, cb.removed)
	assert.ElementsMatch(t, []string{"c.txt"}, cb.added)
}

func TestEngine_Diff_RecursesIntoChangedSubtree(t *testing.T) {
	fromSub := objectstore.ObjectID{10}
	toSub := objectstore.ObjectID{11}

	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromSub: {Entries: []objectstore.TreeEntry{
			{Name: "nested.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{20}},
		}},
		toSub: {Entries: []objectstore.TreeEntry{
			{Name: "nested.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{21}},
		}},
	}}

	from := &objectstore.Tree{Entries: []objectstore.TreeEntry{
		{Name: "dir", Type: objectstore.EntryDirectory, ID: fromSub},
	}}
	to := &objectstore.Tree{Entries: []objectstore.TreeEntry{
		{Name: "dir", Type: objectstore.EntryDirectory, ID: toSub},
	}}

	cb := &recordingCallback{}
	fc := objectstore.NewFetchContext()
	engine := New(&Context{Store: store, Callback: cb, FetchStats: fc})

	require.NoError(t, engine.Diff(context.Background(), mustPath(t, ""), from, to))
	assert.Equal(t, []string{"dir/nested.txt"}, cb.modified)
	assert.Equal(t, int64(2), fc.TreesFetched())
}

func TestEngine_Diff_UnchangedDirectorySkipsDescent(t *testing.T) {
	sub := objectstore.ObjectID{30}
	from := &objectstore.Tree{Entries: []objectstore.TreeEntry{{Name: "dir", Type: objectstore.EntryDirectory, ID: sub}}}
	to := &objectstore.Tree{Entries: []objectstore.TreeEntry{{Name: "dir", Type: objectstore.EntryDirectory, ID: sub}}}

	cb := &recordingCallback{}
	fc := objectstore.NewFetchContext()
	engine := New(&Context{Store: &fakeStore{}, Callback: cb, FetchStats: fc})

	require.NoError(t, engine.Diff(context.Background(), mustPath(t, ""), from, to))
	assert.Empty(t, cb.modified)
	assert.Empty(t, cb.added)
	assert.Empty(t, cb.removed)
	assert.Equal(t, int64(0), fc.TreesFetched())
}

func TestJournalDiffCallback_StealUncleanPaths(t *testing.T) {
	cb := NewJournalDiffCallback(nil)
	cb.RemovedFile(mustPath(t, "gone.txt"))
	cb.ModifiedFile(mustPath(t, "changed.txt"))
	cb.AddedFile(mustPath(t, "new.txt"))

	paths := cb.StealUncleanPaths()
	names := make([]string, 0, len(paths))
	for _, p := range paths {
		names = append(names, p.String())
	}
	assert.ElementsMatch(t, []string{"gone.txt", "changed.txt"}, names)

	assert.Empty(t, cb.StealUncleanPaths())
}
