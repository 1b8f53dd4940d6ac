package checkout

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scmfs/scmfs/internal/fault"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/journal"
	"github.com/scmfs/scmfs/internal/metrics"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/overlay"
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

func newTestEngine(t *testing.T, store *fakeStore, initialParent objectstore.ObjectID) *Engine {
	t.Helper()
	ov := overlay.NewFileOverlay(false)
	require.NoError(t, ov.Initialize(context.Background(), t.TempDir(), nil))
	t.Cleanup(func() { _ = ov.Close() })

	return NewEngine(store, inode.NewMap(initialParent), ov, journal.New(64), fault.NewInjector(), nil, t.TempDir(), initialParent)
}

func TestEngine_Checkout_NoConflicts(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{10}},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{11}},
			{Name: "b.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{12}},
		}},
	}}

	e := newTestEngine(t, store, fromID)

	result, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, toID, e.CurrentParent())

	_, ok := e.Inodes.LookupChild(inode.Root, "b.txt")
	assert.True(t, ok)

	assert.Equal(t, journal.Sequence(1), e.Journal.LatestSequence())
}

func TestEngine_Checkout_MaterializedConflict(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{10}},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{}},
	}}

	e := newTestEngine(t, store, fromID)
	child, ok := e.Inodes.LookupChild(inode.Root, "a.txt")
	require.False(t, ok)
	child = e.Inodes.Create(inode.Root, "a.txt", inode.KindFile, objectstore.ObjectID{10})
	e.Inodes.MarkMaterialized(child.Number())

	result, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ConflictModifiedRemoved, result.Conflicts[0].Type)

	// A locally modified entry survives a non-forced checkout.
	_, stillThere := e.Inodes.LookupChild(inode.Root, "a.txt")
	assert.True(t, stillThere)
}

func TestEngine_Checkout_ForceOverridesConflicts(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{10}},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{}},
	}}

	e := newTestEngine(t, store, fromID)
	child := e.Inodes.Create(inode.Root, "a.txt", inode.KindFile, objectstore.ObjectID{10})
	e.Inodes.MarkMaterialized(child.Number())

	result, err := e.Checkout(context.Background(), toID, ModeForce)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)

	_, stillThere := e.Inodes.LookupChild(inode.Root, "a.txt")
	assert.False(t, stillThere)
}

func TestEngine_Checkout_LocallyModifiedFileNotTouchedByCheckoutIsUnclean(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	bID := objectstore.ObjectID{20}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "b.txt", Type: objectstore.EntryFile, ID: bID},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{
			{Name: "b.txt", Type: objectstore.EntryFile, ID: bID},
		}},
	}}

	e := newTestEngine(t, store, fromID)
	child := e.Inodes.Create(inode.Root, "b.txt", inode.KindFile, bID)
	e.Inodes.MarkMaterialized(child.Number())

	result, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts, "b.txt is unchanged between fromTree and toTree, so applyTree leaves it alone")

	assert.Equal(t, journal.Sequence(1), e.Journal.LatestSequence(),
		"exactly one journal entry per checkout, an unclean-paths entry rather than a plain hash-update")
	entries := e.Journal.EntriesSince(0)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.KindUncleanPaths, entries[0].Kind)
	assert.Equal(t, fromID, entries[0].OldRootID)
	assert.Equal(t, toID, entries[0].NewRootID)
	require.Len(t, entries[0].UncleanPaths, 1)
	assert.Equal(t, "b.txt", entries[0].UncleanPaths[0].String())
}

func TestEngine_Checkout_CleanCheckoutRecordsHashUpdateNotUnclean(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{10}},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{
			{Name: "a.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{11}},
		}},
	}}

	e := newTestEngine(t, store, fromID)

	_, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)

	entries := e.Journal.EntriesSince(0)
	require.Len(t, entries, 1)
	assert.Equal(t, journal.KindHashUpdate, entries[0].Kind)
	assert.Empty(t, entries[0].UncleanPaths)
}

func TestEngine_Checkout_DryRunSkipsJournal(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID},
		toID:   {ID: toID, Entries: []objectstore.TreeEntry{{Name: "new.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{9}}}},
	}}

	e := newTestEngine(t, store, fromID)
	result, err := e.Checkout(context.Background(), toID, ModeDryRun)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, 0, e.Journal.SubscriberCount())
	assert.Equal(t, journal.Sequence(0), e.Journal.LatestSequence())
	assert.Equal(t, fromID, e.CurrentParent(), "dry run must not move the parent commit")
	_, ok := e.Inodes.LookupChild(inode.Root, "new.txt")
	assert.False(t, ok, "dry run must not materialize entries it only would have added")
}

func TestEngine_Checkout_DryRunLeavesConflictingEditUntouched(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID, Entries: []objectstore.TreeEntry{
			{Name: "b.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{10}},
		}},
		toID: {ID: toID, Entries: []objectstore.TreeEntry{
			{Name: "b.txt", Type: objectstore.EntryFile, ID: objectstore.ObjectID{11}},
		}},
	}}

	e := newTestEngine(t, store, fromID)
	b := e.Inodes.Create(inode.Root, "b.txt", inode.KindFile, objectstore.ObjectID{10})
	e.Inodes.MarkMaterialized(b.Number())

	result, err := e.Checkout(context.Background(), toID, ModeDryRun)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ConflictModifiedRemoved, result.Conflicts[0].Type)
	assert.Equal(t, fromID, e.CurrentParent(), "dry run must not move the parent commit")

	after, ok := e.Inodes.LookupChild(inode.Root, "b.txt")
	require.True(t, ok)
	assert.Equal(t, objectstore.ObjectID{10}, after.BackingID(), "dry run must not repoint the existing inode's backing id")
}

func TestEngine_Checkout_FaultInjectionAbortsBeforeApply(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID},
		toID:   {ID: toID},
	}}

	e := newTestEngine(t, store, fromID)
	e.Fault.Enable()
	e.Fault.InjectError("checkout", assert.AnError)

	_, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.Error(t, err)
	assert.Equal(t, fromID, e.CurrentParent())
}

func TestEngine_SetPathObjectId_CreatesIntermediateDirs(t *testing.T) {
	root := objectstore.ObjectID{1}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{root: {ID: root}}}
	e := newTestEngine(t, store, root)

	path, err := pathutil.NewRelativePath("nested/dir/file.txt")
	require.NoError(t, err)

	_, err = e.SetPathObjectId(context.Background(), path, objectstore.ObjectID{5}, objectstore.EntryFile)
	require.NoError(t, err)

	nested, ok := e.Inodes.LookupChild(inode.Root, "nested")
	require.True(t, ok)
	require.Equal(t, inode.KindTree, nested.Kind())

	dir, ok := e.Inodes.LookupChild(nested.Number(), "dir")
	require.True(t, ok)

	file, ok := e.Inodes.LookupChild(dir.Number(), "file.txt")
	require.True(t, ok)
	assert.Equal(t, objectstore.ObjectID{5}, file.BackingID())
}

func TestEngine_Checkout_RecordsMetricsWhenAttached(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID},
		toID:   {ID: toID},
	}}
	e := newTestEngine(t, store, fromID)

	collector, err := metrics.NewCollector(&metrics.Config{Enabled: true, Namespace: "test_checkout"})
	require.NoError(t, err)
	e.Metrics = collector

	_, err = e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)

	stats := collector.Snapshot()
	require.Contains(t, stats, string(ModeNormal))
	assert.Equal(t, int64(1), stats[string(ModeNormal)].Count)
	assert.Zero(t, stats[string(ModeNormal)].Failures)
}

func TestEngine_Checkout_MetricsNilIsSafe(t *testing.T) {
	fromID := objectstore.ObjectID{1}
	toID := objectstore.ObjectID{2}
	store := &fakeStore{trees: map[objectstore.ObjectID]*objectstore.Tree{
		fromID: {ID: fromID},
		toID:   {ID: toID},
	}}
	e := newTestEngine(t, store, fromID)
	require.Nil(t, e.Metrics)

	_, err := e.Checkout(context.Background(), toID, ModeNormal)
	require.NoError(t, err)
}
