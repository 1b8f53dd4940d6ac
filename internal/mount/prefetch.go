package mount

import (
	"context"
	"sync"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// defaultMaxConcurrentPrefetches bounds how many background tree fetches a
// mount will run at once, the same role the teacher's
// PredictiveCacheConfig.MaxConcurrentFetch plays for its prefetch worker
// pool. A mount runs prefetches as one-shot goroutines rather than a fixed
// worker pool, so the bound is enforced as a lease counter instead of a
// buffered channel.
const defaultMaxConcurrentPrefetches = 4

// accessTracker stands in for the teacher's AccessPredictor: instead of
// predicting the next byte range of a key from AccessPredictor.RecordAccess
// / predictSequential, it predicts which sibling entries of a
// just-looked-up directory are worth prefetching next, on the assumption
// that checkout and readdir traffic visits a directory's children roughly
// in listing order.
type accessTracker struct {
	mu   sync.Mutex
	seen map[objectstore.ObjectID]map[string]bool
}

func newAccessTracker() *accessTracker {
	return &accessTracker{seen: make(map[objectstore.ObjectID]map[string]bool)}
}

// recordLookup notes that name was looked up under dirTreeID.
func (a *accessTracker) recordLookup(dirTreeID objectstore.ObjectID, name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	names, ok := a.seen[dirTreeID]
	if !ok {
		names = make(map[string]bool)
		a.seen[dirTreeID] = names
	}
	names[name] = true
}

// predictSiblings returns tree's entries that recordLookup hasn't already
// seen under dirTreeID, the candidates PrefetchDirectory acts on.
func (a *accessTracker) predictSiblings(dirTreeID objectstore.ObjectID, tree *objectstore.Tree) []objectstore.TreeEntry {
	a.mu.Lock()
	seen := a.seen[dirTreeID]
	a.mu.Unlock()

	var candidates []objectstore.TreeEntry
	for _, e := range tree.Entries {
		if seen == nil || !seen[e.Name] {
			candidates = append(candidates, e)
		}
	}
	return candidates
}

// TryStartTreePrefetch attempts to acquire one of the mount's bounded
// prefetch leases for treeID. It reports false without side effects if the
// mount is already running as many concurrent prefetches as
// Config.MaxConcurrentPrefetches allows.
func (m *Mount) TryStartTreePrefetch(treeID objectstore.ObjectID) bool {
	for {
		cur := m.prefetchesRunning.Load()
		if cur >= m.maxPrefetches {
			return false
		}
		if m.prefetchesRunning.CompareAndSwap(cur, cur+1) {
			if m.Metrics != nil {
				m.Metrics.SetPrefetchesInFlight(int(cur + 1))
			}
			return true
		}
	}
}

// TreePrefetchFinished releases a lease acquired by TryStartTreePrefetch.
func (m *Mount) TreePrefetchFinished() {
	m.endPrefetch()
	if m.Metrics != nil {
		m.Metrics.SetPrefetchesInFlight(int(m.prefetchesRunning.Load()))
	}
}

// PrefetchDirectory records that name was looked up under a directory
// backed by tree, then fires off bounded background fetches for the
// sibling subtrees accessTracker predicts will be looked up next. Fetch
// failures are logged and otherwise ignored: prefetching is a latency
// optimization, never a correctness dependency.
func (m *Mount) PrefetchDirectory(ctx context.Context, tree *objectstore.Tree, name string) {
	if tree == nil {
		return
	}
	m.access.recordLookup(tree.ID, name)

	for _, entry := range m.access.predictSiblings(tree.ID, tree) {
		if entry.Type != objectstore.EntryDirectory {
			continue
		}
		if !m.TryStartTreePrefetch(entry.ID) {
			continue
		}
		go m.runTreePrefetch(ctx, entry.ID)
	}
}

func (m *Mount) runTreePrefetch(ctx context.Context, treeID objectstore.ObjectID) {
	defer m.TreePrefetchFinished()

	fc := objectstore.NewFetchContext()
	if _, err := m.Store.GetRootTree(ctx, treeID, fc); err != nil && m.Logger != nil {
		m.Logger.Debug("tree prefetch failed", map[string]interface{}{
			"tree_id": treeID.String(),
			"error":   err.Error(),
		})
	}
}
