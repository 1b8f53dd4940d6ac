package journal

import (
	"sync"
	"time"

	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/pathutil"
)

// Sequence identifies a journal entry's position in the log. Sequences are
// monotonically increasing and never reused, so a subscriber can resume
// from "everything after N" even if entries between were dropped by the
// retention limit.
type Sequence uint64

// EntryKind distinguishes the two events spec.md names for the journal.
type EntryKind int

const (
	KindHashUpdate EntryKind = iota
	KindUncleanPaths
)

// Entry is one journal record.
type Entry struct {
	Seq       Sequence
	Kind      EntryKind
	Timestamp time.Time

	// OldRootID and NewRootID record the checkout transition every entry
	// represents, whether or not it also carries an unclean-paths set.
	OldRootID objectstore.ObjectID
	NewRootID objectstore.ObjectID

	// Populated for KindUncleanPaths.
	UncleanPaths []pathutil.RelativePath
}

// SubscriberID identifies a registered subscription.
type SubscriberID uint64

type subscriber struct {
	id       SubscriberID
	notifyCh chan Entry
	cancel   chan struct{}
}

// Journal is the mount's append-only change log.
type Journal struct {
	mu          sync.Mutex
	entries     []Entry
	nextSeq     uint64
	maxEntries  int
	subscribers map[SubscriberID]*subscriber
	nextSubID   uint64
}

// New creates a journal that retains at most maxEntries records, discarding
// the oldest once the limit is reached. maxEntries <= 0 means unbounded.
func New(maxEntries int) *Journal {
	return &Journal{
		maxEntries:  maxEntries,
		subscribers: make(map[SubscriberID]*subscriber),
	}
}

// RecordHashUpdate appends an entry noting that the mount's checked-out
// root moved from oldRootID to newRootID, the effect every successful
// checkout has on the journal.
func (j *Journal) RecordHashUpdate(oldRootID, newRootID objectstore.ObjectID) Entry {
	return j.append(Entry{Kind: KindHashUpdate, OldRootID: oldRootID, NewRootID: newRootID})
}

// RecordUncleanPaths appends an entry noting both the checkout's root
// transition and the paths it could not apply cleanly (a conflicting local
// modification, an I/O error mid-apply), so a client can be warned to
// inspect them even though the checkout as a whole reported success. A
// checkout records this instead of RecordHashUpdate when it has any unclean
// paths, never both, so the journal gets exactly one entry per checkout.
func (j *Journal) RecordUncleanPaths(oldRootID, newRootID objectstore.ObjectID, paths []pathutil.RelativePath) Entry {
	cp := make([]pathutil.RelativePath, len(paths))
	copy(cp, paths)
	return j.append(Entry{Kind: KindUncleanPaths, OldRootID: oldRootID, NewRootID: newRootID, UncleanPaths: cp})
}

func (j *Journal) append(e Entry) Entry {
	j.mu.Lock()
	j.nextSeq++
	e.Seq = Sequence(j.nextSeq)
	e.Timestamp = time.Now()
	j.entries = append(j.entries, e)

	if j.maxEntries > 0 && len(j.entries) > j.maxEntries {
		j.entries = j.entries[len(j.entries)-j.maxEntries:]
	}

	subs := make([]*subscriber, 0, len(j.subscribers))
	for _, s := range j.subscribers {
		subs = append(subs, s)
	}
	j.mu.Unlock()

	for _, s := range subs {
		select {
		case s.notifyCh <- e:
		case <-s.cancel:
		default:
			// Slow subscriber: drop rather than block the journal writer.
		}
	}

	return e
}

// LatestSequence returns the sequence number of the most recently appended
// entry, or 0 if the journal is empty.
func (j *Journal) LatestSequence() Sequence {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Sequence(j.nextSeq)
}

// EntriesSince returns every retained entry with a sequence greater than
// since. Entries older than the retention window are simply absent; callers
// that need a guarantee of continuity should compare against
// LatestSequence before relying on the result.
func (j *Journal) EntriesSince(since Sequence) []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	result := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		if e.Seq > since {
			result = append(result, e)
		}
	}
	return result
}

// Subscribe registers a subscriber that receives every entry appended after
// this call, delivered on the returned channel. The channel is closed when
// the subscription is canceled, either explicitly via Unsubscribe or by
// CancelAllSubscribers.
func (j *Journal) Subscribe() (SubscriberID, <-chan Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.nextSubID++
	s := &subscriber{
		id:       SubscriberID(j.nextSubID),
		notifyCh: make(chan Entry, 64),
		cancel:   make(chan struct{}),
	}
	j.subscribers[s.id] = s
	return s.id, s.notifyCh
}

// Unsubscribe cancels a single subscription.
func (j *Journal) Unsubscribe(id SubscriberID) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cancelLocked(id)
}

func (j *Journal) cancelLocked(id SubscriberID) {
	s, ok := j.subscribers[id]
	if !ok {
		return
	}
	delete(j.subscribers, id)
	close(s.cancel)
	close(s.notifyCh)
}

// CancelAllSubscribers cancels every outstanding subscription. A mount
// calls this during shutdown so watchers waiting on the journal's channel
// unblock instead of leaking.
func (j *Journal) CancelAllSubscribers() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for id := range j.subscribers {
		j.cancelLocked(id)
	}
}

// SubscriberCount reports how many subscriptions are currently active.
func (j *Journal) SubscriberCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.subscribers)
}
