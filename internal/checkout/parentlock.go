package checkout

import (
	"sync/atomic"
	"time"

	"github.com/scmfs/scmfs/internal/objectstore"
)

// ParentLock guards the mount's current parent commit id. It behaves like a
// mutex sized for exactly one holder, but acquisition takes a timeout
// instead of blocking forever: a second checkout that can't get the lock
// within the window should fail fast with CHECKOUT_IN_PROGRESS rather than
// queue up behind the first.
type ParentLock struct {
	sem     chan struct{}
	current objectstore.ObjectID

	heldSince atomic.Int64 // unix nanos; zero means not held
}

// NewParentLock creates a lock initialized to the mount's current parent.
func NewParentLock(initial objectstore.ObjectID) *ParentLock {
	l := &ParentLock{sem: make(chan struct{}, 1)}
	l.sem <- struct{}{}
	l.current = initial
	return l
}

// Release, when called, hands the lock back.
type Release func()

// Acquire blocks up to timeout for exclusive access, returning the parent
// id observed at acquisition time and a Release function. ok is false if
// the timeout elapsed first.
func (l *ParentLock) Acquire(timeout time.Duration) (release Release, oldParent objectstore.ObjectID, ok bool) {
	select {
	case <-l.sem:
	case <-time.After(timeout):
		return nil, objectstore.ObjectID{}, false
	}

	l.heldSince.Store(time.Now().UnixNano())
	current := l.current
	released := false
	return func() {
		if released {
			return
		}
		released = true
		l.heldSince.Store(0)
		l.sem <- struct{}{}
	}, current, true
}

// HeldSince reports whether the lock is currently held and, if so, since
// when — the backing state for health.ParentLockStalenessCheck.
func (l *ParentLock) HeldSince() (held bool, since time.Time) {
	nanos := l.heldSince.Load()
	if nanos == 0 {
		return false, time.Time{}
	}
	return true, time.Unix(0, nanos)
}

// Set updates the parent id. Callers must hold the lock (have an
// un-released Release from Acquire) when calling this.
func (l *ParentLock) Set(id objectstore.ObjectID) {
	l.current = id
}

// Current returns the parent id without acquiring the lock, for read-only
// callers like status reporting that can tolerate a benign race with an
// in-flight checkout.
func (l *ParentLock) Current() objectstore.ObjectID {
	return l.current
}
