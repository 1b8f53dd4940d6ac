package channel

import (
	"context"
	"sync"
)

// Promise is a broadcast, set-once value: every waiter blocked on Wait
// unblocks the moment Set is called, and a Promise that has already fired
// silently ignores further Set calls rather than panicking or replacing
// its value. This is the single primitive both handshake promises are
// built from.
type Promise[T any] struct {
	mu   sync.Mutex
	done chan struct{}
	val  T
	set  bool
}

// NewPromise creates an unset promise.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{done: make(chan struct{})}
}

// Set fulfills the promise with val. Returns false if it was already set;
// the existing value is left untouched.
func (p *Promise[T]) Set(val T) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.set {
		return false
	}
	p.val = val
	p.set = true
	close(p.done)
	return true
}

// IsSet reports whether Set has been called, without blocking.
func (p *Promise[T]) IsSet() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.set
}

// Wait blocks until the promise is set or ctx is canceled.
func (p *Promise[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.val, nil
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Handshake is the mount's pair of once-set-never-cleared broadcast
// promises: channel_mount_promise, fulfilled once kernel attach succeeds
// or fails, and channel_unmount_promise, fulfilled once detach completes.
// "Started" predicates read presence under the handshake lock, matching
// the self-synchronising invariant spec.md §4.3 describes.
type Handshake struct {
	mu               sync.Mutex
	mountPromise     *Promise[error]
	unmountPromise   *Promise[error]
}

// NewHandshake creates a handshake with neither promise armed yet.
func NewHandshake() *Handshake {
	return &Handshake{}
}

// ArmMount creates the mount promise on first call and returns it;
// subsequent calls return the same instance, never a new one.
func (h *Handshake) ArmMount() *Promise[error] {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.mountPromise == nil {
		h.mountPromise = NewPromise[error]()
	}
	return h.mountPromise
}

// ArmUnmount creates the unmount promise on first call and returns it.
func (h *Handshake) ArmUnmount() *Promise[error] {
	promise, _ := h.TryArmUnmount()
	return promise
}

// TryArmUnmount is ArmUnmount plus whether an unmount was already in
// flight before this call. A caller that gets alreadyArmed == true must not
// repeat the work the first caller is doing (e.g. detaching the channel a
// second time) and should instead wait on the returned promise.
func (h *Handshake) TryArmUnmount() (promise *Promise[error], alreadyArmed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.unmountPromise != nil {
		return h.unmountPromise, true
	}
	h.unmountPromise = NewPromise[error]()
	return h.unmountPromise, false
}

// MountStarted reports whether start_channel has ever been invoked.
func (h *Handshake) MountStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.mountPromise != nil
}

// UnmountStarted reports whether unmount() has ever been invoked. Attach
// implementations poll this mid-handshake to detect cancellation: a
// channel attach that observes this go true after it has requested a
// device but before it finished should abort and fail with
// DeviceUnmountedDuringInitialization.
func (h *Handshake) UnmountStarted() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.unmountPromise != nil
}

// WaitMount blocks until the mount promise is fulfilled or ctx cancels.
// Returns an error if start_channel was never invoked.
func (h *Handshake) WaitMount(ctx context.Context) (error, error) {
	h.mu.Lock()
	p := h.mountPromise
	h.mu.Unlock()
	if p == nil {
		return nil, errNeverStarted
	}
	return p.Wait(ctx)
}

// ErrMountNeverStarted is returned by WaitMount when start_channel has
// never been invoked, so a caller like Unmount can tell "nothing to wait
// for" apart from a real wait failure.
var ErrMountNeverStarted = &neverStartedError{}

var errNeverStarted = ErrMountNeverStarted

type neverStartedError struct{}

func (*neverStartedError) Error() string { return "channel: mount was never started" }
