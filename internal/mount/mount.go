// Package mount implements the top-level Mount aggregate: the lifecycle
// state machine, checkout/diff entry points, channel attach/detach
// sequencing, and the .eden control-directory setup that together turn the
// external collaborators (object store, overlay, inode map, journal,
// channel, checkout engine) into one coherent mounted filesystem.
package mount

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scmfs/scmfs/internal/channel"
	"github.com/scmfs/scmfs/internal/checkout"
	"github.com/scmfs/scmfs/internal/fault"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/journal"
	"github.com/scmfs/scmfs/internal/metrics"
	"github.com/scmfs/scmfs/internal/objectstore"
	"github.com/scmfs/scmfs/internal/overlay"
	"github.com/scmfs/scmfs/internal/privhelper"
	"github.com/scmfs/scmfs/internal/telemetry"
)

// Protocol selects which kernel-channel driver a mount attaches with.
type Protocol int

const (
	ProtocolFUSE Protocol = iota
	ProtocolNFS
	ProtocolProjection
)

// Config is the mount's immutable checkout configuration, fixed for the
// lifetime of the Mount per spec.md §3.
type Config struct {
	MountPath       string
	ClientDir       string
	CaseSensitive   bool
	RequireUTF8     bool
	OverlayPersists bool
	Protocol        Protocol
	ReadOnly        bool

	// MaxConcurrentPrefetches bounds TryStartTreePrefetch's lease counter.
	// Zero means defaultMaxConcurrentPrefetches.
	MaxConcurrentPrefetches int64
}

// Owner is the (uid, gid) pair a mount was created on behalf of.
type Owner struct {
	UID uint32
	GID uint32
}

// Mount is the top-level aggregate spec.md §3 describes: one per checked-out
// working copy, owning the state machine and every external collaborator
// handle needed to service kernel requests, checkouts, and diffs.
type Mount struct {
	Config Config
	Owner  Owner

	Store   objectstore.Store
	Overlay overlay.Overlay
	Inodes  *inode.Map
	Journal *journal.Journal
	Fault   *fault.Injector
	Logger  *telemetry.Logger

	// PrivHelper performs the privileged mount/unmount syscalls ChannelAttach
	// needs. Defaults to a same-process privhelper.DevHelper if left nil.
	PrivHelper privhelper.Helper

	// Metrics, if set, receives lifecycle state, channel attach outcomes,
	// and prefetch gauge updates. Left nil, the mount runs uninstrumented.
	Metrics *metrics.Collector

	state      *AtomicState
	generation uint64

	checkoutEng *checkout.Engine

	handshake *channel.Handshake
	channelMu sync.Mutex
	chn       channel.Channel

	lastCheckoutTime  atomic.Int64 // unix nanos
	prefetchesRunning atomic.Int64
	maxPrefetches     int64
	access            *accessTracker

	// deviceFD and kernelSideValid are set by StartChannel and read back by
	// Shutdown when assembling a takeover payload.
	deviceFD         atomic.Int64
	kernelSideValid  atomic.Bool
	destroyRequested atomic.Bool

	dotEdenMu  sync.Mutex
	dotEdenNum inode.Number
	dotEdenSet bool

	// socketPath is the daemon's server socket path, surfaced by the .eden
	// "socket" control symlink. Set by the caller wiring the mount up,
	// since the daemon's listener is created outside this package.
	socketPath string

	completionPromise *channel.Promise[error]
}

// New wires a Mount from its external collaborators. initialParent is the
// tree id the mount is configured to check out on Initialize.
func New(cfg Config, owner Owner, store objectstore.Store, ov overlay.Overlay, inodes *inode.Map, jrn *journal.Journal, injector *fault.Injector, logger *telemetry.Logger, initialParent objectstore.ObjectID) *Mount {
	if injector == nil {
		injector = fault.NewInjector()
	}
	if logger == nil {
		logger, _ = telemetry.New(telemetry.DefaultConfig())
	}

	maxPrefetches := cfg.MaxConcurrentPrefetches
	if maxPrefetches == 0 {
		maxPrefetches = defaultMaxConcurrentPrefetches
	}

	m := &Mount{
		Config:            cfg,
		Owner:             owner,
		Store:             store,
		Overlay:           ov,
		Inodes:            inodes,
		Journal:           jrn,
		Fault:             injector,
		Logger:            logger,
		state:             NewAtomicState(),
		generation:        NextGeneration(),
		handshake:         channel.NewHandshake(),
		completionPromise: channel.NewPromise[error](),
		maxPrefetches:     maxPrefetches,
		access:            newAccessTracker(),
	}

	m.checkoutEng = checkout.NewEngine(store, inodes, ov, jrn, injector, logger, cfg.MountPath, initialParent)
	return m
}

// State returns the mount's current lifecycle state.
func (m *Mount) State() State { return m.state.Load() }

// Generation returns the mount's 64-bit generation number.
func (m *Mount) Generation() uint64 { return m.generation }

// CurrentParent returns the currently checked-out root tree id, delegating
// to the checkout engine, which is the sole owner of the ParentCommit lock.
func (m *Mount) CurrentParent() objectstore.ObjectID { return m.checkoutEng.CurrentParent() }

// Checkout moves the mount to targetRootID by delegating to the checkout
// engine, then records the completion time PrefetchLeaseCheck and
// LastCheckoutTime read back.
func (m *Mount) Checkout(ctx context.Context, targetRootID objectstore.ObjectID, mode checkout.Mode) (*checkout.Result, error) {
	result, err := m.checkoutEng.Checkout(ctx, targetRootID, mode)
	m.lastCheckoutTime.Store(time.Now().UnixNano())
	return result, err
}

// LastCheckoutTime returns the timestamp of the most recently completed
// checkout, or the zero time if none has run yet.
func (m *Mount) LastCheckoutTime() time.Time {
	nanos := m.lastCheckoutTime.Load()
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

// PrefetchesInProgress returns the number of tree prefetches currently
// running against this mount.
func (m *Mount) PrefetchesInProgress() int64 { return m.prefetchesRunning.Load() }

func (m *Mount) endPrefetch() { m.prefetchesRunning.Add(-1) }

// Channel returns the currently attached channel handle, or nil if none is
// attached (the "none" variant).
func (m *Mount) Channel() channel.Channel {
	m.channelMu.Lock()
	defer m.channelMu.Unlock()
	return m.chn
}

func (m *Mount) setChannel(c channel.Channel) {
	m.channelMu.Lock()
	m.chn = c
	m.channelMu.Unlock()
}

// CompletionPromise resolves once the attached channel terminates, whether
// by clean detach or an external unmount.
func (m *Mount) CompletionPromise() *channel.Promise[error] { return m.completionPromise }

// GetProcessAccessLog returns the per-pid operation counter of whichever
// channel is currently attached, or nil if none is. Every channel-facing
// operation dispatches through the Channel interface this way rather than
// type-switching on the concrete driver.
func (m *Mount) GetProcessAccessLog() *channel.AccessLog {
	c := m.Channel()
	if c == nil {
		return nil
	}
	return c.AccessLog()
}

// DotEdenInode returns the recorded .eden directory inode number, or
// (0, false) if DotEdenSetup hasn't recorded one yet.
func (m *Mount) DotEdenInode() (inode.Number, bool) {
	m.dotEdenMu.Lock()
	defer m.dotEdenMu.Unlock()
	return m.dotEdenNum, m.dotEdenSet
}

func (m *Mount) recordDotEdenInode(num inode.Number) {
	m.dotEdenMu.Lock()
	defer m.dotEdenMu.Unlock()
	m.dotEdenNum = num
	m.dotEdenSet = true
}

// SetSocketPath records the daemon's server socket path so DotEdenSetup can
// point the .eden/socket control symlink at it.
func (m *Mount) SetSocketPath(path string) { m.socketPath = path }

// SetMetrics attaches a metrics collector to the mount and its checkout
// engine. Called after New since the collector is usually constructed from
// daemon-wide configuration the mount itself doesn't own.
func (m *Mount) SetMetrics(c *metrics.Collector) {
	m.Metrics = c
	m.checkoutEng.Metrics = c
}

// reportState pushes the mount's current lifecycle state to the metrics
// gauge, if a collector is attached.
func (m *Mount) reportState(s State) {
	if m.Metrics != nil {
		m.Metrics.SetMountState(int(s))
	}
}

// helper returns m.PrivHelper, falling back to a same-process dev helper if
// the caller wiring the mount up never set one.
func (m *Mount) helper() privhelper.Helper {
	if m.PrivHelper == nil {
		return privhelper.NewDevHelper()
	}
	return m.PrivHelper
}

// IsDotEdenLocked reports whether the .eden directory has already been
// recorded, which per spec.md §4.5 locks it against further modification.
func (m *Mount) IsDotEdenLocked() bool {
	_, set := m.DotEdenInode()
	return set
}
