package mount

import (
	"context"
	"os"

	"github.com/scmfs/scmfs/internal/channel"
	scmfserrors "github.com/scmfs/scmfs/internal/errors"
	"github.com/scmfs/scmfs/internal/inode"
	"github.com/scmfs/scmfs/internal/objectstore"
)

// ProgressCallback reports human-readable milestones during Initialize, the
// way EdenMount's initialize() reports progress back to the daemon's mount
// list while a large checkout is still loading.
type ProgressCallback func(message string)

func noopProgress(string) {}

// Initialize brings the mount from UNINITIALIZED to INITIALIZED: it loads
// the inode registry (fresh, or restored from a takeover snapshot handed
// down by a predecessor process), then records the checkout root that
// StartChannel will begin serving once attached. Any failure here is
// terminal for this Mount; the caller must Destroy it and create a new one.
func (m *Mount) Initialize(ctx context.Context, progress ProgressCallback, takeoverSnapshot []byte) (err error) {
	if progress == nil {
		progress = noopProgress
	}
	if err := m.state.RequireCAS("mount", StateUninitialized, StateInitializing); err != nil {
		return err
	}

	defer func() {
		if err != nil {
			if cerr := m.state.RequireCAS("mount", StateInitializing, StateInitError); cerr != nil {
				m.Logger.Warn("mount: failed to record init error state", map[string]interface{}{"error": cerr.Error()})
			}
		}
	}()

	if err := m.Fault.Check(ctx, "initialize", m.Config.MountPath); err != nil {
		return err
	}

	if len(takeoverSnapshot) > 0 {
		progress("restoring inode registry from takeover snapshot")
		restored, loadErr := inode.LoadSerializedInodeMap(takeoverSnapshot)
		if loadErr != nil {
			return loadErr
		}
		m.Inodes = restored
	}

	progress("loading checkout root")
	if _, err := m.Store.GetRootTree(ctx, m.CurrentParent(), objectstore.NewFetchContext()); err != nil {
		return err
	}

	progress("setting up .eden control directory")
	if err := m.SetupDotEden(ctx); err != nil {
		return err
	}

	if err := m.state.RequireCAS("mount", StateInitializing, StateInitialized); err != nil {
		return err
	}
	m.reportState(StateInitialized)
	progress("initialized")
	return nil
}

// StartChannel performs the ChannelAttach sub-protocol for Config.Protocol
// and starts serving, per spec.md §4.4. It returns once the kernel side has
// accepted the mount (or failed to), not once serving stops; callers that
// need to know when serving ends should watch CompletionPromise.
func (m *Mount) StartChannel(ctx context.Context, readOnly bool) (err error) {
	if err := m.state.RequireCAS("mount", StateInitialized, StateStarting); err != nil {
		return err
	}

	if mkErr := os.MkdirAll(m.Config.MountPath, 0755); mkErr != nil {
		m.Logger.Warn("mount: failed to pre-create mount path", map[string]interface{}{"error": mkErr.Error()})
	}

	mountPromise := m.handshake.ArmMount()

	result, attachErr := m.attachChannel(ctx, readOnly)
	if attachErr != nil {
		mountPromise.Set(attachErr)
		if cerr := m.state.RequireCAS("mount", StateStarting, StateChannelError); cerr != nil {
			m.Logger.Warn("mount: failed to record channel error state", map[string]interface{}{"error": cerr.Error()})
		}
		m.reportState(StateChannelError)
		if m.Metrics != nil {
			m.Metrics.RecordChannelAttach(m.protocolLabel(), false)
		}
		return attachErr
	}

	m.setChannel(result.chn)
	m.deviceFD.Store(int64(result.deviceFD))
	m.kernelSideValid.Store(result.kernelSideValid)

	if cerr := m.state.RequireCAS("mount", StateStarting, StateRunning); cerr != nil {
		_ = result.chn.Detach(ctx)
		mountPromise.Set(cerr)
		return cerr
	}

	m.reportState(StateRunning)
	if m.Metrics != nil {
		m.Metrics.RecordChannelAttach(m.protocolLabel(), true)
	}

	mountPromise.Set(nil)
	go m.watchChannel(result.chn)
	return nil
}

// watchChannel waits for the attached channel to stop, whether from a clean
// Detach or an external unmount run by hand, and resolves CompletionPromise
// so anything waiting on the mount's lifetime (Shutdown, a daemon-level
// supervisor) observes it.
func (m *Mount) watchChannel(chn channel.Channel) {
	<-chn.Done()
	m.completionPromise.Set(chn.StopError())
}

// Unmount requests the attached channel detach without changing the
// mount's lifecycle state, matching EdenMount::unmount()'s role as a
// stand-alone operation distinct from shutdown: a mount can be re-attached
// afterward by calling StartChannel again.
//
// A call that arrives while an unmount is already in flight returns the
// existing attempt's promise instead of arming a second one, so two
// concurrent Unmount callers can't both invoke Detach. A call that arrives
// while StartChannel is still attaching waits for that handshake to finish
// before deciding whether there is anything to detach at all, the way
// EdenMount::unmount() waits on channel_mount_promise before touching the
// channel.
func (m *Mount) Unmount(ctx context.Context) error {
	unmountPromise, alreadyArmed := m.handshake.TryArmUnmount()
	if alreadyArmed {
		result, waitErr := unmountPromise.Wait(ctx)
		if waitErr != nil {
			return waitErr
		}
		return result
	}

	if _, err := m.handshake.WaitMount(ctx); err != nil {
		if err == channel.ErrMountNeverStarted {
			unmountPromise.Set(nil)
			return nil
		}
		unmountPromise.Set(err)
		return err
	}

	chn := m.Channel()
	if chn == nil {
		unmountPromise.Set(nil)
		return nil
	}

	err := chn.Detach(ctx)
	unmountPromise.Set(err)
	return err
}

// shutdownSources is every non-terminal state shutdown() may be called
// from, per spec.md §4.1: a mount can be told to shut down whether it's
// happily running, stuck in an error state, or (if allowNotStarted) never
// got past construction.
func shutdownSources(allowNotStarted bool) []State {
	sources := []State{StateRunning, StateChannelError, StateInitError, StateInitialized, StateStarting}
	if allowNotStarted {
		sources = append(sources, StateUninitialized, StateInitializing)
	}
	return sources
}

// Shutdown detaches the channel (if any), transitions to SHUT_DOWN, and
// optionally assembles a TakeoverData payload for a successor process. When
// doTakeover is false the channel is unmounted from the kernel as part of
// stopping; when true the FUSE device (if the protocol is FUSE and the
// kernel side is still valid) is preserved for the successor instead.
func (m *Mount) Shutdown(ctx context.Context, doTakeover bool, allowNotStarted bool) (channel.TakeoverData, error) {
	if !m.state.TransitionAny(shutdownSources(allowNotStarted), StateShuttingDown) {
		current := m.state.Load()
		if current == StateShuttingDown || current == StateShutDown || current == StateDestroying {
			return channel.TakeoverData{}, scmfserrors.NewError(scmfserrors.ErrCodeShutdownInProgress,
				"shutdown already in progress or complete").
				WithComponent("mount").WithOperation("Shutdown").
				WithDetail("state", current.String())
		}
		return channel.TakeoverData{}, scmfserrors.NewIllegalStateTransition("mount", "a shutdown-eligible state", current.String())
	}

	chn := m.Channel()
	var bindMounts []string
	kind := channel.KindNone
	deviceFD := -1
	kernelSideValid := false

	if chn != nil {
		kind = chn.Kind()
		deviceFD = int(m.deviceFD.Load())
		kernelSideValid = m.kernelSideValid.Load()

		if !doTakeover {
			if err := chn.Detach(ctx); err != nil {
				m.Logger.Warn("mount: channel detach failed during shutdown", map[string]interface{}{"error": err.Error()})
			}
			kernelSideValid = false
		}
	}

	var payload channel.TakeoverData
	if doTakeover {
		serialized, err := m.Inodes.Serialize()
		if err != nil {
			return channel.TakeoverData{}, err
		}
		payload = channel.BuildTakeoverPayload(m.Config.MountPath, m.Config.ClientDir, bindMounts, kind, deviceFD, kernelSideValid, nil).
			WithSerializedInodeMap(serialized)
	}

	if err := m.state.RequireCAS("mount", StateShuttingDown, StateShutDown); err != nil {
		return payload, err
	}
	m.reportState(StateShutDown)

	m.checkSelfDestroy()
	return payload, nil
}

// protocolLabel returns the mount's configured protocol as a metrics label.
func (m *Mount) protocolLabel() string {
	switch m.Config.Protocol {
	case ProtocolFUSE:
		return "fuse"
	case ProtocolNFS:
		return "nfs"
	case ProtocolProjection:
		return "projection"
	default:
		return "unknown"
	}
}

// checkSelfDestroy implements the DESTROYING absorbing-sink rule: if
// Destroy() was requested while shutdown was still in flight, reaching
// SHUT_DOWN immediately triggers the same cleanup Destroy() itself performs,
// rather than leaving the mount parked at SHUT_DOWN waiting for a second
// explicit call.
func (m *Mount) checkSelfDestroy() {
	if m.destroyRequested.Load() {
		m.state.Exchange(StateDestroying)
		m.reportState(StateDestroying)
		m.finalizeDestroy()
	}
}

// Destroy tears down the mount's remaining in-memory state. If shutdown has
// already completed (or the mount never started), destruction happens
// immediately. From every other pre-terminal state it drives the shutdown
// itself rather than waiting for a separate caller to invoke Shutdown,
// matching EdenMount::destroy() calling shutdownImpl() directly from these
// states instead of only flagging intent. A shutdown already in flight is
// left alone; checkSelfDestroy finishes the job once it reaches SHUT_DOWN,
// per the DESTROYING absorbing-sink rule spec.md §3 describes.
func (m *Mount) Destroy(ctx context.Context) error {
	m.destroyRequested.Store(true)

	switch m.state.Load() {
	case StateShutDown, StateUninitialized, StateInitError:
		m.state.Exchange(StateDestroying)
		m.reportState(StateDestroying)
		m.finalizeDestroy()
	case StateShuttingDown, StateDestroying:
		// A shutdown is already running, or another Destroy call already
		// claimed this mount; checkSelfDestroy finishes the job once that
		// shutdown reaches SHUT_DOWN.
	default:
		// Initializing, Initialized, Starting, Running, or ChannelError:
		// no one else is going to call Shutdown, so do it now.
		if _, err := m.Shutdown(ctx, false, true); err != nil {
			return err
		}
	}
	return nil
}

func (m *Mount) finalizeDestroy() {
	m.Journal.CancelAllSubscribers()
}
