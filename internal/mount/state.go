package mount

import (
	"sync/atomic"

	scmfserrors "github.com/scmfs/scmfs/internal/errors"
)

// State is one of the mount's legal lifecycle states, held as an atomic
// CAS-only variable per spec.md §3/§5. An illegal transition is a
// programmer error rather than an expected runtime failure.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateInitialized
	StateStarting
	StateRunning
	StateInitError
	// StateChannelError is spelled FUSE_ERROR in the original naming;
	// spec.md §9 calls it a legacy name kept for continuity ("channel
	// attach error" for FUSE, NFS, or projection alike).
	StateChannelError
	StateShuttingDown
	StateShutDown
	StateDestroying
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "UNINITIALIZED"
	case StateInitializing:
		return "INITIALIZING"
	case StateInitialized:
		return "INITIALIZED"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateInitError:
		return "INIT_ERROR"
	case StateChannelError:
		return "FUSE_ERROR"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateShutDown:
		return "SHUT_DOWN"
	case StateDestroying:
		return "DESTROYING"
	default:
		return "UNKNOWN"
	}
}

// legalTransitions enumerates every edge the diagram in spec.md §3 draws.
// DESTROYING is reachable from every non-terminal state (an atomic exchange,
// not a CAS against a specific expected state) and is a sink except for the
// SHUT_DOWN self-delete case handled by the orchestrator, not this table.
var legalTransitions = map[State]map[State]bool{
	StateUninitialized: {StateInitializing: true, StateShuttingDown: true, StateDestroying: true},
	StateInitializing:  {StateInitialized: true, StateInitError: true, StateShuttingDown: true, StateDestroying: true},
	StateInitialized:   {StateStarting: true, StateShuttingDown: true, StateDestroying: true},
	StateStarting:      {StateRunning: true, StateChannelError: true, StateShuttingDown: true, StateDestroying: true},
	StateRunning:       {StateShuttingDown: true, StateDestroying: true},
	StateInitError:     {StateShuttingDown: true, StateDestroying: true},
	StateChannelError:  {StateShuttingDown: true, StateDestroying: true},
	StateShuttingDown:  {StateShutDown: true},
	StateShutDown:      {StateDestroying: true},
	StateDestroying:    {},
}

// AtomicState is the mount's CAS-only state variable.
type AtomicState struct {
	v int32
}

// NewAtomicState creates a state variable starting at UNINITIALIZED.
func NewAtomicState() *AtomicState {
	return &AtomicState{v: int32(StateUninitialized)}
}

// Load reads the current state without synchronizing against transitions.
func (a *AtomicState) Load() State {
	return State(atomic.LoadInt32(&a.v))
}

// CAS attempts from -> to, succeeding only if the table in this file
// permits that edge and the variable is currently at from.
func (a *AtomicState) CAS(from, to State) bool {
	if !legalTransitions[from][to] {
		return false
	}
	return atomic.CompareAndSwapInt32(&a.v, int32(from), int32(to))
}

// Exchange sets the state unconditionally and returns the previous value,
// used only for DESTROYING, which is reachable from anywhere.
func (a *AtomicState) Exchange(to State) State {
	return State(atomic.SwapInt32(&a.v, int32(to)))
}

// TransitionAny attempts a CAS from any of the given candidate states to
// to, in order, succeeding on the first legal match. Used by shutdown,
// which accepts a set of source states per spec.md §4.1.
func (a *AtomicState) TransitionAny(candidates []State, to State) bool {
	for _, from := range candidates {
		if a.CAS(from, to) {
			return true
		}
	}
	return false
}

// RequireCAS is CAS wrapped to return a structured IllegalStateTransition
// error naming the actually-observed state, for callers that must fail
// loudly rather than silently no-op.
func (a *AtomicState) RequireCAS(component string, from, to State) error {
	if a.CAS(from, to) {
		return nil
	}
	return scmfserrors.NewIllegalStateTransition(component, from.String(), a.Load().String())
}
