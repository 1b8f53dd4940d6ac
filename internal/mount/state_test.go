package mount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAtomicState_CAS_LegalTransition(t *testing.T) {
	s := NewAtomicState()
	assert.True(t, s.CAS(StateUninitialized, StateInitializing))
	assert.Equal(t, StateInitializing, s.Load())
}

func TestAtomicState_CAS_IllegalTransition(t *testing.T) {
	s := NewAtomicState()
	assert.False(t, s.CAS(StateUninitialized, StateRunning))
	assert.Equal(t, StateUninitialized, s.Load())
}

func TestAtomicState_CAS_WrongCurrentState(t *testing.T) {
	s := NewAtomicState()
	assert.True(t, s.CAS(StateUninitialized, StateInitializing))
	assert.False(t, s.CAS(StateUninitialized, StateInitializing))
}

func TestAtomicState_Exchange_ReachesDestroyingFromAnywhere(t *testing.T) {
	s := NewAtomicState()
	s.CAS(StateUninitialized, StateInitializing)
	s.CAS(StateInitializing, StateInitialized)
	s.CAS(StateInitialized, StateStarting)
	s.CAS(StateStarting, StateRunning)

	prev := s.Exchange(StateDestroying)
	assert.Equal(t, StateRunning, prev)
	assert.Equal(t, StateDestroying, s.Load())
}

func TestAtomicState_TransitionAny(t *testing.T) {
	s := NewAtomicState()
	s.CAS(StateUninitialized, StateInitializing)
	s.CAS(StateInitializing, StateInitialized)

	ok := s.TransitionAny([]State{StateRunning, StateInitialized, StateChannelError}, StateShuttingDown)
	assert.True(t, ok)
	assert.Equal(t, StateShuttingDown, s.Load())
}

func TestAtomicState_TransitionAny_NoneMatch(t *testing.T) {
	s := NewAtomicState()
	ok := s.TransitionAny([]State{StateRunning, StateInitialized}, StateShuttingDown)
	assert.False(t, ok)
	assert.Equal(t, StateUninitialized, s.Load())
}

func TestAtomicState_RequireCAS_ReturnsIllegalStateTransitionError(t *testing.T) {
	s := NewAtomicState()
	err := s.RequireCAS("mount", StateInitialized, StateRunning)
	assert.Error(t, err)
}

func TestAtomicState_RequireCAS_Success(t *testing.T) {
	s := NewAtomicState()
	assert.NoError(t, s.RequireCAS("mount", StateUninitialized, StateInitializing))
}

func TestState_String_MatchesLegacyFuseErrorName(t *testing.T) {
	assert.Equal(t, "FUSE_ERROR", StateChannelError.String())
	assert.Equal(t, "UNINITIALIZED", StateUninitialized.String())
	assert.Equal(t, "SHUT_DOWN", StateShutDown.String())
}

func TestState_String_Unknown(t *testing.T) {
	assert.Equal(t, "UNKNOWN", State(99).String())
}
