package flexsched

import (
	"sync/atomic"
)

// loopState represents the current state of a Loop.
//
// State machine:
//
//	stateAwake (0)   → stateRunning     [Run]
//	stateAwake (0)   → stateTerminated  [Stop/Close before Run]
//	stateRunning     → stateStopping    [Stop/Close/context cancellation]
//	stateStopping    → stateTerminated  [run loop exit]
//	stateTerminated  → (terminal)
//
// Transition rules:
//   - Use tryTransition (CAS) for states another goroutine may be racing to
//     leave (Awake, Running).
//   - Use store only for the irreversible terminal state.
type loopState uint32

const (
	// stateAwake indicates the loop has been created but not started.
	// Work submitted now runs once the loop starts.
	stateAwake loopState = iota
	// stateRunning indicates Run is active and processing work.
	stateRunning
	// stateStopping indicates stop has been requested but the run loop has
	// not yet exited.
	stateStopping
	// stateTerminated indicates the loop has fully shut down.
	stateTerminated
)

// String returns a human-readable representation of the state.
func (s loopState) String() string {
	switch s {
	case stateAwake:
		return "Awake"
	case stateRunning:
		return "Running"
	case stateStopping:
		return "Stopping"
	case stateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// atomicState is a lock-free state machine over loopState values.
type atomicState struct {
	v atomic.Uint32
}

// load returns the current state atomically.
func (s *atomicState) load() loopState {
	return loopState(s.v.Load())
}

// store atomically stores a new state. Only valid for irreversible states.
func (s *atomicState) store(state loopState) {
	s.v.Store(uint32(state))
}

// tryTransition attempts to atomically transition from one state to another.
// Returns true if the transition was applied by this call.
func (s *atomicState) tryTransition(from, to loopState) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// canAcceptWork reports whether submissions should be admitted. Work is
// accepted before the loop starts and while it runs; a stopping loop no
// longer drains its queues, so admission there would be silent loss.
func (s *atomicState) canAcceptWork() bool {
	state := s.load()
	return state == stateAwake || state == stateRunning
}
