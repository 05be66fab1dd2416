package capture

import (
	"errors"
	"fmt"
	"sync"
)

// State is the lifecycle state of a capture session.
type State int

const (
	StateIdle State = iota
	StateRecording
	StateFinalizing
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRecording:
		return "recording"
	case StateFinalizing:
		return "finalizing"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

func (s State) IsTerminal() bool {
	return s == StateComplete || s == StateFailed
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

var ErrInvalidTransition = errors.New("invalid state transition")

// Lifecycle enforces the session state machine:
//
//	idle → recording → finalizing → complete
//	                              └→ failed
//
// Every other edge is rejected. Terminal states have no outgoing edges.
type Lifecycle struct {
	mu      sync.RWMutex
	state   State
	history []State
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle, history: []State{StateIdle}}
}

func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// History returns every state visited, in order.
func (l *Lifecycle) History() []State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]State, len(l.history))
	copy(out, l.history)
	return out
}

func (l *Lifecycle) Transition(to State) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !allowed(l.state, to) {
		return fmt.Errorf("%w: %s → %s", ErrInvalidTransition, l.state, to)
	}
	l.state = to
	l.history = append(l.history, to)
	return nil
}

func allowed(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRecording
	case StateRecording:
		return to == StateFinalizing
	case StateFinalizing:
		return to == StateComplete || to == StateFailed
	default:
		return false
	}
}
