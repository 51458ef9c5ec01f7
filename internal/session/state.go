package session

import "sync"

// State is a point in the session lifecycle: Idle → Connecting →
// Connected → Closing → Idle (§3). Connected can also fall straight
// back to Idle on transport failure.
type State int

const (
	Idle State = iota
	Connecting
	Connected
	Closing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Closing:
		return "closing"
	default:
		return "unknown"
	}
}

// stateMachine is a small mutex-guarded State, split out of Session so
// the transition rules live in one place and are easy to test in
// isolation.
type stateMachine struct {
	mu    sync.RWMutex
	state State
}

func (m *stateMachine) get() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *stateMachine) set(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

// compareAndSet transitions from `from` to `to`, reporting whether the
// transition happened (it no-ops if the current state isn't `from`).
func (m *stateMachine) compareAndSet(from, to State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != from {
		return false
	}
	m.state = to
	return true
}
