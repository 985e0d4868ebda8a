package scanner

// State is the scan state: either Idle or Accumulating.
//
// The completed-statement map is handed from one state value to the next on
// every transition; only the Engine holding the current state touches it.
type State interface {
	// Completed returns the statements that are finalized and waiting for a
	// duration, keyed by process id.
	Completed() map[int]string

	isState()
}

// Idle is the state between statements.
type Idle struct {
	completed map[int]string
}

// Accumulating is the state while a multi-line statement is being collected.
// Fragments is never empty.
type Accumulating struct {
	Fragments []string
	PID       int
	completed map[int]string
}

// NewIdle returns an Idle state with an empty completed-statement map.
func NewIdle() Idle {
	return Idle{completed: make(map[int]string)}
}

// Completed implements State.
func (s Idle) Completed() map[int]string { return s.completed }

// Completed implements State.
func (s Accumulating) Completed() map[int]string { return s.completed }

func (Idle) isState()         {}
func (Accumulating) isState() {}
