package stream

// State is the connection lifecycle position of a Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateDraining
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TerminationReason says why Run returned.
type TerminationReason int

const (
	// Shutdown means the context was cancelled and every buffer was drained.
	Shutdown TerminationReason = iota
	// Exhausted means the reconnect attempts ran out.
	Exhausted
	// PersistenceFailed means sinks kept rejecting batches across reconnects.
	PersistenceFailed
)

func (r TerminationReason) String() string {
	switch r {
	case Shutdown:
		return "shutdown"
	case Exhausted:
		return "exhausted"
	case PersistenceFailed:
		return "persistence_failed"
	default:
		return "unknown"
	}
}

// Fatal reports whether the process should exit with a failure.
func (r TerminationReason) Fatal() bool { return r != Shutdown }

type resultKind int

const (
	resultCancelled resultKind = iota
	resultTransient
)

// loopResult is how one streaming session ended.
type loopResult struct {
	kind resultKind
	err  error
	// persistence is set when a sink write ended the session
	persistence bool
}
