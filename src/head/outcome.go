package head

// Outcome is the result of applying one event to the head state.
//
// A NewState outcome carries the successor state and the ordered effects to
// dispatch. A Wait outcome means the event is valid but cannot be acted on
// yet; the caller re-queues it. An Error outcome reports a protocol violation
// and leaves the state untouched.
type Outcome struct {
	State   *State
	Effects []Effect

	Wait       bool
	WaitReason string

	Err error
}

// NewStateOutcome ...
func NewStateOutcome(state *State, effects ...Effect) Outcome {
	return Outcome{State: state, Effects: effects}
}

// WaitOutcome ...
func WaitOutcome(reason string) Outcome {
	return Outcome{Wait: true, WaitReason: reason}
}

// ErrorOutcome ...
func ErrorOutcome(err error) Outcome {
	return Outcome{Err: err}
}

// unchanged is a NewState outcome that keeps the state as-is. It is used to
// silently ignore duplicate or stale inputs.
func unchanged(state *State, effects ...Effect) Outcome {
	return Outcome{State: state, Effects: effects}
}
