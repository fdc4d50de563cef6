package checkout

type State string

const (
	StateIdle       State = "IDLE"
	StateValidating State = "VALIDATING"
	StateReserving  State = "RESERVING"
	StateSubmitting State = "SUBMITTING"
	StateSucceeded  State = "SUCCEEDED"
	StateFailed     State = "FAILED"
)

var transitions = map[State][]State{
	StateIdle:       {StateValidating, StateFailed},
	StateValidating: {StateReserving, StateFailed},
	StateReserving:  {StateSubmitting, StateFailed},
	StateSubmitting: {StateSucceeded, StateFailed},
}

// CanTransitionTo reports whether from -> to is a legal edge.
func CanTransitionTo(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// String representation (for logging)
func (s State) String() string {
	return string(s)
}
