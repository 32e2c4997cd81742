package correlation

// State tracks the lifecycle of a request.
type State uint8

const (
	StateUnknown State = iota
	// StatePending is a registered request without subscriptions.
	StatePending
	// StateActive has at least one subscription attached.
	StateActive
	// StateOnline has delivered its history and now receives live data.
	// It never moves back to StateActive.
	StateOnline
	StateFinished
	StateErrored
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateActive:
		return "active"
	case StateOnline:
		return "online"
	case StateFinished:
		return "finished"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no transition leaves the state.
func (s State) IsTerminal() bool {
	switch s {
	case StateFinished, StateErrored:
		return true
	default:
		return false
	}
}

// Outcome is how a request ended.
type Outcome struct {
	// Err is nil when the request finished successfully.
	Err error
}

// Finished is the outcome of a request whose enumeration completed.
func Finished() Outcome { return Outcome{} }

// Errored is the outcome of a request terminated by err.
func Errored(err error) Outcome { return Outcome{Err: err} }

func (o Outcome) state() State {
	if o.Err != nil {
		return StateErrored
	}
	return StateFinished
}

// transition returns the next state or false when the move is not allowed.
//
//	pending -> active, online, finished, errored
//	active  -> online, finished, errored
//	online  -> finished, errored
//
// Attaching another subscription to an online request keeps it online.
func transition(from, to State) (State, bool) {
	if from.IsTerminal() {
		return from, false
	}
	switch to {
	case StateActive:
		switch from {
		case StatePending, StateActive:
			return StateActive, true
		case StateOnline:
			return StateOnline, true
		default:
			return from, false
		}
	case StateOnline:
		return StateOnline, from == StatePending || from == StateActive || from == StateOnline
	case StateFinished, StateErrored:
		return to, true
	default:
		return from, false
	}
}
