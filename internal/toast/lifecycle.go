package toast

import "fmt"

// State is a toast's lifecycle state.
type State string

const (
	StatePending   State = "pending"
	StateDisplayed State = "displayed"
	StateFadingOut State = "fading_out"
	StateRemoved   State = "removed"
)

// Pending may go straight to Removed when the engine closes or the render
// fails; Displayed may skip FadingOut when evicted.
var transitions = map[State][]State{
	StatePending:   {StateDisplayed, StateRemoved},
	StateDisplayed: {StateFadingOut, StateRemoved},
	StateFadingOut: {StateRemoved},
}

// TransitionError reports a state change the lifecycle does not allow.
type TransitionError struct {
	From, To State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("toast: no transition from %q to %q", e.From, e.To)
}

func (s State) CanTransition(to State) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}

func (s State) Terminal() bool { return s == StateRemoved }

func advance(cur *State, to State) error {
	if !cur.CanTransition(to) {
		return &TransitionError{From: *cur, To: to}
	}
	*cur = to
	return nil
}
