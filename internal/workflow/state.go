package workflow

import "fmt"

var transitions = map[State]map[State]struct{}{
	StateQueued: {
		StatePreparing: {},
		StateFailed:    {},
	},
	StatePreparing: {
		StateEvaluating: {},
		StateFailed:     {},
	},
	StateEvaluating: {
		StateFinalizing: {},
		StateFailed:     {},
	},
	StateFinalizing: {
		StateCompleted: {},
		StateFailed:    {},
	},
	StateCompleted: {},
	StateFailed:    {},
}

// ParseState validates s as a lifecycle state.
func ParseState(s string) (State, error) {
	st := State(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown state %q", s)
	}
	return st, nil
}

// ValidateTransition reports whether a job may move from one state to another.
func ValidateTransition(from, to State) error {
	next, ok := transitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown state %q", ErrInvalidTransition, from)
	}
	if _, ok := next[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
