package lifecycle

import "fmt"

// PreconditionError reports an action invoked from a state that does not
// permit it. It is always surfaced to the caller and never retried
// automatically.
type PreconditionError struct {
	Action  Action
	From    State
	EventID string
	UID     string
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("lifecycle: cannot %s from %s (event=%s uid=%s)",
		e.Action, e.From, e.EventID, e.UID)
}

func preconditionErr(a Action, f Facts, from State) error {
	return &PreconditionError{Action: a, From: from, EventID: f.EventID, UID: f.UID}
}
