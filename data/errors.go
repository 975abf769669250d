package data

import (
	"errors"
	"fmt"
)

var ErrNotFound = errors.New("data: not found")

// ConflictError means a conditional write lost a race: the recorded state
// changed between read and write. The caller should re-read and either
// retry or present the new state.
type ConflictError struct {
	Op      string
	EventID string
	UID     string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("data: %s conflicted, state changed for event=%s uid=%s", e.Op, e.EventID, e.UID)
}

// TransportError is a connectivity or authorization failure from the
// backing store. It is retryable and never implies partial effects.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("data: %s transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}
