package database

import "fmt"

// ThreadNotFoundError means no local thread (or its messages) exists for the
// requested identifier. It is the caller's cue to delegate to the sync
// subsystem.
type ThreadNotFoundError struct {
	ThreadID string
}

func (e *ThreadNotFoundError) Error() string {
	return fmt.Sprintf("thread not found: %s", e.ThreadID)
}

// PersistenceError wraps a failed write of a capability result. The
// generated content is discarded; existing rows stay untouched.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failed (%s): %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
