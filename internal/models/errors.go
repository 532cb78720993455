package models

import "fmt"

// ValidationError rejects malformed input before it reaches the store.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// NotFoundError is returned only by delete when the id does not exist.
// Lookups (get/update) signal absence with a nil Track instead: the
// asymmetry is part of the API contract.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("track %d not found", e.ID)
}
