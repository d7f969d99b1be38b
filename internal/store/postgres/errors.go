package postgres

import "errors"

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrNotDue is returned by ApplyRecurring when the source transaction no
	// longer satisfies the due predicate at apply time (already processed,
	// deleted, or not yet due). It marks a no-op, not a failure.
	ErrNotDue = errors.New("transaction not due")
)
