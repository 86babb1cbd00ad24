package domain

import "errors"

var (
	// ErrDuplicate reports a unique-constraint violation on insert: the
	// article was stored by a concurrent run between the existence check and
	// the insert. Callers treat it as a benign race, not a failure.
	ErrDuplicate = errors.New("article already exists")

	// ErrTransient wraps store failures worth one more attempt, such as a
	// dropped connection or an admin-initiated shutdown.
	ErrTransient = errors.New("transient store error")
)
