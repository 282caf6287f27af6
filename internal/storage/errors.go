package storage

import "errors"

// Failure modes from spec.md §4.1.
var (
	ErrNotFound          = errors.New("not found")
	ErrCyclicContainment = errors.New("cyclic containment")
	ErrDuplicateVerb     = errors.New("duplicate verb")
	ErrIntegrity         = errors.New("integrity error")
)
