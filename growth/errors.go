package growth

import "errors"

var (
	// ErrCapacityExceeded is returned when the node arena fills up or more
	// attractors are supplied than the run can hold. The partial result is
	// still valid.
	ErrCapacityExceeded = errors.New("growth: capacity exceeded")

	// ErrIndexLookup is returned when the spatial index cannot locate a
	// point inside its domain. It wraps the index error.
	ErrIndexLookup = errors.New("growth: index lookup failed")

	// ErrAlreadyRun is returned by a second call to Run.
	ErrAlreadyRun = errors.New("growth: engine already ran")
)
