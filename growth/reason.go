package growth

import "fmt"

// Reason records why a run stopped.
type Reason uint8

const (
	// Running means the run has not terminated yet.
	Running Reason = iota
	// Converged means no live attractor recruited any node.
	Converged
	// Exhausted means every attractor was killed.
	Exhausted
	// IterationLimit means the iteration cap was reached.
	IterationLimit
	// CapacityExceeded means the node or attractor arena filled up.
	CapacityExceeded
	// IndexFailure means the spatial index could not locate a point.
	IndexFailure
	// Cancelled means the context was done at an iteration boundary.
	Cancelled
)

var reasonNames = [...]string{
	Running:          "running",
	Converged:        "converged",
	Exhausted:        "exhausted",
	IterationLimit:   "iteration_limit",
	CapacityExceeded: "capacity_exceeded",
	IndexFailure:     "index_failure",
	Cancelled:        "cancelled",
}

func (r Reason) String() string {
	if int(r) < len(reasonNames) {
		return reasonNames[r]
	}
	return fmt.Sprintf("reason(%d)", r)
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Reason) UnmarshalText(b []byte) error {
	for i, name := range reasonNames {
		if name == string(b) {
			*r = Reason(i)
			return nil
		}
	}
	return fmt.Errorf("unknown reason %q", b)
}

// Fatal reports whether the run ended on an error condition.
func (r Reason) Fatal() bool {
	return r == CapacityExceeded || r == IndexFailure
}
