package components

import "gonum.org/v1/gonum/spatial/r2"

// Attractors is the fixed set of source points. Positions never change and
// each attractor goes from alive to dead at most once.
type Attractors struct {
	pos   []r2.Vec
	alive []bool
	live  int
}

// NewAttractors copies points into a new, fully alive attractor set.
func NewAttractors(points []r2.Vec) *Attractors {
	a := &Attractors{
		pos:   make([]r2.Vec, len(points)),
		alive: make([]bool, len(points)),
		live:  len(points),
	}
	copy(a.pos, points)
	for i := range a.alive {
		a.alive[i] = true
	}
	return a
}

// Len returns the total number of attractors, dead or alive.
func (a *Attractors) Len() int { return len(a.pos) }

// Live returns the number of attractors still alive.
func (a *Attractors) Live() int { return a.live }

// Pos returns the position of attractor i.
func (a *Attractors) Pos(i int32) r2.Vec { return a.pos[i] }

// Alive reports whether attractor i is alive.
func (a *Attractors) Alive(i int32) bool { return a.alive[i] }

// Kill marks attractor i dead and reports whether it was alive before.
func (a *Attractors) Kill(i int32) bool {
	if !a.alive[i] {
		return false
	}
	a.alive[i] = false
	a.live--
	return true
}

// Positions returns the attractor positions. Callers must not modify them.
func (a *Attractors) Positions() []r2.Vec { return a.pos }

// AliveFlags returns the alive flags. Callers must not modify them.
func (a *Attractors) AliveFlags() []bool { return a.alive }
