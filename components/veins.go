// Package components holds the data model of a growth run: the append-only
// vein node arena and the attractor set.
package components

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// NoParent marks a root vein node.
const NoParent int32 = -1

// Veins is an append-only arena of growing nodes. Indices are stable: every
// index below Len is valid and is never moved or removed.
type Veins struct {
	pos    []r2.Vec
	parent []int32
}

// NewVeins reserves storage for capacity nodes.
func NewVeins(capacity int) *Veins {
	if capacity < 0 {
		capacity = 0
	}
	return &Veins{
		pos:    make([]r2.Vec, 0, capacity),
		parent: make([]int32, 0, capacity),
	}
}

// Add appends a node and returns its index. It returns false when the arena
// is full. A parent must be NoParent or an existing index.
func (v *Veins) Add(p r2.Vec, parent int32) (int32, bool) {
	n := len(v.pos)
	if n == cap(v.pos) {
		return 0, false
	}
	if parent != NoParent && (parent < 0 || int(parent) >= n) {
		panic(fmt.Sprintf("components: parent %d out of range for node %d", parent, n))
	}
	v.pos = append(v.pos, p)
	v.parent = append(v.parent, parent)
	return int32(n), true
}

// Len returns the number of valid nodes.
func (v *Veins) Len() int { return len(v.pos) }

// Cap returns the node capacity.
func (v *Veins) Cap() int { return cap(v.pos) }

// Full reports whether no more nodes can be added.
func (v *Veins) Full() bool { return len(v.pos) == cap(v.pos) }

// Pos returns the position of node i.
func (v *Veins) Pos(i int32) r2.Vec { return v.pos[i] }

// Parent returns the parent index of node i, or NoParent for roots.
func (v *Veins) Parent(i int32) int32 { return v.parent[i] }

// Positions returns the live prefix of the position array. Callers must not
// modify it.
func (v *Veins) Positions() []r2.Vec { return v.pos }

// Parents returns the live prefix of the parent array. Callers must not
// modify it.
func (v *Veins) Parents() []int32 { return v.parent }
