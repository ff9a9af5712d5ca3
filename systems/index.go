// Package systems provides the geometric machinery of a growth run: the
// attractor sampler, the spatial indices over vein nodes, and the attraction
// policies that decide which nodes an attractor recruits.
package systems

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/spatial/r2"
)

// ErrOutsideDomain is returned when a query point cannot be located inside
// the region covered by an index.
var ErrOutsideDomain = errors.New("point outside indexed domain")

// Index answers "which vein nodes are plausible neighbors of this point"
// for a growing set of node positions. Nodes are only ever added.
type Index interface {
	// Insert adds pts as nodes first, first+1, ...
	Insert(pts []r2.Vec, first int32) error
	// Candidates fills q.Out with node indices near p, ascending and
	// without duplicates.
	Candidates(p r2.Vec, q *Query) error
	// Len returns the number of indexed nodes.
	Len() int
}

// Query holds per-goroutine scratch state for candidate lookups. Hint is a
// locate hint owned by the caller; indices that walk their structure update
// it with the region the last query ended in.
type Query struct {
	Hint int32
	Out  []int32

	tris []int32
	dist []float64
}

// NewQuery returns a query with a zero hint.
func NewQuery() *Query {
	return &Query{
		Out:  make([]int32, 0, 32),
		tris: make([]int32, 0, 16),
		dist: make([]float64, 0, 32),
	}
}

// IndexKind names an Index implementation.
type IndexKind string

const (
	IndexDelaunay IndexKind = "delaunay"
	IndexGrid     IndexKind = "grid"
	IndexGlobal   IndexKind = "global"
	IndexKDTree   IndexKind = "kdtree"
)

// IndexOptions configures NewIndex.
type IndexOptions struct {
	Kind     IndexKind
	Bounds   r2.Box  // working region; every node and attractor must lie inside
	Margin   float64 // bootstrap box expansion, relative to the larger side of Bounds
	CellSize float64 // grid only
	Rings    int     // neighborhood depth around the located region
}

// NewIndex builds an empty index of the requested kind.
func NewIndex(o IndexOptions) (Index, error) {
	switch o.Kind {
	case IndexDelaunay, "":
		return NewTriangulation(o.Bounds, o.Margin, o.Rings)
	case IndexGrid:
		if o.CellSize <= 0 {
			return nil, fmt.Errorf("grid index: cell size must be positive, got %v", o.CellSize)
		}
		return NewSpatialGrid(o.Bounds, o.CellSize, o.Rings), nil
	case IndexGlobal:
		return &Linear{}, nil
	case IndexKDTree:
		return NewKDIndex(), nil
	default:
		return nil, fmt.Errorf("unknown index kind %q", o.Kind)
	}
}

// Linear treats every node as a candidate. It is the exact, quadratic
// baseline the other indices approximate.
type Linear struct {
	n int
}

// Insert records len(pts) more nodes.
func (l *Linear) Insert(pts []r2.Vec, first int32) error {
	l.n += len(pts)
	return nil
}

// Candidates returns all node indices.
func (l *Linear) Candidates(p r2.Vec, q *Query) error {
	q.Out = q.Out[:0]
	for i := 0; i < l.n; i++ {
		q.Out = append(q.Out, int32(i))
	}
	return nil
}

// Len returns the number of nodes.
func (l *Linear) Len() int { return l.n }
