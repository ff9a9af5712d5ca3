package systems

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// bootstrapOwner tags triangulation vertices that are not vein nodes.
const bootstrapOwner int32 = -1

// triangle is a counter-clockwise triangle. n[k] is the neighbor across the
// edge opposite v[k], or -1 on the outer hull.
type triangle struct {
	v     [3]int32
	n     [3]int32
	alive bool
}

// cavityEdge is a boundary edge a->b of an insertion cavity together with
// the triangle on its far side.
type cavityEdge struct {
	a, b  int32
	outer int32
	id    int32
}

// Triangulation is an incrementally built Delaunay triangulation over four
// bootstrap corners enclosing the working region plus every inserted node.
// The located region of a query is its containing triangle; the
// neighborhood is every triangle within rings adjacency steps.
//
// Only the triangulation vertices of that neighborhood are returned, so a
// true relative neighbor further away can be missed. That trade is what
// keeps a query near constant time.
type Triangulation struct {
	pts   []r2.Vec
	owner []int32
	tris  []triangle
	free  []int32
	entry int32
	rings int
	nodes int

	// insertion scratch
	mark  []uint32
	gen   uint32
	bad   []int32
	stack []int32
	edges []cavityEdge
}

// NewTriangulation seeds a triangulation with the corners of bounds
// expanded by margin times its larger side.
func NewTriangulation(bounds r2.Box, margin float64, rings int) (*Triangulation, error) {
	size := r2.Sub(bounds.Max, bounds.Min)
	if !(size.X > 0 && size.Y > 0) {
		return nil, fmt.Errorf("triangulation: degenerate bounds %v", bounds)
	}
	if margin <= 0 {
		margin = 1
	}
	if rings < 0 {
		rings = 0
	}
	m := margin * math.Max(size.X, size.Y)
	lo := r2.Vec{X: bounds.Min.X - m, Y: bounds.Min.Y - m}
	hi := r2.Vec{X: bounds.Max.X + m, Y: bounds.Max.Y + m}

	t := &Triangulation{
		pts: []r2.Vec{
			{X: lo.X, Y: lo.Y},
			{X: hi.X, Y: lo.Y},
			{X: hi.X, Y: hi.Y},
			{X: lo.X, Y: hi.Y},
		},
		owner: []int32{bootstrapOwner, bootstrapOwner, bootstrapOwner, bootstrapOwner},
		rings: rings,
	}
	t.tris = []triangle{
		{v: [3]int32{0, 1, 2}, n: [3]int32{-1, 1, -1}, alive: true},
		{v: [3]int32{0, 2, 3}, n: [3]int32{-1, -1, 0}, alive: true},
	}
	t.mark = make([]uint32, len(t.tris))
	return t, nil
}

// Insert adds pts as nodes first, first+1, ... A position that coincides
// with an existing vertex is not inserted again.
func (t *Triangulation) Insert(pts []r2.Vec, first int32) error {
	for i, p := range pts {
		if err := t.insert(p, first+int32(i)); err != nil {
			return fmt.Errorf("insert node %d: %w", first+int32(i), err)
		}
	}
	return nil
}

// Len returns the number of inserted nodes.
func (t *Triangulation) Len() int { return t.nodes }

// Candidates returns the nodes on the triangles around p.
func (t *Triangulation) Candidates(p r2.Vec, q *Query) error {
	ti, err := t.locate(p, q.Hint)
	if err != nil {
		return err
	}
	q.Hint = ti

	q.tris = append(q.tris[:0], ti)
	frontier := 0
	for ring := 0; ring < t.rings; ring++ {
		end := len(q.tris)
		for _, c := range q.tris[frontier:end] {
			for _, nb := range t.tris[c].n {
				if nb >= 0 && !slices.Contains(q.tris, nb) {
					q.tris = append(q.tris, nb)
				}
			}
		}
		frontier = end
	}

	q.Out = q.Out[:0]
	for _, c := range q.tris {
		for _, v := range t.tris[c].v {
			if o := t.owner[v]; o != bootstrapOwner {
				q.Out = append(q.Out, o)
			}
		}
	}
	slices.Sort(q.Out)
	q.Out = slices.Compact(q.Out)
	return nil
}

// locate finds the triangle containing p by walking from start.
func (t *Triangulation) locate(p r2.Vec, start int32) (int32, error) {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return -1, ErrOutsideDomain
	}
	cur := start
	if cur < 0 || int(cur) >= len(t.tris) || !t.tris[cur].alive {
		cur = t.entry
	}

	limit := len(t.tris) + 16
	for steps := 0; steps < limit; steps++ {
		tr := &t.tris[cur]
		next := int32(-1)
		for k := 0; k < 3; k++ {
			a := t.pts[tr.v[(k+1)%3]]
			b := t.pts[tr.v[(k+2)%3]]
			if orient(a, b, p) < 0 {
				next = tr.n[k]
				if next < 0 {
					return -1, ErrOutsideDomain
				}
				break
			}
		}
		if next < 0 {
			return cur, nil
		}
		cur = next
	}

	// The walk only cycles on numerically inconsistent input.
	for i := range t.tris {
		tr := &t.tris[i]
		if tr.alive && t.contains(tr, p) {
			return int32(i), nil
		}
	}
	return -1, ErrOutsideDomain
}

func (t *Triangulation) contains(tr *triangle, p r2.Vec) bool {
	for k := 0; k < 3; k++ {
		if orient(t.pts[tr.v[(k+1)%3]], t.pts[tr.v[(k+2)%3]], p) < 0 {
			return false
		}
	}
	return true
}

func (t *Triangulation) circumcontains(id int32, p r2.Vec) bool {
	tr := &t.tris[id]
	return inCircle(t.pts[tr.v[0]], t.pts[tr.v[1]], t.pts[tr.v[2]], p) > 0
}

// insert adds one vertex with the Bowyer-Watson cavity method.
func (t *Triangulation) insert(p r2.Vec, owner int32) error {
	ti, err := t.locate(p, t.entry)
	if err != nil {
		return err
	}
	for _, v := range t.tris[ti].v {
		if t.pts[v] == p {
			return nil
		}
	}

	t.gen++
	t.bad = t.bad[:0]
	t.stack = append(t.stack[:0], ti)
	t.mark[ti] = t.gen
	for len(t.stack) > 0 {
		c := t.stack[len(t.stack)-1]
		t.stack = t.stack[:len(t.stack)-1]
		t.bad = append(t.bad, c)
		for _, nb := range t.tris[c].n {
			if nb < 0 || t.mark[nb] == t.gen {
				continue
			}
			if t.circumcontains(nb, p) {
				t.mark[nb] = t.gen
				t.stack = append(t.stack, nb)
			}
		}
	}

	// Grow the cavity until p sees every boundary edge from the inside.
	for {
		t.collectBoundary()
		grown := false
		for _, e := range t.edges {
			if orient(t.pts[e.a], t.pts[e.b], p) > 0 {
				continue
			}
			if e.outer < 0 {
				return ErrOutsideDomain
			}
			if t.mark[e.outer] != t.gen {
				t.mark[e.outer] = t.gen
				t.bad = append(t.bad, e.outer)
				grown = true
			}
		}
		if !grown {
			break
		}
	}

	vid := int32(len(t.pts))
	t.pts = append(t.pts, p)
	t.owner = append(t.owner, owner)

	// Allocate new triangles, reusing cavity slots first.
	for i := range t.edges {
		switch {
		case i < len(t.bad):
			t.edges[i].id = t.bad[i]
		case len(t.free) > 0:
			t.edges[i].id = t.free[len(t.free)-1]
			t.free = t.free[:len(t.free)-1]
		default:
			t.edges[i].id = int32(len(t.tris))
			t.tris = append(t.tris, triangle{})
			t.mark = append(t.mark, 0)
		}
	}
	for i := len(t.edges); i < len(t.bad); i++ {
		t.tris[t.bad[i]].alive = false
		t.free = append(t.free, t.bad[i])
	}

	for _, e := range t.edges {
		t.tris[e.id] = triangle{
			v:     [3]int32{e.a, e.b, vid},
			n:     [3]int32{-1, -1, e.outer},
			alive: true,
		}
		if e.outer >= 0 {
			t.relink(e.outer, e.b, e.a, e.id)
		}
	}
	for i := range t.edges {
		ei := &t.edges[i]
		tr := &t.tris[ei.id]
		for _, ej := range t.edges {
			if ej.a == ei.b {
				tr.n[0] = ej.id // across b->p
			}
			if ej.b == ei.a {
				tr.n[1] = ej.id // across p->a
			}
		}
	}

	t.entry = t.edges[len(t.edges)-1].id
	t.nodes++
	return nil
}

// collectBoundary fills t.edges with the boundary of the marked cavity.
func (t *Triangulation) collectBoundary() {
	t.edges = t.edges[:0]
	for _, c := range t.bad {
		tr := &t.tris[c]
		for k := 0; k < 3; k++ {
			nb := tr.n[k]
			if nb >= 0 && t.mark[nb] == t.gen {
				continue
			}
			t.edges = append(t.edges, cavityEdge{
				a:     tr.v[(k+1)%3],
				b:     tr.v[(k+2)%3],
				outer: nb,
			})
		}
	}
}

// relink points the edge a->b of triangle id at neighbor nb.
func (t *Triangulation) relink(id, a, b, nb int32) {
	tr := &t.tris[id]
	for k := 0; k < 3; k++ {
		if tr.v[(k+1)%3] == a && tr.v[(k+2)%3] == b {
			tr.n[k] = nb
			return
		}
	}
}
