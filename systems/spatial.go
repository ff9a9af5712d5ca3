package systems

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r2"
)

// maxGridSide caps the number of cells along one side of a grid. Finer
// requests are coarsened.
const maxGridSide = 4096

// SpatialGrid buckets node indices into uniform cells over a fixed region.
// The located region of a query is its cell; the neighborhood is every cell
// within rings cells of it.
type SpatialGrid struct {
	bounds   r2.Box
	cellSize float64
	cols     int
	rows     int
	rings    int
	cells    [][]int32
	n        int
}

// NewSpatialGrid creates a grid covering bounds.
func NewSpatialGrid(bounds r2.Box, cellSize float64, rings int) *SpatialGrid {
	size := r2.Sub(bounds.Max, bounds.Min)
	side := math.Max(size.X, size.Y)
	if cellSize <= 0 {
		cellSize = side
	}
	if side/cellSize > maxGridSide {
		cellSize = side / maxGridSide
	}
	if rings < 0 {
		rings = 0
	}

	cols := max(int(math.Ceil(size.X/cellSize)), 1)
	rows := max(int(math.Ceil(size.Y/cellSize)), 1)

	cells := make([][]int32, cols*rows)
	for i := range cells {
		cells[i] = make([]int32, 0, 4)
	}

	return &SpatialGrid{
		bounds:   bounds,
		cellSize: cellSize,
		cols:     cols,
		rows:     rows,
		rings:    rings,
		cells:    cells,
	}
}

// CellSize returns the effective cell size.
func (g *SpatialGrid) CellSize() float64 { return g.cellSize }

// Clear removes all entries from the grid.
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
	g.n = 0
}

// Add places id at p. It returns false if p lies outside the grid bounds.
func (g *SpatialGrid) Add(id int32, p r2.Vec) bool {
	col, row, ok := g.cell(p)
	if !ok {
		return false
	}
	idx := row*g.cols + col
	g.cells[idx] = append(g.cells[idx], id)
	g.n++
	return true
}

// Insert adds pts as nodes first, first+1, ...
func (g *SpatialGrid) Insert(pts []r2.Vec, first int32) error {
	for i, p := range pts {
		if !g.Add(first+int32(i), p) {
			return ErrOutsideDomain
		}
	}
	return nil
}

// Candidates returns the nodes in the cells around p.
func (g *SpatialGrid) Candidates(p r2.Vec, q *Query) error {
	col, row, ok := g.cell(p)
	if !ok {
		return ErrOutsideDomain
	}

	q.Out = q.Out[:0]
	for dr := -g.rings; dr <= g.rings; dr++ {
		r := row + dr
		if r < 0 || r >= g.rows {
			continue
		}
		for dc := -g.rings; dc <= g.rings; dc++ {
			c := col + dc
			if c < 0 || c >= g.cols {
				continue
			}
			q.Out = append(q.Out, g.cells[r*g.cols+c]...)
		}
	}
	slices.Sort(q.Out)
	return nil
}

// Len returns the number of entries in the grid.
func (g *SpatialGrid) Len() int { return g.n }

// AnyWithin reports whether some entry of the grid lies within radius of p
// (inclusive). Entry ids index into pts.
func (g *SpatialGrid) AnyWithin(p r2.Vec, radius float64, pts []r2.Vec) bool {
	col, row, ok := g.cell(p)
	if !ok {
		return false
	}
	reach := int(math.Ceil(radius / g.cellSize))
	radiusSq := radius * radius

	for r := max(row-reach, 0); r <= min(row+reach, g.rows-1); r++ {
		for c := max(col-reach, 0); c <= min(col+reach, g.cols-1); c++ {
			for _, id := range g.cells[r*g.cols+c] {
				if distanceSq(p, pts[id]) <= radiusSq {
					return true
				}
			}
		}
	}
	return false
}

// cell returns the cell coordinates of p.
func (g *SpatialGrid) cell(p r2.Vec) (col, row int, ok bool) {
	if p.X < g.bounds.Min.X || p.X > g.bounds.Max.X ||
		p.Y < g.bounds.Min.Y || p.Y > g.bounds.Max.Y ||
		math.IsNaN(p.X) || math.IsNaN(p.Y) {
		return 0, 0, false
	}
	col = min(int((p.X-g.bounds.Min.X)/g.cellSize), g.cols-1)
	row = min(int((p.Y-g.bounds.Min.Y)/g.cellSize), g.rows-1)
	return col, row, true
}
