package systems

import (
	"slices"
	"sort"

	"gonum.org/v1/gonum/spatial/kdtree"
	"gonum.org/v1/gonum/spatial/r2"
)

// kdPoint is a node position carrying its node index.
type kdPoint struct {
	r2.Vec
	id int32
}

func (p kdPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(kdPoint)
	switch d {
	case 0:
		return p.X - q.X
	case 1:
		return p.Y - q.Y
	default:
		panic("illegal dimension")
	}
}

func (p kdPoint) Dims() int { return 2 }

func (p kdPoint) Distance(c kdtree.Comparable) float64 {
	return distanceSq(p.Vec, c.(kdPoint).Vec)
}

// kdPoints implements kdtree.Interface for balanced rebuilds.
type kdPoints []kdPoint

func (p kdPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p kdPoints) Len() int                      { return len(p) }

func (p kdPoints) Pivot(d kdtree.Dim) int {
	sort.Slice(p, func(i, j int) bool {
		if c := p[i].Compare(p[j], d); c != 0 {
			return c < 0
		}
		return p[i].id < p[j].id
	})
	return len(p) / 2
}

func (p kdPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

// KDIndex is an exact nearest-node index backed by a gonum kd-tree. Its
// candidate set is every node at the minimal distance from the query, so
// ties survive for the caller to break.
type KDIndex struct {
	tree  *kdtree.Tree
	all   kdPoints
	built int
}

// NewKDIndex returns an empty index.
func NewKDIndex() *KDIndex {
	return &KDIndex{tree: &kdtree.Tree{}}
}

// Insert adds pts as nodes first, first+1, ... The tree is rebuilt balanced
// whenever it has doubled since the last build, since growth inserts points
// in long spatially ordered runs.
func (k *KDIndex) Insert(pts []r2.Vec, first int32) error {
	for i, p := range pts {
		pt := kdPoint{Vec: p, id: first + int32(i)}
		k.all = append(k.all, pt)
		if len(k.all) < 2*k.built+32 {
			k.tree.Insert(pt, false)
		}
	}
	if len(k.all) >= 2*k.built+32 {
		pts := make(kdPoints, len(k.all))
		copy(pts, k.all)
		k.tree = kdtree.New(pts, false)
		k.built = len(k.all)
	}
	return nil
}

// Candidates returns the nodes nearest to p.
func (k *KDIndex) Candidates(p r2.Vec, q *Query) error {
	q.Out = q.Out[:0]
	if len(k.all) == 0 {
		return nil
	}
	query := kdPoint{Vec: p, id: -1}
	_, d := k.tree.Nearest(query)

	keep := kdtree.NewDistKeeper(d)
	k.tree.NearestSet(keep, query)
	for _, c := range keep.Heap {
		if c.Comparable == nil {
			continue
		}
		q.Out = append(q.Out, c.Comparable.(kdPoint).id)
	}
	slices.Sort(q.Out)
	return nil
}

// Len returns the number of indexed nodes.
func (k *KDIndex) Len() int { return len(k.all) }
