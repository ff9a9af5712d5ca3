package systems

import (
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestRelativeNeighbors(t *testing.T) {
	tests := []struct {
		name  string
		s     r2.Vec
		nodes []r2.Vec
		want  []int32
	}{
		{
			name:  "single candidate",
			s:     r2.Vec{X: 0, Y: 0},
			nodes: []r2.Vec{{X: 1, Y: 0}},
			want:  []int32{0},
		},
		{
			name:  "shadowed behind closer node",
			s:     r2.Vec{X: 0, Y: 0},
			nodes: []r2.Vec{{X: 1, Y: 0}, {X: 2, Y: 0}},
			want:  []int32{0},
		},
		{
			name:  "opposite sides both recruited",
			s:     r2.Vec{X: 0, Y: 0},
			nodes: []r2.Vec{{X: 1, Y: 0}, {X: -1, Y: 0}},
			want:  []int32{0, 1},
		},
		{
			name:  "right angle both recruited",
			s:     r2.Vec{X: 0, Y: 0},
			nodes: []r2.Vec{{X: 1, Y: 0}, {X: 0, Y: 1.1}},
			want:  []int32{0, 1},
		},
		{
			name:  "no candidates",
			s:     r2.Vec{X: 0, Y: 0},
			nodes: nil,
			want:  nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q := NewQuery()
			for i := range tc.nodes {
				q.Out = append(q.Out, int32(i))
			}
			got := RelativeNeighbors(nil, tc.s, q, tc.nodes)
			if !slices.Equal(got, tc.want) {
				t.Errorf("RelativeNeighbors = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestNearestTieBreak(t *testing.T) {
	nodes := []r2.Vec{{X: 3, Y: 0}, {X: 1, Y: 0}, {X: -1, Y: 0}}

	u, ok := Nearest(r2.Vec{}, []int32{2, 1, 0}, nodes)
	if !ok || u != 1 {
		t.Errorf("Nearest = (%d, %v), want (1, true)", u, ok)
	}

	if _, ok := Nearest(r2.Vec{}, nil, nodes); ok {
		t.Error("Nearest on empty candidates should report false")
	}
}

func TestAttractPolicies(t *testing.T) {
	nodes := []r2.Vec{{X: 1, Y: 0}, {X: -1, Y: 0}}
	q := NewQuery()
	q.Out = append(q.Out, 0, 1)

	rn := Attract(PolicyRelativeNeighbor, nil, r2.Vec{}, q, nodes)
	if !slices.Equal(rn, []int32{0, 1}) {
		t.Errorf("relative neighbor policy = %v, want [0 1]", rn)
	}

	nn := Attract(PolicyNearest, nil, r2.Vec{}, q, nodes)
	if !slices.Equal(nn, []int32{0}) {
		t.Errorf("nearest policy = %v, want [0]", nn)
	}
}

func TestParsePolicy(t *testing.T) {
	if p, err := ParsePolicy(""); err != nil || p != PolicyRelativeNeighbor {
		t.Errorf("ParsePolicy(\"\") = %q, %v", p, err)
	}
	if p, err := ParsePolicy("nearest"); err != nil || p != PolicyNearest {
		t.Errorf("ParsePolicy(nearest) = %q, %v", p, err)
	}
	if _, err := ParsePolicy("closest"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
