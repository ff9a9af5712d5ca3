package systems

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// Policy selects how attractors pick the vein nodes they recruit.
type Policy string

const (
	// PolicyRelativeNeighbor lets an attractor recruit every candidate that
	// is its relative neighbor. One attractor can pull several nodes at
	// once, which is what makes the venation branch.
	PolicyRelativeNeighbor Policy = "relative_neighbor"
	// PolicyNearest recruits only the nearest candidate (lowest index on
	// ties). Clusters of attractors grow a single unbranched path.
	PolicyNearest Policy = "nearest"
)

// ParsePolicy validates a policy name.
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(s); p {
	case PolicyRelativeNeighbor, PolicyNearest:
		return p, nil
	case "":
		return PolicyRelativeNeighbor, nil
	default:
		return "", fmt.Errorf("unknown attraction policy %q", s)
	}
}

// Attract appends to dst the candidates in q.Out that attractor s recruits
// under policy.
func Attract(policy Policy, dst []int32, s r2.Vec, q *Query, nodes []r2.Vec) []int32 {
	if policy == PolicyNearest {
		if u, ok := Nearest(s, q.Out, nodes); ok {
			dst = append(dst, u)
		}
		return dst
	}
	return RelativeNeighbors(dst, s, q, nodes)
}

// RelativeNeighbors appends to dst every candidate u for which no other
// candidate v satisfies d(u,s) >= max(d(u,v), d(v,s)). Candidates are
// visited in q.Out order.
func RelativeNeighbors(dst []int32, s r2.Vec, q *Query, nodes []r2.Vec) []int32 {
	cand := q.Out
	q.dist = q.dist[:0]
	for _, v := range cand {
		q.dist = append(q.dist, distance(nodes[v], s))
	}

	for i, u := range cand {
		du := q.dist[i]
		related := true
		for j, v := range cand {
			if i == j {
				continue
			}
			if du >= math.Max(distance(nodes[u], nodes[v]), q.dist[j]) {
				related = false
				break
			}
		}
		if related {
			dst = append(dst, u)
		}
	}
	return dst
}

// Nearest returns the candidate closest to s, preferring the lowest index
// on ties.
func Nearest(s r2.Vec, cand []int32, nodes []r2.Vec) (int32, bool) {
	best := int32(-1)
	bestD := math.Inf(1)
	for _, u := range cand {
		d := distanceSq(nodes[u], s)
		if d < bestD || (d == bestD && u < best) {
			best, bestD = u, d
		}
	}
	return best, best >= 0
}
