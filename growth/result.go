package growth

import (
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/stat"

	"github.com/giobri/leaf/components"
	"github.com/giobri/leaf/telemetry"
)

// Result is the geometry of a finished or interrupted run. Its slices
// share storage with the engine and must be treated as read-only.
type Result struct {
	Reason     Reason
	Iterations int
	Elapsed    time.Duration

	Nodes   []r2.Vec
	Parents []int32

	Attractors     []r2.Vec
	Alive          []bool
	LiveAttractors int
}

func (e *Engine) result() *Result {
	return &Result{
		Reason:         e.reason,
		Iterations:     e.iteration,
		Elapsed:        e.elapsed,
		Nodes:          e.veins.Positions(),
		Parents:        e.veins.Parents(),
		Attractors:     e.attractors.Positions(),
		Alive:          e.attractors.AliveFlags(),
		LiveAttractors: e.attractors.Live(),
	}
}

// Snapshot captures the current engine state. It is meant for progress
// hooks that save intermediate geometry.
func (e *Engine) Snapshot(seed int64) *telemetry.Snapshot {
	return e.result().Snapshot(seed)
}

// Snapshot copies the result into the serializable snapshot form, with a
// summary attached.
func (r *Result) Snapshot(seed int64) *telemetry.Snapshot {
	s := &telemetry.Snapshot{
		Version:    telemetry.SnapshotVersion,
		Seed:       seed,
		Iteration:  r.Iterations,
		Reason:     r.Reason.String(),
		Nodes:      make([]telemetry.NodeState, len(r.Nodes)),
		Attractors: make([]telemetry.AttractorState, len(r.Attractors)),
	}
	for i, p := range r.Nodes {
		s.Nodes[i] = telemetry.NodeState{ID: int32(i), X: p.X, Y: p.Y, Parent: r.Parents[i]}
	}
	for i, p := range r.Attractors {
		s.Attractors[i] = telemetry.AttractorState{ID: int32(i), X: p.X, Y: p.Y, Alive: r.Alive[i]}
	}
	summary := Summarize(r)
	s.Summary = &summary
	return s
}

// Summarize computes the shape statistics of a venation.
func Summarize(r *Result) telemetry.Summary {
	n := len(r.Nodes)
	s := telemetry.Summary{Nodes: n}
	if len(r.Attractors) > 0 {
		s.Consumed = 1 - float64(r.LiveAttractors)/float64(len(r.Attractors))
	}
	if n == 0 {
		return s
	}

	depth := make([]float64, n)
	kids := make([]int, n)
	for i, p := range r.Parents {
		if p == components.NoParent {
			s.Roots++
			continue
		}
		depth[i] = depth[p] + 1
		kids[p]++
		s.TotalLength += r2.Norm(r2.Sub(r.Nodes[i], r.Nodes[p]))
	}
	for _, k := range kids {
		switch {
		case k == 0:
			s.Leaves++
		case k >= 2:
			s.BranchPoints++
		}
	}

	s.DepthMean = stat.Mean(depth, nil)
	slices.Sort(depth)
	s.DepthP50 = stat.Quantile(0.5, stat.Empirical, depth, nil)
	s.DepthP90 = stat.Quantile(0.9, stat.Empirical, depth, nil)
	s.DepthMax = int(depth[n-1])
	return s
}
