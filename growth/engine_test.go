package growth

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"slices"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/giobri/leaf/components"
	"github.com/giobri/leaf/systems"
	"github.com/giobri/leaf/telemetry"
)

var unitBox = r2.Box{Min: r2.Vec{X: 0, Y: 0}, Max: r2.Vec{X: 1, Y: 1}}

func testParams() Params {
	return Params{
		KillRadius:    0.02,
		Step:          0.01,
		MaxNodes:      1000,
		MaxIterations: 500,
		Policy:        systems.PolicyRelativeNeighbor,
		Index: systems.IndexOptions{
			Kind:   systems.IndexDelaunay,
			Bounds: unitBox,
			Margin: 1,
			Rings:  1,
		},
		Workers: 1,
	}
}

func run(t *testing.T, p Params, attractors, roots []r2.Vec, opts ...Option) (*Result, error) {
	t.Helper()
	eng, err := New(p, attractors, roots, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return eng.Run(context.Background())
}

func TestSingleAttractorExhausts(t *testing.T) {
	finalized := 0
	res, err := run(t, testParams(),
		[]r2.Vec{{X: 0.6, Y: 0.5}},
		[]r2.Vec{{X: 0.5, Y: 0.5}},
		WithFinalizer(func(*Result) { finalized++ }),
	)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if res.Reason != Exhausted {
		t.Errorf("reason = %v, want exhausted", res.Reason)
	}
	if finalized != 1 {
		t.Errorf("finalizer ran %d times, want 1", finalized)
	}
	if len(res.Nodes) < 2 {
		t.Fatalf("no node spawned")
	}
	first := res.Nodes[1]
	if math.Abs(first.X-0.51) > 1e-12 || math.Abs(first.Y-0.5) > 1e-12 || res.Parents[1] != 0 {
		t.Errorf("first spawn = %v (parent %d), want (0.51, 0.5) from root", first, res.Parents[1])
	}
	// The attractor dies once node 8 or 9 lands within 0.02 of it.
	if n := len(res.Nodes); n < 9 || n > 10 {
		t.Errorf("nodes = %d, want 9 or 10", n)
	}
	if res.Alive[0] || res.LiveAttractors != 0 {
		t.Error("attractor still alive")
	}
	last := res.Nodes[len(res.Nodes)-1]
	if d := r2.Norm(r2.Sub(last, r2.Vec{X: 0.6, Y: 0.5})); d > 0.02+1e-12 {
		t.Errorf("closest node is %v from the attractor", d)
	}
}

func TestNoAttractorsConverges(t *testing.T) {
	res, err := run(t, testParams(), nil, []r2.Vec{{X: 0.5, Y: 0.5}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != Converged || res.Iterations != 1 || len(res.Nodes) != 1 {
		t.Errorf("got reason %v after %d iterations with %d nodes, want converged/1/1",
			res.Reason, res.Iterations, len(res.Nodes))
	}
}

func TestCapacityExceeded(t *testing.T) {
	p := testParams()
	p.MaxNodes = 2

	res, err := run(t, p, []r2.Vec{{X: 0.9, Y: 0.5}}, []r2.Vec{{X: 0.5, Y: 0.5}})
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if res == nil {
		t.Fatal("partial result not returned")
	}
	if res.Reason != CapacityExceeded || len(res.Nodes) != 2 {
		t.Errorf("got reason %v with %d nodes, want capacity_exceeded with 2", res.Reason, len(res.Nodes))
	}
	if res.Parents[1] != 0 {
		t.Errorf("parent of node 1 = %d, want 0", res.Parents[1])
	}
}

func TestSpawnRefusedWhenFull(t *testing.T) {
	p := testParams()
	p.MaxNodes = 2

	res, err := run(t, p,
		[]r2.Vec{{X: 0.2, Y: 0.5}, {X: 0.8, Y: 0.5}},
		[]r2.Vec{{X: 0.3, Y: 0.5}, {X: 0.7, Y: 0.5}},
	)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if res.Reason != CapacityExceeded || res.Iterations != 1 || len(res.Nodes) != 2 {
		t.Errorf("got %v after %d iterations with %d nodes", res.Reason, res.Iterations, len(res.Nodes))
	}
}

func TestAttractorsOverCapacity(t *testing.T) {
	p := testParams()
	p.MaxAttractors = 1

	res, err := run(t, p,
		[]r2.Vec{{X: 0.6, Y: 0.5}, {X: 0.4, Y: 0.5}},
		[]r2.Vec{{X: 0.5, Y: 0.5}},
	)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if res.Reason != CapacityExceeded || res.Iterations != 0 || len(res.Attractors) != 1 {
		t.Errorf("got %v after %d iterations with %d attractors", res.Reason, res.Iterations, len(res.Attractors))
	}
}

func TestIterationLimit(t *testing.T) {
	p := testParams()
	p.MaxIterations = 3

	res, err := run(t, p, []r2.Vec{{X: 0.9, Y: 0.5}}, []r2.Vec{{X: 0.1, Y: 0.5}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != IterationLimit || res.Iterations != 3 || len(res.Nodes) != 4 {
		t.Errorf("got %v after %d iterations with %d nodes", res.Reason, res.Iterations, len(res.Nodes))
	}
}

func TestIndexFailure(t *testing.T) {
	p := testParams()
	p.Index = systems.IndexOptions{Kind: systems.IndexGrid, Bounds: unitBox, CellSize: 0.1, Rings: 1}

	res, err := run(t, p, []r2.Vec{{X: 1.5, Y: 0.5}}, []r2.Vec{{X: 0.5, Y: 0.5}})
	if !errors.Is(err, ErrIndexLookup) || !errors.Is(err, systems.ErrOutsideDomain) {
		t.Fatalf("err = %v, want ErrIndexLookup wrapping ErrOutsideDomain", err)
	}
	if res.Reason != IndexFailure || len(res.Nodes) != 1 {
		t.Errorf("got %v with %d nodes", res.Reason, len(res.Nodes))
	}
}

func TestCancelledBeforeStart(t *testing.T) {
	eng, err := New(testParams(), []r2.Vec{{X: 0.6, Y: 0.5}}, []r2.Vec{{X: 0.5, Y: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("cancellation returned error %v", err)
	}
	if res.Reason != Cancelled || res.Iterations != 0 || len(res.Nodes) != 1 {
		t.Errorf("got %v after %d iterations with %d nodes", res.Reason, res.Iterations, len(res.Nodes))
	}

	if _, err := eng.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run err = %v, want ErrAlreadyRun", err)
	}
}

func TestCancelAtIterationBoundary(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var finals []*Result
	eng, err := New(testParams(),
		[]r2.Vec{{X: 0.9, Y: 0.5}},
		[]r2.Vec{{X: 0.1, Y: 0.5}},
		WithProgress(func(s telemetry.IterationStats) {
			if s.Iteration == 5 {
				cancel()
			}
		}, 1),
		WithFinalizer(func(r *Result) { finals = append(finals, r) }),
	)
	if err != nil {
		t.Fatal(err)
	}

	res, err := eng.Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Reason != Cancelled || res.Iterations != 5 || len(res.Nodes) != 6 {
		t.Errorf("got %v after %d iterations with %d nodes, want cancelled/5/6",
			res.Reason, res.Iterations, len(res.Nodes))
	}
	if len(finals) != 1 || finals[0] != res {
		t.Errorf("finalizer saw %d results", len(finals))
	}
	checkForest(t, res, testParams().Step)
}

func TestProgressReportsFinalWindow(t *testing.T) {
	var calls []telemetry.IterationStats
	res, err := run(t, testParams(),
		[]r2.Vec{{X: 0.6, Y: 0.5}},
		[]r2.Vec{{X: 0.5, Y: 0.5}},
		WithProgress(func(s telemetry.IterationStats) { calls = append(calls, s) }, 1000),
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(calls) != 1 {
		t.Fatalf("progress called %d times, want once at finalization", len(calls))
	}
	last := calls[0]
	if last.Iteration != res.Iterations || last.Nodes != len(res.Nodes) || last.LiveAttractors != 0 {
		t.Errorf("final stats = %+v", last)
	}
	if last.Spawned != len(res.Nodes)-1 || last.Killed != 1 {
		t.Errorf("spawned/killed = %d/%d", last.Spawned, last.Killed)
	}
}

func TestNewRejectsBadParams(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Params)
		roots  int
	}{
		{"zero step", func(p *Params) { p.Step = 0 }, 1},
		{"zero kill radius", func(p *Params) { p.KillRadius = 0 }, 1},
		{"no iterations", func(p *Params) { p.MaxIterations = 0 }, 1},
		{"roots over capacity", func(p *Params) { p.MaxNodes = 1 }, 2},
		{"unknown policy", func(p *Params) { p.Policy = "closest" }, 1},
		{"unknown index", func(p *Params) { p.Index.Kind = "octree" }, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := testParams()
			tt.mutate(&p)
			roots := make([]r2.Vec, tt.roots)
			for i := range roots {
				roots[i] = r2.Vec{X: 0.5, Y: 0.1 + 0.1*float64(i)}
			}
			if _, err := New(p, nil, roots); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// randomRun grows from two roots into a sampled disk of attractors.
func randomRun(t *testing.T, seed int64, mutate func(*Params), opts ...Option) *Result {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	disk := systems.Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.4}
	attractors, _ := systems.SampleDisk(rng, disk, 300, 0.02, 0)

	p := testParams()
	p.Step = 0.005
	p.KillRadius = 0.008
	p.MaxNodes = 100000
	if mutate != nil {
		mutate(&p)
	}
	res, err := run(t, p, attractors, []r2.Vec{{X: 0.5, Y: 0.9}, {X: 0.5, Y: 0.1}}, opts...)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	switch res.Reason {
	case Converged, Exhausted, IterationLimit:
	default:
		t.Fatalf("unexpected reason %v", res.Reason)
	}
	if res.Iterations > p.MaxIterations {
		t.Errorf("ran %d iterations, cap is %d", res.Iterations, p.MaxIterations)
	}
	return res
}

// checkForest verifies parent ordering, reachability of a root and step
// length exactness.
func checkForest(t *testing.T, res *Result, step float64) {
	t.Helper()
	for i, p := range res.Parents {
		if p == components.NoParent {
			continue
		}
		if p < 0 || int(p) >= i {
			t.Fatalf("node %d has parent %d", i, p)
		}
		d := r2.Norm(r2.Sub(res.Nodes[i], res.Nodes[p]))
		if math.Abs(d-step) > 1e-9*step {
			t.Errorf("node %d is %v from its parent, want %v", i, d, step)
		}
	}
	for i := range res.Parents {
		cur, steps := int32(i), 0
		for res.Parents[cur] != components.NoParent {
			cur = res.Parents[cur]
			steps++
			if steps > len(res.Parents) {
				t.Fatalf("cycle through node %d", i)
			}
		}
	}
}

func TestRandomRunForest(t *testing.T) {
	res := randomRun(t, 1, nil)
	checkForest(t, res, 0.005)
	if len(res.Nodes) <= 2 {
		t.Errorf("no growth: %d nodes", len(res.Nodes))
	}
	if res.LiveAttractors == len(res.Attractors) {
		t.Error("no attractor was consumed")
	}
}

func TestMonotonicDeath(t *testing.T) {
	var eng *Engine
	var dead []bool
	check := func(telemetry.IterationStats) {
		for i, alive := range eng.Attractors().AliveFlags() {
			if dead[i] && alive {
				t.Fatalf("attractor %d came back to life at iteration %d", i, eng.Iteration())
			}
			dead[i] = !alive
		}
	}

	rng := rand.New(rand.NewSource(2))
	attractors, _ := systems.SampleDisk(rng, systems.Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.4}, 200, 0.02, 0)
	dead = make([]bool, len(attractors))

	p := testParams()
	p.Step, p.KillRadius = 0.005, 0.008
	var err error
	eng, err = New(p, attractors, []r2.Vec{{X: 0.5, Y: 0.9}}, WithProgress(check, 1))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := eng.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
}

func TestDeterministic(t *testing.T) {
	a := randomRun(t, 3, nil)
	b := randomRun(t, 3, nil)
	assertSameGrowth(t, a, b)
}

func TestParallelMatchesSerial(t *testing.T) {
	serial := randomRun(t, 4, nil)
	parallel := randomRun(t, 4, func(p *Params) {
		p.Workers = 4
		p.ParallelThreshold = 0
	})
	assertSameGrowth(t, serial, parallel)
}

func TestNearestPolicyIndicesAgree(t *testing.T) {
	nearest := func(kind systems.IndexKind) func(*Params) {
		return func(p *Params) {
			p.Policy = systems.PolicyNearest
			p.Index = systems.IndexOptions{Kind: kind}
		}
	}
	global := randomRun(t, 5, nearest(systems.IndexGlobal))
	kd := randomRun(t, 5, nearest(systems.IndexKDTree))

	checkForest(t, kd, 0.005)
	assertSameGrowth(t, global, kd)
}

func TestGridIndexGrows(t *testing.T) {
	res := randomRun(t, 6, func(p *Params) {
		p.Index = systems.IndexOptions{Kind: systems.IndexGrid, Bounds: unitBox, CellSize: 0.05, Rings: 1}
	})
	checkForest(t, res, 0.005)
}

func assertSameGrowth(t *testing.T, a, b *Result) {
	t.Helper()
	if a.Reason != b.Reason || a.Iterations != b.Iterations {
		t.Fatalf("runs ended differently: %v/%d vs %v/%d", a.Reason, a.Iterations, b.Reason, b.Iterations)
	}
	if !slices.Equal(a.Nodes, b.Nodes) {
		t.Fatalf("node positions differ (%d vs %d nodes)", len(a.Nodes), len(b.Nodes))
	}
	if !slices.Equal(a.Parents, b.Parents) {
		t.Fatal("parent arrays differ")
	}
	if !slices.Equal(a.Alive, b.Alive) {
		t.Fatal("attractor states differ")
	}
}
