// Package growth runs the space colonization state machine: attractors
// recruit vein nodes, recruited nodes spawn children toward them, and
// attractors reached by the growth are killed.
package growth

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"slices"
	"time"

	"gonum.org/v1/gonum/spatial/r2"

	"github.com/giobri/leaf/components"
	"github.com/giobri/leaf/config"
	"github.com/giobri/leaf/systems"
	"github.com/giobri/leaf/telemetry"
)

// defaultWindow is the stats window used when no progress hook is set.
const defaultWindow = 50

// Params holds the immutable parameters of a run. Lengths are in
// unit-square coordinates.
type Params struct {
	KillRadius    float64
	Step          float64
	MaxNodes      int
	MaxAttractors int // 0 = no limit
	MaxIterations int
	Policy        systems.Policy
	Index         systems.IndexOptions

	Workers           int // 0 = GOMAXPROCS, 1 = serial
	ParallelThreshold int // minimum live attractors for the parallel path
}

// ParamsFromConfig maps a loaded configuration onto engine parameters.
func ParamsFromConfig(cfg *config.Config) Params {
	return Params{
		KillRadius:    cfg.Derived.KillRadius,
		Step:          cfg.Derived.Step,
		MaxNodes:      cfg.Growth.MaxNodes,
		MaxAttractors: cfg.Growth.MaxAttractors,
		MaxIterations: cfg.Growth.MaxIterations,
		Policy:        systems.Policy(cfg.Growth.Policy),
		Index: systems.IndexOptions{
			Kind:     systems.IndexKind(cfg.Index.Kind),
			Bounds:   cfg.Derived.Bounds,
			Margin:   cfg.Index.Margin,
			CellSize: cfg.Derived.CellSize,
			Rings:    cfg.Index.Rings,
		},
		Workers:           cfg.Parallel.Workers,
		ParallelThreshold: cfg.Parallel.Threshold,
	}
}

func (p Params) validate(roots int) error {
	switch {
	case !(p.KillRadius > 0):
		return fmt.Errorf("growth: kill radius must be positive, got %v", p.KillRadius)
	case !(p.Step > 0):
		return fmt.Errorf("growth: step must be positive, got %v", p.Step)
	case p.MaxIterations <= 0:
		return fmt.Errorf("growth: iteration cap must be positive, got %d", p.MaxIterations)
	case p.MaxAttractors < 0:
		return fmt.Errorf("growth: attractor capacity must not be negative, got %d", p.MaxAttractors)
	case roots > p.MaxNodes:
		return fmt.Errorf("%w: %d roots do not fit %d nodes", ErrCapacityExceeded, roots, p.MaxNodes)
	}
	return nil
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithProgress calls fn with window stats every `every` iterations and once
// more for a trailing partial window when the run ends. fn runs on the engine goroutine between
// iterations and must not modify engine state.
func WithProgress(fn func(telemetry.IterationStats), every int) Option {
	return func(e *Engine) {
		e.progress = fn
		e.every = every
	}
}

// WithPerf times every iteration phase into pc.
func WithPerf(pc *telemetry.PerfCollector) Option {
	return func(e *Engine) { e.perf = pc }
}

// WithFinalizer registers fn to run on the final Result on every exit path
// of Run, including cancellation and fatal errors.
func WithFinalizer(fn func(*Result)) Option {
	return func(e *Engine) { e.finalizers = append(e.finalizers, fn) }
}

// Engine owns the vein arena, the attractor set and the spatial index of a
// single run.
type Engine struct {
	p   Params
	log *slog.Logger

	veins      *components.Veins
	attractors *components.Attractors
	index      systems.Index

	iteration int
	reason    Reason
	ran       bool
	start     time.Time
	elapsed   time.Duration
	truncated int // attractors supplied beyond capacity

	// per attractor
	hints []int32
	links [][]int32

	// per node
	pull []r2.Vec
	hit  []bool
	kids []int32

	live    []int32
	touched []int32
	queries []*systems.Query
	workers int

	collector  *telemetry.Collector
	perf       *telemetry.PerfCollector
	progress   func(telemetry.IterationStats)
	every      int
	finalizers []func(*Result)
}

// New prepares a run over attractors growing from roots. Attractors beyond
// p.MaxAttractors are dropped and make Run stop with CapacityExceeded.
func New(p Params, attractors, roots []r2.Vec, opts ...Option) (*Engine, error) {
	if err := p.validate(len(roots)); err != nil {
		return nil, err
	}
	policy, err := systems.ParsePolicy(string(p.Policy))
	if err != nil {
		return nil, fmt.Errorf("growth: %w", err)
	}
	p.Policy = policy

	index, err := systems.NewIndex(p.Index)
	if err != nil {
		return nil, fmt.Errorf("growth: %w", err)
	}

	e := &Engine{
		p:     p,
		log:   slog.Default(),
		index: index,
		veins: components.NewVeins(p.MaxNodes),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.every <= 0 {
		e.every = defaultWindow
	}
	e.collector = telemetry.NewCollector(e.every)

	if p.MaxAttractors > 0 && len(attractors) > p.MaxAttractors {
		e.truncated = len(attractors)
		attractors = attractors[:p.MaxAttractors]
	}
	e.attractors = components.NewAttractors(attractors)
	e.hints = make([]int32, len(attractors))
	for i := range e.hints {
		e.hints[i] = -1
	}
	e.links = make([][]int32, len(attractors))

	for _, r := range roots {
		e.add(r, components.NoParent)
	}
	if err := e.index.Insert(roots, 0); err != nil {
		return nil, fmt.Errorf("%w: roots: %w", ErrIndexLookup, err)
	}

	e.workers = p.Workers
	if e.workers <= 0 {
		e.workers = runtime.GOMAXPROCS(0)
	}
	e.queries = make([]*systems.Query, e.workers)
	for i := range e.queries {
		e.queries[i] = systems.NewQuery()
	}

	return e, nil
}

// Veins returns the node arena. It must only be read while Run is not
// executing an iteration, for example from a progress hook.
func (e *Engine) Veins() *components.Veins { return e.veins }

// Attractors returns the attractor set, with the same restriction as Veins.
func (e *Engine) Attractors() *components.Attractors { return e.attractors }

// Iteration returns the number of completed or started iterations.
func (e *Engine) Iteration() int { return e.iteration }

// Run grows until a termination condition is met or ctx is done. ctx is
// checked once per iteration boundary. Cancellation is not an error: the
// result carries reason Cancelled. Fatal conditions return
// ErrCapacityExceeded or ErrIndexLookup together with the partial result.
// Finalization runs on every path.
func (e *Engine) Run(ctx context.Context) (res *Result, err error) {
	if e.ran {
		return e.result(), ErrAlreadyRun
	}
	e.ran = true
	e.start = time.Now()
	defer func() {
		res = e.finalize(err)
	}()

	if e.truncated > 0 {
		e.reason = CapacityExceeded
		return nil, fmt.Errorf("%w: %d attractors supplied, capacity %d",
			ErrCapacityExceeded, e.truncated, e.p.MaxAttractors)
	}

	e.log.Debug("growth started",
		"nodes", e.veins.Len(),
		"attractors", e.attractors.Len(),
		"policy", e.p.Policy,
		"index", e.p.Index.Kind,
		"workers", e.workers,
	)

	for {
		if ctx.Err() != nil {
			e.reason = Cancelled
			return nil, nil
		}
		e.iteration++
		reason, err := e.step()
		if reason != Running {
			e.reason = reason
			return nil, err
		}
	}
}

// step runs one iteration and returns the termination reason, or Running.
func (e *Engine) step() (Reason, error) {
	if e.perf != nil {
		e.perf.StartIteration()
		defer e.perf.EndIteration()
	}

	e.live = e.live[:0]
	for i, alive := range e.attractors.AliveFlags() {
		if alive {
			e.live = append(e.live, int32(i))
		}
	}

	e.phase(telemetry.PhaseAttract)
	if err := e.attract(e.live); err != nil {
		return IndexFailure, err
	}

	e.phase(telemetry.PhaseKill)
	assigned := e.kill()

	e.phase(telemetry.PhaseSpawn)
	first := e.veins.Len()
	refused := e.spawn()

	e.phase(telemetry.PhaseIndex)
	if added := e.veins.Positions()[first:]; len(added) > 0 {
		if err := e.index.Insert(added, int32(first)); err != nil {
			return IndexFailure, fmt.Errorf("%w: %w", ErrIndexLookup, err)
		}
	}

	e.phase(telemetry.PhaseTelemetry)
	if e.collector.ShouldFlush(e.iteration) {
		e.report(e.collector.Flush(e.iteration, e.veins.Len(), e.attractors.Live(), time.Since(e.start)))
	}

	switch {
	case refused:
		return CapacityExceeded, fmt.Errorf("%w: node arena full at %d nodes", ErrCapacityExceeded, e.veins.Len())
	case assigned == 0:
		return Converged, nil
	case e.attractors.Live() == 0:
		return Exhausted, nil
	case e.veins.Full():
		return CapacityExceeded, fmt.Errorf("%w: node arena full at %d nodes", ErrCapacityExceeded, e.veins.Len())
	case e.iteration >= e.p.MaxIterations:
		return IterationLimit, nil
	}
	return Running, nil
}

func (e *Engine) phase(ph telemetry.Phase) {
	if e.perf != nil {
		e.perf.StartPhase(ph)
	}
}

// kill retires every live attractor with a recruited node closer than the
// kill radius. It returns how many attractors recruited at least one node.
func (e *Engine) kill() int {
	assigned := 0
	for _, s := range e.live {
		links := e.links[s]
		if len(links) == 0 {
			continue
		}
		assigned++
		e.collector.RecordAssignment(len(links))

		sp := e.attractors.Pos(s)
		for _, u := range links {
			if r2.Norm(r2.Sub(e.veins.Pos(u), sp)) < e.p.KillRadius {
				e.attractors.Kill(s)
				e.collector.RecordKill()
				break
			}
		}
	}
	return assigned
}

// spawn grows one child from every node recruited by a surviving attractor,
// in ascending node order. It reports whether a spawn was refused because
// the arena is full.
func (e *Engine) spawn() (refused bool) {
	e.touched = e.touched[:0]
	for _, s := range e.live {
		if !e.attractors.Alive(s) {
			continue
		}
		sp := e.attractors.Pos(s)
		for _, u := range e.links[s] {
			if !e.hit[u] {
				e.hit[u] = true
				e.touched = append(e.touched, u)
			}
			e.pull[u] = r2.Add(e.pull[u], r2.Sub(sp, e.veins.Pos(u)))
		}
	}
	slices.Sort(e.touched)

	for _, u := range e.touched {
		d := e.pull[u]
		e.pull[u] = r2.Vec{}
		e.hit[u] = false
		if refused {
			continue
		}

		theta := math.Atan2(d.Y, d.X)
		up := e.veins.Pos(u)
		child := r2.Vec{
			X: up.X + e.p.Step*math.Cos(theta),
			Y: up.Y + e.p.Step*math.Sin(theta),
		}
		if !e.add(child, u) {
			refused = true
			continue
		}
		e.collector.RecordSpawn(e.kids[u] > 0)
		e.kids[u]++
	}
	return refused
}

// add appends a node to the arena and its per-node scratch.
func (e *Engine) add(p r2.Vec, parent int32) bool {
	if _, ok := e.veins.Add(p, parent); !ok {
		return false
	}
	e.pull = append(e.pull, r2.Vec{})
	e.hit = append(e.hit, false)
	e.kids = append(e.kids, 0)
	return true
}

func (e *Engine) report(stats telemetry.IterationStats) {
	e.log.Debug("progress", "stats", stats)
	if e.progress != nil {
		e.progress(stats)
	}
}

// finalize flushes the last stats window, builds the result and runs the
// finalizers. err is the error Run is about to return.
func (e *Engine) finalize(err error) *Result {
	e.elapsed = time.Since(e.start)
	if e.collector.Pending(e.iteration) {
		e.report(e.collector.Flush(e.iteration, e.veins.Len(), e.attractors.Live(), e.elapsed))
	}

	res := e.result()
	attrs := []any{
		"reason", res.Reason,
		"iterations", res.Iterations,
		"nodes", len(res.Nodes),
		"live_attractors", res.LiveAttractors,
		"elapsed", res.Elapsed,
	}
	if err != nil {
		e.log.Error("growth stopped", append(attrs, "err", err)...)
	} else {
		e.log.Info("growth finished", attrs...)
	}

	for _, fn := range e.finalizers {
		fn(res)
	}
	return res
}
