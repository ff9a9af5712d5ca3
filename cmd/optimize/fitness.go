package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/giobri/leaf/config"
	"github.com/giobri/leaf/growth"
	"github.com/giobri/leaf/systems"
)

// invalidFitness is returned for parameter vectors the engine rejects.
const invalidFitness = 1e9

// FitnessEvaluator runs growth for every seed and scores the venation.
type FitnessEvaluator struct {
	params     *ParamVector
	seeds      []int64
	baseConfig *config.Config
	lambda     float64 // weight of the node budget term
	logger     *slog.Logger

	mu          sync.Mutex
	bestFitness float64
	bestResult  *growth.Result
	bestSeed    int64
	last        evalResult
}

// evalResult holds the per-seed averages of one evaluation.
type evalResult struct {
	fitness       float64
	aliveFraction float64
	nodes         float64
}

// NewFitnessEvaluator creates a new evaluator.
func NewFitnessEvaluator(params *ParamVector, seeds []int64, baseCfg *config.Config, lambda float64, logger *slog.Logger) *FitnessEvaluator {
	return &FitnessEvaluator{
		params:      params,
		seeds:       seeds,
		baseConfig:  baseCfg,
		lambda:      lambda,
		logger:      logger,
		bestFitness: math.Inf(1),
	}
}

// BestResult returns the best single-seed run seen so far and its seed.
func (fe *FitnessEvaluator) BestResult() (*growth.Result, int64) {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.bestResult, fe.bestSeed
}

// Last returns the averages of the most recent evaluation.
func (fe *FitnessEvaluator) Last() evalResult {
	fe.mu.Lock()
	defer fe.mu.Unlock()
	return fe.last
}

// seedResult holds the result from one seed evaluation.
type seedResult struct {
	fitness float64
	alive   float64
	nodes   int
	result  *growth.Result
}

// Evaluate computes fitness for raw parameter values (lower = better).
// Fitness is the live attractor fraction plus lambda times the share of the
// node budget used, averaged over seeds.
func (fe *FitnessEvaluator) Evaluate(x []float64) float64 {
	cfg := fe.baseConfig.Clone()
	if err := fe.params.ApplyToConfig(cfg, x); err != nil {
		fe.logger.Debug("rejected parameters", "values", x, "error", err)
		return invalidFitness
	}

	// Seeds run in parallel, so each engine stays serial.
	p := growth.ParamsFromConfig(cfg)
	p.Workers = 1

	results := make([]seedResult, len(fe.seeds))
	g, ctx := errgroup.WithContext(context.Background())
	for i, seed := range fe.seeds {
		g.Go(func() error {
			r, err := fe.runSeed(ctx, cfg, p, seed)
			if err != nil {
				return fmt.Errorf("seed %d: %w", seed, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		fe.logger.Debug("rejected parameters", "values", x, "error", err)
		return invalidFitness
	}

	var sum evalResult
	best := -1
	for i, r := range results {
		sum.fitness += r.fitness
		sum.aliveFraction += r.alive
		sum.nodes += float64(r.nodes)
		if best < 0 || r.fitness < results[best].fitness {
			best = i
		}
	}
	n := float64(len(fe.seeds))
	avg := evalResult{
		fitness:       sum.fitness / n,
		aliveFraction: sum.aliveFraction / n,
		nodes:         sum.nodes / n,
	}

	fe.mu.Lock()
	if avg.fitness < fe.bestFitness && best >= 0 {
		fe.bestFitness = avg.fitness
		fe.bestResult = results[best].result
		fe.bestSeed = fe.seeds[best]
	}
	fe.last = avg
	fe.mu.Unlock()

	return avg.fitness
}

// runSeed samples attractors for seed and grows them to completion. Fatal
// run endings are scored, not returned; only a rejected engine setup is an
// error.
func (fe *FitnessEvaluator) runSeed(ctx context.Context, cfg *config.Config, p growth.Params, seed int64) (seedResult, error) {
	rng := rand.New(rand.NewSource(seed))
	disk := systems.Disk{Center: cfg.Derived.Center, Radius: cfg.Attractors.Radius}
	attractors, _ := systems.SampleDisk(rng, disk, cfg.Attractors.Count, cfg.Derived.Separation, cfg.Attractors.MaxDraws)

	eng, err := growth.New(p, attractors, cfg.Derived.Roots, growth.WithLogger(discardLogger))
	if err != nil {
		return seedResult{}, err
	}
	res, _ := eng.Run(ctx)
	return seedResult{
		fitness: fe.computeFitness(res, p.MaxNodes),
		alive:   aliveFraction(res),
		nodes:   len(res.Nodes),
		result:  res,
	}, nil
}

// computeFitness scores a finished run. Fatal endings cost one extra unit
// so they always lose against a clean run.
func (fe *FitnessEvaluator) computeFitness(res *growth.Result, capacity int) float64 {
	f := aliveFraction(res)
	if capacity > 0 {
		f += fe.lambda * float64(len(res.Nodes)) / float64(capacity)
	}
	if res.Reason.Fatal() {
		f++
	}
	return f
}

func aliveFraction(res *growth.Result) float64 {
	if len(res.Attractors) == 0 {
		return 0
	}
	return float64(res.LiveAttractors) / float64(len(res.Attractors))
}
