// Package main tunes growth parameters with Nelder-Mead so that a venation
// consumes its attractors without spending the node budget.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/gocarina/gocsv"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/optimize"

	"github.com/giobri/leaf/config"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// evalRecord is one row of optimize_log.csv.
type evalRecord struct {
	Eval          int     `csv:"eval"`
	Fitness       float64 `csv:"fitness"`
	AliveFraction float64 `csv:"alive_fraction"`
	Nodes         float64 `csv:"nodes"`
	KillRadiusPx  float64 `csv:"kill_radius_px"`
	StepPx        float64 `csv:"step_px"`
}

type options struct {
	configPath string
	seeds      int
	maxEvals   int
	lambda     float64
	outputDir  string
}

// formatDuration formats a duration as HH:MM:SS or MM:SS for shorter durations.
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%02dm%02ds", h, m, s)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:          "optimize",
		Short:        "Tune kill radius and step length with Nelder-Mead",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := slog.New(charmlog.NewWithOptions(cmd.ErrOrStderr(), charmlog.Options{
				ReportTimestamp: true,
				TimeFormat:      "15:04:05.00",
			}))
			return run(opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "base config file (empty = use defaults)")
	f.IntVar(&opts.seeds, "seeds", 3, "number of seeds per evaluation")
	f.IntVar(&opts.maxEvals, "max-evals", 100, "maximum number of evaluations")
	f.Float64Var(&opts.lambda, "lambda", 100, "weight of the node budget term")
	f.StringVar(&opts.outputDir, "output", "", "output directory for results")
	cmd.MarkFlagRequired("output")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func run(opts options, logger *slog.Logger) error {
	if err := os.MkdirAll(opts.outputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	baseCfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	params := NewParamVector()
	evalSeeds := make([]int64, opts.seeds)
	for i := range evalSeeds {
		evalSeeds[i] = int64(i*1000 + 42)
	}
	evaluator := NewFitnessEvaluator(params, evalSeeds, baseCfg, opts.lambda, logger)

	logFile, err := os.Create(filepath.Join(opts.outputDir, "optimize_log.csv"))
	if err != nil {
		return fmt.Errorf("creating log file: %w", err)
	}
	defer logFile.Close()

	// Track evaluations and timing
	evalCount := 0
	headerWritten := false
	bestFitness := math.Inf(1)
	var bestParams []float64
	startTime := time.Now()

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			clamped := params.Clamp(params.Denormalize(x))
			fitness := evaluator.Evaluate(clamped)
			evalCount++

			if fitness < bestFitness {
				bestFitness = fitness
				bestParams = clamped
			}

			last := evaluator.Last()
			rec := []evalRecord{{
				Eval:          evalCount,
				Fitness:       fitness,
				AliveFraction: last.aliveFraction,
				Nodes:         last.nodes,
				KillRadiusPx:  clamped[0],
				StepPx:        clamped[1],
			}}
			var werr error
			if headerWritten {
				werr = gocsv.MarshalWithoutHeaders(rec, logFile)
			} else {
				werr = gocsv.Marshal(rec, logFile)
				headerWritten = true
			}
			if werr != nil {
				logger.Error("failed to write log row", "error", werr)
			}

			elapsed := time.Since(startTime)
			remaining := time.Duration(opts.maxEvals-evalCount) * (elapsed / time.Duration(evalCount))
			logger.Info("evaluation",
				"eval", fmt.Sprintf("%d/%d", evalCount, opts.maxEvals),
				"fitness", fitness,
				"alive", last.aliveFraction,
				"nodes", last.nodes,
				"best", bestFitness,
				"elapsed", formatDuration(elapsed),
				"eta", formatDuration(remaining),
			)
			return fitness
		},
	}

	settings := &optimize.Settings{
		FuncEvaluations: opts.maxEvals,
	}

	logger.Info("starting Nelder-Mead optimization",
		"params", params.Dim(),
		"max_evals", opts.maxEvals,
		"seeds", opts.seeds,
		"lambda", opts.lambda,
	)

	initX := params.Normalize(params.ExtractFromConfig(baseCfg))
	result, err := optimize.Minimize(problem, initX, settings, &optimize.NelderMead{})
	if err != nil {
		logger.Warn("optimization ended", "error", err)
	}

	// Use best params found (may be from any evaluation, not just final)
	if bestParams == nil && result != nil {
		bestParams = params.Clamp(params.Denormalize(result.X))
	}
	if bestParams == nil {
		return fmt.Errorf("no evaluation completed")
	}

	attrs := []any{"evals", evalCount, "elapsed", formatDuration(time.Since(startTime)), "fitness", bestFitness}
	for i, spec := range params.Specs {
		attrs = append(attrs, spec.Name, bestParams[i])
	}
	logger.Info("optimization complete", attrs...)

	bestCfg := baseCfg.Clone()
	if err := params.ApplyToConfig(bestCfg, bestParams); err != nil {
		return fmt.Errorf("applying best parameters: %w", err)
	}
	configOutPath := filepath.Join(opts.outputDir, "best_config.yaml")
	if err := bestCfg.WriteYAML(configOutPath); err != nil {
		return err
	}
	logger.Info("best config saved", "path", configOutPath)

	if res, seed := evaluator.BestResult(); res != nil {
		logger.Info("best run",
			"seed", seed,
			"reason", res.Reason,
			"iterations", res.Iterations,
			"nodes", len(res.Nodes),
			"live_attractors", res.LiveAttractors,
		)
	}
	return nil
}
