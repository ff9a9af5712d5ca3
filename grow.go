package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/giobri/leaf/config"
	"github.com/giobri/leaf/growth"
	"github.com/giobri/leaf/renderer"
	"github.com/giobri/leaf/telemetry"
)

// bookmarkHistory is the number of progress windows the bookmark detector
// compares against.
const bookmarkHistory = 10

type growOptions struct {
	out  string
	seed int64
	png  string
}

func newGrowCmd(root *rootOptions) *cobra.Command {
	var opts growOptions

	cmd := &cobra.Command{
		Use:   "grow",
		Short: "Sample attractors and grow a venation until it stops",
		Long: `Grow samples the attractor disk, then runs the growth engine until it
converges, exhausts its attractors, hits a cap or is interrupted. The final
snapshot, geometry CSVs, progress logs and a PNG are written to --out, also
when the run is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Cfg()
			if cmd.Flags().Changed("seed") {
				cfg.Seed = opts.seed
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err := runGrow(ctx, cfg, opts, root.logger)
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.out, "out", "o", "out", "output directory for CSV logs, snapshots and images")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "RNG seed (0 = time-based; overrides config)")
	cmd.Flags().StringVar(&opts.png, "png", "venation.png", "PNG file name inside --out (empty = no image)")

	return cmd
}

// runGrow performs one complete run with every output hook attached. The
// returned error joins the engine error with any output failure.
func runGrow(ctx context.Context, cfg *config.Config, opts growOptions, logger *slog.Logger) (*growth.Result, error) {
	seed := resolveSeed(cfg.Seed)
	cfg.Seed = seed

	om, err := telemetry.NewOutputManager(opts.out)
	if err != nil {
		return nil, err
	}
	defer om.Close()

	if err := om.WriteConfig(cfg); err != nil {
		logger.Error("failed to write config", "error", err)
	}

	attractors := sampleAttractors(cfg, seed, logger)

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	var (
		eng      *growth.Engine
		outErrs  []error
		detector *telemetry.BookmarkDetector
	)
	if cfg.Telemetry.Bookmarks {
		detector = telemetry.NewBookmarkDetector(bookmarkHistory, len(attractors))
	}
	record := func(err error) {
		if err != nil {
			logger.Error("output failed", "error", err)
			outErrs = append(outErrs, err)
		}
	}

	progress := func(stats telemetry.IterationStats) {
		stats.LogStats(logger)
		record(om.WriteProgress(stats))

		ps := perf.Stats()
		ps.LogStats(logger)
		record(om.WritePerf(ps, stats.Iteration))

		if detector == nil {
			return
		}
		for _, b := range detector.Check(stats) {
			b.LogBookmark(logger)
			record(om.WriteBookmark(b))

			snap := eng.Snapshot(seed)
			snap.Bookmark = &b
			if _, err := om.WriteSnapshot(snap); err != nil {
				record(err)
			}
		}
	}

	finalize := func(res *growth.Result) {
		snap := res.Snapshot(seed)
		path, err := om.WriteSnapshot(snap)
		record(err)
		if path != "" {
			logger.Info("snapshot saved", "path", path)
		}
		record(om.WriteGeometry(snap))

		if opts.png == "" {
			return
		}
		pngPath := opts.png
		if !filepath.IsAbs(pngPath) && om.Dir() != "" {
			pngPath = filepath.Join(om.Dir(), pngPath)
		}
		if err := renderer.SavePNG(snap, renderer.OptionsFromConfig(cfg), pngPath); err != nil {
			record(fmt.Errorf("rendering %s: %w", pngPath, err))
			return
		}
		logger.Info("image saved", "path", pngPath)
	}

	eng, err = growth.New(growth.ParamsFromConfig(cfg), attractors, cfg.Derived.Roots,
		growth.WithLogger(logger),
		growth.WithPerf(perf),
		growth.WithProgress(progress, cfg.Telemetry.ProgressInterval),
		growth.WithFinalizer(finalize),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("starting growth",
		"seed", seed,
		"attractors", len(attractors),
		"roots", len(cfg.Derived.Roots),
		"policy", cfg.Growth.Policy,
		"index", cfg.Index.Kind,
		"output", om.Dir(),
	)

	res, err := eng.Run(ctx)
	return res, errors.Join(append([]error{err}, outErrs...)...)
}
