package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// IterationStats holds aggregated statistics for a window of iterations.
type IterationStats struct {
	WindowStart int     `csv:"-"`
	Iteration   int     `csv:"iteration"`
	ElapsedSec  float64 `csv:"elapsed_sec"`

	// Counts at window end
	Nodes          int `csv:"nodes"`
	LiveAttractors int `csv:"live_attractors"`

	// Events during window
	Spawned  int `csv:"spawned"`
	Branches int `csv:"branches"` // spawns from a node that already had a child
	Killed   int `csv:"killed"`
	Assigned int `csv:"assigned"` // attractor-iterations with at least one recruit

	// Nodes recruited per assigned attractor
	RecruitsMean float64 `csv:"recruits_mean"`
	RecruitsP50  float64 `csv:"recruits_p50"`
	RecruitsP90  float64 `csv:"recruits_p90"`
	RecruitsMax  float64 `csv:"recruits_max"`
}

// ComputeStats calculates mean, median, p90 and max of values.
// values is sorted in place.
func ComputeStats(values []float64) (mean, p50, p90, maxv float64) {
	n := len(values)
	if n == 0 {
		return 0, 0, 0, 0
	}

	sort.Float64s(values)
	mean = stat.Mean(values, nil)
	p50 = stat.Quantile(0.50, stat.LinInterp, values, nil)
	p90 = stat.Quantile(0.90, stat.LinInterp, values, nil)
	return mean, p50, p90, values[n-1]
}

// ConsumedFraction returns the share of attractors dead at window end.
func (s IterationStats) ConsumedFraction(total int) float64 {
	if total == 0 {
		return 0
	}
	return 1 - float64(s.LiveAttractors)/float64(total)
}

// LogValue implements slog.LogValuer for structured logging.
func (s IterationStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("window_start", s.WindowStart),
		slog.Int("iteration", s.Iteration),
		slog.Float64("elapsed_sec", s.ElapsedSec),
		slog.Int("nodes", s.Nodes),
		slog.Int("live_attractors", s.LiveAttractors),
		slog.Int("spawned", s.Spawned),
		slog.Int("branches", s.Branches),
		slog.Int("killed", s.Killed),
		slog.Int("assigned", s.Assigned),
		slog.Float64("recruits_mean", s.RecruitsMean),
		slog.Float64("recruits_p90", s.RecruitsP90),
	)
}

// LogStats logs the window stats using l.
func (s IterationStats) LogStats(l *slog.Logger) {
	l.Info("progress",
		"iteration", s.Iteration,
		"nodes", s.Nodes,
		"live_attractors", s.LiveAttractors,
		"spawned", s.Spawned,
		"killed", s.Killed,
		"branches", s.Branches,
		"elapsed_sec", s.ElapsedSec,
	)
}
