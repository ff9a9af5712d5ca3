package telemetry

import (
	"log/slog"
	"time"
)

// Phase is one timed stage of a growth iteration.
type Phase uint8

// Phases in execution order.
const (
	PhaseAttract Phase = iota
	PhaseKill
	PhaseSpawn
	PhaseIndex
	PhaseTelemetry
	numPhases
)

var phaseNames = [numPhases]string{"attract", "kill", "spawn", "index", "telemetry"}

func (p Phase) String() string {
	if p < numPhases {
		return phaseNames[p]
	}
	return "unknown"
}

// noPhase marks that no phase is being timed.
const noPhase = numPhases

// PhaseDurations holds one duration per phase.
type PhaseDurations [numPhases]time.Duration

// PerfSample holds timing data for a single iteration.
type PerfSample struct {
	IterDuration time.Duration
	Phases       PhaseDurations
}

// PerfCollector keeps the phase timings of the last windowSize iterations
// in a ring buffer.
type PerfCollector struct {
	samples []PerfSample
	next    int
	count   int

	current    PerfSample
	iterStart  time.Time
	phaseStart time.Time
	phase      Phase
}

// NewPerfCollector creates a new performance collector averaging over
// windowSize iterations.
func NewPerfCollector(windowSize int) *PerfCollector {
	if windowSize < 1 {
		windowSize = 50
	}
	return &PerfCollector{
		samples: make([]PerfSample, windowSize),
		phase:   noPhase,
	}
}

// StartIteration begins timing a new iteration.
func (p *PerfCollector) StartIteration() {
	p.iterStart = time.Now()
	p.current = PerfSample{}
	p.phase = noPhase
}

// StartPhase closes the running phase, if any, and starts timing ph.
func (p *PerfCollector) StartPhase(ph Phase) {
	now := time.Now()
	p.closePhase(now)
	p.phaseStart = now
	p.phase = ph
}

func (p *PerfCollector) closePhase(now time.Time) {
	if p.phase < numPhases {
		p.current.Phases[p.phase] += now.Sub(p.phaseStart)
	}
	p.phase = noPhase
}

// EndIteration finishes timing the current iteration and records the sample.
func (p *PerfCollector) EndIteration() {
	now := time.Now()
	p.closePhase(now)
	p.current.IterDuration = now.Sub(p.iterStart)

	p.samples[p.next] = p.current
	p.next = (p.next + 1) % len(p.samples)
	p.count = min(p.count+1, len(p.samples))
}

// PerfStats aggregates the samples of one window.
type PerfStats struct {
	AvgIterDuration time.Duration
	MinIterDuration time.Duration
	MaxIterDuration time.Duration

	PhaseAvg PhaseDurations
	PhasePct [numPhases]float64 // share of the average iteration, in percent

	ItersPerSecond float64
}

// Stats computes aggregated statistics over the current window.
func (p *PerfCollector) Stats() PerfStats {
	var s PerfStats
	if p.count == 0 {
		return s
	}

	var total time.Duration
	var phaseSum PhaseDurations
	for i, sample := range p.samples[:p.count] {
		total += sample.IterDuration
		if i == 0 || sample.IterDuration < s.MinIterDuration {
			s.MinIterDuration = sample.IterDuration
		}
		s.MaxIterDuration = max(s.MaxIterDuration, sample.IterDuration)
		for ph, d := range sample.Phases {
			phaseSum[ph] += d
		}
	}

	n := time.Duration(p.count)
	s.AvgIterDuration = total / n
	for ph := range phaseSum {
		s.PhaseAvg[ph] = phaseSum[ph] / n
		if s.AvgIterDuration > 0 {
			s.PhasePct[ph] = float64(s.PhaseAvg[ph]) / float64(s.AvgIterDuration) * 100
		}
	}
	if s.AvgIterDuration > 0 {
		s.ItersPerSecond = float64(time.Second) / float64(s.AvgIterDuration)
	}
	return s
}

// LogStats logs performance statistics at debug level using l.
func (s PerfStats) LogStats(l *slog.Logger) {
	attrs := []any{
		"avg_iter_us", s.AvgIterDuration.Microseconds(),
		"max_iter_us", s.MaxIterDuration.Microseconds(),
		"iters_per_sec", int(s.ItersPerSecond),
	}
	for ph := PhaseAttract; ph < numPhases; ph++ {
		if pct := s.PhasePct[ph]; pct > 0.1 {
			attrs = append(attrs, ph.String()+"_pct", float64(int(pct*10))/10)
		}
	}
	l.Debug("perf", attrs...)
}

// LogValue implements slog.LogValuer for structured logging.
func (s PerfStats) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.Int64("avg_iter_us", s.AvgIterDuration.Microseconds()),
		slog.Int64("min_iter_us", s.MinIterDuration.Microseconds()),
		slog.Int64("max_iter_us", s.MaxIterDuration.Microseconds()),
		slog.Float64("iters_per_sec", s.ItersPerSecond),
	}
	for ph := PhaseAttract; ph < numPhases; ph++ {
		attrs = append(attrs, slog.Float64(ph.String()+"_pct", s.PhasePct[ph]))
	}
	return slog.GroupValue(attrs...)
}

// PerfStatsCSV is one row of perf.csv.
type PerfStatsCSV struct {
	Iteration    int     `csv:"iteration"`
	AvgIterUS    int64   `csv:"avg_iter_us"`
	MinIterUS    int64   `csv:"min_iter_us"`
	MaxIterUS    int64   `csv:"max_iter_us"`
	ItersPerSec  float64 `csv:"iters_per_sec"`
	AttractPct   float64 `csv:"attract_pct"`
	KillPct      float64 `csv:"kill_pct"`
	SpawnPct     float64 `csv:"spawn_pct"`
	IndexPct     float64 `csv:"index_pct"`
	TelemetryPct float64 `csv:"telemetry_pct"`
}

// ToCSV flattens s into a perf.csv row for iteration.
func (s PerfStats) ToCSV(iteration int) PerfStatsCSV {
	return PerfStatsCSV{
		Iteration:    iteration,
		AvgIterUS:    s.AvgIterDuration.Microseconds(),
		MinIterUS:    s.MinIterDuration.Microseconds(),
		MaxIterUS:    s.MaxIterDuration.Microseconds(),
		ItersPerSec:  s.ItersPerSecond,
		AttractPct:   s.PhasePct[PhaseAttract],
		KillPct:      s.PhasePct[PhaseKill],
		SpawnPct:     s.PhasePct[PhaseSpawn],
		IndexPct:     s.PhasePct[PhaseIndex],
		TelemetryPct: s.PhasePct[PhaseTelemetry],
	}
}
