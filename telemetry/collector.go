package telemetry

import "time"

// Collector accumulates growth events within iteration windows and
// produces IterationStats.
type Collector struct {
	window int

	// Current window tracking
	windowStart int

	// Event counters for current window
	spawned  int
	branches int
	killed   int
	assigned int
	recruits []float64
}

// NewCollector creates a new stats collector that flushes every window
// iterations.
func NewCollector(window int) *Collector {
	if window < 1 {
		window = 1
	}
	return &Collector{window: window}
}

// RecordSpawn records a new node. branch is true when its parent already
// had a child.
func (c *Collector) RecordSpawn(branch bool) {
	c.spawned++
	if branch {
		c.branches++
	}
}

// RecordKill records an attractor death.
func (c *Collector) RecordKill() {
	c.killed++
}

// RecordAssignment records an attractor that recruited n nodes.
func (c *Collector) RecordAssignment(n int) {
	c.assigned++
	c.recruits = append(c.recruits, float64(n))
}

// ShouldFlush returns true if enough iterations have passed to flush the window.
func (c *Collector) ShouldFlush(iteration int) bool {
	return iteration-c.windowStart >= c.window
}

// Pending reports whether iterations up to iteration have not been flushed.
func (c *Collector) Pending(iteration int) bool {
	return iteration > c.windowStart
}

// Flush produces an IterationStats and resets counters for the next window.
func (c *Collector) Flush(iteration, nodes, liveAttractors int, elapsed time.Duration) IterationStats {
	mean, p50, p90, maxv := ComputeStats(c.recruits)

	stats := IterationStats{
		WindowStart: c.windowStart,
		Iteration:   iteration,
		ElapsedSec:  elapsed.Seconds(),

		Nodes:          nodes,
		LiveAttractors: liveAttractors,

		Spawned:  c.spawned,
		Branches: c.branches,
		Killed:   c.killed,
		Assigned: c.assigned,

		RecruitsMean: mean,
		RecruitsP50:  p50,
		RecruitsP90:  p90,
		RecruitsMax:  maxv,
	}

	// Reset for next window
	c.windowStart = iteration
	c.spawned = 0
	c.branches = 0
	c.killed = 0
	c.assigned = 0
	c.recruits = c.recruits[:0]

	return stats
}

// Window returns the number of iterations per window.
func (c *Collector) Window() int {
	return c.window
}
