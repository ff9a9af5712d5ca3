package systems

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/spatial/r2"
)

// Disk is the region attractors are sampled from.
type Disk struct {
	Center r2.Vec
	Radius float64
}

// Contains reports whether p lies inside the closed disk.
func (d Disk) Contains(p r2.Vec) bool {
	return distance(d.Center, p) <= d.Radius
}

// Bounds returns the axis-aligned box around the disk.
func (d Disk) Bounds() r2.Box {
	return r2.Box{
		Min: r2.Vec{X: d.Center.X - d.Radius, Y: d.Center.Y - d.Radius},
		Max: r2.Vec{X: d.Center.X + d.Radius, Y: d.Center.Y + d.Radius},
	}
}

// SampleStats describes one sampler run.
type SampleStats struct {
	Requested int
	Accepted  int
	Draws     int
}

// Starved reports whether fewer points than requested were accepted.
func (s SampleStats) Starved() bool { return s.Accepted < s.Requested }

// SampleDisk throws darts at d and keeps, in acceptance order, each candidate
// that is farther than separation from every point kept before it. It stops
// after n acceptances or maxDraws candidates; maxDraws <= 0 means n draws.
func SampleDisk(rng *rand.Rand, d Disk, n int, separation float64, maxDraws int) ([]r2.Vec, SampleStats) {
	stats := SampleStats{Requested: n}
	if n <= 0 {
		return nil, stats
	}
	if maxDraws <= 0 {
		maxDraws = n
	}
	separation = max(separation, 0)

	cell := separation
	if cell <= 0 {
		cell = d.Radius
	}
	grid := NewSpatialGrid(d.Bounds(), cell, 1)
	out := make([]r2.Vec, 0, n)

	for stats.Draws < maxDraws && len(out) < n {
		p := drawInDisk(rng, d)
		stats.Draws++
		if grid.AnyWithin(p, separation, out) {
			continue
		}
		grid.Add(int32(len(out)), p)
		out = append(out, p)
	}

	stats.Accepted = len(out)
	return out, stats
}

// drawInDisk returns an area-uniform point in d. The radius fraction is the
// sum of two uniforms folded back into [0, 1], which has density 2r.
func drawInDisk(rng *rand.Rand, d Disk) r2.Vec {
	theta := 2 * math.Pi * rng.Float64()
	u := rng.Float64() + rng.Float64()
	r := u
	if u > 1 {
		r = 2 - u
	}
	r *= d.Radius
	return r2.Vec{
		X: d.Center.X + r*math.Cos(theta),
		Y: d.Center.Y + r*math.Sin(theta),
	}
}
