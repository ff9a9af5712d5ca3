package systems

import (
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

func TestSampleDiskSeparation(t *testing.T) {
	disk := Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.4}
	rng := rand.New(rand.NewSource(7))

	pts, stats := SampleDisk(rng, disk, 10, 0.08, 0)

	if len(pts) > 10 {
		t.Fatalf("got %d points, want at most 10", len(pts))
	}
	if stats.Accepted != len(pts) || stats.Requested != 10 {
		t.Errorf("stats = %+v, points = %d", stats, len(pts))
	}
	if stats.Draws != 10 && len(pts) != 10 {
		t.Errorf("expected the draw budget to default to the request, got %d draws", stats.Draws)
	}
	for i, p := range pts {
		if distance(p, disk.Center) > disk.Radius+1e-12 {
			t.Errorf("point %d = %v outside disk", i, p)
		}
		for j := i + 1; j < len(pts); j++ {
			if d := distance(p, pts[j]); d <= 0.08 {
				t.Errorf("points %d and %d are %v apart, want > 0.08", i, j, d)
			}
		}
	}
}

func TestSampleDiskDeterministic(t *testing.T) {
	disk := Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.4}

	a, _ := SampleDisk(rand.New(rand.NewSource(99)), disk, 500, 0.01, 2000)
	b, _ := SampleDisk(rand.New(rand.NewSource(99)), disk, 500, 0.01, 2000)

	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("point %d differs: %v vs %v", i, a[i], b[i])
		}
	}
}

func TestSampleDiskMatchesQuadraticCheck(t *testing.T) {
	disk := Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.4}
	const sep = 0.03

	got, _ := SampleDisk(rand.New(rand.NewSource(3)), disk, 400, sep, 400)

	// Replay the same draws with a brute-force acceptance test.
	rng := rand.New(rand.NewSource(3))
	var want []r2.Vec
	for i := 0; i < 400; i++ {
		p := drawInDisk(rng, disk)
		ok := true
		for _, q := range want {
			if distance(p, q) <= sep {
				ok = false
				break
			}
		}
		if ok {
			want = append(want, p)
		}
	}

	if len(got) != len(want) {
		t.Fatalf("accepted %d points, brute force accepted %d", len(got), len(want))
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("point %d: %v, want %v", i, got[i], want[i])
		}
	}
}

func TestSampleDiskStarvation(t *testing.T) {
	disk := Disk{Center: r2.Vec{X: 0.5, Y: 0.5}, Radius: 0.1}
	rng := rand.New(rand.NewSource(1))

	pts, stats := SampleDisk(rng, disk, 50, 0.5, 200)

	if len(pts) != 1 {
		t.Errorf("got %d points, want 1 when separation exceeds the diameter", len(pts))
	}
	if !stats.Starved() {
		t.Error("expected starvation to be reported")
	}
	if stats.Draws != 200 {
		t.Errorf("draws = %d, want the full budget of 200", stats.Draws)
	}
}

func TestSampleDiskZeroRequest(t *testing.T) {
	pts, stats := SampleDisk(rand.New(rand.NewSource(1)), Disk{Radius: 1}, 0, 0.1, 0)
	if len(pts) != 0 || stats.Draws != 0 || stats.Starved() {
		t.Errorf("got %d points, stats %+v", len(pts), stats)
	}
}
