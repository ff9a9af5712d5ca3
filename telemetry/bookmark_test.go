package telemetry

import "testing"

func hasBookmark(bookmarks []Bookmark, t BookmarkType) bool {
	for _, bm := range bookmarks {
		if bm.Type == t {
			return true
		}
	}
	return false
}

func TestBookmarkDetector_Consumption(t *testing.T) {
	bd := NewBookmarkDetector(10, 100)

	if bms := bd.Check(IterationStats{Iteration: 50, LiveAttractors: 80}); len(bms) != 0 {
		t.Errorf("unexpected bookmarks %v", bms)
	}

	bms := bd.Check(IterationStats{Iteration: 100, LiveAttractors: 40})
	if !hasBookmark(bms, BookmarkHalfConsumed) {
		t.Error("expected half_consumed bookmark")
	}
	if hasBookmark(bms, BookmarkMostConsumed) {
		t.Error("most_consumed fired early")
	}

	bms = bd.Check(IterationStats{Iteration: 150, LiveAttractors: 5})
	if !hasBookmark(bms, BookmarkMostConsumed) {
		t.Error("expected most_consumed bookmark")
	}
	if hasBookmark(bms, BookmarkHalfConsumed) {
		t.Error("half_consumed fired twice")
	}
}

func TestBookmarkDetector_FirstBranch(t *testing.T) {
	bd := NewBookmarkDetector(10, 100)

	bd.Check(IterationStats{Iteration: 50, LiveAttractors: 100, Spawned: 20})
	bms := bd.Check(IterationStats{Iteration: 100, LiveAttractors: 100, Spawned: 20, Branches: 3})
	if !hasBookmark(bms, BookmarkFirstBranch) {
		t.Error("expected first_branch bookmark")
	}
	bms = bd.Check(IterationStats{Iteration: 150, LiveAttractors: 100, Spawned: 20, Branches: 5})
	if hasBookmark(bms, BookmarkFirstBranch) {
		t.Error("first_branch fired twice")
	}
}

func TestBookmarkDetector_GrowthSurge(t *testing.T) {
	bd := NewBookmarkDetector(10, 1000)

	for i := 1; i <= 5; i++ {
		bd.Check(IterationStats{Iteration: i * 50, LiveAttractors: 1000, Spawned: 20})
	}

	bms := bd.Check(IterationStats{Iteration: 300, LiveAttractors: 1000, Spawned: 100})
	if !hasBookmark(bms, BookmarkGrowthSurge) {
		t.Error("expected growth_surge bookmark")
	}
}

func TestBookmarkDetector_GrowthSlowdown(t *testing.T) {
	bd := NewBookmarkDetector(10, 1000)

	bd.Check(IterationStats{Iteration: 50, LiveAttractors: 1000, Spawned: 200})
	bd.Check(IterationStats{Iteration: 100, LiveAttractors: 1000, Spawned: 120})

	bms := bd.Check(IterationStats{Iteration: 150, LiveAttractors: 1000, Spawned: 30})
	if !hasBookmark(bms, BookmarkGrowthSlowdown) {
		t.Error("expected growth_slowdown bookmark")
	}

	bms = bd.Check(IterationStats{Iteration: 200, LiveAttractors: 1000, Spawned: 10})
	if hasBookmark(bms, BookmarkGrowthSlowdown) {
		t.Error("growth_slowdown fired twice")
	}
}
