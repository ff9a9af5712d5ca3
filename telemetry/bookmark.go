package telemetry

import (
	"fmt"
	"log/slog"
)

// BookmarkType identifies the type of bookmark.
type BookmarkType string

const (
	BookmarkFirstBranch    BookmarkType = "first_branch"
	BookmarkHalfConsumed   BookmarkType = "half_consumed"
	BookmarkMostConsumed   BookmarkType = "most_consumed"
	BookmarkGrowthSurge    BookmarkType = "growth_surge"
	BookmarkGrowthSlowdown BookmarkType = "growth_slowdown"
)

// Bookmark marks a notable moment of a run.
type Bookmark struct {
	Type        BookmarkType `json:"type" csv:"type"`
	Iteration   int          `json:"iteration" csv:"iteration"`
	Description string       `json:"description" csv:"description"`
}

// LogBookmark logs the bookmark using l.
func (b Bookmark) LogBookmark(l *slog.Logger) {
	l.Info("bookmark",
		"type", string(b.Type),
		"iteration", b.Iteration,
		"description", b.Description,
	)
}

// BookmarkDetector detects notable moments from successive progress windows.
type BookmarkDetector struct {
	total int // attractors at the start of the run

	// Rolling history (circular buffer)
	history     []IterationStats
	historySize int
	historyIdx  int
	historyFull bool

	// One-shot state
	branched    bool
	halfDone    bool
	mostDone    bool
	slowed      bool
	peakSpawned int
}

// NewBookmarkDetector creates a detector with the given history size for a
// run that started with total attractors.
func NewBookmarkDetector(historySize, total int) *BookmarkDetector {
	if historySize < 3 {
		historySize = 3
	}
	return &BookmarkDetector{
		total:       total,
		history:     make([]IterationStats, historySize),
		historySize: historySize,
	}
}

// Check analyzes the latest stats and returns any triggered bookmarks.
func (bd *BookmarkDetector) Check(stats IterationStats) []Bookmark {
	var bookmarks []Bookmark

	if !bd.branched && stats.Branches > 0 {
		bd.branched = true
		bookmarks = append(bookmarks, Bookmark{
			Type:        BookmarkFirstBranch,
			Iteration:   stats.Iteration,
			Description: fmt.Sprintf("%d branch points formed by iteration %d", stats.Branches, stats.Iteration),
		})
	}

	consumed := stats.ConsumedFraction(bd.total)
	if !bd.halfDone && consumed >= 0.5 {
		bd.halfDone = true
		bookmarks = append(bookmarks, bd.consumedBookmark(BookmarkHalfConsumed, stats, consumed))
	}
	if !bd.mostDone && consumed >= 0.9 {
		bd.mostDone = true
		bookmarks = append(bookmarks, bd.consumedBookmark(BookmarkMostConsumed, stats, consumed))
	}

	if b := bd.checkGrowthSurge(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}
	if b := bd.checkGrowthSlowdown(stats); b != nil {
		bookmarks = append(bookmarks, *b)
	}

	bd.addToHistory(stats)
	if stats.Spawned > bd.peakSpawned {
		bd.peakSpawned = stats.Spawned
	}

	return bookmarks
}

func (bd *BookmarkDetector) consumedBookmark(t BookmarkType, stats IterationStats, consumed float64) Bookmark {
	return Bookmark{
		Type:        t,
		Iteration:   stats.Iteration,
		Description: fmt.Sprintf("%.0f%% of %d attractors consumed with %d nodes", consumed*100, bd.total, stats.Nodes),
	}
}

func (bd *BookmarkDetector) addToHistory(stats IterationStats) {
	bd.history[bd.historyIdx] = stats
	bd.historyIdx = (bd.historyIdx + 1) % bd.historySize
	if bd.historyIdx == 0 {
		bd.historyFull = true
	}
}

func (bd *BookmarkDetector) getHistory() []IterationStats {
	if bd.historyFull {
		return bd.history
	}
	return bd.history[:bd.historyIdx]
}

// checkGrowthSurge fires when a window spawns more than twice the rolling
// average.
func (bd *BookmarkDetector) checkGrowthSurge(stats IterationStats) *Bookmark {
	history := bd.getHistory()
	if len(history) < 3 {
		return nil
	}

	var total int
	for _, h := range history {
		total += h.Spawned
	}
	avg := float64(total) / float64(len(history))
	if avg == 0 {
		return nil
	}

	if float64(stats.Spawned) > avg*2 && stats.Spawned >= 10 {
		return &Bookmark{
			Type:        BookmarkGrowthSurge,
			Iteration:   stats.Iteration,
			Description: fmt.Sprintf("Spawned %d nodes, %.1fx the rolling average (%.1f)", stats.Spawned, float64(stats.Spawned)/avg, avg),
		}
	}
	return nil
}

// checkGrowthSlowdown fires once when spawning falls below a quarter of the
// busiest window seen so far.
func (bd *BookmarkDetector) checkGrowthSlowdown(stats IterationStats) *Bookmark {
	if bd.slowed || bd.peakSpawned < 10 {
		return nil
	}
	if stats.Spawned*4 < bd.peakSpawned {
		bd.slowed = true
		return &Bookmark{
			Type:        BookmarkGrowthSlowdown,
			Iteration:   stats.Iteration,
			Description: fmt.Sprintf("Spawned %d nodes, down from a peak of %d per window", stats.Spawned, bd.peakSpawned),
		}
	}
	return nil
}
