package telemetry

import (
	"os"
	"path/filepath"
	"testing"
)

func TestSnapshotSaveLoad(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:   SnapshotVersion,
		Seed:      42,
		Iteration: 120,
		Reason:    "exhausted",
		Nodes: []NodeState{
			{ID: 0, X: 0.5, Y: 0.9, Parent: -1},
			{ID: 1, X: 0.5, Y: 0.8983, Parent: 0},
		},
		Attractors: []AttractorState{
			{ID: 0, X: 0.5, Y: 0.5, Alive: true},
			{ID: 1, X: 0.6, Y: 0.4, Alive: false},
		},
		Summary: &Summary{Nodes: 2, Roots: 1, Leaves: 1, DepthMax: 1},
		Bookmark: &Bookmark{
			Type:        BookmarkHalfConsumed,
			Iteration:   120,
			Description: "Test bookmark",
		},
	}

	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("Snapshot file not created at %s", path)
	}

	loaded, err := LoadSnapshot(path)
	if err != nil {
		t.Fatalf("LoadSnapshot failed: %v", err)
	}

	if loaded.Seed != snapshot.Seed || loaded.Iteration != snapshot.Iteration || loaded.Reason != snapshot.Reason {
		t.Errorf("header mismatch: got %+v", loaded)
	}
	if len(loaded.Nodes) != 2 || loaded.Nodes[0].Parent != -1 || loaded.Nodes[1].Y != 0.8983 {
		t.Errorf("nodes mismatch: %+v", loaded.Nodes)
	}
	if loaded.LiveAttractors() != 1 {
		t.Errorf("LiveAttractors = %d, want 1", loaded.LiveAttractors())
	}
	if loaded.Summary == nil || loaded.Summary.Roots != 1 {
		t.Errorf("summary not loaded: %+v", loaded.Summary)
	}
	if loaded.Bookmark == nil || loaded.Bookmark.Type != BookmarkHalfConsumed {
		t.Errorf("bookmark not loaded: %+v", loaded.Bookmark)
	}
}

func TestSnapshotFilename(t *testing.T) {
	tmpDir := t.TempDir()

	snapshot := &Snapshot{
		Version:   SnapshotVersion,
		Iteration: 500,
		Bookmark:  &Bookmark{Type: BookmarkGrowthSlowdown, Iteration: 500},
	}
	path, err := SaveSnapshot(snapshot, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if expected := filepath.Join(tmpDir, "snapshot_500_growth_slowdown.json"); path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}

	path, err = SaveSnapshot(&Snapshot{Version: SnapshotVersion, Iteration: 300}, tmpDir)
	if err != nil {
		t.Fatalf("SaveSnapshot failed: %v", err)
	}
	if expected := filepath.Join(tmpDir, "snapshot_300.json"); path != expected {
		t.Errorf("Path mismatch: got %s, want %s", path, expected)
	}
}

func TestLoadSnapshotRejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadSnapshot(path); err == nil {
		t.Error("expected error for newer snapshot version")
	}
}
