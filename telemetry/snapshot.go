package telemetry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SnapshotVersion is incremented when the format changes.
const SnapshotVersion = 1

// Snapshot holds the geometry of a growth run at some iteration. It is the
// hand-off format between a run and the renderer.
type Snapshot struct {
	Version   int    `json:"version"`
	Seed      int64  `json:"seed"`
	Iteration int    `json:"iteration"`
	Reason    string `json:"reason"`

	Nodes      []NodeState      `json:"nodes"`
	Attractors []AttractorState `json:"attractors"`

	Summary  *Summary  `json:"summary,omitempty"`
	Bookmark *Bookmark `json:"bookmark,omitempty"`
}

// NodeState is one vein node. Parent is -1 for roots.
type NodeState struct {
	ID     int32   `json:"id" csv:"id"`
	X      float64 `json:"x" csv:"x"`
	Y      float64 `json:"y" csv:"y"`
	Parent int32   `json:"parent" csv:"parent"`
}

// AttractorState is one attractor.
type AttractorState struct {
	ID    int32   `json:"id" csv:"id"`
	X     float64 `json:"x" csv:"x"`
	Y     float64 `json:"y" csv:"y"`
	Alive bool    `json:"alive" csv:"alive"`
}

// LiveAttractors counts the attractors still alive in the snapshot.
func (s *Snapshot) LiveAttractors() int {
	n := 0
	for _, a := range s.Attractors {
		if a.Alive {
			n++
		}
	}
	return n
}

// SaveSnapshot writes a snapshot to disk.
// Returns the filepath where it was saved.
func SaveSnapshot(snapshot *Snapshot, dir string) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create snapshot dir: %w", err)
	}

	// Build filename
	name := fmt.Sprintf("snapshot_%d", snapshot.Iteration)
	if snapshot.Bookmark != nil {
		sanitized := strings.ReplaceAll(string(snapshot.Bookmark.Type), " ", "_")
		name = fmt.Sprintf("snapshot_%d_%s", snapshot.Iteration, sanitized)
	}
	name += ".json"

	path := filepath.Join(dir, name)

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}

	return path, nil
}

// LoadSnapshot reads a snapshot from disk.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if snapshot.Version > SnapshotVersion {
		return nil, fmt.Errorf("snapshot version %d is newer than supported version %d", snapshot.Version, SnapshotVersion)
	}

	return &snapshot, nil
}
