package telemetry

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"github.com/giobri/leaf/config"
)

// OutputManager handles structured run output with CSV logging.
type OutputManager struct {
	dir          string
	progressFile *os.File
	perfFile     *os.File
	bookmarkFile *os.File

	// Track if headers have been written
	progressHeaderWritten bool
	perfHeaderWritten     bool
	bookmarkHeaderWritten bool
}

// NewOutputManager creates a new output manager and initializes the output directory.
// Returns nil if dir is empty (output disabled).
func NewOutputManager(dir string) (*OutputManager, error) {
	if dir == "" {
		return nil, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	om := &OutputManager{dir: dir}
	files := []struct {
		name string
		dst  **os.File
	}{
		{"progress.csv", &om.progressFile},
		{"perf.csv", &om.perfFile},
		{"bookmarks.csv", &om.bookmarkFile},
	}
	for _, f := range files {
		fh, err := os.Create(filepath.Join(dir, f.name))
		if err != nil {
			om.Close()
			return nil, fmt.Errorf("creating %s: %w", f.name, err)
		}
		*f.dst = fh
	}

	return om, nil
}

// appendRecord writes one CSV row, with headers on the first call.
func appendRecord[T any](f *os.File, headerWritten *bool, record T) error {
	records := []T{record}
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return err
		}
		*headerWritten = true
		return nil
	}
	return gocsv.MarshalWithoutHeaders(records, f)
}

// WriteConfig saves the current configuration as YAML.
func (om *OutputManager) WriteConfig(cfg *config.Config) error {
	if om == nil {
		return nil
	}
	return cfg.WriteYAML(filepath.Join(om.dir, "config.yaml"))
}

// WriteProgress writes a progress record to progress.csv.
func (om *OutputManager) WriteProgress(stats IterationStats) error {
	if om == nil {
		return nil
	}
	if err := appendRecord(om.progressFile, &om.progressHeaderWritten, stats); err != nil {
		return fmt.Errorf("writing progress: %w", err)
	}
	return nil
}

// WritePerf writes a performance stats record to perf.csv.
func (om *OutputManager) WritePerf(stats PerfStats, iteration int) error {
	if om == nil {
		return nil
	}
	if err := appendRecord(om.perfFile, &om.perfHeaderWritten, stats.ToCSV(iteration)); err != nil {
		return fmt.Errorf("writing perf: %w", err)
	}
	return nil
}

// WriteBookmark writes a bookmark record to bookmarks.csv.
func (om *OutputManager) WriteBookmark(b Bookmark) error {
	if om == nil {
		return nil
	}
	if err := appendRecord(om.bookmarkFile, &om.bookmarkHeaderWritten, b); err != nil {
		return fmt.Errorf("writing bookmark: %w", err)
	}
	return nil
}

// WriteGeometry writes the nodes and attractors of a snapshot to nodes.csv
// and attractors.csv.
func (om *OutputManager) WriteGeometry(s *Snapshot) error {
	if om == nil || s == nil {
		return nil
	}
	if err := writeCSVFile(filepath.Join(om.dir, "nodes.csv"), &s.Nodes); err != nil {
		return fmt.Errorf("writing nodes: %w", err)
	}
	if err := writeCSVFile(filepath.Join(om.dir, "attractors.csv"), &s.Attractors); err != nil {
		return fmt.Errorf("writing attractors: %w", err)
	}
	return nil
}

func writeCSVFile(path string, records any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(records, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteSnapshot saves s as JSON in the output directory.
func (om *OutputManager) WriteSnapshot(s *Snapshot) (string, error) {
	if om == nil || s == nil {
		return "", nil
	}
	return SaveSnapshot(s, om.dir)
}

// Dir returns the output directory path.
func (om *OutputManager) Dir() string {
	if om == nil {
		return ""
	}
	return om.dir
}

// Close flushes and closes all output files.
func (om *OutputManager) Close() error {
	if om == nil {
		return nil
	}

	var firstErr error
	for _, f := range []*os.File{om.progressFile, om.perfFile, om.bookmarkFile} {
		if f == nil {
			continue
		}
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
