// Package config provides configuration loading and access for growth runs.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/spatial/r2"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all run configuration parameters.
// Lengths suffixed with _px are in canvas pixels and are converted to
// unit-square coordinates in Derived.
type Config struct {
	Seed       int64            `yaml:"seed" toml:"seed"`
	Canvas     CanvasConfig     `yaml:"canvas" toml:"canvas"`
	Attractors AttractorsConfig `yaml:"attractors" toml:"attractors"`
	Growth     GrowthConfig     `yaml:"growth" toml:"growth"`
	Index      IndexConfig      `yaml:"index" toml:"index"`
	Parallel   ParallelConfig   `yaml:"parallel" toml:"parallel"`
	Telemetry  TelemetryConfig  `yaml:"telemetry" toml:"telemetry"`
	Render     RenderConfig     `yaml:"render" toml:"render"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// CanvasConfig sets the pixel scale of the unit square.
type CanvasConfig struct {
	Size int `yaml:"size" toml:"size"` // pixels per unit length
}

// AttractorsConfig holds attractor sampling parameters.
type AttractorsConfig struct {
	CenterX      float64 `yaml:"center_x" toml:"center_x"`
	CenterY      float64 `yaml:"center_y" toml:"center_y"`
	Radius       float64 `yaml:"radius" toml:"radius"`
	Count        int     `yaml:"count" toml:"count"`
	SeparationPx float64 `yaml:"separation_px" toml:"separation_px"` // minimum distance between attractors
	MaxDraws     int     `yaml:"max_draws" toml:"max_draws"`         // 0 = one draw per requested attractor
}

// PointConfig is a position in unit-square coordinates.
type PointConfig struct {
	X float64 `yaml:"x" toml:"x"`
	Y float64 `yaml:"y" toml:"y"`
}

// GrowthConfig holds growth engine parameters.
type GrowthConfig struct {
	KillRadiusPx  float64       `yaml:"kill_radius_px" toml:"kill_radius_px"`
	StepPx        float64       `yaml:"step_px" toml:"step_px"`
	MaxNodes      int           `yaml:"max_nodes" toml:"max_nodes"`
	MaxAttractors int           `yaml:"max_attractors" toml:"max_attractors"`
	MaxIterations int           `yaml:"max_iterations" toml:"max_iterations"`
	Policy        string        `yaml:"policy" toml:"policy"` // relative_neighbor or nearest
	Roots         []PointConfig `yaml:"roots" toml:"roots"`
}

// IndexConfig selects and tunes the spatial index.
type IndexConfig struct {
	Kind       string  `yaml:"kind" toml:"kind"`   // delaunay, grid, global, kdtree
	Rings      int     `yaml:"rings" toml:"rings"` // neighborhood depth around the located region
	Margin     float64 `yaml:"margin" toml:"margin"`
	CellSizePx float64 `yaml:"cell_size_px" toml:"cell_size_px"` // grid only
	MinX       float64 `yaml:"min_x" toml:"min_x"`
	MinY       float64 `yaml:"min_y" toml:"min_y"`
	MaxX       float64 `yaml:"max_x" toml:"max_x"`
	MaxY       float64 `yaml:"max_y" toml:"max_y"`
}

// ParallelConfig controls the parallel attraction phase.
type ParallelConfig struct {
	Workers   int `yaml:"workers" toml:"workers"`     // 0 = GOMAXPROCS, 1 = serial
	Threshold int `yaml:"threshold" toml:"threshold"` // minimum live attractors to go parallel
}

// TelemetryConfig holds progress and perf reporting parameters.
type TelemetryConfig struct {
	ProgressInterval int  `yaml:"progress_interval" toml:"progress_interval"` // iterations per progress window
	PerfWindow       int  `yaml:"perf_window" toml:"perf_window"`             // iterations averaged by perf stats
	Bookmarks        bool `yaml:"bookmarks" toml:"bookmarks"`                 // snapshot on growth milestones
}

// RenderConfig holds PNG rendering parameters.
type RenderConfig struct {
	Mode           string  `yaml:"mode" toml:"mode"` // circles or lines
	Back           float64 `yaml:"back" toml:"back"` // background gray level
	Front          float64 `yaml:"front" toml:"front"`
	NodeRadiusPx   float64 `yaml:"node_radius_px" toml:"node_radius_px"`
	LineWidthPx    float64 `yaml:"line_width_px" toml:"line_width_px"`
	ShowAttractors bool    `yaml:"show_attractors" toml:"show_attractors"`
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	Unit       float64  // 1 / Canvas.Size
	Separation float64  // Attractors.SeparationPx in unit coordinates
	KillRadius float64  // Growth.KillRadiusPx in unit coordinates
	Step       float64  // Growth.StepPx in unit coordinates
	CellSize   float64  // Index.CellSizePx in unit coordinates
	Center     r2.Vec   // attractor disk center
	Roots      []r2.Vec // root node positions
	Bounds     r2.Box   // indexed working region
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML or TOML file, merging with embedded
// defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg, err := Defaults()
	if err != nil {
		return nil, err
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if strings.EqualFold(filepath.Ext(path), ".toml") {
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing config file: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()

	return cfg, nil
}

// Defaults returns the embedded default configuration.
func Defaults() (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate reports the first parameter that cannot describe a finite run.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Canvas.Size > 0, "canvas.size must be positive, got %d", c.Canvas.Size)
	check(c.Attractors.Radius > 0, "attractors.radius must be positive, got %v", c.Attractors.Radius)
	check(c.Attractors.Count >= 0, "attractors.count must not be negative, got %d", c.Attractors.Count)
	check(c.Attractors.SeparationPx >= 0, "attractors.separation_px must not be negative, got %v", c.Attractors.SeparationPx)
	check(c.Growth.KillRadiusPx > 0, "growth.kill_radius_px must be positive, got %v", c.Growth.KillRadiusPx)
	check(c.Growth.StepPx > 0, "growth.step_px must be positive, got %v", c.Growth.StepPx)
	check(c.Growth.MaxNodes >= len(c.Growth.Roots), "growth.max_nodes (%d) cannot hold %d roots", c.Growth.MaxNodes, len(c.Growth.Roots))
	check(c.Growth.MaxAttractors > 0, "growth.max_attractors must be positive, got %d", c.Growth.MaxAttractors)
	check(c.Growth.MaxIterations > 0, "growth.max_iterations must be positive, got %d", c.Growth.MaxIterations)
	check(c.Growth.Policy == "" || c.Growth.Policy == "relative_neighbor" || c.Growth.Policy == "nearest",
		"growth.policy %q is not relative_neighbor or nearest", c.Growth.Policy)
	switch c.Index.Kind {
	case "", "delaunay", "grid", "global", "kdtree":
	default:
		check(false, "index.kind %q is not delaunay, grid, global or kdtree", c.Index.Kind)
	}
	check(c.Index.Kind != "grid" || c.Index.CellSizePx > 0, "index.cell_size_px must be positive for the grid index")
	check(c.Index.MaxX > c.Index.MinX && c.Index.MaxY > c.Index.MinY, "index bounds are empty")
	if c.Attractors.Radius > 0 {
		check(c.inIndexBounds(c.Attractors.CenterX-c.Attractors.Radius, c.Attractors.CenterY-c.Attractors.Radius) &&
			c.inIndexBounds(c.Attractors.CenterX+c.Attractors.Radius, c.Attractors.CenterY+c.Attractors.Radius),
			"attractor disk (center %v,%v radius %v) exceeds index bounds",
			c.Attractors.CenterX, c.Attractors.CenterY, c.Attractors.Radius)
	}
	for i, r := range c.Growth.Roots {
		check(c.inIndexBounds(r.X, r.Y), "growth.roots[%d] (%v,%v) lies outside index bounds", i, r.X, r.Y)
	}
	check(c.Parallel.Workers >= 0, "parallel.workers must not be negative, got %d", c.Parallel.Workers)
	check(c.Telemetry.ProgressInterval > 0, "telemetry.progress_interval must be positive, got %d", c.Telemetry.ProgressInterval)
	check(c.Render.Mode == "circles" || c.Render.Mode == "lines", "render.mode %q is not circles or lines", c.Render.Mode)

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// inIndexBounds reports whether (x, y) lies in the closed index box.
func (c *Config) inIndexBounds(x, y float64) bool {
	return x >= c.Index.MinX && x <= c.Index.MaxX && y >= c.Index.MinY && y <= c.Index.MaxY
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Growth.Roots = append([]PointConfig(nil), c.Growth.Roots...)
	out.Derived.Roots = append([]r2.Vec(nil), c.Derived.Roots...)
	return &out
}

// Refresh validates c and recomputes derived values. Call it after
// changing fields in code.
func (c *Config) Refresh() error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.computeDerived()
	return nil
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Canvas.Size > 0 {
		c.Derived.Unit = 1 / float64(c.Canvas.Size)
	}
	u := c.Derived.Unit
	c.Derived.Separation = c.Attractors.SeparationPx * u
	c.Derived.KillRadius = c.Growth.KillRadiusPx * u
	c.Derived.Step = c.Growth.StepPx * u
	c.Derived.CellSize = c.Index.CellSizePx * u
	c.Derived.Center = r2.Vec{X: c.Attractors.CenterX, Y: c.Attractors.CenterY}

	c.Derived.Roots = make([]r2.Vec, len(c.Growth.Roots))
	for i, p := range c.Growth.Roots {
		c.Derived.Roots[i] = r2.Vec{X: p.X, Y: p.Y}
	}

	c.Derived.Bounds = r2.Box{
		Min: r2.Vec{X: c.Index.MinX, Y: c.Index.MinY},
		Max: r2.Vec{X: c.Index.MaxX, Y: c.Index.MaxY},
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
