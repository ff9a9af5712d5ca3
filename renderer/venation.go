// Package renderer draws growth snapshots to raster images.
package renderer

import (
	"fmt"
	"io"

	"github.com/gogpu/gg"

	"github.com/giobri/leaf/config"
	"github.com/giobri/leaf/telemetry"
)

// Mode selects how vein nodes are drawn.
type Mode string

const (
	// ModeCircles fills a disk at every node.
	ModeCircles Mode = "circles"
	// ModeLines strokes every node to its parent.
	ModeLines Mode = "lines"
)

// Options controls rasterization. Lengths are in pixels.
type Options struct {
	Size           int
	Mode           Mode
	Back           float64 // background gray level in [0,1]
	Front          float64 // vein gray level in [0,1]
	NodeRadius     float64
	LineWidth      float64
	ShowAttractors bool
}

// OptionsFromConfig reads render options from cfg.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Size:           cfg.Canvas.Size,
		Mode:           Mode(cfg.Render.Mode),
		Back:           cfg.Render.Back,
		Front:          cfg.Render.Front,
		NodeRadius:     cfg.Render.NodeRadiusPx,
		LineWidth:      cfg.Render.LineWidthPx,
		ShowAttractors: cfg.Render.ShowAttractors,
	}
}

// Render draws s onto a new square canvas. The caller owns the returned
// context and should Close it.
func Render(s *telemetry.Snapshot, o Options) (*gg.Context, error) {
	if o.Size <= 0 {
		return nil, fmt.Errorf("render: size must be positive, got %d", o.Size)
	}
	size := float64(o.Size)

	dc := gg.NewContext(o.Size, o.Size)
	dc.SetRGB(o.Back, o.Back, o.Back)
	dc.DrawRectangle(0, 0, size, size)
	if err := dc.Fill(); err != nil {
		dc.Close()
		return nil, fmt.Errorf("render background: %w", err)
	}

	if o.ShowAttractors {
		if err := drawAttractors(dc, s, size); err != nil {
			dc.Close()
			return nil, err
		}
	}

	var err error
	switch o.Mode {
	case ModeLines:
		err = drawLines(dc, s, o, size)
	case ModeCircles, "":
		err = drawCircles(dc, s, o, size)
	default:
		err = fmt.Errorf("unknown render mode %q", o.Mode)
	}
	if err != nil {
		dc.Close()
		return nil, fmt.Errorf("render veins: %w", err)
	}
	return dc, nil
}

func drawCircles(dc *gg.Context, s *telemetry.Snapshot, o Options, size float64) error {
	if len(s.Nodes) == 0 {
		return nil
	}
	dc.SetRGB(o.Front, o.Front, o.Front)
	for _, n := range s.Nodes {
		dc.DrawCircle(n.X*size, n.Y*size, o.NodeRadius)
	}
	return dc.Fill()
}

func drawLines(dc *gg.Context, s *telemetry.Snapshot, o Options, size float64) error {
	dc.SetRGB(o.Front, o.Front, o.Front)
	dc.SetLineWidth(o.LineWidth)
	edges := 0
	for _, n := range s.Nodes {
		if n.Parent < 0 || int(n.Parent) >= len(s.Nodes) {
			continue
		}
		p := s.Nodes[n.Parent]
		dc.MoveTo(p.X*size, p.Y*size)
		dc.LineTo(n.X*size, n.Y*size)
		edges++
	}
	if edges == 0 {
		return nil
	}
	return dc.Stroke()
}

// drawAttractors marks live attractors red and dead ones light gray.
func drawAttractors(dc *gg.Context, s *telemetry.Snapshot, size float64) error {
	for _, alive := range []bool{false, true} {
		if alive {
			dc.SetRGB(0.9, 0.1, 0.1)
		} else {
			dc.SetRGB(0.8, 0.8, 0.8)
		}
		drawn := 0
		for _, a := range s.Attractors {
			if a.Alive == alive {
				dc.DrawCircle(a.X*size, a.Y*size, 1.5)
				drawn++
			}
		}
		if drawn == 0 {
			continue
		}
		if err := dc.Fill(); err != nil {
			return fmt.Errorf("render attractors: %w", err)
		}
	}
	return nil
}

// SavePNG renders s and writes it to path.
func SavePNG(s *telemetry.Snapshot, o Options, path string) error {
	dc, err := Render(s, o)
	if err != nil {
		return err
	}
	defer dc.Close()
	if err := dc.SavePNG(path); err != nil {
		return fmt.Errorf("save png: %w", err)
	}
	return nil
}

// EncodePNG renders s and encodes it to w.
func EncodePNG(s *telemetry.Snapshot, o Options, w io.Writer) error {
	dc, err := Render(s, o)
	if err != nil {
		return err
	}
	defer dc.Close()
	if err := dc.EncodePNG(w); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	return nil
}
