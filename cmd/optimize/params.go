package main

import (
	"github.com/giobri/leaf/config"
)

// ParamSpec defines a single optimizable parameter and where it lives in
// the config.
type ParamSpec struct {
	Name     string
	Min, Max float64
	Get      func(*config.Config) float64
	Set      func(*config.Config, float64)
}

// ParamVector is the ordered set of tuned parameters. Optimizer
// coordinates are normalized so every bound maps onto [0, 1].
type ParamVector struct {
	Specs []ParamSpec
}

// NewParamVector returns the growth lengths tuned by the optimizer.
func NewParamVector() *ParamVector {
	return &ParamVector{Specs: []ParamSpec{
		{
			Name: "kill_radius_px", Min: 2, Max: 24,
			Get: func(c *config.Config) float64 { return c.Growth.KillRadiusPx },
			Set: func(c *config.Config, v float64) { c.Growth.KillRadiusPx = v },
		},
		{
			Name: "step_px", Min: 1, Max: 12,
			Get: func(c *config.Config) float64 { return c.Growth.StepPx },
			Set: func(c *config.Config, v float64) { c.Growth.StepPx = v },
		},
	}}
}

// Dim returns the number of parameters.
func (pv *ParamVector) Dim() int {
	return len(pv.Specs)
}

// each returns a new vector with f applied to every (spec, value) pair.
func (pv *ParamVector) each(v []float64, f func(ParamSpec, float64) float64) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = f(spec, v[i])
	}
	return out
}

// Normalize maps raw values onto the unit cube.
func (pv *ParamVector) Normalize(raw []float64) []float64 {
	return pv.each(raw, func(s ParamSpec, x float64) float64 { return (x - s.Min) / (s.Max - s.Min) })
}

// Denormalize maps unit-cube coordinates back to raw values.
func (pv *ParamVector) Denormalize(normalized []float64) []float64 {
	return pv.each(normalized, func(s ParamSpec, x float64) float64 { return s.Min + x*(s.Max-s.Min) })
}

// Clamp limits every value to its bounds.
func (pv *ParamVector) Clamp(v []float64) []float64 {
	return pv.each(v, func(s ParamSpec, x float64) float64 { return min(max(x, s.Min), s.Max) })
}

// ApplyToConfig writes clamped values into cfg and refreshes its derived
// values.
func (pv *ParamVector) ApplyToConfig(cfg *config.Config, values []float64) error {
	for i, x := range pv.Clamp(values) {
		pv.Specs[i].Set(cfg, x)
	}
	return cfg.Refresh()
}

// ExtractFromConfig reads the current parameter values from cfg.
func (pv *ParamVector) ExtractFromConfig(cfg *config.Config) []float64 {
	out := make([]float64, len(pv.Specs))
	for i, spec := range pv.Specs {
		out[i] = spec.Get(cfg)
	}
	return out
}
