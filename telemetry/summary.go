package telemetry

import "log/slog"

// Summary describes the shape of a finished venation.
type Summary struct {
	Nodes        int     `json:"nodes"`
	Roots        int     `json:"roots"`
	Leaves       int     `json:"leaves"`
	BranchPoints int     `json:"branch_points"`
	DepthMean    float64 `json:"depth_mean"`
	DepthP50     float64 `json:"depth_p50"`
	DepthP90     float64 `json:"depth_p90"`
	DepthMax     int     `json:"depth_max"`
	TotalLength  float64 `json:"total_length"`
	Consumed     float64 `json:"consumed"` // fraction of attractors killed
}

// LogValue implements slog.LogValuer for structured logging.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("nodes", s.Nodes),
		slog.Int("roots", s.Roots),
		slog.Int("leaves", s.Leaves),
		slog.Int("branch_points", s.BranchPoints),
		slog.Float64("depth_mean", s.DepthMean),
		slog.Float64("depth_p90", s.DepthP90),
		slog.Int("depth_max", s.DepthMax),
		slog.Float64("total_length", s.TotalLength),
		slog.Float64("consumed", s.Consumed),
	)
}
