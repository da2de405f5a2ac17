package monitor

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SeriesStats describes the available values of one feature.
type SeriesStats struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Summary aggregates retained samples.
type Summary struct {
	Frames       int         `json:"frames"`
	Ready        int         `json:"ready"`
	TiltSlope    SeriesStats `json:"tilt_slope"`
	TriangleArea SeriesStats `json:"triangle_area"`
}

// Summarize computes statistics over the finite values in samples.
// Unavailable ticks count towards Frames only.
func Summarize(samples []Sample) Summary {
	var tilt, area []float64
	sum := Summary{Frames: len(samples)}
	for _, s := range samples {
		t, tok := s.TiltSlope.Finite()
		a, aok := s.TriangleArea.Finite()
		if tok {
			tilt = append(tilt, t)
		}
		if aok {
			area = append(area, a)
		}
		if tok && aok {
			sum.Ready++
		}
	}
	sum.TiltSlope = seriesStats(tilt)
	sum.TriangleArea = seriesStats(area)
	return sum
}

func seriesStats(xs []float64) SeriesStats {
	if len(xs) == 0 {
		return SeriesStats{}
	}
	mean, std := stat.MeanStdDev(xs, nil)
	if len(xs) < 2 || math.IsNaN(std) {
		std = 0
	}
	return SeriesStats{
		Count:  len(xs),
		Mean:   mean,
		StdDev: std,
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
}
