package monitor

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/pose.report/internal/pipeline"
	"github.com/banshee-data/pose.report/internal/stabilize"
)

// FeaturePlotter records feature values over a run and renders them as PNG
// line plots, one file per feature.
type FeaturePlotter struct {
	mu      sync.Mutex
	samples []Sample
}

// NewFeaturePlotter creates an empty plotter.
func NewFeaturePlotter() *FeaturePlotter {
	return &FeaturePlotter{}
}

// Observe implements pipeline.Sink.
func (fp *FeaturePlotter) Observe(res pipeline.Result) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	fp.samples = append(fp.samples, Sample{
		Frame:        res.Frame,
		At:           res.At,
		Detections:   len(res.Detections),
		TiltSlope:    res.Snapshot.TiltSlope,
		TriangleArea: res.Snapshot.TriangleArea,
	})
	return nil
}

// SampleCount returns the number of recorded ticks.
func (fp *FeaturePlotter) SampleCount() int {
	fp.mu.Lock()
	defer fp.mu.Unlock()
	return len(fp.samples)
}

// GeneratePlots writes tilt_slope.png and triangle_area.png into outputDir
// and returns the paths written. Features with no finite values are
// skipped.
func (fp *FeaturePlotter) GeneratePlots(outputDir string) ([]string, error) {
	fp.mu.Lock()
	samples := append([]Sample(nil), fp.samples...)
	fp.mu.Unlock()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	series := []struct {
		file  string
		title string
		ylab  string
		value func(Sample) stabilize.Value
	}{
		{"tilt_slope.png", "Head Tilt Slope", "dy / (dx + 0.005)", func(s Sample) stabilize.Value { return s.TiltSlope }},
		{"triangle_area.png", "Eye-Nose Triangle Area", "Area (px^2)", func(s Sample) stabilize.Value { return s.TriangleArea }},
	}

	var written []string
	for _, sr := range series {
		pts := make(plotter.XYs, 0, len(samples))
		for _, s := range samples {
			if v, ok := sr.value(s).Finite(); ok {
				pts = append(pts, plotter.XY{X: float64(s.Frame), Y: v})
			}
		}
		if len(pts) == 0 {
			continue
		}

		p := plot.New()
		p.Title.Text = sr.title
		p.X.Label.Text = "Frame"
		p.Y.Label.Text = sr.ylab
		p.Add(plotter.NewGrid())

		line, err := plotter.NewLine(pts)
		if err != nil {
			return written, fmt.Errorf("%s: %w", sr.file, err)
		}
		line.Width = vg.Points(1)
		p.Add(line)

		path := filepath.Join(outputDir, sr.file)
		if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}
