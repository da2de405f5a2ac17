// Package pipeline runs the per-frame stabilisation loop: it pushes the
// primary subject into the rolling window, derives the stable features and
// drives the periodic snapshot reporter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/report"
	"github.com/banshee-data/pose.report/internal/source"
	"github.com/banshee-data/pose.report/internal/stabilize"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

const (
	ModeMultiPose  = "multi-pose"
	ModeSinglePose = "single-pose"
)

// Config holds the pipeline parameters.
type Config struct {
	WindowSize int
	Mode       string
	Report     report.Config
}

// DefaultConfig returns the multi-pose configuration with a ten-frame window.
func DefaultConfig() Config {
	return Config{
		WindowSize: stabilize.DefaultWindowSize,
		Mode:       ModeMultiPose,
		Report:     report.DefaultConfig(),
	}
}

// Result is the outcome of one tick.
type Result struct {
	Frame      uint64
	At         time.Time
	ReceivedAt time.Time
	Detections []pose.Pose
	Snapshot   stabilize.FeatureSnapshot
	Status     string
	Report     *report.Record // nil unless a snapshot fired this tick
}

// Sink observes every tick's result. Sinks run on the pipeline goroutine and
// must not retain Detections beyond the call without copying.
type Sink interface {
	Observe(Result) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Result) error

func (f SinkFunc) Observe(r Result) error { return f(r) }

// Pipeline owns one window and one reporter. It is not safe for concurrent use;
// Run drives it from a single goroutine.
type Pipeline struct {
	cfg       Config
	clock     timeutil.Clock
	window    *stabilize.Window
	extractor stabilize.Extractor
	reporter  *report.Reporter
	sinks     []Sink
	frames    uint64
	partial   uint64
}

// New creates a pipeline. A nil clock uses the wall clock.
func New(cfg Config, clock timeutil.Clock, sinks ...Sink) *Pipeline {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeMultiPose
	}
	w := stabilize.NewWindow(cfg.WindowSize)
	cfg.WindowSize = w.Cap()

	return &Pipeline{
		cfg:      cfg,
		clock:    clock,
		window:   w,
		reporter: report.NewReporter(cfg.Report, clock),
		sinks:    sinks,
	}
}

// Window exposes the rolling window, read-only by convention.
func (p *Pipeline) Window() *stabilize.Window { return p.window }

// Reporter exposes the snapshot reporter.
func (p *Pipeline) Reporter() *report.Reporter { return p.reporter }

// Config returns the effective configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Process runs one tick. Frames with no detections still produce a result
// and still give the reporter a chance to fire. A primary subject without
// the nose and both eyes is not pushed; its detections are still reported.
func (p *Pipeline) Process(frame source.Frame) (Result, error) {
	detections := frame.Poses
	if p.cfg.Mode == ModeSinglePose && len(detections) > 1 {
		detections = detections[:1]
	}

	if len(detections) > 0 {
		if detections[0].Has(stabilize.RequiredParts...) {
			p.window.Push(detections[0])
		} else {
			p.partial++
			monitoring.Logf("frame %d: primary subject missing face keypoints, not windowed (%d so far)",
				p.frames+1, p.partial)
		}
	}

	snap, err := p.extractor.Compute(p.window)
	if err != nil {
		return Result{}, fmt.Errorf("frame %d: %w", p.frames+1, err)
	}

	p.frames++
	now := p.clock.Now()
	res := Result{
		Frame:      p.frames,
		At:         now,
		ReceivedAt: frame.ReceivedAt,
		Detections: detections,
		Snapshot:   snap,
		Status:     snap.Status(),
	}

	if p.cfg.Mode == ModeMultiPose {
		res.Report = p.reporter.MaybeCapture(timeutil.SecondOfMinute(now), detections)
	}

	for _, s := range p.sinks {
		if err := s.Observe(res); err != nil {
			monitoring.Logf("sink error on frame %d: %v", res.Frame, err)
		}
	}

	monitoring.Tracef("frame %d: %s", res.Frame, res.Status)
	return res, nil
}

// Run feeds frames from src until it is exhausted or ctx is cancelled.
// Exhaustion returns nil.
func (p *Pipeline) Run(ctx context.Context, src source.Source) error {
	for {
		frame, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			monitoring.Logf("pose source exhausted after %d frames", p.frames)
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := p.Process(frame); err != nil {
			return err
		}
	}
}

// Frames returns the number of ticks processed.
func (p *Pipeline) Frames() uint64 { return p.frames }

// Partial returns the number of ticks whose primary subject lacked a required
// keypoint and was kept out of the window.
func (p *Pipeline) Partial() uint64 { return p.partial }
