// Package monitor exposes the pipeline's stabilised output over HTTP and
// exports feature time series as charts.
package monitor

import (
	"sync"
	"time"

	"github.com/banshee-data/pose.report/internal/pipeline"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/report"
	"github.com/banshee-data/pose.report/internal/stabilize"
)

const (
	defaultSampleLimit = 600
	defaultReportLimit = 50
)

// Sample is one tick's features as retained for charts and summaries.
type Sample struct {
	Frame        uint64          `json:"frame"`
	At           time.Time       `json:"at"`
	Detections   int             `json:"detections"`
	TiltSlope    stabilize.Value `json:"tilt_slope"`
	TriangleArea stabilize.Value `json:"triangle_area"`
}

// LiveState keeps the most recent pipeline output for HTTP readers. It is a
// pipeline.Sink; Observe runs on the pipeline goroutine while handlers read
// concurrently.
type LiveState struct {
	mu          sync.RWMutex
	latest      pipeline.Result
	hasLatest   bool
	samples     []Sample
	reports     []report.Record
	sampleLimit int
	reportLimit int
}

// NewLiveState retains up to sampleLimit samples and reportLimit reports;
// non-positive limits use 600 and 50.
func NewLiveState(sampleLimit, reportLimit int) *LiveState {
	if sampleLimit <= 0 {
		sampleLimit = defaultSampleLimit
	}
	if reportLimit <= 0 {
		reportLimit = defaultReportLimit
	}
	return &LiveState{sampleLimit: sampleLimit, reportLimit: reportLimit}
}

// Observe implements pipeline.Sink.
func (s *LiveState) Observe(res pipeline.Result) error {
	res.Detections = pose.CloneAll(res.Detections)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.latest = res
	s.hasLatest = true

	s.samples = append(s.samples, Sample{
		Frame:        res.Frame,
		At:           res.At,
		Detections:   len(res.Detections),
		TiltSlope:    res.Snapshot.TiltSlope,
		TriangleArea: res.Snapshot.TriangleArea,
	})
	if over := len(s.samples) - s.sampleLimit; over > 0 {
		s.samples = append(s.samples[:0:0], s.samples[over:]...)
	}

	if res.Report != nil {
		s.reports = append(s.reports, *res.Report)
		if over := len(s.reports) - s.reportLimit; over > 0 {
			s.reports = append(s.reports[:0:0], s.reports[over:]...)
		}
	}
	return nil
}

// Latest returns the most recent result, if any tick has run.
func (s *LiveState) Latest() (pipeline.Result, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := s.latest
	res.Detections = pose.CloneAll(res.Detections)
	return res, s.hasLatest
}

// Samples returns the retained samples, oldest first.
func (s *LiveState) Samples() []Sample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Sample(nil), s.samples...)
}

// Reports returns the retained reports, newest first.
func (s *LiveState) Reports() []report.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]report.Record, len(s.reports))
	for i, r := range s.reports {
		out[len(out)-1-i] = r
	}
	return out
}
