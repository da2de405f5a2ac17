// Package report captures low-frequency snapshots of the full detection set,
// gated on the wall-clock second.
package report

import (
	"fmt"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/timeutil"
)

// Defaults for Config.
const (
	DefaultInterval     = 5
	DefaultHistoryLimit = 50
)

// Trigger selects how the elapsed-second difference is compared with the
// interval.
type Trigger string

const (
	// TriggerExact fires only when the difference equals the interval. A stall
	// that skips the matching second loses that report until the next match.
	TriggerExact Trigger = "exact"
	// TriggerThreshold fires once the difference reaches the interval.
	TriggerThreshold Trigger = "threshold"
)

// ParseTrigger validates a trigger name. Empty selects TriggerExact.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case "", TriggerExact:
		return TriggerExact, nil
	case TriggerThreshold:
		return TriggerThreshold, nil
	default:
		return "", fmt.Errorf("unknown report trigger %q: expected %q or %q", s, TriggerExact, TriggerThreshold)
	}
}

// State is the observable reporter state.
type State int

const (
	Idle State = iota
	Captured
)

func (s State) String() string {
	if s == Captured {
		return "captured"
	}
	return "idle"
}

// Record is one captured snapshot. Records are never modified after capture.
type Record struct {
	Sequence   int         `json:"sequence"`
	CapturedAt time.Time   `json:"captured_at"`
	Second     int         `json:"second"`
	Detections []pose.Pose `json:"detections"`
}

// Payload renders the detections as indented JSON.
func (r Record) Payload() ([]byte, error) {
	return pose.MarshalIndent(r.Detections)
}

// Config holds reporter tunables.
type Config struct {
	Interval     int     // seconds between reports
	Trigger      Trigger // comparison policy
	HistoryLimit int     // records kept in memory, 0 for unlimited
}

// DefaultConfig returns the five-second exact-match configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     DefaultInterval,
		Trigger:      TriggerExact,
		HistoryLimit: DefaultHistoryLimit,
	}
}

// Reporter is the periodic snapshot state machine. It is not safe for
// concurrent use; the pipeline owns it.
type Reporter struct {
	cfg        Config
	clock      timeutil.Clock
	lastSecond int
	sequence   int
	state      State
	history    []Record
}

// NewReporter creates a reporter. A nil clock uses the real clock for
// CapturedAt timestamps.
func NewReporter(cfg Config, clock timeutil.Clock) *Reporter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Trigger == "" {
		cfg.Trigger = TriggerExact
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Reporter{cfg: cfg, clock: clock}
}

func (r *Reporter) due(nowSecond int) bool {
	diff := nowSecond - r.lastSecond
	if r.cfg.Trigger == TriggerThreshold {
		return diff >= r.cfg.Interval
	}
	return diff == r.cfg.Interval
}

// MaybeCapture is called once per tick with the current wall-clock second
// (0-59). It returns a new Record when the tick is a report tick, else nil.
func (r *Reporter) MaybeCapture(nowSecond int, detections []pose.Pose) *Record {
	r.state = Idle

	// A seconds-only clock rolls 59 -> 0; restart the interval from zero.
	if nowSecond == 0 {
		r.lastSecond = 0
	}

	if !r.due(nowSecond) {
		return nil
	}

	r.sequence++
	r.lastSecond = nowSecond
	r.state = Captured

	rec := Record{
		Sequence:   r.sequence,
		CapturedAt: r.clock.Now(),
		Second:     nowSecond,
		Detections: pose.CloneAll(detections),
	}
	if rec.Detections == nil {
		rec.Detections = []pose.Pose{}
	}
	r.history = append(r.history, rec)
	if r.cfg.HistoryLimit > 0 && len(r.history) > r.cfg.HistoryLimit {
		r.history = append([]Record(nil), r.history[len(r.history)-r.cfg.HistoryLimit:]...)
	}

	monitoring.Logf("report %d captured at second %d (%d detections)", rec.Sequence, nowSecond, len(rec.Detections))
	if payload, err := rec.Payload(); err == nil {
		monitoring.Diagf("report %d payload:\n%s", rec.Sequence, payload)
	}
	return &rec
}

// Sequence returns the number of reports produced so far.
func (r *Reporter) Sequence() int {
	return r.sequence
}

// LastSecond returns the second of the last report, or 0 after a rollover.
func (r *Reporter) LastSecond() int {
	return r.lastSecond
}

// State returns Captured if the most recent tick produced a report.
func (r *Reporter) State() State {
	return r.state
}

// History returns the retained records, oldest first.
func (r *Reporter) History() []Record {
	out := make([]Record, len(r.history))
	copy(out, r.history)
	return out
}

// Config returns the effective configuration.
func (r *Reporter) Config() Config {
	return r.cfg
}
