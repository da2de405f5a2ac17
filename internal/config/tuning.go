package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/pose.report/internal/pipeline"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/report"
)

// DefaultConfigPath is the canonical tuning defaults file.
const DefaultConfigPath = "config/pose.defaults.json"

// Detection modes. Snapshot reports are only produced in multi-pose mode.
const (
	ModeMultiPose  = pipeline.ModeMultiPose
	ModeSinglePose = pipeline.ModeSinglePose
)

// TuningConfig holds the pipeline tunables. Every field is optional; the Get*
// methods supply defaults for omitted fields, so partial files are safe.
type TuningConfig struct {
	// Stabiliser
	WindowSize *int `json:"window_size,omitempty"`

	// Reporter
	ReportIntervalSeconds *int    `json:"report_interval_seconds,omitempty"`
	ReportTrigger         *string `json:"report_trigger,omitempty"` // "exact" or "threshold"
	ReportHistoryLimit    *int    `json:"report_history_limit,omitempty"`

	// Detection. Unset confidences follow the mode's defaults.
	Mode              *string  `json:"mode,omitempty"` // "multi-pose" or "single-pose"
	MinPoseConfidence *float64 `json:"min_pose_confidence,omitempty"`
	MinPartConfidence *float64 `json:"min_part_confidence,omitempty"`

	// Replay pacing for file sources; 0 replays as fast as frames decode.
	ReplayFPS *float64 `json:"replay_fps,omitempty"`
}

func ptrInt(v int) *int             { return &v }
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }

// EmptyTuningConfig returns a config with every field unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig reads and validates a JSON tuning file.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath from the current directory or
// one of its parents. It panics if the file cannot be found; intended for
// tests and tools run from inside the repository.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run from repository root")
}

// Validate checks the values that are set.
func (c *TuningConfig) Validate() error {
	if c.WindowSize != nil && *c.WindowSize < 1 {
		return fmt.Errorf("window_size must be at least 1, got %d", *c.WindowSize)
	}

	if c.ReportIntervalSeconds != nil {
		if *c.ReportIntervalSeconds < 1 || *c.ReportIntervalSeconds > 59 {
			return fmt.Errorf("report_interval_seconds must be between 1 and 59, got %d", *c.ReportIntervalSeconds)
		}
	}

	if c.ReportTrigger != nil {
		if _, err := report.ParseTrigger(*c.ReportTrigger); err != nil {
			return err
		}
	}

	if c.ReportHistoryLimit != nil && *c.ReportHistoryLimit < 0 {
		return fmt.Errorf("report_history_limit must be non-negative, got %d", *c.ReportHistoryLimit)
	}

	if c.Mode != nil {
		switch *c.Mode {
		case ModeMultiPose, ModeSinglePose:
		default:
			return fmt.Errorf("unknown mode %q: expected %q or %q", *c.Mode, ModeMultiPose, ModeSinglePose)
		}
	}

	for name, v := range map[string]*float64{
		"min_pose_confidence": c.MinPoseConfidence,
		"min_part_confidence": c.MinPartConfidence,
	} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%s must be between 0 and 1, got %f", name, *v)
		}
	}

	if c.ReplayFPS != nil && *c.ReplayFPS < 0 {
		return fmt.Errorf("replay_fps must be non-negative, got %f", *c.ReplayFPS)
	}

	return nil
}

// GetWindowSize returns window_size or 10.
func (c *TuningConfig) GetWindowSize() int {
	if c.WindowSize == nil {
		return 10
	}
	return *c.WindowSize
}

// GetReportIntervalSeconds returns report_interval_seconds or 5.
func (c *TuningConfig) GetReportIntervalSeconds() int {
	if c.ReportIntervalSeconds == nil {
		return report.DefaultInterval
	}
	return *c.ReportIntervalSeconds
}

// GetReportTrigger returns the report trigger, defaulting to exact match.
func (c *TuningConfig) GetReportTrigger() report.Trigger {
	if c.ReportTrigger == nil {
		return report.TriggerExact
	}
	t, err := report.ParseTrigger(*c.ReportTrigger)
	if err != nil {
		return report.TriggerExact
	}
	return t
}

// GetReportHistoryLimit returns report_history_limit or 50.
func (c *TuningConfig) GetReportHistoryLimit() int {
	if c.ReportHistoryLimit == nil {
		return report.DefaultHistoryLimit
	}
	return *c.ReportHistoryLimit
}

// GetMode returns the detection mode, defaulting to multi-pose.
func (c *TuningConfig) GetMode() string {
	if c.Mode == nil || *c.Mode == "" {
		return ModeMultiPose
	}
	return *c.Mode
}

// Display confidence defaults per detection mode. Single-pose output carries
// one subject, so its pose gate is looser and its part gate stricter.
const (
	defaultMultiPoseMinPose  = 0.15
	defaultMultiPoseMinPart  = 0.1
	defaultSinglePoseMinPose = 0.1
	defaultSinglePoseMinPart = 0.5
)

// GetMinPoseConfidence returns min_pose_confidence, or the mode default:
// 0.15 for multi-pose and 0.1 for single-pose.
func (c *TuningConfig) GetMinPoseConfidence() float64 {
	if c.MinPoseConfidence != nil {
		return *c.MinPoseConfidence
	}
	if c.GetMode() == ModeSinglePose {
		return defaultSinglePoseMinPose
	}
	return defaultMultiPoseMinPose
}

// GetMinPartConfidence returns min_part_confidence, or the mode default:
// 0.1 for multi-pose and 0.5 for single-pose.
func (c *TuningConfig) GetMinPartConfidence() float64 {
	if c.MinPartConfidence != nil {
		return *c.MinPartConfidence
	}
	if c.GetMode() == ModeSinglePose {
		return defaultSinglePoseMinPart
	}
	return defaultMultiPoseMinPart
}

// GetReplayFPS returns replay_fps or 0.
func (c *TuningConfig) GetReplayFPS() float64 {
	if c.ReplayFPS == nil {
		return 0
	}
	return *c.ReplayFPS
}

// ReportConfig converts the reporter fields.
func (c *TuningConfig) ReportConfig() report.Config {
	return report.Config{
		Interval:     c.GetReportIntervalSeconds(),
		Trigger:      c.GetReportTrigger(),
		HistoryLimit: c.GetReportHistoryLimit(),
	}
}

// PipelineConfig converts the stabiliser, mode and reporter fields.
func (c *TuningConfig) PipelineConfig() pipeline.Config {
	return pipeline.Config{
		WindowSize: c.GetWindowSize(),
		Mode:       c.GetMode(),
		Report:     c.ReportConfig(),
	}
}

// Thresholds returns the confidence filter applied to displayed poses.
func (c *TuningConfig) Thresholds() pose.Thresholds {
	return pose.Thresholds{
		MinPoseScore: c.GetMinPoseConfidence(),
		MinPartScore: c.GetMinPartConfidence(),
	}
}
