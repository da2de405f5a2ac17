package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/banshee-data/pose.report/internal/report"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetWindowSize(); got != 10 {
		t.Errorf("GetWindowSize() = %d, want 10", got)
	}
	if got := cfg.GetReportIntervalSeconds(); got != 5 {
		t.Errorf("GetReportIntervalSeconds() = %d, want 5", got)
	}
	if got := cfg.GetReportTrigger(); got != report.TriggerExact {
		t.Errorf("GetReportTrigger() = %q, want exact", got)
	}
	if got := cfg.GetReportHistoryLimit(); got != 50 {
		t.Errorf("GetReportHistoryLimit() = %d, want 50", got)
	}
	if got := cfg.GetMode(); got != ModeMultiPose {
		t.Errorf("GetMode() = %q, want %q", got, ModeMultiPose)
	}
	if got := cfg.GetMinPoseConfidence(); got != 0.15 {
		t.Errorf("GetMinPoseConfidence() = %f, want 0.15", got)
	}
	if got := cfg.GetMinPartConfidence(); got != 0.1 {
		t.Errorf("GetMinPartConfidence() = %f, want 0.1", got)
	}
	if got := cfg.GetReplayFPS(); got != 0 {
		t.Errorf("GetReplayFPS() = %f, want 0", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("empty config should validate: %v", err)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	path := writeConfig(t, "pose.json", `{
  "window_size": 7,
  "report_interval_seconds": 10,
  "report_trigger": "threshold",
  "mode": "single-pose",
  "min_part_confidence": 0.5,
  "replay_fps": 30
}`)

	cfg, err := LoadTuningConfig(path)
	if err != nil {
		t.Fatalf("LoadTuningConfig() error = %v", err)
	}

	if got := cfg.GetWindowSize(); got != 7 {
		t.Errorf("GetWindowSize() = %d, want 7", got)
	}
	if got := cfg.GetMode(); got != ModeSinglePose {
		t.Errorf("GetMode() = %q, want %q", got, ModeSinglePose)
	}
	if got := cfg.GetMinPartConfidence(); got != 0.5 {
		t.Errorf("GetMinPartConfidence() = %f, want 0.5", got)
	}
	// Omitted fields keep the single-pose defaults.
	if got := cfg.GetMinPoseConfidence(); got != 0.1 {
		t.Errorf("GetMinPoseConfidence() = %f, want 0.1", got)
	}
	if got := cfg.GetReplayFPS(); got != 30 {
		t.Errorf("GetReplayFPS() = %f, want 30", got)
	}

	rc := cfg.ReportConfig()
	want := report.Config{Interval: 10, Trigger: report.TriggerThreshold, HistoryLimit: 50}
	if rc != want {
		t.Errorf("ReportConfig() = %+v, want %+v", rc, want)
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		body    string
		wantErr string
	}{
		{"wrong extension", "pose.yaml", `{}`, ".json extension"},
		{"bad json", "pose.json", `{"window_size":`, "failed to parse"},
		{"zero window", "pose.json", `{"window_size": 0}`, "window_size"},
		{"interval too large", "pose.json", `{"report_interval_seconds": 60}`, "report_interval_seconds"},
		{"interval zero", "pose.json", `{"report_interval_seconds": 0}`, "report_interval_seconds"},
		{"unknown trigger", "pose.json", `{"report_trigger": "sometimes"}`, "report trigger"},
		{"negative history", "pose.json", `{"report_history_limit": -1}`, "report_history_limit"},
		{"unknown mode", "pose.json", `{"mode": "crowd"}`, "unknown mode"},
		{"confidence above one", "pose.json", `{"min_pose_confidence": 1.5}`, "min_pose_confidence"},
		{"negative part confidence", "pose.json", `{"min_part_confidence": -0.1}`, "min_part_confidence"},
		{"negative fps", "pose.json", `{"replay_fps": -2}`, "replay_fps"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.body)
			_, err := LoadTuningConfig(path)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfigMissingFile(t *testing.T) {
	_, err := LoadTuningConfig(filepath.Join(t.TempDir(), "missing.json"))
	if err == nil || !strings.Contains(err.Error(), "failed to stat") {
		t.Fatalf("expected stat error, got %v", err)
	}
}

func TestLoadTuningConfigTooLarge(t *testing.T) {
	path := writeConfig(t, "big.json", `{"mode":"`+strings.Repeat("x", 1024*1024)+`"}`)
	_, err := LoadTuningConfig(path)
	if err == nil || !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestGetReportTriggerFallsBackOnInvalid(t *testing.T) {
	cfg := &TuningConfig{ReportTrigger: ptrString("bogus")}
	if got := cfg.GetReportTrigger(); got != report.TriggerExact {
		t.Errorf("GetReportTrigger() = %q, want exact", got)
	}
}

func TestValidateSetFields(t *testing.T) {
	cfg := &TuningConfig{
		WindowSize:            ptrInt(3),
		ReportIntervalSeconds: ptrInt(59),
		MinPoseConfidence:     ptrFloat64(1),
		MinPartConfidence:     ptrFloat64(0),
		Mode:                  ptrString(ModeMultiPose),
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	if got := cfg.GetWindowSize(); got != 10 {
		t.Errorf("default window_size = %d, want 10", got)
	}
	if got := cfg.GetReportTrigger(); got != report.TriggerExact {
		t.Errorf("default report_trigger = %q, want exact", got)
	}
}

func TestPipelineConfigAndThresholds(t *testing.T) {
	cfg := &TuningConfig{
		WindowSize:            ptrInt(4),
		ReportIntervalSeconds: ptrInt(10),
		Mode:                  ptrString(ModeSinglePose),
		MinPoseConfidence:     ptrFloat64(0.5),
	}
	pc := cfg.PipelineConfig()
	if pc.WindowSize != 4 || pc.Mode != ModeSinglePose || pc.Report.Interval != 10 {
		t.Errorf("PipelineConfig() = %+v", pc)
	}
	th := cfg.Thresholds()
	if th.MinPoseScore != 0.5 || th.MinPartScore != 0.5 {
		t.Errorf("Thresholds() = %+v", th)
	}
}

func TestConfidenceDefaultsFollowMode(t *testing.T) {
	tests := []struct {
		name     string
		cfg      *TuningConfig
		wantPose float64
		wantPart float64
	}{
		{"unset mode", &TuningConfig{}, 0.15, 0.1},
		{"multi-pose", &TuningConfig{Mode: ptrString(ModeMultiPose)}, 0.15, 0.1},
		{"single-pose", &TuningConfig{Mode: ptrString(ModeSinglePose)}, 0.1, 0.5},
		{"single-pose override", &TuningConfig{
			Mode:              ptrString(ModeSinglePose),
			MinPartConfidence: ptrFloat64(0.3),
		}, 0.1, 0.3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := tt.cfg.Thresholds()
			if th.MinPoseScore != tt.wantPose || th.MinPartScore != tt.wantPart {
				t.Errorf("Thresholds() = %+v, want pose %v part %v", th, tt.wantPose, tt.wantPart)
			}
		})
	}
}

func TestDefaultConfigSinglePoseThresholds(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	cfg.Mode = ptrString(ModeSinglePose)
	th := cfg.Thresholds()
	if th.MinPoseScore != 0.1 || th.MinPartScore != 0.5 {
		t.Errorf("single-pose thresholds from defaults file = %+v, want 0.1/0.5", th)
	}
}
