package db

import (
	"compress/gzip"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/banshee-data/pose.report/internal/monitoring"
	"github.com/banshee-data/pose.report/internal/pipeline"
	"github.com/banshee-data/pose.report/internal/pose"
	"github.com/banshee-data/pose.report/internal/report"
	"github.com/banshee-data/pose.report/internal/stabilize"
)

func init() {
	monitoring.SetLogger(nil)
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "pose.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.CreateSession(time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC), "test", `{"window_size":10}`)
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	return s
}

func TestNewDBAppliesMigrations(t *testing.T) {
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 3 || dirty {
		t.Errorf("version = %d dirty = %v, want 3 clean", version, dirty)
	}

	// Reopening an up-to-date database is a no-op.
	if err := db.MigrateUp(); err != nil {
		t.Errorf("second MigrateUp failed: %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	db := newTestDB(t)
	if err := db.MigrateDown(); err != nil {
		t.Fatalf("MigrateDown failed: %v", err)
	}
	version, _, err := db.MigrateVersion()
	if err != nil {
		t.Fatalf("MigrateVersion failed: %v", err)
	}
	if version != 2 {
		t.Errorf("version = %d, want 2", version)
	}
	if _, err := db.Exec(`SELECT 1 FROM report_records`); err == nil {
		t.Error("report_records should be dropped")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	if s.ID == "" {
		t.Fatal("expected a session id")
	}
	got, err := db.GetSession(s.ID)
	if err != nil {
		t.Fatalf("GetSession failed: %v", err)
	}
	if got.Source != "test" || got.ConfigJSON != `{"window_size":10}` {
		t.Errorf("GetSession = %+v", got)
	}
	if !got.StartedAt.Equal(s.StartedAt) {
		t.Errorf("StartedAt = %v, want %v", got.StartedAt, s.StartedAt)
	}

	_, err = db.GetSession("missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("GetSession(missing) error = %v, want ErrSessionNotFound", err)
	}

	second, err := db.CreateSession(s.StartedAt.Add(time.Minute), "udp", "")
	if err != nil {
		t.Fatalf("CreateSession failed: %v", err)
	}
	sessions, err := db.Sessions(10)
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}
	if len(sessions) != 2 || sessions[0].ID != second.ID || sessions[0].ConfigJSON != "{}" {
		t.Errorf("Sessions = %+v, want newest first", sessions)
	}
}

func TestFeatureSamplesStoreUnavailableAsNull(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)
	at := s.StartedAt

	samples := []FeatureSample{
		{SessionID: s.ID, Frame: 1, CapturedAt: at, TiltSlope: stabilize.Unavailable, TriangleArea: stabilize.Unavailable},
		{SessionID: s.ID, Frame: 2, CapturedAt: at.Add(time.Second), DetectionCount: 1, TiltSlope: stabilize.Available(0.5), TriangleArea: stabilize.Available(12)},
		{SessionID: s.ID, Frame: 3, CapturedAt: at.Add(2 * time.Second), DetectionCount: 2, TiltSlope: stabilize.Available(-0.25), TriangleArea: stabilize.Available(13)},
	}
	for _, sample := range samples {
		if err := db.RecordFeature(sample); err != nil {
			t.Fatalf("RecordFeature failed: %v", err)
		}
	}

	var nulls int
	if err := db.QueryRow(`SELECT COUNT(*) FROM feature_samples WHERE tilt_slope IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nulls != 1 {
		t.Errorf("NULL tilt rows = %d, want 1", nulls)
	}

	got, err := db.FeatureSamples(s.ID, 2)
	if err != nil {
		t.Fatalf("FeatureSamples failed: %v", err)
	}
	if len(got) != 2 || got[0].Frame != 2 || got[1].Frame != 3 {
		t.Fatalf("FeatureSamples = %+v, want frames 2,3", got)
	}
	if v, ok := got[1].TiltSlope.Float(); !ok || v != -0.25 {
		t.Errorf("tilt = %v, want -0.25", got[1].TiltSlope)
	}
	if got[0].DetectionCount != 1 {
		t.Errorf("detection count = %d, want 1", got[0].DetectionCount)
	}

	all, err := db.FeatureSamples(s.ID, 0)
	if err != nil {
		t.Fatalf("FeatureSamples failed: %v", err)
	}
	if all[0].TiltSlope.IsAvailable() || all[0].TriangleArea.IsAvailable() {
		t.Errorf("frame 1 should be unavailable, got %+v", all[0])
	}

	if err := db.RecordFeature(samples[0]); err == nil {
		t.Error("duplicate frame should fail")
	}
}

func TestFeatureSamplesStoreNonFiniteAsNull(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	values := []stabilize.Value{
		stabilize.Available(math.NaN()),
		stabilize.Available(math.Inf(1)),
		stabilize.Available(math.Inf(-1)),
	}
	for i, v := range values {
		sample := FeatureSample{
			SessionID:    s.ID,
			Frame:        uint64(i + 1),
			CapturedAt:   s.StartedAt.Add(time.Duration(i) * time.Second),
			TiltSlope:    v,
			TriangleArea: stabilize.Available(2),
		}
		if err := db.RecordFeature(sample); err != nil {
			t.Fatalf("RecordFeature(%v) failed: %v", v, err)
		}
	}

	var nulls int
	if err := db.QueryRow(`SELECT COUNT(*) FROM feature_samples WHERE tilt_slope IS NULL`).Scan(&nulls); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if nulls != len(values) {
		t.Errorf("NULL tilt rows = %d, want %d", nulls, len(values))
	}

	got, err := db.FeatureSamples(s.ID, 0)
	if err != nil {
		t.Fatalf("FeatureSamples failed: %v", err)
	}
	for _, sample := range got {
		if sample.TiltSlope.IsAvailable() {
			t.Errorf("frame %d tilt = %v, want unavailable", sample.Frame, sample.TiltSlope)
		}
		if v, ok := sample.TriangleArea.Float(); !ok || v != 2 {
			t.Errorf("frame %d area = %v, want 2", sample.Frame, sample.TriangleArea)
		}
	}
}

func TestReportsRoundTrip(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)

	rec := report.Record{
		Sequence:   1,
		CapturedAt: s.StartedAt.Add(5 * time.Second),
		Second:     5,
		Detections: []pose.Pose{{Score: 0.75, Keypoints: []pose.Keypoint{{Score: 0.5, Part: pose.Nose, Position: pose.Position{X: 1, Y: 2}}}}},
	}
	if err := db.RecordReport(s.ID, rec); err != nil {
		t.Fatalf("RecordReport failed: %v", err)
	}
	rec2 := rec
	rec2.Sequence = 2
	rec2.Second = 10
	rec2.CapturedAt = rec.CapturedAt.Add(5 * time.Second)
	rec2.Detections = nil
	if err := db.RecordReport(s.ID, rec2); err != nil {
		t.Fatalf("RecordReport failed: %v", err)
	}

	got, err := db.RecentReports(s.ID, 10)
	if err != nil {
		t.Fatalf("RecentReports failed: %v", err)
	}
	if len(got) != 2 || got[0].Sequence != 2 {
		t.Fatalf("RecentReports = %+v, want newest first", got)
	}
	if string(got[0].Payload) != "[]" || got[0].DetectionCount != 0 {
		t.Errorf("empty report payload = %q", got[0].Payload)
	}

	var decoded []pose.Pose
	if err := json.Unmarshal(got[1].Payload, &decoded); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if len(decoded) != 1 || decoded[0].Score != 0.75 {
		t.Errorf("decoded payload = %+v", decoded)
	}

	all, err := db.RecentReports("", 1)
	if err != nil {
		t.Fatalf("RecentReports failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("limit not applied: %d", len(all))
	}
}

func TestRecorderObserve(t *testing.T) {
	db := newTestDB(t)
	s := newTestSession(t, db)
	r := NewRecorder(db, s.ID)

	tick := pipeline.Result{
		Frame:    1,
		At:       s.StartedAt,
		Snapshot: stabilize.FeatureSnapshot{TiltSlope: stabilize.Available(1), TriangleArea: stabilize.Available(2)},
	}
	if err := r.Observe(tick); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}
	tick.Frame = 2
	tick.Report = &report.Record{Sequence: 1, CapturedAt: s.StartedAt, Second: 5}
	if err := r.Observe(tick); err != nil {
		t.Fatalf("Observe failed: %v", err)
	}

	samples, _ := db.FeatureSamples(s.ID, 0)
	reports, _ := db.RecentReports(s.ID, 0)
	if len(samples) != 2 || len(reports) != 1 {
		t.Errorf("samples = %d reports = %d, want 2 and 1", len(samples), len(reports))
	}
	if r.SessionID() != s.ID {
		t.Errorf("SessionID = %q", r.SessionID())
	}
}

func TestAdminBackupRoute(t *testing.T) {
	db := newTestDB(t)
	newTestSession(t, db)

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes failed: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/debug/backup", nil)
	req.RemoteAddr = "127.0.0.1:4321"
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	gz, err := gzip.NewReader(rec.Body)
	if err != nil {
		t.Fatalf("backup is not gzip: %v", err)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(data) < 16 || string(data[:15]) != "SQLite format 3" {
		t.Errorf("backup does not look like a sqlite file")
	}
}

func TestLatestMigrationVersion(t *testing.T) {
	latest, err := LatestMigrationVersion()
	if err != nil {
		t.Fatalf("LatestMigrationVersion failed: %v", err)
	}
	if latest != 3 {
		t.Errorf("latest = %d, want 3", latest)
	}
}

func TestRunMigrateCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cli.db")
	var out strings.Builder

	if err := RunMigrateCommand([]string{"status"}, path, &out); err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 0") || !strings.Contains(out.String(), "3 pending") {
		t.Errorf("unexpected status output:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"to", "2"}, path, &out); err != nil {
		t.Fatalf("to 2 failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 2") {
		t.Errorf("unexpected output after to 2:\n%s", out.String())
	}

	out.Reset()
	if err := RunMigrateCommand([]string{"up"}, path, &out); err != nil {
		t.Fatalf("up failed: %v", err)
	}
	if !strings.Contains(out.String(), "Current version: 3") {
		t.Errorf("unexpected output after up:\n%s", out.String())
	}

	if err := RunMigrateCommand([]string{"to"}, path, &out); err == nil {
		t.Error("expected usage error for missing version")
	}
	if err := RunMigrateCommand([]string{"bogus"}, path, &out); err == nil {
		t.Error("expected error for unknown action")
	}
	if err := RunMigrateCommand(nil, path, &out); err == nil {
		t.Error("expected error for missing action")
	}
	if err := RunMigrateCommand([]string{"help"}, path, &out); err != nil {
		t.Errorf("help returned %v", err)
	}
}
