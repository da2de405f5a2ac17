package db

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/banshee-data/pose.report/internal/stabilize"
)

// FeatureSample is one tick's stabilised features.
type FeatureSample struct {
	SessionID      string          `json:"session_id"`
	Frame          uint64          `json:"frame"`
	CapturedAt     time.Time       `json:"captured_at"`
	DetectionCount int             `json:"detection_count"`
	TiltSlope      stabilize.Value `json:"tilt_slope"`
	TriangleArea   stabilize.Value `json:"triangle_area"`
}

// nullable stores unavailable and non-finite values as SQL NULL. SQLite has
// no NaN, so a finite REAL is the only value that round-trips.
func nullable(v stabilize.Value) sql.NullFloat64 {
	f, ok := v.Finite()
	return sql.NullFloat64{Float64: f, Valid: ok}
}

func fromNullable(n sql.NullFloat64) stabilize.Value {
	if !n.Valid {
		return stabilize.Unavailable
	}
	return stabilize.Available(n.Float64)
}

// RecordFeature inserts one feature sample.
func (db *DB) RecordFeature(s FeatureSample) error {
	_, err := db.Exec(
		`INSERT INTO feature_samples (
			session_id, frame, captured_at, detection_count, tilt_slope, triangle_area
		) VALUES (?, ?, ?, ?, ?, ?)`,
		s.SessionID, int64(s.Frame), unixSeconds(s.CapturedAt), s.DetectionCount,
		nullable(s.TiltSlope), nullable(s.TriangleArea),
	)
	if err != nil {
		return fmt.Errorf("failed to insert feature sample %d: %w", s.Frame, err)
	}
	return nil
}

// FeatureSamples returns the last limit samples of a session in frame order.
func (db *DB) FeatureSamples(sessionID string, limit int) ([]FeatureSample, error) {
	if limit <= 0 {
		limit = 1000
	}
	rows, err := db.Query(
		`SELECT session_id, frame, captured_at, detection_count, tilt_slope, triangle_area
		FROM (
			SELECT * FROM feature_samples WHERE session_id = ? ORDER BY frame DESC LIMIT ?
		) ORDER BY frame ASC`,
		sessionID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []FeatureSample
	for rows.Next() {
		var (
			s          FeatureSample
			frame      int64
			capturedAt float64
			tilt, area sql.NullFloat64
		)
		if err := rows.Scan(&s.SessionID, &frame, &capturedAt, &s.DetectionCount, &tilt, &area); err != nil {
			return nil, err
		}
		s.Frame = uint64(frame)
		s.CapturedAt = fromUnixSeconds(capturedAt)
		s.TiltSlope = fromNullable(tilt)
		s.TriangleArea = fromNullable(area)
		samples = append(samples, s)
	}
	return samples, rows.Err()
}
