package db

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/banshee-data/pose.report/internal/report"
)

// StoredReport is a persisted snapshot report. Payload is the indented
// detections JSON exactly as it was rendered at capture time.
type StoredReport struct {
	SessionID      string          `json:"session_id"`
	Sequence       int             `json:"sequence"`
	CapturedAt     time.Time       `json:"captured_at"`
	Second         int             `json:"second"`
	DetectionCount int             `json:"detection_count"`
	Payload        json.RawMessage `json:"payload"`
}

// RecordReport inserts a captured report for a session.
func (db *DB) RecordReport(sessionID string, rec report.Record) error {
	payload, err := rec.Payload()
	if err != nil {
		return fmt.Errorf("failed to render report %d: %w", rec.Sequence, err)
	}
	_, err = db.Exec(
		`INSERT INTO report_records (
			session_id, sequence, captured_at, second, detection_count, payload
		) VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, rec.Sequence, unixSeconds(rec.CapturedAt), rec.Second, len(rec.Detections), string(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to insert report %d: %w", rec.Sequence, err)
	}
	return nil
}

// RecentReports returns up to limit reports, newest first. An empty
// sessionID spans all sessions.
func (db *DB) RecentReports(sessionID string, limit int) ([]StoredReport, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT session_id, sequence, captured_at, second, detection_count, payload
		FROM report_records`
	args := []interface{}{}
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY captured_at DESC, sequence DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []StoredReport
	for rows.Next() {
		var (
			r          StoredReport
			capturedAt float64
			payload    string
		)
		if err := rows.Scan(&r.SessionID, &r.Sequence, &capturedAt, &r.Second, &r.DetectionCount, &payload); err != nil {
			return nil, err
		}
		r.CapturedAt = fromUnixSeconds(capturedAt)
		r.Payload = json.RawMessage(payload)
		reports = append(reports, r)
	}
	return reports, rows.Err()
}
