package db

import (
	"github.com/banshee-data/pose.report/internal/pipeline"
)

// Recorder persists every pipeline tick into one session.
type Recorder struct {
	db        *DB
	sessionID string
}

// NewRecorder binds a recorder to an existing session.
func NewRecorder(db *DB, sessionID string) *Recorder {
	return &Recorder{db: db, sessionID: sessionID}
}

// SessionID returns the bound session.
func (r *Recorder) SessionID() string { return r.sessionID }

// Observe implements pipeline.Sink.
func (r *Recorder) Observe(res pipeline.Result) error {
	err := r.db.RecordFeature(FeatureSample{
		SessionID:      r.sessionID,
		Frame:          res.Frame,
		CapturedAt:     res.At,
		DetectionCount: len(res.Detections),
		TiltSlope:      res.Snapshot.TiltSlope,
		TriangleArea:   res.Snapshot.TriangleArea,
	})
	if err != nil {
		return err
	}
	if res.Report != nil {
		return r.db.RecordReport(r.sessionID, *res.Report)
	}
	return nil
}
