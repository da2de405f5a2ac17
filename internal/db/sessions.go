package db

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when a session id has no row.
var ErrSessionNotFound = errors.New("session not found")

// Session is one run of the pipeline against one source.
type Session struct {
	ID         string    `json:"session_id"`
	StartedAt  time.Time `json:"started_at"`
	Source     string    `json:"source"`
	ConfigJSON string    `json:"config_json"`
}

// CreateSession inserts a new session with a fresh id.
func (db *DB) CreateSession(startedAt time.Time, source, configJSON string) (*Session, error) {
	if configJSON == "" {
		configJSON = "{}"
	}
	s := &Session{
		ID:         uuid.NewString(),
		StartedAt:  startedAt.UTC(),
		Source:     source,
		ConfigJSON: configJSON,
	}
	_, err := db.Exec(
		`INSERT INTO sessions (session_id, started_at, source, config_json) VALUES (?, ?, ?, ?)`,
		s.ID, unixSeconds(s.StartedAt), s.Source, s.ConfigJSON,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert session: %w", err)
	}
	return s, nil
}

// GetSession loads a session by id.
func (db *DB) GetSession(id string) (*Session, error) {
	var (
		s       Session
		started float64
	)
	err := db.QueryRow(
		`SELECT session_id, started_at, source, config_json FROM sessions WHERE session_id = ?`, id,
	).Scan(&s.ID, &started, &s.Source, &s.ConfigJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	s.StartedAt = fromUnixSeconds(started)
	return &s, nil
}

// Sessions returns the most recent sessions, newest first.
func (db *DB) Sessions(limit int) ([]Session, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.Query(
		`SELECT session_id, started_at, source, config_json FROM sessions ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var (
			s       Session
			started float64
		)
		if err := rows.Scan(&s.ID, &started, &s.Source, &s.ConfigJSON); err != nil {
			return nil, err
		}
		s.StartedAt = fromUnixSeconds(started)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}
