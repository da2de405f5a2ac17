// Package source delivers decoded pose frames to the pipeline one at a time,
// in arrival order, from files, serial ports, UDP sockets or packet captures.
package source

import (
	"context"
	"io"
	"time"

	"github.com/banshee-data/pose.report/internal/pose"
)

// Frame is one model invocation's output: zero or more subjects.
type Frame struct {
	Poses      []pose.Pose
	ReceivedAt time.Time
}

// Source yields frames until it returns io.EOF.
type Source interface {
	// Next blocks until the next frame is available, the source is exhausted
	// (io.EOF) or ctx is done.
	Next(ctx context.Context) (Frame, error)

	// Close releases the underlying reader or socket.
	Close() error
}

// Slice is an in-memory Source, mainly for tests and fixtures.
type Slice struct {
	frames []Frame
	pos    int
}

// NewSlice returns a source replaying frames in order.
func NewSlice(frames ...Frame) *Slice {
	return &Slice{frames: frames}
}

func (s *Slice) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

func (s *Slice) Close() error { return nil }
