// Package stabilize turns jittery per-frame keypoints into stable estimates by
// taking a fixed-index median over a rolling window of recent detections, and
// derives head-tilt and proximity features from those estimates.
package stabilize

import (
	"errors"
	"fmt"

	"github.com/banshee-data/pose.report/internal/pose"
)

// DefaultWindowSize is the number of frames the median is taken over.
const DefaultWindowSize = 10

// ErrInvalidQuery reports a request for a slot, part or axis the stored poses
// cannot answer. It indicates a programming error in the caller.
var ErrInvalidQuery = errors.New("invalid query")

// Window is a fixed-capacity FIFO of poses for a single tracked subject.
// It stores its own copies; the producer's slices are never aliased.
type Window struct {
	poses    []pose.Pose
	capacity int
	head     int // next write position
	size     int
}

// NewWindow creates a window holding at most n poses.
func NewWindow(n int) *Window {
	if n < 1 {
		n = DefaultWindowSize
	}
	return &Window{
		poses:    make([]pose.Pose, n),
		capacity: n,
	}
}

// Push stores p, evicting the oldest pose once the window is full.
func (w *Window) Push(p pose.Pose) {
	w.poses[w.head] = p.Clone()
	w.head = (w.head + 1) % w.capacity
	if w.size < w.capacity {
		w.size++
	}
}

// IsFull reports whether the window holds Cap() poses.
func (w *Window) IsFull() bool {
	return w.size == w.capacity
}

// Len returns the number of stored poses.
func (w *Window) Len() int {
	return w.size
}

// Cap returns the window capacity.
func (w *Window) Cap() int {
	return w.capacity
}

// Clear drops every stored pose.
func (w *Window) Clear() {
	for i := range w.poses {
		w.poses[i] = pose.Pose{}
	}
	w.head = 0
	w.size = 0
}

// index maps a slot (0 = oldest) onto the ring.
func (w *Window) index(slot int) int {
	return (w.head - w.size + slot + w.capacity) % w.capacity
}

// ValueAt returns the axis coordinate of part in the pose at slot, where slot 0
// is the oldest stored pose.
func (w *Window) ValueAt(slot int, part pose.Part, axis pose.Axis) (float64, error) {
	if slot < 0 || slot >= w.size {
		return 0, fmt.Errorf("%w: slot %d outside [0,%d)", ErrInvalidQuery, slot, w.size)
	}
	v, err := w.poses[w.index(slot)].Coord(part, axis)
	if err != nil {
		return 0, fmt.Errorf("%w: slot %d: %w", ErrInvalidQuery, slot, err)
	}
	return v, nil
}

// Poses returns copies of the stored poses from oldest to newest.
func (w *Window) Poses() []pose.Pose {
	if w.size == 0 {
		return nil
	}
	out := make([]pose.Pose, w.size)
	for i := 0; i < w.size; i++ {
		out[i] = w.poses[w.index(i)].Clone()
	}
	return out
}
