package stabilize

import (
	"slices"

	"github.com/banshee-data/pose.report/internal/pose"
)

// Estimator returns the window median of a single keypoint coordinate.
//
// For an even window the element at sorted index N/2 is returned (the upper of
// the two middle values), not their average.
type Estimator struct{}

// Estimate returns Unavailable until w is full, then the sorted element at
// index Len()/2 of part's axis coordinate across every slot.
func (Estimator) Estimate(w *Window, part pose.Part, axis pose.Axis) (Value, error) {
	if !w.IsFull() {
		return Unavailable, nil
	}

	values := make([]float64, w.Len())
	for slot := range values {
		v, err := w.ValueAt(slot, part, axis)
		if err != nil {
			return Unavailable, err
		}
		values[slot] = v
	}

	slices.Sort(values)
	return Available(values[len(values)/2]), nil
}
