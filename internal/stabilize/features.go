package stabilize

import (
	"fmt"
	"math"

	"github.com/banshee-data/pose.report/internal/pose"
)

// TiltEpsilon is added to the eye x-delta before dividing. It is applied even
// when the delta is non-zero, which biases every slope slightly.
const TiltEpsilon = 0.005

// RequiredParts are the keypoints every windowed pose must carry for the
// extractor's queries to resolve.
var RequiredParts = []pose.Part{pose.Nose, pose.LeftEye, pose.RightEye}

// FeatureSnapshot is the set of derived features for the current window.
type FeatureSnapshot struct {
	TiltSlope    Value `json:"tilt_slope"`
	TriangleArea Value `json:"triangle_area"`
}

// Ready reports whether every feature is available.
func (s FeatureSnapshot) Ready() bool {
	return s.TiltSlope.IsAvailable() && s.TriangleArea.IsAvailable()
}

// NotReadyStatus is shown while the window is still filling.
const NotReadyStatus = "Frames is not accumulated enough to do median stable selection"

// Status renders the snapshot as a single debug line.
func (s FeatureSnapshot) Status() string {
	if !s.Ready() {
		return NotReadyStatus
	}
	return fmt.Sprintf("Current Slope = %s, Area = %s", s.TiltSlope, s.TriangleArea)
}

// Extractor computes head-tilt and nose/eye triangle features from stable
// keypoint estimates.
type Extractor struct {
	Estimator Estimator
}

// stable fetches several estimates, stopping at the first error. The returned
// bool is false if any estimate is unavailable.
func (e Extractor) stable(w *Window, queries ...query) ([]float64, bool, error) {
	out := make([]float64, len(queries))
	ready := true
	for i, q := range queries {
		v, err := e.Estimator.Estimate(w, q.part, q.axis)
		if err != nil {
			return nil, false, err
		}
		f, ok := v.Float()
		if !ok {
			ready = false
		}
		out[i] = f
	}
	return out, ready, nil
}

type query struct {
	part pose.Part
	axis pose.Axis
}

// TiltSlope returns dy/(dx+TiltEpsilon) for the vector from the right eye to
// the left eye.
func (e Extractor) TiltSlope(w *Window) (Value, error) {
	v, ok, err := e.stable(w,
		query{pose.LeftEye, pose.X}, query{pose.RightEye, pose.X},
		query{pose.LeftEye, pose.Y}, query{pose.RightEye, pose.Y},
	)
	if err != nil || !ok {
		return Unavailable, err
	}
	dx := v[0] - v[1] + TiltEpsilon
	dy := v[2] - v[3]
	return Available(dy / dx), nil
}

// TriangleArea returns |a*d - b*c| for the vectors from each eye to the nose:
// twice the triangle area, used as a relative proximity signal.
func (e Extractor) TriangleArea(w *Window) (Value, error) {
	v, ok, err := e.stable(w,
		query{pose.Nose, pose.X}, query{pose.Nose, pose.Y},
		query{pose.LeftEye, pose.X}, query{pose.LeftEye, pose.Y},
		query{pose.RightEye, pose.X}, query{pose.RightEye, pose.Y},
	)
	if err != nil || !ok {
		return Unavailable, err
	}
	a := v[0] - v[2]
	b := v[1] - v[3]
	c := v[0] - v[4]
	d := v[1] - v[5]
	return Available(math.Abs(a*d - b*c)), nil
}

// Compute returns both features for the current window contents.
func (e Extractor) Compute(w *Window) (FeatureSnapshot, error) {
	tilt, err := e.TiltSlope(w)
	if err != nil {
		return FeatureSnapshot{}, fmt.Errorf("tilt slope: %w", err)
	}
	area, err := e.TriangleArea(w)
	if err != nil {
		return FeatureSnapshot{}, fmt.Errorf("triangle area: %w", err)
	}
	return FeatureSnapshot{TiltSlope: tilt, TriangleArea: area}, nil
}
