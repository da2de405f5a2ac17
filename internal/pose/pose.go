// Package pose holds the per-frame keypoint detections produced by an external
// pose-estimation model. Values in this package are treated as immutable once
// decoded: consumers that need to retain a pose keep a Clone.
package pose

import (
	"errors"
	"fmt"
)

// Part is the anatomical label of a keypoint, using PoseNet part names.
type Part string

// PoseNet part labels, in model output order.
const (
	Nose          Part = "nose"
	LeftEye       Part = "leftEye"
	RightEye      Part = "rightEye"
	LeftEar       Part = "leftEar"
	RightEar      Part = "rightEar"
	LeftShoulder  Part = "leftShoulder"
	RightShoulder Part = "rightShoulder"
	LeftElbow     Part = "leftElbow"
	RightElbow    Part = "rightElbow"
	LeftWrist     Part = "leftWrist"
	RightWrist    Part = "rightWrist"
	LeftHip       Part = "leftHip"
	RightHip      Part = "rightHip"
	LeftKnee      Part = "leftKnee"
	RightKnee     Part = "rightKnee"
	LeftAnkle     Part = "leftAnkle"
	RightAnkle    Part = "rightAnkle"
)

// Parts lists every label in model output order.
var Parts = []Part{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow,
	LeftWrist, RightWrist, LeftHip, RightHip,
	LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// Axis selects one coordinate of a keypoint position.
type Axis string

const (
	X Axis = "x"
	Y Axis = "y"
)

var (
	// ErrInvalidAxis is returned for an axis other than X or Y.
	ErrInvalidAxis = errors.New("invalid axis")
	// ErrUnknownPart is returned when a pose has no keypoint with the requested part.
	ErrUnknownPart = errors.New("unknown part")
)

// Position is a 2D image coordinate in pixels.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Keypoint is a single labelled landmark with its detection score.
type Keypoint struct {
	Score    float64  `json:"score"`
	Part     Part     `json:"part"`
	Position Position `json:"position"`
}

// Coord returns the keypoint coordinate on the given axis.
func (k Keypoint) Coord(axis Axis) (float64, error) {
	switch axis {
	case X:
		return k.Position.X, nil
	case Y:
		return k.Position.Y, nil
	default:
		return 0, fmt.Errorf("%w %q", ErrInvalidAxis, axis)
	}
}

// Pose is one subject's detection for one frame: an ordered keypoint list plus
// the overall subject score.
type Pose struct {
	Score     float64    `json:"score"`
	Keypoints []Keypoint `json:"keypoints"`
}

// Clone returns a deep copy so the caller never aliases the producer's slice.
func (p Pose) Clone() Pose {
	out := Pose{Score: p.Score}
	if p.Keypoints != nil {
		out.Keypoints = make([]Keypoint, len(p.Keypoints))
		copy(out.Keypoints, p.Keypoints)
	}
	return out
}

// Keypoint returns the first keypoint labelled part.
func (p Pose) Keypoint(part Part) (Keypoint, bool) {
	for _, k := range p.Keypoints {
		if k.Part == part {
			return k, true
		}
	}
	return Keypoint{}, false
}

// Has reports whether the pose carries a keypoint for every listed part.
func (p Pose) Has(parts ...Part) bool {
	for _, part := range parts {
		if _, ok := p.Keypoint(part); !ok {
			return false
		}
	}
	return true
}

// Coord returns the coordinate of part on axis.
func (p Pose) Coord(part Part, axis Axis) (float64, error) {
	k, ok := p.Keypoint(part)
	if !ok {
		return 0, fmt.Errorf("%w %q", ErrUnknownPart, part)
	}
	return k.Coord(axis)
}

// CloneAll deep-copies a slice of poses.
func CloneAll(poses []Pose) []Pose {
	if poses == nil {
		return nil
	}
	out := make([]Pose, len(poses))
	for i, p := range poses {
		out[i] = p.Clone()
	}
	return out
}
