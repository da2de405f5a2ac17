package pose

// Thresholds gate which detections are shown to a viewer. They never affect
// what the stabiliser consumes.
type Thresholds struct {
	MinPoseScore float64
	MinPartScore float64
}

// Confident returns copies of the poses scoring at least MinPoseScore, each
// reduced to keypoints scoring at least MinPartScore.
func (t Thresholds) Confident(poses []Pose) []Pose {
	out := make([]Pose, 0, len(poses))
	for _, p := range poses {
		if p.Score < t.MinPoseScore {
			continue
		}
		kept := Pose{Score: p.Score, Keypoints: make([]Keypoint, 0, len(p.Keypoints))}
		for _, k := range p.Keypoints {
			if k.Score >= t.MinPartScore {
				kept.Keypoints = append(kept.Keypoints, k)
			}
		}
		out = append(out, kept)
	}
	return out
}
