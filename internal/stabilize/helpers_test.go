package stabilize

import "github.com/banshee-data/pose.report/internal/pose"

// facePose builds a pose with nose and both eyes at the given positions.
func facePose(nose, leftEye, rightEye pose.Position) pose.Pose {
	return pose.Pose{Score: 0.9, Keypoints: []pose.Keypoint{
		{Part: pose.Nose, Score: 0.99, Position: nose},
		{Part: pose.LeftEye, Score: 0.98, Position: leftEye},
		{Part: pose.RightEye, Score: 0.97, Position: rightEye},
	}}
}

// taggedPose carries a marker value in the nose x coordinate.
func taggedPose(tag float64) pose.Pose {
	return facePose(pose.Position{X: tag, Y: tag}, pose.Position{X: tag + 1}, pose.Position{X: tag - 1})
}

func fill(w *Window, poses ...pose.Pose) {
	for _, p := range poses {
		w.Push(p)
	}
}
