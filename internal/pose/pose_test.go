package pose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeypointCoord(t *testing.T) {
	t.Parallel()

	k := Keypoint{Part: Nose, Score: 0.9, Position: Position{X: 12.5, Y: -3}}

	x, err := k.Coord(X)
	require.NoError(t, err)
	assert.Equal(t, 12.5, x)

	y, err := k.Coord(Y)
	require.NoError(t, err)
	assert.Equal(t, -3.0, y)

	_, err = k.Coord(Axis("z"))
	assert.ErrorIs(t, err, ErrInvalidAxis)
}

func TestPoseCoord(t *testing.T) {
	t.Parallel()

	p := Pose{Score: 0.8, Keypoints: []Keypoint{
		{Part: Nose, Position: Position{X: 1, Y: 2}},
		{Part: LeftEye, Position: Position{X: 3, Y: 4}},
	}}

	v, err := p.Coord(LeftEye, Y)
	require.NoError(t, err)
	assert.Equal(t, 4.0, v)

	_, err = p.Coord(RightEye, X)
	assert.ErrorIs(t, err, ErrUnknownPart)
}

func TestPoseCloneDoesNotAlias(t *testing.T) {
	t.Parallel()

	orig := Pose{Score: 0.5, Keypoints: []Keypoint{{Part: Nose, Position: Position{X: 1, Y: 1}}}}
	c := orig.Clone()
	orig.Keypoints[0].Position.X = 99

	assert.Equal(t, 1.0, c.Keypoints[0].Position.X)
	assert.Nil(t, Pose{}.Clone().Keypoints)
}

func TestCloneAll(t *testing.T) {
	t.Parallel()

	assert.Nil(t, CloneAll(nil))

	in := []Pose{{Keypoints: []Keypoint{{Part: Nose}}}}
	out := CloneAll(in)
	in[0].Keypoints[0].Part = LeftEye
	assert.Equal(t, Nose, out[0].Keypoints[0].Part)
}

func TestPartsOrder(t *testing.T) {
	t.Parallel()

	require.Len(t, Parts, 17)
	assert.Equal(t, Nose, Parts[0])
	assert.Equal(t, LeftEye, Parts[1])
	assert.Equal(t, RightEye, Parts[2])
	assert.Equal(t, RightAnkle, Parts[16])
}

func TestThresholdsConfident(t *testing.T) {
	t.Parallel()

	poses := []Pose{
		{Score: 0.9, Keypoints: []Keypoint{
			{Part: Nose, Score: 0.95},
			{Part: LeftEye, Score: 0.05},
			{Part: RightEye, Score: 0.5},
		}},
		{Score: 0.1, Keypoints: []Keypoint{{Part: Nose, Score: 1}}},
	}

	got := Thresholds{MinPoseScore: 0.15, MinPartScore: 0.1}.Confident(poses)
	require.Len(t, got, 1)
	require.Len(t, got[0].Keypoints, 2)
	assert.Equal(t, Nose, got[0].Keypoints[0].Part)
	assert.Equal(t, RightEye, got[0].Keypoints[1].Part)

	// input untouched
	assert.Len(t, poses[0].Keypoints, 3)
}

func TestPoseHas(t *testing.T) {
	t.Parallel()

	p := Pose{Keypoints: []Keypoint{{Part: Nose}, {Part: LeftEye}}}
	assert.True(t, p.Has(Nose, LeftEye))
	assert.True(t, p.Has())
	assert.False(t, p.Has(Nose, RightEye))
	assert.False(t, Pose{}.Has(Nose))
}
