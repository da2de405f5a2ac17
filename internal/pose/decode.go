package pose

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrEmptyFrame is returned by DecodeFrame for blank input.
var ErrEmptyFrame = errors.New("empty frame")

// Frame is the wire form of one model invocation. Producers may send either
// this object or a bare JSON array of poses.
type Frame struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Poses     []Pose     `json:"poses"`
}

// DecodeFrame parses one frame of PoseNet output.
func DecodeFrame(data []byte) (Frame, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Frame{}, ErrEmptyFrame
	}

	var f Frame
	if data[0] == '[' {
		if err := json.Unmarshal(data, &f.Poses); err != nil {
			return Frame{}, fmt.Errorf("failed to decode pose array: %w", err)
		}
		return f, nil
	}

	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("failed to decode pose frame: %w", err)
	}
	return f, nil
}

// MarshalIndent renders poses the way snapshot reports present them.
func MarshalIndent(poses []Pose) ([]byte, error) {
	if poses == nil {
		poses = []Pose{}
	}
	return json.MarshalIndent(poses, "", "   ")
}
