// Package detector defines the pose-detector capability interface and
// the built-in implementations behind it.
package detector

import (
	"github.com/poselab/swinglab/internal/pose"
	"github.com/poselab/swinglab/internal/video"
)

// Detector is the capability set every pose backend implements.
//
// Initialize must be called once before DetectPose; calling DetectPose
// on an uninitialized detector reports no detection instead of failing.
// A detector may keep temporal state between frames (landmark
// smoothing), so calls on one instance must stay sequential and in
// source order.
type Detector interface {
	Name() string
	Initialize() error

	// DetectPose returns the pose found in the frame, or (nil, nil)
	// when no pose is present. An error means the detection call
	// itself failed, not that the frame is empty.
	DetectPose(frame *video.Frame) (*pose.Result, error)

	// DrawPose renders the skeleton onto a copy of the frame. The
	// input frame is never modified.
	DrawPose(frame *video.Frame, res *pose.Result) (*video.Frame, error)

	// KeypointNames returns the detector's ordered landmark list;
	// Connections returns skeleton edges as index pairs into it.
	KeypointNames() []string
	Connections() [][2]int

	Cleanup() error
}

// Describe aggregates a detector's identity for persisted output.
func Describe(d Detector) pose.ModelInfo {
	return pose.ModelInfo{
		Name:          d.Name(),
		KeypointNames: d.KeypointNames(),
		Connections:   d.Connections(),
	}
}
