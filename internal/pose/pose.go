// Package pose holds the data model shared by detectors, the frame
// processing engine and the persisted keypoints output.
package pose

// Keypoint is one detected landmark. X/Y (and Z when the detector
// provides depth) are normalized to [0,1]; PixelX/PixelY are derived
// from the frame dimensions at detection time.
type Keypoint struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z,omitempty"`
	PixelX     int     `json:"pixel_x"`
	PixelY     int     `json:"pixel_y"`
	Confidence float64 `json:"confidence"`
}

// BoundingBox is the pixel-space extent of the confident keypoints.
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Meta describes the detection call that produced a Result.
// ProcessingTime is in seconds.
type Meta struct {
	Model          string         `json:"model"`
	ProcessingTime float64        `json:"processing_time"`
	Parameters     map[string]any `json:"parameters,omitempty"`
}

// Result is the outcome of one successful detection call. It is created
// fresh per frame and never mutated after being returned.
type Result struct {
	Keypoints []Keypoint   `json:"keypoints"`
	BBox      *BoundingBox `json:"bbox,omitempty"`
	Meta      Meta         `json:"metadata"`
}

// FrameRecord is one entry of the per-frame output sequence. PoseData is
// nil (serialized as null) when no pose was detected in the frame.
type FrameRecord struct {
	FrameNumber    int     `json:"frame_number"`
	Timestamp      float64 `json:"timestamp"`
	PoseDetected   bool    `json:"pose_detected"`
	ProcessingTime float64 `json:"processing_time"`
	PoseData       *Result `json:"pose_data"`
}

// VideoInfo is the source-video metadata block of the keypoints output.
type VideoInfo struct {
	Path        string  `json:"path"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	FPS         float64 `json:"fps"`
	TotalFrames int     `json:"total_frames"`
}

// ModelInfo identifies the detector that produced a keypoints file.
type ModelInfo struct {
	Name          string         `json:"name"`
	KeypointNames []string       `json:"keypoint_names"`
	Connections   [][2]int       `json:"connections"`
	Parameters    map[string]any `json:"parameters,omitempty"`
}

// Document is the complete keypoints file: source metadata, the
// detector description, every frame record and the pass statistics.
type Document struct {
	VideoInfo VideoInfo     `json:"video_info"`
	ModelInfo ModelInfo     `json:"model_info"`
	Frames    []FrameRecord `json:"frames"`
	Stats     Statistics    `json:"processing_stats"`
}

// Statistics aggregates one completed processing pass. The derived
// fields are computed once by Finalize at end of pass.
type Statistics struct {
	TotalFrames         int     `json:"total_frames"`
	FramesWithPose      int     `json:"frames_with_pose"`
	TotalProcessingTime float64 `json:"total_processing_time"`
	DetectionRate       float64 `json:"pose_detection_rate"`
	AverageFPS          float64 `json:"avg_fps"`
}

// Record accounts for one processed frame. The pass duration is set by
// the engine from wall clock, not accumulated here, so the rate also
// covers decode and encode time.
func (s *Statistics) Record(detected bool) {
	s.TotalFrames++
	if detected {
		s.FramesWithPose++
	}
}

// Finalize computes the derived rates. Zero totals yield zero rates
// rather than a division fault.
func (s *Statistics) Finalize() {
	if s.TotalFrames > 0 {
		s.DetectionRate = float64(s.FramesWithPose) / float64(s.TotalFrames)
	}
	if s.TotalProcessingTime > 0 {
		s.AverageFPS = float64(s.TotalFrames) / s.TotalProcessingTime
	}
}
