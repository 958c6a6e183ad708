package detector

import (
	"math/rand"
	"strings"
	"time"

	"github.com/fogleman/gg"

	"github.com/poselab/swinglab/internal/pose"
	"github.com/poselab/swinglab/internal/video"
)

var cocoKeypointNames = []string{
	"nose", "left_eye", "right_eye", "left_ear", "right_ear",
	"left_shoulder", "right_shoulder", "left_elbow", "right_elbow",
	"left_wrist", "right_wrist", "left_hip", "right_hip",
	"left_knee", "right_knee", "left_ankle", "right_ankle",
}

var cocoConnections = [][2]int{
	{0, 1}, {0, 2}, {1, 3}, {2, 4},
	{5, 6}, {5, 11}, {6, 12}, {11, 12},
	{5, 7}, {7, 9},
	{6, 8}, {8, 10},
	{11, 13}, {13, 15},
	{12, 14}, {14, 16},
}

type SyntheticConfig struct {
	// DetectionProbability is the chance a frame yields a pose at all.
	DetectionProbability float64
	// ConfidenceThreshold floors generated keypoint confidences and
	// gates drawing and bounding-box membership.
	ConfidenceThreshold float64
	// Seed makes the detector reproducible; 0 seeds from the clock.
	Seed int64
}

func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		DetectionProbability: 0.8,
		ConfidenceThreshold:  0.5,
	}
}

// Synthetic generates geometrically plausible random poses in the COCO
// keypoint layout. It exists so the engine and pipeline can be
// exercised without a real pose backend.
type Synthetic struct {
	cfg         SyntheticConfig
	rng         *rand.Rand
	initialized bool
}

func NewSynthetic(cfg SyntheticConfig) *Synthetic {
	return &Synthetic{cfg: cfg}
}

func (s *Synthetic) Name() string { return "synthetic" }

func (s *Synthetic) Initialize() error {
	seed := s.cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	s.rng = rand.New(rand.NewSource(seed))
	s.initialized = true
	return nil
}

func (s *Synthetic) DetectPose(frame *video.Frame) (*pose.Result, error) {
	if !s.initialized {
		return nil, nil
	}

	start := time.Now()

	if s.rng.Float64() > s.cfg.DetectionProbability {
		return nil, nil
	}

	w, h := frame.Width, frame.Height
	keypoints := make([]pose.Keypoint, 0, len(cocoKeypointNames))
	for i, name := range cocoKeypointNames {
		x, y := s.randomPlacement(name)
		conf := s.cfg.ConfidenceThreshold + s.rng.Float64()*(1-s.cfg.ConfidenceThreshold)

		keypoints = append(keypoints, pose.Keypoint{
			ID:         i,
			Name:       name,
			X:          x,
			Y:          y,
			PixelX:     int(x * float64(w)),
			PixelY:     int(y * float64(h)),
			Confidence: conf,
		})
	}

	res := &pose.Result{
		Keypoints: keypoints,
		BBox:      boundingBox(keypoints, s.cfg.ConfidenceThreshold),
		Meta: pose.Meta{
			Model:          s.Name(),
			ProcessingTime: time.Since(start).Seconds(),
			Parameters: map[string]any{
				"detection_probability": s.cfg.DetectionProbability,
				"confidence_threshold":  s.cfg.ConfidenceThreshold,
			},
		},
	}
	return res, nil
}

// randomPlacement picks a normalized position inside the body region a
// keypoint belongs to, keeping the figure roughly human shaped.
func (s *Synthetic) randomPlacement(name string) (float64, float64) {
	uniform := func(lo, hi float64) float64 { return lo + s.rng.Float64()*(hi-lo) }

	switch {
	case name == "nose" || strings.Contains(name, "eye"):
		return uniform(0.3, 0.7), uniform(0.1, 0.3)
	case strings.Contains(name, "shoulder"), strings.Contains(name, "elbow"), strings.Contains(name, "wrist"):
		return uniform(0.2, 0.8), uniform(0.2, 0.6)
	case strings.Contains(name, "hip"), strings.Contains(name, "knee"), strings.Contains(name, "ankle"):
		return uniform(0.3, 0.7), uniform(0.4, 0.9)
	default:
		return uniform(0.2, 0.8), uniform(0.2, 0.8)
	}
}

// DrawPose renders the skeleton with segment-colored bones, confidence
// colored joints, keypoint labels and the bounding box.
func (s *Synthetic) DrawPose(frame *video.Frame, res *pose.Result) (*video.Frame, error) {
	if res == nil || len(res.Keypoints) == 0 {
		return frame.Clone(), nil
	}

	img := frame.ToImage()
	dc := gg.NewContextForRGBA(img)
	kps := res.Keypoints
	threshold := s.cfg.ConfidenceThreshold

	for _, conn := range cocoConnections {
		a, b := conn[0], conn[1]
		if a >= len(kps) || b >= len(kps) {
			continue
		}
		if kps[a].Confidence <= threshold || kps[b].Confidence <= threshold {
			continue
		}

		switch {
		case a <= 4: // head
			dc.SetRGB255(255, 0, 255)
		case a <= 10: // arms
			dc.SetRGB255(255, 255, 0)
		default: // legs
			dc.SetRGB255(0, 255, 255)
		}
		drawBone(dc, float64(kps[a].PixelX), float64(kps[a].PixelY), float64(kps[b].PixelX), float64(kps[b].PixelY))
	}

	for _, kp := range kps {
		if kp.Confidence <= threshold {
			continue
		}
		x, y := float64(kp.PixelX), float64(kp.PixelY)

		var r, g, b int
		switch {
		case kp.Confidence > 0.8:
			r, g, b = 0, 255, 0
		case kp.Confidence > 0.6:
			r, g, b = 255, 255, 0
		default:
			r, g, b = 255, 0, 0
		}
		drawJoint(dc, x, y, 5, 7, r, g, b)

		dc.SetRGB255(255, 255, 255)
		dc.DrawString(kp.Name, x+10, y-10)
	}

	if res.BBox != nil {
		dc.SetRGB255(128, 128, 128)
		dc.SetLineWidth(2)
		dc.DrawRectangle(float64(res.BBox.X), float64(res.BBox.Y), float64(res.BBox.Width), float64(res.BBox.Height))
		dc.Stroke()
	}

	dc.SetRGB255(255, 255, 255)
	dc.DrawString("Model: "+s.Name(), 10, 30)

	return video.FromImage(img), nil
}

func (s *Synthetic) KeypointNames() []string {
	names := make([]string, len(cocoKeypointNames))
	copy(names, cocoKeypointNames)
	return names
}

func (s *Synthetic) Connections() [][2]int {
	conns := make([][2]int, len(cocoConnections))
	copy(conns, cocoConnections)
	return conns
}

func (s *Synthetic) Cleanup() error {
	s.initialized = false
	return nil
}

// boundingBox spans the pixel coordinates of keypoints above the
// confidence threshold, or nil when none qualify.
func boundingBox(keypoints []pose.Keypoint, threshold float64) *pose.BoundingBox {
	first := true
	var minX, minY, maxX, maxY int
	for _, kp := range keypoints {
		if kp.Confidence <= threshold {
			continue
		}
		if first {
			minX, maxX = kp.PixelX, kp.PixelX
			minY, maxY = kp.PixelY, kp.PixelY
			first = false
			continue
		}
		if kp.PixelX < minX {
			minX = kp.PixelX
		}
		if kp.PixelX > maxX {
			maxX = kp.PixelX
		}
		if kp.PixelY < minY {
			minY = kp.PixelY
		}
		if kp.PixelY > maxY {
			maxY = kp.PixelY
		}
	}
	if first {
		return nil
	}
	return &pose.BoundingBox{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
