package detector

import (
	"bufio"
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"strings"
	"time"

	"github.com/fogleman/gg"
	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/pose"
	"github.com/poselab/swinglab/internal/video"
)

const (
	defaultResponseTimeout = 10 * time.Second
	workerStopTimeout      = 2 * time.Second
)

var mediapipeLandmarkNames = []string{
	"nose",
	"left_eye_inner", "left_eye", "left_eye_outer",
	"right_eye_inner", "right_eye", "right_eye_outer",
	"left_ear", "right_ear",
	"mouth_left", "mouth_right",
	"left_shoulder", "right_shoulder",
	"left_elbow", "right_elbow",
	"left_wrist", "right_wrist",
	"left_pinky", "right_pinky",
	"left_index", "right_index",
	"left_thumb", "right_thumb",
	"left_hip", "right_hip",
	"left_knee", "right_knee",
	"left_ankle", "right_ankle",
	"left_heel", "right_heel",
	"left_foot_index", "right_foot_index",
}

var mediapipeConnections = [][2]int{
	{0, 1}, {1, 2}, {2, 3}, {3, 7},
	{0, 4}, {4, 5}, {5, 6}, {6, 8},
	{9, 10},
	{11, 12},
	{11, 23}, {12, 24},
	{23, 24},
	{11, 13}, {13, 15},
	{15, 17}, {15, 19}, {15, 21},
	{17, 19},
	{12, 14}, {14, 16},
	{16, 18}, {16, 20}, {16, 22},
	{18, 20},
	{23, 25}, {25, 27},
	{27, 29}, {27, 31},
	{24, 26}, {26, 28},
	{28, 30}, {28, 32},
}

type SidecarConfig struct {
	// Command is the worker argv, e.g. ["python3", "pose_worker.py"].
	Command []string

	ModelComplexity        int
	MinDetectionConfidence float64
	MinTrackingConfidence  float64

	// ResponseTimeout bounds each round trip to the worker.
	ResponseTimeout time.Duration

	Logger *zap.Logger
}

func DefaultSidecarConfig(command []string, log *zap.Logger) SidecarConfig {
	if log == nil {
		log = zap.NewNop()
	}
	return SidecarConfig{
		Command:                command,
		ModelComplexity:        1,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
		ResponseTimeout:        defaultResponseTimeout,
		Logger:                 log,
	}
}

// Sidecar runs a pose-estimation worker as a child process and
// exchanges one JSON line per frame over its stdin/stdout: frames go in
// as base64 JPEG, landmarks come back as normalized coordinates with a
// visibility score. The worker holds the actual model (MediaPipe), so
// this adapter owns only lifecycle and framing.
type Sidecar struct {
	cfg SidecarConfig
	log *zap.Logger

	cmd         *exec.Cmd
	stdin       io.WriteCloser
	lines       chan string
	initialized bool
}

func NewSidecar(cfg SidecarConfig) *Sidecar {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Sidecar{cfg: cfg, log: log}
}

func (s *Sidecar) Name() string { return "mediapipe" }

type sidecarRequest struct {
	FrameData string `json:"frame_data"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type sidecarLandmark struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Z          float64 `json:"z"`
	Visibility float64 `json:"visibility"`
}

type sidecarResponse struct {
	Status    string            `json:"status,omitempty"`
	Detected  bool              `json:"detected"`
	Landmarks []sidecarLandmark `json:"landmarks"`
	Error     string            `json:"error,omitempty"`
}

// Initialize spawns the worker and waits for its ready line. Calling
// it on an already running detector is a no-op.
func (s *Sidecar) Initialize() error {
	if s.initialized {
		return nil
	}
	if len(s.cfg.Command) == 0 {
		return errors.New("pose worker command not configured")
	}

	args := append([]string{}, s.cfg.Command[1:]...)
	args = append(args,
		fmt.Sprintf("--model-complexity=%d", s.cfg.ModelComplexity),
		fmt.Sprintf("--min-detection-confidence=%g", s.cfg.MinDetectionConfidence),
		fmt.Sprintf("--min-tracking-confidence=%g", s.cfg.MinTrackingConfidence),
	)
	cmd := exec.Command(s.cfg.Command[0], args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("worker stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("worker stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("worker stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start pose worker %q: %w", s.cfg.Command[0], err)
	}

	s.cmd = cmd
	s.stdin = stdin
	s.lines = make(chan string, 16)
	go s.readLines(stdout)
	go s.logStderr(stderr)

	line, err := s.readLine()
	if err != nil {
		s.kill()
		return fmt.Errorf("pose worker handshake: %w", err)
	}
	var resp sidecarResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		s.kill()
		return fmt.Errorf("pose worker handshake: %w", err)
	}
	if resp.Status != "ready" {
		s.kill()
		return fmt.Errorf("pose worker not ready: %s", strings.TrimSpace(line))
	}

	s.log.Info("pose worker started", zap.String("command", strings.Join(s.cfg.Command, " ")))
	s.initialized = true
	return nil
}

func (s *Sidecar) DetectPose(frame *video.Frame) (*pose.Result, error) {
	if !s.initialized {
		return nil, nil
	}

	start := time.Now()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, frame.ToImage(), &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("encode frame for worker: %w", err)
	}

	payload, err := json.Marshal(sidecarRequest{
		FrameData: base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:     frame.Width,
		Height:    frame.Height,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal worker request: %w", err)
	}
	payload = append(payload, '\n')

	if _, err := s.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("send frame to pose worker: %w", err)
	}

	line, err := s.readLine()
	if err != nil {
		return nil, fmt.Errorf("pose worker response: %w", err)
	}
	var resp sidecarResponse
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		return nil, fmt.Errorf("parse pose worker response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("pose worker: %s", resp.Error)
	}
	if !resp.Detected || len(resp.Landmarks) == 0 {
		return nil, nil
	}

	n := len(resp.Landmarks)
	if n > len(mediapipeLandmarkNames) {
		n = len(mediapipeLandmarkNames)
	}
	w, h := float64(frame.Width), float64(frame.Height)
	keypoints := make([]pose.Keypoint, 0, n)
	for i := 0; i < n; i++ {
		lm := resp.Landmarks[i]
		keypoints = append(keypoints, pose.Keypoint{
			ID:         i,
			Name:       mediapipeLandmarkNames[i],
			X:          lm.X,
			Y:          lm.Y,
			Z:          lm.Z,
			PixelX:     int(lm.X * w),
			PixelY:     int(lm.Y * h),
			Confidence: lm.Visibility,
		})
	}

	return &pose.Result{
		Keypoints: keypoints,
		BBox:      boundingBox(keypoints, 0.5),
		Meta: pose.Meta{
			Model:          s.Name(),
			ProcessingTime: time.Since(start).Seconds(),
			Parameters: map[string]any{
				"model_complexity":         s.cfg.ModelComplexity,
				"min_detection_confidence": s.cfg.MinDetectionConfidence,
				"min_tracking_confidence":  s.cfg.MinTrackingConfidence,
			},
		},
	}, nil
}

// DrawPose renders green bones and body-part colored joints.
func (s *Sidecar) DrawPose(frame *video.Frame, res *pose.Result) (*video.Frame, error) {
	if res == nil || len(res.Keypoints) == 0 {
		return frame.Clone(), nil
	}

	img := frame.ToImage()
	dc := gg.NewContextForRGBA(img)
	kps := res.Keypoints
	threshold := s.cfg.MinDetectionConfidence

	dc.SetRGB255(0, 255, 0)
	for _, conn := range mediapipeConnections {
		a, b := conn[0], conn[1]
		if a >= len(kps) || b >= len(kps) {
			continue
		}
		if kps[a].Confidence <= threshold || kps[b].Confidence <= threshold {
			continue
		}
		drawBone(dc, float64(kps[a].PixelX), float64(kps[a].PixelY), float64(kps[b].PixelX), float64(kps[b].PixelY))
		dc.SetRGB255(0, 255, 0)
	}

	for _, kp := range kps {
		if kp.Confidence <= threshold {
			continue
		}

		var r, g, b int
		switch {
		case kp.Name == "nose" || strings.Contains(kp.Name, "eye"):
			r, g, b = 0, 0, 255
		case strings.Contains(kp.Name, "shoulder"), strings.Contains(kp.Name, "elbow"), strings.Contains(kp.Name, "wrist"):
			r, g, b = 0, 255, 0
		case strings.Contains(kp.Name, "hip"), strings.Contains(kp.Name, "knee"), strings.Contains(kp.Name, "ankle"):
			r, g, b = 255, 0, 0
		default:
			r, g, b = 0, 255, 255
		}
		drawJoint(dc, float64(kp.PixelX), float64(kp.PixelY), 4, 6, r, g, b)
	}

	return video.FromImage(img), nil
}

func (s *Sidecar) KeypointNames() []string {
	names := make([]string, len(mediapipeLandmarkNames))
	copy(names, mediapipeLandmarkNames)
	return names
}

func (s *Sidecar) Connections() [][2]int {
	conns := make([][2]int, len(mediapipeConnections))
	copy(conns, mediapipeConnections)
	return conns
}

// Cleanup closes the worker's stdin so it can exit on its own, then
// kills it if it lingers.
func (s *Sidecar) Cleanup() error {
	s.initialized = false
	if s.cmd == nil {
		return nil
	}
	if s.stdin != nil {
		s.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- s.cmd.Wait() }()
	select {
	case <-done:
	case <-time.After(workerStopTimeout):
		s.log.Warn("pose worker did not exit, killing it")
		s.cmd.Process.Kill()
		<-done
	}
	s.cmd = nil
	return nil
}

func (s *Sidecar) readLines(stdout io.Reader) {
	sc := bufio.NewScanner(stdout)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		s.lines <- sc.Text()
	}
	close(s.lines)
}

func (s *Sidecar) logStderr(stderr io.Reader) {
	sc := bufio.NewScanner(stderr)
	for sc.Scan() {
		s.log.Debug("pose worker", zap.String("stderr", sc.Text()))
	}
}

func (s *Sidecar) readLine() (string, error) {
	timeout := s.cfg.ResponseTimeout
	if timeout <= 0 {
		timeout = defaultResponseTimeout
	}
	select {
	case line, ok := <-s.lines:
		if !ok {
			return "", errors.New("worker closed its output")
		}
		return line, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("no worker response within %s", timeout)
	}
}

func (s *Sidecar) kill() {
	if s.stdin != nil {
		s.stdin.Close()
	}
	if s.cmd != nil {
		if s.cmd.Process != nil {
			s.cmd.Process.Kill()
		}
		s.cmd.Wait()
		s.cmd = nil
	}
}
