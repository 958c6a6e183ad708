package processing

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/pose"
	"github.com/poselab/swinglab/internal/video"
)

// fakeSource serves a fixed number of synthetic frames, then io.EOF.
type fakeSource struct {
	info   pose.VideoInfo
	served int
	closed bool
}

func (s *fakeSource) Info() pose.VideoInfo { return s.info }

func (s *fakeSource) ReadFrame() (*video.Frame, error) {
	if s.served >= s.info.TotalFrames {
		return nil, io.EOF
	}
	s.served++
	return video.NewFrame(s.info.Width, s.info.Height), nil
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

// fakeSink counts frames and can be told to fail.
type fakeSink struct {
	frames int
	failAt int
	errOut error
	closed bool
}

func (s *fakeSink) WriteFrame(*video.Frame) error {
	if s.errOut != nil && s.frames == s.failAt {
		return s.errOut
	}
	s.frames++
	return nil
}

func (s *fakeSink) Close() error {
	s.closed = true
	return nil
}

// brokenDetector fails every detection call.
type brokenDetector struct {
	detector.Detector
}

func (d *brokenDetector) DetectPose(*video.Frame) (*pose.Result, error) {
	return nil, errors.New("worker crashed")
}

func testSource(frames int) *fakeSource {
	return &fakeSource{info: pose.VideoInfo{
		Path:        "clip.mp4",
		Width:       64,
		Height:      48,
		FPS:         30,
		TotalFrames: frames,
	}}
}

func alwaysDetect() detector.Detector {
	return detector.NewSynthetic(detector.SyntheticConfig{
		DetectionProbability: 1.0,
		ConfidenceThreshold:  0.5,
		Seed:                 42,
	})
}

func TestProcessFullPass(t *testing.T) {
	src := testSource(12)
	sink := &fakeSink{}
	keypointsPath := filepath.Join(t.TempDir(), "keypoints.json")

	proc := NewProcessor(alwaysDetect(), "ffmpeg", "ffprobe", zap.NewNop())
	summary, err := proc.Process(context.Background(), src, sink, Options{
		KeypointsPath: keypointsPath,
	})
	if err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	if summary.Stats.TotalFrames != 12 {
		t.Errorf("expected 12 frames, got %d", summary.Stats.TotalFrames)
	}
	if summary.Stats.FramesWithPose != 12 {
		t.Errorf("expected every frame detected, got %d", summary.Stats.FramesWithPose)
	}
	if summary.Stats.DetectionRate != 1.0 {
		t.Errorf("expected detection rate 1.0, got %f", summary.Stats.DetectionRate)
	}
	if summary.ModelInfo.Name != "synthetic" {
		t.Errorf("unexpected model %q", summary.ModelInfo.Name)
	}
	if sink.frames != 12 {
		t.Errorf("expected 12 output frames, got %d", sink.frames)
	}
	if !src.closed || !sink.closed {
		t.Error("source and sink must be closed after the pass")
	}

	data, err := os.ReadFile(keypointsPath)
	if err != nil {
		t.Fatalf("Failed to read keypoints file: %v", err)
	}
	var doc pose.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("Failed to parse keypoints file: %v", err)
	}
	if len(doc.Frames) != 12 {
		t.Errorf("expected 12 frame records, got %d", len(doc.Frames))
	}
	if doc.VideoInfo.Path != "clip.mp4" || doc.VideoInfo.FPS != 30 {
		t.Errorf("unexpected video info %+v", doc.VideoInfo)
	}
	if doc.ModelInfo.Name != "synthetic" || len(doc.ModelInfo.KeypointNames) == 0 {
		t.Errorf("unexpected model info %+v", doc.ModelInfo)
	}
	if doc.Stats.TotalFrames != 12 {
		t.Errorf("stats block mismatch: %+v", doc.Stats)
	}
	for i, rec := range doc.Frames {
		if rec.FrameNumber != i {
			t.Fatalf("frame %d recorded out of order as %d", i, rec.FrameNumber)
		}
		if !rec.PoseDetected || rec.PoseData == nil {
			t.Fatalf("frame %d missing pose data", i)
		}
	}
}

func TestProcessProgressCadence(t *testing.T) {
	src := testSource(10)
	var reported []int
	proc := NewProcessor(alwaysDetect(), "ffmpeg", "ffprobe", zap.NewNop())

	_, err := proc.Process(context.Background(), src, nil, Options{
		ProgressEvery: 4,
		Progress: func(processed, total int, eta time.Duration) {
			if total != 10 {
				t.Errorf("expected total 10, got %d", total)
			}
			reported = append(reported, processed)
		},
	})
	if err != nil {
		t.Fatalf("Failed to process: %v", err)
	}

	want := []int{4, 8, 10}
	if len(reported) != len(want) {
		t.Fatalf("expected %v progress reports, got %v", want, reported)
	}
	for i := range want {
		if reported[i] != want[i] {
			t.Errorf("report %d: expected %d, got %d", i, want[i], reported[i])
		}
	}
}

func TestProcessDetectionFailureCountsAsMiss(t *testing.T) {
	src := testSource(5)
	sink := &fakeSink{}
	proc := NewProcessor(&brokenDetector{Detector: alwaysDetect()}, "ffmpeg", "ffprobe", zap.NewNop())

	summary, err := proc.Process(context.Background(), src, sink, Options{})
	if err != nil {
		t.Fatalf("a failing detector must not abort the pass: %v", err)
	}
	if summary.Stats.TotalFrames != 5 {
		t.Errorf("expected 5 frames, got %d", summary.Stats.TotalFrames)
	}
	if summary.Stats.FramesWithPose != 0 {
		t.Errorf("expected no detections, got %d", summary.Stats.FramesWithPose)
	}
	if sink.frames != 5 {
		t.Errorf("frames must pass through unannotated, got %d", sink.frames)
	}
}

func TestProcessSinkFailureAbortsKeypoints(t *testing.T) {
	src := testSource(8)
	sink := &fakeSink{failAt: 3, errOut: errors.New("encoder died")}
	keypointsPath := filepath.Join(t.TempDir(), "keypoints.json")

	proc := NewProcessor(alwaysDetect(), "ffmpeg", "ffprobe", zap.NewNop())
	_, err := proc.Process(context.Background(), src, sink, Options{KeypointsPath: keypointsPath})
	if err == nil {
		t.Fatal("expected a sink failure to surface")
	}
	if !src.closed {
		t.Error("source must be closed on failure")
	}
	if _, err := os.Stat(keypointsPath); !os.IsNotExist(err) {
		t.Error("partial keypoints file must be removed")
	}
}

func TestProcessCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := testSource(3)
	proc := NewProcessor(alwaysDetect(), "ffmpeg", "ffprobe", zap.NewNop())
	if _, err := proc.Process(ctx, src, nil, Options{}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if !src.closed {
		t.Error("source must be closed on cancellation")
	}
}

func TestOutputFileNames(t *testing.T) {
	if got := KeypointsFileName("/tmp/videos/serve.mp4"); got != "keypoints_serve.json" {
		t.Errorf("unexpected keypoints name %q", got)
	}
	if got := AnnotatedFileName("rally.MOV"); got != "annotated_rally.mp4" {
		t.Errorf("unexpected annotated name %q", got)
	}
}
