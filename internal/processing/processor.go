// Package processing runs a pose detector over every frame of a video,
// producing the per-frame record stream, an optional annotated video
// and the pass statistics.
package processing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/poselab/swinglab/internal/detector"
	"github.com/poselab/swinglab/internal/metrics"
	"github.com/poselab/swinglab/internal/pose"
	"github.com/poselab/swinglab/internal/video"
)

// FrameSource yields frames in strict source order. ReadFrame returns
// io.EOF when the stream ends.
type FrameSource interface {
	Info() pose.VideoInfo
	ReadFrame() (*video.Frame, error)
	Close() error
}

// FrameSink receives output frames in the same order they were read.
type FrameSink interface {
	WriteFrame(*video.Frame) error
	Close() error
}

type Options struct {
	// AnnotatedPath enables the annotated output video; empty skips it.
	AnnotatedPath string
	// KeypointsPath enables the keypoints JSON; empty skips it.
	KeypointsPath string
	// ProgressEvery is the frame cadence of progress callbacks,
	// default 100. The final frame always reports.
	ProgressEvery int
	Progress      func(processed, total int, eta time.Duration)
}

type Summary struct {
	VideoInfo     pose.VideoInfo
	ModelInfo     pose.ModelInfo
	Stats         pose.Statistics
	AnnotatedPath string
	KeypointsPath string
}

// Processor drives one detector over videos. Frames are presented to
// the detector sequentially and in order, because detectors may hold
// temporal state between frames.
type Processor struct {
	det         detector.Detector
	ffmpegPath  string
	ffprobePath string
	log         *zap.Logger
}

func NewProcessor(det detector.Detector, ffmpegPath, ffprobePath string, log *zap.Logger) *Processor {
	return &Processor{
		det:         det,
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}
}

// ProcessFile opens the video and runs the pass, wiring up the encoder
// when an annotated output is requested.
func (p *Processor) ProcessFile(ctx context.Context, videoPath string, opts Options) (*Summary, error) {
	meta, err := video.Probe(ctx, p.ffprobePath, videoPath)
	if err != nil {
		return nil, err
	}

	src, err := video.NewDecoder(ctx, p.ffmpegPath, meta)
	if err != nil {
		return nil, err
	}

	var sink FrameSink
	if opts.AnnotatedPath != "" {
		if err := os.MkdirAll(filepath.Dir(opts.AnnotatedPath), 0o755); err != nil {
			src.Close()
			return nil, fmt.Errorf("create output directory: %w", err)
		}
		w, h := meta.DisplayDims()
		enc, err := video.NewEncoder(ctx, p.ffmpegPath, opts.AnnotatedPath, w, h, meta.FPS)
		if err != nil {
			src.Close()
			return nil, err
		}
		sink = enc
	}

	return p.Process(ctx, src, sink, opts)
}

// Process runs the detection pass over an open source. It takes
// ownership of src and sink and closes both.
func (p *Processor) Process(ctx context.Context, src FrameSource, sink FrameSink, opts Options) (*Summary, error) {
	abort := func() {
		src.Close()
		if sink != nil {
			sink.Close()
		}
	}

	if err := p.det.Initialize(); err != nil {
		abort()
		return nil, fmt.Errorf("initialize detector %s: %w", p.det.Name(), err)
	}
	defer p.det.Cleanup()

	info := src.Info()
	modelInfo := detector.Describe(p.det)

	var kw *keypointsWriter
	if opts.KeypointsPath != "" {
		var err error
		kw, err = newKeypointsWriter(opts.KeypointsPath, info, modelInfo)
		if err != nil {
			abort()
			return nil, err
		}
	}
	fail := func(err error) (*Summary, error) {
		abort()
		if kw != nil {
			kw.Abort()
		}
		return nil, err
	}

	p.log.Info("processing video",
		zap.String("path", info.Path),
		zap.String("model", modelInfo.Name),
		zap.Int("width", info.Width),
		zap.Int("height", info.Height),
		zap.Float64("fps", info.FPS),
		zap.Int("total_frames", info.TotalFrames))

	every := opts.ProgressEvery
	if every <= 0 {
		every = 100
	}

	var stats pose.Statistics
	start := time.Now()
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		frame, err := src.ReadFrame()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail(fmt.Errorf("decode frame %d: %w", processed, err))
		}

		detStart := time.Now()
		res, err := p.det.DetectPose(frame)
		detDur := time.Since(detStart)
		if err != nil {
			// A failed detection call counts as a miss, the pass
			// goes on.
			p.log.Warn("detection failed", zap.Int("frame", processed), zap.Error(err))
			res = nil
		}

		var ts float64
		if info.FPS > 0 {
			ts = float64(processed) / info.FPS
		}
		rec := pose.FrameRecord{
			FrameNumber:    processed,
			Timestamp:      ts,
			PoseDetected:   res != nil,
			ProcessingTime: detDur.Seconds(),
			PoseData:       res,
		}

		stats.Record(res != nil)
		metrics.FramesProcessedTotal.Inc()
		metrics.FrameProcessingDuration.Observe(detDur.Seconds())
		if res != nil {
			metrics.PoseDetectionsTotal.Inc()
		}

		if kw != nil {
			if err := kw.WriteRecord(rec); err != nil {
				return fail(fmt.Errorf("write frame record: %w", err))
			}
		}

		if sink != nil {
			out := frame
			if res != nil {
				annotated, err := p.det.DrawPose(frame, res)
				if err != nil {
					p.log.Warn("annotation failed", zap.Int("frame", processed), zap.Error(err))
				} else {
					out = annotated
				}
			}
			if err := sink.WriteFrame(out); err != nil {
				return fail(fmt.Errorf("write output frame %d: %w", processed, err))
			}
		}

		processed++

		if opts.Progress != nil && processed%every == 0 {
			opts.Progress(processed, info.TotalFrames, estimateETA(time.Since(start), processed, info.TotalFrames))
		}
	}

	if opts.Progress != nil && processed%every != 0 {
		opts.Progress(processed, info.TotalFrames, 0)
	}

	stats.TotalProcessingTime = time.Since(start).Seconds()
	stats.Finalize()

	if err := src.Close(); err != nil {
		p.log.Warn("decoder close", zap.Error(err))
	}
	if sink != nil {
		if err := sink.Close(); err != nil {
			if kw != nil {
				kw.Abort()
			}
			return nil, fmt.Errorf("finalize annotated video: %w", err)
		}
	}
	if kw != nil {
		if err := kw.Finish(stats); err != nil {
			return nil, fmt.Errorf("finalize keypoints file: %w", err)
		}
	}

	p.log.Info("processing complete",
		zap.Int("frames", stats.TotalFrames),
		zap.Int("frames_with_pose", stats.FramesWithPose),
		zap.Float64("detection_rate", stats.DetectionRate),
		zap.Float64("avg_fps", stats.AverageFPS))

	return &Summary{
		VideoInfo:     info,
		ModelInfo:     modelInfo,
		Stats:         stats,
		AnnotatedPath: opts.AnnotatedPath,
		KeypointsPath: opts.KeypointsPath,
	}, nil
}

// estimateETA projects the remaining time from the pace so far.
func estimateETA(elapsed time.Duration, processed, total int) time.Duration {
	if processed <= 0 || total <= 0 {
		return 0
	}
	eta := time.Duration(float64(elapsed)*float64(total)/float64(processed)) - elapsed
	if eta < 0 {
		return 0
	}
	return eta
}

// KeypointsFileName names the keypoints output for a video.
func KeypointsFileName(videoPath string) string {
	return "keypoints_" + videoStem(videoPath) + ".json"
}

// AnnotatedFileName names the annotated output video.
func AnnotatedFileName(videoPath string) string {
	return "annotated_" + videoStem(videoPath) + ".mp4"
}

func videoStem(videoPath string) string {
	base := filepath.Base(videoPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
