package video

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// FrameExtractor pulls single frames out of a video at second offsets,
// used to materialize the phase timestamps named in an analysis result.
type FrameExtractor struct {
	ffmpegPath  string
	ffprobePath string
	log         *zap.Logger
}

func NewFrameExtractor(ffmpegPath, ffprobePath string, log *zap.Logger) *FrameExtractor {
	return &FrameExtractor{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}
}

// ExtractAt decodes exactly one frame at the given second offset and
// writes it as JPEG to outPath. The offset is mapped to a frame index
// and clamped into the video, so out-of-range timestamps yield the
// first or last frame instead of failing.
func (fe *FrameExtractor) ExtractAt(ctx context.Context, videoPath string, seconds float64, outPath string) error {
	meta, err := Probe(ctx, fe.ffprobePath, videoPath)
	if err != nil {
		return fmt.Errorf("probe for frame extraction: %w", err)
	}

	idx := FrameIndexAt(seconds, meta.FPS, meta.TotalFrames)

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return fmt.Errorf("create frame directory: %w", err)
	}

	args := []string{
		"-v", "error",
		"-y",
		"-i", videoPath,
		"-vf", fmt.Sprintf(`select=eq(n\,%d)`, idx),
		"-vframes", "1",
		"-q:v", "2",
		outPath,
	}

	fe.log.Debug("extracting frame",
		zap.String("video", videoPath),
		zap.Float64("seconds", seconds),
		zap.Int("frame_index", idx))

	cmd := exec.CommandContext(ctx, fe.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("extract frame %d from %s: %w: %s", idx, videoPath, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// PhaseFrameName builds the file name for an extracted phase frame,
// replacing the ':' in the timestamp so it is filesystem safe.
func PhaseFrameName(phase, timestamp string) string {
	return fmt.Sprintf("%s_%s.jpg", phase, strings.ReplaceAll(timestamp, ":", "-"))
}
