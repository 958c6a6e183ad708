package video

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// NormalizeOptions control the normalization pass. A SlowFactor above 1
// re-times the video to fps/SlowFactor; 0 or 1 leaves timing alone.
type NormalizeOptions struct {
	SlowFactor float64
}

// Normalizer rewrites a video so every downstream consumer sees
// upright, correctly timed frames: container rotation is baked into the
// pixels and slow motion is applied as a pure time-stretch that keeps
// every source frame exactly once.
type Normalizer struct {
	ffmpegPath  string
	ffprobePath string
	log         *zap.Logger
}

func NewNormalizer(ffmpegPath, ffprobePath string, log *zap.Logger) *Normalizer {
	return &Normalizer{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		log:         log,
	}
}

// Normalize writes the normalized video to outPath and returns the path
// and metadata of the video downstream stages should use. When the
// source is already upright and no re-timing is requested, the source
// itself is returned untouched.
func (n *Normalizer) Normalize(ctx context.Context, inPath, outPath string, opts NormalizeOptions) (string, Metadata, error) {
	meta, err := Probe(ctx, n.ffprobePath, inPath)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("probe for normalization: %w", err)
	}

	args := buildNormalizeArgs(meta, outPath, opts)
	if args == nil {
		n.log.Debug("video already normalized", zap.String("path", inPath))
		return inPath, meta, nil
	}

	n.log.Info("normalizing video",
		zap.String("input", inPath),
		zap.String("output", outPath),
		zap.Int("rotation", meta.Rotation),
		zap.Float64("slow_factor", opts.SlowFactor))

	cmd := exec.CommandContext(ctx, n.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", Metadata{}, fmt.Errorf("ffmpeg normalize %s: %w: %s", inPath, err, strings.TrimSpace(stderr.String()))
	}

	outMeta, err := Probe(ctx, n.ffprobePath, outPath)
	if err != nil {
		return "", Metadata{}, fmt.Errorf("probe normalized output: %w", err)
	}
	return outPath, outMeta, nil
}

// buildNormalizeArgs assembles the ffmpeg invocation, or nil when the
// video needs no work. Rotation is applied by an explicit transpose
// with autorotate disabled, so the output carries upright pixels and a
// cleared rotation tag. The audio track is dropped because re-timed
// audio would desynchronize.
func buildNormalizeArgs(meta Metadata, outPath string, opts NormalizeOptions) []string {
	var filters []string
	if f := rotationFilter(meta.Rotation); f != "" {
		filters = append(filters, f)
	}

	outFPS := meta.FPS
	if opts.SlowFactor > 1 {
		filters = append(filters, fmt.Sprintf("setpts=%s*PTS", formatRate(opts.SlowFactor)))
		outFPS = meta.FPS / opts.SlowFactor
	}

	if len(filters) == 0 {
		return nil
	}

	return []string{
		"-v", "error",
		"-y",
		"-noautorotate",
		"-i", meta.Path,
		"-vf", strings.Join(filters, ","),
		"-r", formatRate(outFPS),
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-metadata:s:v:0", "rotate=0",
		"-an",
		outPath,
	}
}

// rotationFilter maps the container rotation to the transpose that
// brings frames upright: 90 needs a clockwise transpose, 270 a
// counter-clockwise one.
func rotationFilter(rotation int) string {
	switch rotation {
	case 90:
		return "transpose=1"
	case 180:
		return "transpose=1,transpose=1"
	case 270:
		return "transpose=2"
	default:
		return ""
	}
}
