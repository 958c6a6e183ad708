package video

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
)

// Encoder feeds raw RGB24 frames into ffmpeg over a pipe and muxes them
// into an H.264 video. Frames are encoded in the order they are
// written, so the output stays playback-synchronized with the input.
type Encoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
	path   string
	width  int
	height int
}

func NewEncoder(ctx context.Context, ffmpegPath, outPath string, width, height int, fps float64) (*Encoder, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("invalid fps %f for %s", fps, outPath)
	}
	e := &Encoder{path: outPath, width: width, height: height}

	e.cmd = exec.CommandContext(ctx, ffmpegPath,
		"-v", "error",
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", formatRate(fps),
		"-i", "pipe:0",
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		outPath)
	e.cmd.Stderr = &e.stderr

	stdin, err := e.cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin pipe: %w", err)
	}
	e.stdin = stdin

	if err := e.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg encode: %w", err)
	}
	return e, nil
}

func (e *Encoder) WriteFrame(f *Frame) error {
	if err := f.validateAgainst(e.width, e.height); err != nil {
		return err
	}
	if _, err := e.stdin.Write(f.Pix); err != nil {
		return fmt.Errorf("write frame to encoder: %w: %s", err, strings.TrimSpace(e.stderr.String()))
	}
	return nil
}

// Close flushes the stream and waits for ffmpeg to finish the file.
func (e *Encoder) Close() error {
	e.stdin.Close()
	if err := e.cmd.Wait(); err != nil {
		return fmt.Errorf("ffmpeg encode %s: %w: %s", e.path, err, strings.TrimSpace(e.stderr.String()))
	}
	return nil
}

func formatRate(fps float64) string {
	return strconv.FormatFloat(fps, 'f', -1, 64)
}
