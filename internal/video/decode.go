package video

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/poselab/swinglab/internal/pose"
)

// Decoder streams decoded frames out of ffmpeg as raw RGB24 over a
// pipe, in strict source order. ffmpeg applies the container rotation
// during decode, so frames come out upright in display geometry.
type Decoder struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	meta   Metadata
	width  int
	height int
	frame  int
	eof    bool
}

func NewDecoder(ctx context.Context, ffmpegPath string, meta Metadata) (*Decoder, error) {
	d := &Decoder{meta: meta}
	d.width, d.height = meta.DisplayDims()
	if d.width <= 0 || d.height <= 0 {
		return nil, fmt.Errorf("invalid frame dimensions %dx%d for %s", d.width, d.height, meta.Path)
	}

	d.cmd = exec.CommandContext(ctx, ffmpegPath,
		"-v", "error",
		"-i", meta.Path,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1")
	d.cmd.Stderr = &d.stderr

	stdout, err := d.cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout pipe: %w", err)
	}
	d.stdout = stdout

	if err := d.cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg decode: %w", err)
	}
	return d, nil
}

// Info returns the source metadata in upright display geometry.
func (d *Decoder) Info() pose.VideoInfo {
	return d.meta.Info()
}

// ReadFrame returns the next frame, or io.EOF when the stream ends. A
// partially delivered frame is a decode error, not end of stream.
func (d *Decoder) ReadFrame() (*Frame, error) {
	buf := make([]byte, d.width*d.height*3)
	if _, err := io.ReadFull(d.stdout, buf); err != nil {
		if errors.Is(err, io.EOF) {
			d.eof = true
			return nil, io.EOF
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("truncated frame %d in %s: %s", d.frame, d.meta.Path, strings.TrimSpace(d.stderr.String()))
		}
		return nil, fmt.Errorf("read frame %d: %w", d.frame, err)
	}
	d.frame++
	return &Frame{Width: d.width, Height: d.height, Pix: buf}, nil
}

// Close releases the ffmpeg process. Closing before the stream was
// fully drained discards the rest of the video without error.
func (d *Decoder) Close() error {
	d.stdout.Close()
	err := d.cmd.Wait()
	if err != nil && d.eof {
		return fmt.Errorf("ffmpeg decode %s: %w: %s", d.meta.Path, err, strings.TrimSpace(d.stderr.String()))
	}
	return nil
}
